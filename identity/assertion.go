package identity

import "time"

// Assertion is a verified identity assertion. Instances are produced
// only by Verifier.Verify; the zero value represents no identity.
type Assertion struct {
	// Subject is the stable principal identifier (sub claim).
	Subject string

	// Email is the user's email address, when the claim is present.
	Email string

	// Name is the display name, when the claim is present.
	Name string

	// Groups are the group memberships asserted by the IdP.
	Groups []string

	// Issuer is the verified iss claim.
	Issuer string

	// ExpiresAt is the assertion expiry (exp claim).
	ExpiresAt time.Time

	// IssuedAt is when the assertion was issued (iat claim).
	IssuedAt time.Time

	// Claims holds the full verified claim set.
	Claims map[string]any

	raw string
}

// Raw returns the compact serialized assertion for use as a
// subject_token in downstream exchanges.
func (a Assertion) Raw() string {
	return a.raw
}

// Valid reports whether the assertion carries a verified subject.
func (a Assertion) Valid() bool {
	return a.Subject != "" && a.raw != ""
}

// Expired reports whether the assertion is past its expiry.
func (a Assertion) Expired() bool {
	if a.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(a.ExpiresAt)
}

// HasGroup reports whether the assertion includes the given group.
func (a Assertion) HasGroup(group string) bool {
	for _, g := range a.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// String identifies the assertion without exposing the raw token.
func (a Assertion) String() string {
	if !a.Valid() {
		return "assertion(invalid)"
	}
	return "assertion(" + a.Subject + ")"
}
