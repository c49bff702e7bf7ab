package identity

import (
	"errors"
	"fmt"
)

// ErrIdentityInvalid is the umbrella class for every assertion
// rejection. All sentinels below match it under errors.Is, so callers
// can branch on the class or on the precise cause.
var ErrIdentityInvalid = errors.New("identity: assertion rejected")

var (
	// ErrMissingAssertion indicates no assertion was supplied.
	ErrMissingAssertion = fmt.Errorf("%w: no assertion supplied", ErrIdentityInvalid)

	// ErrAssertionMalformed indicates the assertion could not be parsed
	// or its signature did not verify.
	ErrAssertionMalformed = fmt.Errorf("%w: malformed or bad signature", ErrIdentityInvalid)

	// ErrAssertionExpired indicates the assertion is past its expiry.
	ErrAssertionExpired = fmt.Errorf("%w: expired", ErrIdentityInvalid)

	// ErrIssuerMismatch indicates the iss claim does not match the
	// configured issuer.
	ErrIssuerMismatch = fmt.Errorf("%w: issuer mismatch", ErrIdentityInvalid)

	// ErrAudienceMismatch indicates the aud claim does not include the
	// configured client.
	ErrAudienceMismatch = fmt.Errorf("%w: audience mismatch", ErrIdentityInvalid)

	// ErrKeyNotFound indicates the signing key for the assertion's kid
	// is not present in the issuer's JWKS, even after a refresh.
	ErrKeyNotFound = fmt.Errorf("%w: signing key not found", ErrIdentityInvalid)
)

// ErrKeystoreUnavailable indicates the key set could not be fetched and
// no previously fetched key applies. It is an availability failure, not
// a verdict on the assertion, so it does not match ErrIdentityInvalid.
var ErrKeystoreUnavailable = errors.New("identity: key set unavailable")
