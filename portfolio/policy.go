package portfolio

import "strings"

// Approval is the authorization tier a payment lands in.
type Approval int

const (
	// ApproveAuto clears low-value payments with no ceremony.
	ApproveAuto Approval = iota

	// ApproveLogged clears the payment but records it for audit.
	ApproveLogged

	// StepUpRequired holds the payment for step-up authentication.
	StepUpRequired

	// ManagerApprovalRequired holds the payment for a manager.
	ManagerApprovalRequired

	// VPApprovalRequired holds the payment for a VP.
	VPApprovalRequired

	// ComplianceReviewRequired queues the payment for the compliance
	// team.
	ComplianceReviewRequired
)

// PaymentPolicy is the transaction authorization ladder plus the
// recipient blocklist. Thresholds are inclusive lower bounds.
type PaymentPolicy struct {
	// AutoApprove is the ceiling for ceremony-free payments.
	AutoApprove float64

	// StepUp is where step-up authentication starts.
	StepUp float64

	// Manager is where manager approval starts.
	Manager float64

	// VP is where VP approval starts.
	VP float64

	// ComplianceReview is where compliance review starts.
	ComplianceReview float64

	// BlockedRecipients are denied regardless of amount.
	BlockedRecipients []string
}

// DefaultPaymentPolicy returns the standard ladder.
func DefaultPaymentPolicy() PaymentPolicy {
	return PaymentPolicy{
		AutoApprove:      1_000,
		StepUp:           10_000,
		Manager:          50_000,
		VP:               250_000,
		ComplianceReview: 500_000,
		BlockedRecipients: []string{
			"Offshore Holdings LLC",
			"Anonymous Trust",
			"CryptoMixer Services",
		},
	}
}

// Blocked reports whether the recipient is on the blocklist.
func (p PaymentPolicy) Blocked(recipient string) bool {
	for _, b := range p.BlockedRecipients {
		if strings.EqualFold(b, recipient) {
			return true
		}
	}
	return false
}

// Tier returns the approval tier for an amount.
func (p PaymentPolicy) Tier(amount float64) Approval {
	switch {
	case amount >= p.ComplianceReview:
		return ComplianceReviewRequired
	case amount >= p.VP:
		return VPApprovalRequired
	case amount >= p.Manager:
		return ManagerApprovalRequired
	case amount >= p.StepUp:
		return StepUpRequired
	case amount >= p.AutoApprove:
		return ApproveLogged
	default:
		return ApproveAuto
	}
}
