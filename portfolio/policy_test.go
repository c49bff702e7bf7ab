package portfolio

import "testing"

// TestPaymentPolicy_Tier verifies the authorization ladder boundaries.
func TestPaymentPolicy_Tier(t *testing.T) {
	p := DefaultPaymentPolicy()

	tests := []struct {
		amount float64
		want   Approval
	}{
		{0, ApproveAuto},
		{500, ApproveAuto},
		{999.99, ApproveAuto},
		{1_000, ApproveLogged},
		{9_999.99, ApproveLogged},
		{10_000, StepUpRequired},
		{49_999, StepUpRequired},
		{50_000, ManagerApprovalRequired},
		{249_999, ManagerApprovalRequired},
		{250_000, VPApprovalRequired},
		{499_999, VPApprovalRequired},
		{500_000, ComplianceReviewRequired},
		{2_000_000, ComplianceReviewRequired},
	}

	for _, tt := range tests {
		if got := p.Tier(tt.amount); got != tt.want {
			t.Errorf("Tier(%.2f) = %v, want %v", tt.amount, got, tt.want)
		}
	}
}

// TestPaymentPolicy_Blocked verifies blocklist matching is
// case-insensitive.
func TestPaymentPolicy_Blocked(t *testing.T) {
	p := DefaultPaymentPolicy()

	tests := []struct {
		recipient string
		want      bool
	}{
		{"Offshore Holdings LLC", true},
		{"offshore holdings llc", true},
		{"ANONYMOUS TRUST", true},
		{"CryptoMixer Services", true},
		{"Vanguard Brokerage", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := p.Blocked(tt.recipient); got != tt.want {
			t.Errorf("Blocked(%q) = %v, want %v", tt.recipient, got, tt.want)
		}
	}
}
