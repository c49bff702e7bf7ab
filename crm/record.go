package crm

import "strings"

// AccountRef is the account relationship nested on a record.
type AccountRef struct {
	ID   string `json:"Id,omitempty"`
	Name string `json:"Name,omitempty"`
}

// Contact is a CRM contact record in the Salesforce wire shape, used
// both on the wire and for local fixtures.
type Contact struct {
	ID          string      `json:"Id,omitempty"`
	FirstName   string      `json:"FirstName,omitempty"`
	LastName    string      `json:"LastName,omitempty"`
	Name        string      `json:"Name,omitempty"`
	Email       string      `json:"Email,omitempty"`
	Phone       string      `json:"Phone,omitempty"`
	Title       string      `json:"Title,omitempty"`
	Description string      `json:"Description,omitempty"`
	Account     *AccountRef `json:"Account,omitempty"`
}

// Matches reports whether the lowercased needle appears in the
// contact's name, email, or account name.
func (c Contact) Matches(needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(c.Name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(c.Email), needle) {
		return true
	}
	return c.Account != nil && strings.Contains(strings.ToLower(c.Account.Name), needle)
}

// Opportunity is a CRM opportunity record.
type Opportunity struct {
	ID          string      `json:"Id,omitempty"`
	Name        string      `json:"Name"`
	Amount      float64     `json:"Amount"`
	StageName   string      `json:"StageName"`
	CloseDate   string      `json:"CloseDate,omitempty"`
	Probability float64     `json:"Probability,omitempty"`
	Account     *AccountRef `json:"Account,omitempty"`
}

// Closed reports whether the opportunity sits in a terminal stage.
func (o Opportunity) Closed() bool {
	return strings.HasPrefix(o.StageName, "Closed")
}

// Task is a follow-up activity attached to a contact.
type Task struct {
	ID           string `json:"Id,omitempty"`
	Subject      string `json:"Subject"`
	WhoID        string `json:"WhoId,omitempty"`
	Priority     string `json:"Priority,omitempty"`
	Status       string `json:"Status,omitempty"`
	ActivityDate string `json:"ActivityDate,omitempty"`
	Description  string `json:"Description,omitempty"`
}

// Note is a free-text note attached to an account.
type Note struct {
	ID       string `json:"Id,omitempty"`
	Title    string `json:"Title"`
	Body     string `json:"Body"`
	ParentID string `json:"ParentId,omitempty"`
}

// StageSummary is one aggregate pipeline row: opportunity count and
// total value for a stage. Field tags match the aggregate query
// aliases.
type StageSummary struct {
	StageName string  `json:"StageName"`
	Count     int     `json:"num"`
	Total     float64 `json:"total"`
}
