package crm

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Fixtures is the local CRM org served when no provider token is
// available. Record IDs follow the Salesforce key-prefix convention
// (001 accounts, 003 contacts, 006 opportunities, 00T tasks, 002
// notes). Writes mutate it so demo turns stay coherent within a
// session.
type Fixtures struct {
	mu            sync.Mutex
	accounts      []AccountRef
	contacts      []Contact
	opportunities []Opportunity
	tasks         []Task
	notes         []Note

	contactSeq int
	accountSeq int
	taskSeq    int
	noteSeq    int
}

// NewFixtures seeds the demo org relative to now: one contact and one
// open opportunity per advisory client.
func NewFixtures(now time.Time) *Fixtures {
	closeOn := func(days int) string {
		return now.AddDate(0, 0, days).Format("2006-01-02")
	}

	accounts := []AccountRef{
		{ID: "001DEMO001", Name: "Thompson Family Trust"},
		{ID: "001DEMO002", Name: "Rodriguez Retirement Fund"},
		{ID: "001DEMO003", Name: "Chen Industries Holdings"},
		{ID: "001DEMO004", Name: "Patel Investment Account"},
	}

	contacts := []Contact{
		{
			ID:        "003DEMO001",
			FirstName: "Marcus",
			LastName:  "Thompson",
			Name:      "Marcus Thompson",
			Email:     "marcus.thompson@email.com",
			Phone:     "555-0101",
			Title:     "Trustee",
			Account:   &AccountRef{ID: "001DEMO001", Name: "Thompson Family Trust"},
		},
		{
			ID:        "003DEMO002",
			FirstName: "Elena",
			LastName:  "Rodriguez",
			Name:      "Elena Rodriguez",
			Email:     "elena.rodriguez@email.com",
			Phone:     "555-0102",
			Title:     "Retired Director",
			Account:   &AccountRef{ID: "001DEMO002", Name: "Rodriguez Retirement Fund"},
		},
		{
			ID:        "003DEMO003",
			FirstName: "James",
			LastName:  "Chen",
			Name:      "James Chen",
			Email:     "jchen@chenindustries.com",
			Phone:     "555-0103",
			Title:     "Chief Executive Officer",
			Account:   &AccountRef{ID: "001DEMO003", Name: "Chen Industries Holdings"},
		},
		{
			ID:        "003DEMO004",
			FirstName: "Priya",
			LastName:  "Patel",
			Name:      "Priya Patel",
			Email:     "priya.patel@email.com",
			Phone:     "555-0104",
			Title:     "Software Engineer",
			Account:   &AccountRef{ID: "001DEMO004", Name: "Patel Investment Account"},
		},
	}

	opportunities := []Opportunity{
		{
			ID:          "006DEMO001",
			Name:        "Portfolio Rebalancing - Thompson",
			Amount:      250000,
			StageName:   "Qualification",
			CloseDate:   closeOn(30),
			Probability: 30,
			Account:     &AccountRef{ID: "001DEMO001", Name: "Thompson Family Trust"},
		},
		{
			ID:          "006DEMO002",
			Name:        "Retirement Rollover - Rodriguez",
			Amount:      850000,
			StageName:   "Proposal/Price Quote",
			CloseDate:   closeOn(45),
			Probability: 75,
			Account:     &AccountRef{ID: "001DEMO002", Name: "Rodriguez Retirement Fund"},
		},
		{
			ID:          "006DEMO003",
			Name:        "Business Succession - Chen",
			Amount:      1200000,
			StageName:   "Needs Analysis",
			CloseDate:   closeOn(90),
			Probability: 40,
			Account:     &AccountRef{ID: "001DEMO003", Name: "Chen Industries Holdings"},
		},
		{
			ID:          "006DEMO004",
			Name:        "New Growth Strategy - Patel",
			Amount:      150000,
			StageName:   "Prospecting",
			CloseDate:   closeOn(60),
			Probability: 10,
			Account:     &AccountRef{ID: "001DEMO004", Name: "Patel Investment Account"},
		},
	}

	return &Fixtures{
		accounts:      accounts,
		contacts:      contacts,
		opportunities: opportunities,
		contactSeq:    len(contacts),
		accountSeq:    len(accounts),
	}
}

// SearchContacts returns copies of the contacts matching the needle,
// all contacts when it is empty.
func (f *Fixtures) SearchContacts(needle string) []Contact {
	f.mu.Lock()
	defer f.mu.Unlock()
	needle = strings.ToLower(needle)
	out := make([]Contact, 0, len(f.contacts))
	for _, c := range f.contacts {
		if c.Matches(needle) {
			out = append(out, cloneContact(c))
		}
	}
	return out
}

// FindContact returns the first contact whose name contains the given
// name, case-insensitively.
func (f *Fixtures) FindContact(name string) (Contact, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	needle := strings.ToLower(name)
	for _, c := range f.contacts {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			return cloneContact(c), true
		}
	}
	return Contact{}, false
}

// AddContact appends the contact, composing its display name and
// assigning the next contact ID. A non-empty accountName attaches the
// matching account, creating it first when the org has none.
func (f *Fixtures) AddContact(c Contact, accountName string) Contact {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.contactSeq++
	c.ID = fmt.Sprintf("003DEMO%03d", f.contactSeq)
	c.Name = strings.TrimSpace(c.FirstName + " " + c.LastName)

	if accountName != "" {
		acct, found := f.findAccount(accountName)
		if !found {
			f.accountSeq++
			acct = AccountRef{ID: fmt.Sprintf("001DEMO%03d", f.accountSeq), Name: accountName}
			f.accounts = append(f.accounts, acct)
		}
		c.Account = &acct
	}

	f.contacts = append(f.contacts, c)
	return cloneContact(c)
}

// FindAccount returns the first account whose name contains the given
// name, case-insensitively.
func (f *Fixtures) FindAccount(name string) (AccountRef, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findAccount(name)
}

func (f *Fixtures) findAccount(name string) (AccountRef, bool) {
	needle := strings.ToLower(name)
	for _, a := range f.accounts {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			return a, true
		}
	}
	return AccountRef{}, false
}

// Opportunities returns copies of all opportunities.
func (f *Fixtures) Opportunities() []Opportunity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Opportunity, 0, len(f.opportunities))
	for _, o := range f.opportunities {
		out = append(out, cloneOpportunity(o))
	}
	return out
}

// FindOpportunity returns the first opportunity whose name contains
// the given name, case-insensitively.
func (f *Fixtures) FindOpportunity(name string) (Opportunity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	needle := strings.ToLower(name)
	for _, o := range f.opportunities {
		if strings.Contains(strings.ToLower(o.Name), needle) {
			return cloneOpportunity(o), true
		}
	}
	return Opportunity{}, false
}

// UpdateStage moves the first opportunity matching name to the given
// stage, returning the updated record and the stage it left.
func (f *Fixtures) UpdateStage(name, stage string) (Opportunity, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	needle := strings.ToLower(name)
	for i, o := range f.opportunities {
		if strings.Contains(strings.ToLower(o.Name), needle) {
			old := o.StageName
			f.opportunities[i].StageName = stage
			return cloneOpportunity(f.opportunities[i]), old, true
		}
	}
	return Opportunity{}, "", false
}

// AddTask appends the task, assigning the next task ID and a Not
// Started status.
func (f *Fixtures) AddTask(t Task) Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskSeq++
	t.ID = fmt.Sprintf("00TDEMO%03d", f.taskSeq)
	if t.Status == "" {
		t.Status = "Not Started"
	}
	f.tasks = append(f.tasks, t)
	return t
}

// AddNote appends the note, assigning the next note ID.
func (f *Fixtures) AddNote(n Note) Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteSeq++
	n.ID = fmt.Sprintf("002DEMO%03d", f.noteSeq)
	f.notes = append(f.notes, n)
	return n
}

// Counts reports the current record totals per collection.
func (f *Fixtures) Counts() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]int{
		"accounts":      len(f.accounts),
		"contacts":      len(f.contacts),
		"opportunities": len(f.opportunities),
		"tasks":         len(f.tasks),
		"notes":         len(f.notes),
	}
}

func cloneContact(c Contact) Contact {
	if c.Account != nil {
		acct := *c.Account
		c.Account = &acct
	}
	return c
}

func cloneOpportunity(o Opportunity) Opportunity {
	if o.Account != nil {
		acct := *o.Account
		o.Account = &acct
	}
	return o
}
