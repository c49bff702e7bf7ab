package crm

import (
	"testing"
	"time"
)

var fixtureNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

// TestFixtures_Seed verifies the demo org ships one contact and one
// open opportunity per advisory client.
func TestFixtures_Seed(t *testing.T) {
	f := NewFixtures(fixtureNow)

	counts := f.Counts()
	want := map[string]int{"accounts": 4, "contacts": 4, "opportunities": 4, "tasks": 0, "notes": 0}
	for key, n := range want {
		if counts[key] != n {
			t.Errorf("Counts()[%q] = %d, want %d", key, counts[key], n)
		}
	}

	marcus, found := f.FindContact("Marcus Thompson")
	if !found {
		t.Fatal("FindContact(Marcus Thompson) not found")
	}
	if marcus.ID != "003DEMO001" {
		t.Errorf("ID = %q, want 003DEMO001", marcus.ID)
	}
	if marcus.Account == nil || marcus.Account.Name != "Thompson Family Trust" {
		t.Errorf("Account = %+v, want Thompson Family Trust", marcus.Account)
	}

	opp, found := f.FindOpportunity("Business Succession")
	if !found {
		t.Fatal("FindOpportunity(Business Succession) not found")
	}
	if opp.Amount != 1200000 {
		t.Errorf("Amount = %v, want 1200000", opp.Amount)
	}
	if opp.StageName != "Needs Analysis" {
		t.Errorf("StageName = %q, want Needs Analysis", opp.StageName)
	}

	rebalance, _ := f.FindOpportunity("Portfolio Rebalancing")
	if want := fixtureNow.AddDate(0, 0, 30).Format("2006-01-02"); rebalance.CloseDate != want {
		t.Errorf("CloseDate = %q, want %q", rebalance.CloseDate, want)
	}
}

// TestFixtures_SearchContacts verifies name, email, and account
// matching.
func TestFixtures_SearchContacts(t *testing.T) {
	f := NewFixtures(fixtureNow)

	tests := []struct {
		name   string
		needle string
		want   int
	}{
		{"by last name", "thompson", 1},
		{"by account name", "chen industries", 1},
		{"by email domain", "email.com", 3},
		{"no match", "zzz", 0},
		{"empty returns all", "", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.SearchContacts(tt.needle); len(got) != tt.want {
				t.Errorf("SearchContacts(%q) returned %d contacts, want %d", tt.needle, len(got), tt.want)
			}
		})
	}
}

// TestFixtures_AddContact verifies ID assignment and account
// find-or-create.
func TestFixtures_AddContact(t *testing.T) {
	f := NewFixtures(fixtureNow)

	attached := f.AddContact(Contact{FirstName: "Lena", LastName: "Chen"}, "Chen Industries")
	if attached.ID != "003DEMO005" {
		t.Errorf("ID = %q, want 003DEMO005", attached.ID)
	}
	if attached.Name != "Lena Chen" {
		t.Errorf("Name = %q, want Lena Chen", attached.Name)
	}
	if attached.Account == nil || attached.Account.ID != "001DEMO003" {
		t.Errorf("Account = %+v, want existing 001DEMO003", attached.Account)
	}

	fresh := f.AddContact(Contact{FirstName: "Dana", LastName: "Wu"}, "Wu Family Office")
	if fresh.Account == nil || fresh.Account.ID != "001DEMO005" {
		t.Errorf("Account = %+v, want new 001DEMO005", fresh.Account)
	}
	if _, found := f.FindAccount("Wu Family Office"); !found {
		t.Error("created account not findable")
	}

	if counts := f.Counts(); counts["contacts"] != 6 || counts["accounts"] != 5 {
		t.Errorf("Counts() = %v after adds", counts)
	}
}

// TestFixtures_UpdateStage verifies stage moves persist and report the
// prior stage.
func TestFixtures_UpdateStage(t *testing.T) {
	f := NewFixtures(fixtureNow)

	opp, old, found := f.UpdateStage("Rollover", "Negotiation/Review")
	if !found {
		t.Fatal("UpdateStage(Rollover) not found")
	}
	if old != "Proposal/Price Quote" {
		t.Errorf("old stage = %q, want Proposal/Price Quote", old)
	}
	if opp.StageName != "Negotiation/Review" {
		t.Errorf("StageName = %q, want Negotiation/Review", opp.StageName)
	}

	if cur, _ := f.FindOpportunity("Rollover"); cur.StageName != "Negotiation/Review" {
		t.Errorf("stage did not persist, got %q", cur.StageName)
	}

	if _, _, found := f.UpdateStage("no such deal", "Closed Won"); found {
		t.Error("UpdateStage matched a nonexistent opportunity")
	}
}

// TestFixtures_ReturnsCopies verifies callers cannot mutate the org
// through returned records.
func TestFixtures_ReturnsCopies(t *testing.T) {
	f := NewFixtures(fixtureNow)

	c, _ := f.FindContact("Priya")
	c.Account.Name = "mutated"
	if again, _ := f.FindContact("Priya"); again.Account.Name != "Patel Investment Account" {
		t.Errorf("contact account mutated through copy: %q", again.Account.Name)
	}

	opps := f.Opportunities()
	opps[0].Account.Name = "mutated"
	if again := f.Opportunities(); again[0].Account.Name == "mutated" {
		t.Error("opportunity account mutated through copy")
	}
}

// TestFixtures_TasksAndNotes verifies append-only activity records.
func TestFixtures_TasksAndNotes(t *testing.T) {
	f := NewFixtures(fixtureNow)

	task := f.AddTask(Task{Subject: "Follow up", WhoID: "003DEMO001"})
	if task.ID != "00TDEMO001" {
		t.Errorf("task ID = %q, want 00TDEMO001", task.ID)
	}
	if task.Status != "Not Started" {
		t.Errorf("task Status = %q, want Not Started", task.Status)
	}

	note := f.AddNote(Note{Title: "Call summary", Body: "Discussed goals", ParentID: "001DEMO003"})
	if note.ID != "002DEMO001" {
		t.Errorf("note ID = %q, want 002DEMO001", note.ID)
	}

	counts := f.Counts()
	if counts["tasks"] != 1 || counts["notes"] != 1 {
		t.Errorf("Counts() = %v, want one task and one note", counts)
	}
}
