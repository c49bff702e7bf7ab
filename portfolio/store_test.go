package portfolio

import "testing"

// TestStore_Find verifies lookup by ID, exact name, and partial name,
// all case-insensitive.
func TestStore_Find(t *testing.T) {
	s := NewStore()

	tests := []struct {
		name       string
		identifier string
		wantID     string
		wantFound  bool
	}{
		{"by id", "CLT001", "CLT001", true},
		{"by id lowercase", "clt002", "CLT002", true},
		{"by full name", "Marcus Thompson", "CLT001", true},
		{"by full name case folded", "marcus thompson", "CLT001", true},
		{"by partial name", "chen", "CLT003", true},
		{"by first name", "Priya", "CLT004", true},
		{"whitespace trimmed", "  Elena Rodriguez  ", "CLT002", true},
		{"unknown", "Charlie Brown", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, found := s.Find(tt.identifier)
			if found != tt.wantFound {
				t.Fatalf("Find(%q) found = %v, want %v", tt.identifier, found, tt.wantFound)
			}
			if found && c.ID != tt.wantID {
				t.Errorf("Find(%q) ID = %q, want %q", tt.identifier, c.ID, tt.wantID)
			}
		})
	}
}

// TestStore_FindReturnsCopy verifies callers cannot mutate the book
// through a Find result.
func TestStore_FindReturnsCopy(t *testing.T) {
	s := NewStore()

	c, found := s.Find("CLT001")
	if !found {
		t.Fatal("Find(CLT001) not found")
	}
	c.Phone = "000-0000"
	c.Holdings[0].Value = 0

	again, _ := s.Find("CLT001")
	if again.Phone == "000-0000" {
		t.Error("mutating a Find result changed the stored phone")
	}
	if again.Holdings[0].Value == 0 {
		t.Error("mutating a Find result changed a stored holding")
	}
}

// TestStore_List verifies book order and size.
func TestStore_List(t *testing.T) {
	s := NewStore()

	clients := s.List()
	if len(clients) != 4 {
		t.Fatalf("List() returned %d clients, want 4", len(clients))
	}

	wantOrder := []string{"CLT001", "CLT002", "CLT003", "CLT004"}
	for i, want := range wantOrder {
		if clients[i].ID != want {
			t.Errorf("List()[%d].ID = %q, want %q", i, clients[i].ID, want)
		}
	}
	if s.Len() != 4 {
		t.Errorf("Len() = %d, want 4", s.Len())
	}
}

// TestStore_UpdateContact verifies contact updates and the field
// allowlist.
func TestStore_UpdateContact(t *testing.T) {
	s := NewStore()

	old, ok := s.UpdateContact("CLT001", "phone", "555-9999")
	if !ok {
		t.Fatal("UpdateContact(phone) not ok")
	}
	if old != "555-0101" {
		t.Errorf("old phone = %q, want 555-0101", old)
	}
	c, _ := s.Find("CLT001")
	if c.Phone != "555-9999" {
		t.Errorf("phone after update = %q, want 555-9999", c.Phone)
	}

	if _, ok := s.UpdateContact("CLT001", "advisor", "Someone Else"); ok {
		t.Error("UpdateContact(advisor) ok, want rejection")
	}
	if _, ok := s.UpdateContact("CLT999", "phone", "555-0000"); ok {
		t.Error("UpdateContact(unknown client) ok, want rejection")
	}
}

// TestClient_Compliant verifies the compliance gate conditions.
func TestClient_Compliant(t *testing.T) {
	c := &Client{ComplianceStatus: "clear"}
	if !c.Compliant() {
		t.Error("clear client reported non-compliant")
	}

	c.ComplianceStatus = "hold"
	if c.Compliant() {
		t.Error("held client reported compliant")
	}

	c.ComplianceStatus = "clear"
	c.AMLFlag = true
	if c.Compliant() {
		t.Error("AML-flagged client reported compliant")
	}
}
