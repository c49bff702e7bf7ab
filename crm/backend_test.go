package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apexwealth/agentgate/health"
	"github.com/apexwealth/agentgate/token"
)

func testClock() time.Time { return fixtureNow }

func newFixtureBackend() *Backend {
	return New(Config{Clock: testClock})
}

func newLiveBackend(instanceURL string) *Backend {
	return New(Config{
		API:   NewAPIClient(APIConfig{InstanceURL: instanceURL}),
		Clock: testClock,
	})
}

func sfToken() token.Token {
	return token.Available("00Dsf.provider-token", fixtureNow.Add(time.Hour))
}

func noToken() token.Token {
	return token.Unavailable(errors.New("no vault connection"))
}

func call(t *testing.T, b *Backend, name string, args map[string]any, tok token.Token) map[string]any {
	t.Helper()
	result, err := b.Call(context.Background(), name, args, tok)
	if err != nil {
		t.Fatalf("Call(%s) error: %v", name, err)
	}
	return result
}

func vaultInfo(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	info, ok := result["token_vault_info"].(map[string]any)
	if !ok {
		t.Fatalf("token_vault_info missing: %v", result)
	}
	return info
}

// TestBackend_Catalog verifies the tool catalog shape.
func TestBackend_Catalog(t *testing.T) {
	b := newFixtureBackend()

	if b.Name() != "crm" {
		t.Errorf("Name() = %q, want crm", b.Name())
	}
	defs := b.Tools()
	want := []string{
		"search_crm_contacts", "get_crm_contact", "create_crm_contact",
		"list_crm_opportunities", "update_opportunity_stage",
		"get_pipeline_summary", "create_crm_task", "add_crm_note",
	}
	if len(defs) != len(want) {
		t.Fatalf("Tools() returned %d definitions, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("Tools()[%d].Name = %q, want %q", i, defs[i].Name, name)
		}
	}
}

// TestBackend_SearchContacts_Fixtures verifies the demo org serves
// when no provider token is present.
func TestBackend_SearchContacts_Fixtures(t *testing.T) {
	b := newFixtureBackend()

	result := call(t, b, "search_crm_contacts", map[string]any{"search_term": "Thompson"}, noToken())

	if result["source"] != sourceMock {
		t.Errorf("source = %v, want %q", result["source"], sourceMock)
	}
	if result["count"] != 1 {
		t.Errorf("count = %v, want 1", result["count"])
	}
	contacts := result["contacts"].([]Contact)
	if contacts[0].Name != "Marcus Thompson" {
		t.Errorf("contacts[0].Name = %q, want Marcus Thompson", contacts[0].Name)
	}
	info := vaultInfo(t, result)
	if info["token_available"] != false {
		t.Errorf("token_available = %v, want false", info["token_available"])
	}
	if info["token_source"] != "salesforce connection" {
		t.Errorf("token_source = %v", info["token_source"])
	}
}

// TestBackend_SearchContacts_Live verifies the SOSL path: bearer
// header, FIND clause, and the live source label.
func TestBackend_SearchContacts_Live(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/data/v59.0/search/" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("q")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"searchRecords": []Contact{{
				ID:      "003LIVE001",
				Name:    "Marcus Thompson",
				Email:   "marcus.thompson@email.com",
				Account: &AccountRef{Name: "Thompson Family Trust"},
			}},
		})
	}))
	defer srv.Close()

	b := newLiveBackend(srv.URL)
	result := call(t, b, "search_crm_contacts", map[string]any{"search_term": "Marcus"}, sfToken())

	if gotAuth != "Bearer 00Dsf.provider-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	want := "FIND {Marcus} IN NAME FIELDS RETURNING Contact(Id, Name, Email, Phone, Title, Account.Name) LIMIT 10"
	if gotQuery != want {
		t.Errorf("q = %q, want %q", gotQuery, want)
	}
	if result["source"] != sourceLive {
		t.Errorf("source = %v, want %q", result["source"], sourceLive)
	}
	if result["count"] != 1 {
		t.Errorf("count = %v, want 1", result["count"])
	}
	info := vaultInfo(t, result)
	if info["token_available"] != true {
		t.Errorf("token_available = %v, want true", info["token_available"])
	}
}

// TestBackend_GetContact verifies the single-contact detail view.
func TestBackend_GetContact(t *testing.T) {
	b := newFixtureBackend()

	result := call(t, b, "get_crm_contact", map[string]any{"name": "marcus"}, noToken())

	contact := result["contact"].(Contact)
	if contact.Title != "Trustee" {
		t.Errorf("Title = %q, want Trustee", contact.Title)
	}
	if contact.Email != "marcus.thompson@email.com" {
		t.Errorf("Email = %q", contact.Email)
	}
	if contact.Account == nil || contact.Account.Name != "Thompson Family Trust" {
		t.Errorf("Account = %+v", contact.Account)
	}
}

// TestBackend_GetContact_NotFound verifies misses are payloads, not
// errors.
func TestBackend_GetContact_NotFound(t *testing.T) {
	b := newFixtureBackend()

	result := call(t, b, "get_crm_contact", map[string]any{"name": "Nobody"}, noToken())

	if result["error"] != "not_found" {
		t.Errorf("error = %v, want not_found", result["error"])
	}
	if !strings.Contains(result["message"].(string), "Nobody") {
		t.Errorf("message = %v", result["message"])
	}
}

// TestBackend_CreateContact_Fixtures verifies contact creation with
// account find-or-create against the demo org.
func TestBackend_CreateContact_Fixtures(t *testing.T) {
	b := newFixtureBackend()

	result := call(t, b, "create_crm_contact", map[string]any{
		"first_name":   "Dana",
		"last_name":    "Wu",
		"email":        "dana.wu@email.com",
		"account_name": "Wu Family Office",
	}, noToken())

	if result["status"] != "created" {
		t.Fatalf("status = %v, want created", result["status"])
	}
	if result["contact_id"] != "003DEMO005" {
		t.Errorf("contact_id = %v, want 003DEMO005", result["contact_id"])
	}
	if result["account"] != "Wu Family Office" {
		t.Errorf("account = %v", result["account"])
	}
	if result["message"] != `Successfully created contact "Dana Wu" in Salesforce` {
		t.Errorf("message = %v", result["message"])
	}

	again := call(t, b, "search_crm_contacts", map[string]any{"search_term": "Dana"}, noToken())
	if again["count"] != 1 {
		t.Errorf("created contact not searchable: %v", again["count"])
	}

	missing := call(t, b, "create_crm_contact", map[string]any{"first_name": "Solo"}, noToken())
	if missing["error"] != "invalid_field" {
		t.Errorf("error = %v, want invalid_field", missing["error"])
	}
}

// TestBackend_CreateContact_Live verifies the account lookup and the
// Contact insert payload.
func TestBackend_CreateContact_Live(t *testing.T) {
	var posted map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/services/data/v59.0/query/":
			q := r.URL.Query().Get("q")
			if !strings.Contains(q, "FROM Account WHERE Name LIKE '%Chen Industries%'") {
				t.Errorf("unexpected account query: %q", q)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"records": []AccountRef{{ID: "001LIVE001", Name: "Chen Industries Holdings"}},
			})
		case r.URL.Path == "/services/data/v59.0/sobjects/Contact/" && r.Method == http.MethodPost:
			_ = json.NewDecoder(r.Body).Decode(&posted)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "003LIVE009", "success": true})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	b := newLiveBackend(srv.URL)
	result := call(t, b, "create_crm_contact", map[string]any{
		"first_name":   "Lena",
		"last_name":    "Chen",
		"title":        "CFO",
		"account_name": "Chen Industries",
	}, sfToken())

	if result["contact_id"] != "003LIVE009" {
		t.Errorf("contact_id = %v, want 003LIVE009", result["contact_id"])
	}
	if result["source"] != sourceLive {
		t.Errorf("source = %v, want %q", result["source"], sourceLive)
	}
	if posted["FirstName"] != "Lena" || posted["LastName"] != "Chen" {
		t.Errorf("posted name = %v %v", posted["FirstName"], posted["LastName"])
	}
	if posted["AccountId"] != "001LIVE001" {
		t.Errorf("posted AccountId = %v, want 001LIVE001", posted["AccountId"])
	}
	if _, ok := posted["Name"]; ok {
		t.Error("posted payload carries the derived Name field")
	}
}

// TestBackend_ListOpportunities verifies the open, threshold, and
// per-contact views over the demo org.
func TestBackend_ListOpportunities(t *testing.T) {
	b := newFixtureBackend()

	all := call(t, b, "list_crm_opportunities", nil, noToken())
	opps := all["opportunities"].([]Opportunity)
	if len(opps) != 4 {
		t.Fatalf("len(opportunities) = %d, want 4", len(opps))
	}
	wantOrder := []float64{1200000, 850000, 250000, 150000}
	for i, amount := range wantOrder {
		if opps[i].Amount != amount {
			t.Errorf("opportunities[%d].Amount = %v, want %v", i, opps[i].Amount, amount)
		}
	}

	big := call(t, b, "list_crm_opportunities", map[string]any{"min_amount": 500000}, noToken())
	if big["count"] != 2 {
		t.Errorf("count above 500K = %v, want 2", big["count"])
	}
	if big["threshold"] != 500000.0 {
		t.Errorf("threshold = %v, want 500000", big["threshold"])
	}

	byContact := call(t, b, "list_crm_opportunities", map[string]any{"contact_name": "Rodriguez"}, noToken())
	if byContact["count"] != 1 {
		t.Fatalf("count for Rodriguez = %v, want 1", byContact["count"])
	}
	contact := byContact["contact"].(map[string]any)
	if contact["account"] != "Rodriguez Retirement Fund" {
		t.Errorf("contact account = %v", contact["account"])
	}

	missing := call(t, b, "list_crm_opportunities", map[string]any{"contact_name": "Nobody"}, noToken())
	if missing["error"] != "not_found" {
		t.Errorf("error = %v, want not_found", missing["error"])
	}
}

// TestBackend_UpdateStage verifies stage moves report the transition
// and persist in the demo org.
func TestBackend_UpdateStage(t *testing.T) {
	b := newFixtureBackend()

	result := call(t, b, "update_opportunity_stage", map[string]any{
		"opportunity_name": "Rollover",
		"new_stage":        "Negotiation/Review",
	}, noToken())

	if result["status"] != "updated" {
		t.Fatalf("status = %v, want updated", result["status"])
	}
	if result["old_stage"] != "Proposal/Price Quote" {
		t.Errorf("old_stage = %v", result["old_stage"])
	}
	if result["message"] != `Updated "Retirement Rollover - Rodriguez" from Proposal/Price Quote to Negotiation/Review` {
		t.Errorf("message = %v", result["message"])
	}

	again := call(t, b, "list_crm_opportunities", map[string]any{"contact_name": "Rodriguez"}, noToken())
	opps := again["opportunities"].([]Opportunity)
	if opps[0].StageName != "Negotiation/Review" {
		t.Errorf("stage did not persist, got %q", opps[0].StageName)
	}

	miss := call(t, b, "update_opportunity_stage", map[string]any{
		"opportunity_name": "no such deal",
		"new_stage":        "Closed Won",
	}, noToken())
	if miss["error"] != "not_found" {
		t.Errorf("error = %v, want not_found", miss["error"])
	}
}

// TestBackend_UpdateStage_Live verifies the lookup-then-patch flow
// against the REST API.
func TestBackend_UpdateStage_Live(t *testing.T) {
	var patched map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/services/data/v59.0/query/":
			q := r.URL.Query().Get("q")
			if !strings.Contains(q, "FROM Opportunity WHERE Name LIKE '%Rollover%'") {
				t.Errorf("unexpected query: %q", q)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"records": []Opportunity{{
					ID:        "006LIVE001",
					Name:      "Retirement Rollover - Rodriguez",
					StageName: "Proposal/Price Quote",
				}},
			})
		case r.URL.Path == "/services/data/v59.0/sobjects/Opportunity/006LIVE001" && r.Method == http.MethodPatch:
			_ = json.NewDecoder(r.Body).Decode(&patched)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	b := newLiveBackend(srv.URL)
	result := call(t, b, "update_opportunity_stage", map[string]any{
		"opportunity_name": "Rollover",
		"new_stage":        "Negotiation/Review",
	}, sfToken())

	if patched["StageName"] != "Negotiation/Review" {
		t.Errorf("patched StageName = %q", patched["StageName"])
	}
	if result["old_stage"] != "Proposal/Price Quote" || result["new_stage"] != "Negotiation/Review" {
		t.Errorf("transition = %v -> %v", result["old_stage"], result["new_stage"])
	}
	if result["source"] != sourceLive {
		t.Errorf("source = %v, want %q", result["source"], sourceLive)
	}
}

// TestBackend_PipelineSummary verifies per-stage aggregation and open
// totals over the demo org.
func TestBackend_PipelineSummary(t *testing.T) {
	b := newFixtureBackend()

	result := call(t, b, "get_pipeline_summary", nil, noToken())

	rows := result["pipeline"].([]StageSummary)
	wantStages := []string{"Needs Analysis", "Proposal/Price Quote", "Prospecting", "Qualification"}
	if len(rows) != len(wantStages) {
		t.Fatalf("len(pipeline) = %d, want %d", len(rows), len(wantStages))
	}
	for i, stage := range wantStages {
		if rows[i].StageName != stage {
			t.Errorf("pipeline[%d].StageName = %q, want %q", i, rows[i].StageName, stage)
		}
	}

	summary := result["summary"].(map[string]any)
	if summary["total_opportunities"] != 4 {
		t.Errorf("total_opportunities = %v, want 4", summary["total_opportunities"])
	}
	if summary["total_value"] != 2450000.0 {
		t.Errorf("total_value = %v, want 2450000", summary["total_value"])
	}

	open := result["open_pipeline"].(map[string]any)
	if open["opportunity_count"] != 4 {
		t.Errorf("open count = %v, want 4", open["opportunity_count"])
	}

	filtered := call(t, b, "get_pipeline_summary", map[string]any{"stage_filter": "Qualification"}, noToken())
	rows = filtered["pipeline"].([]StageSummary)
	if len(rows) != 1 || rows[0].Total != 250000 {
		t.Errorf("filtered pipeline = %+v", rows)
	}

	call(t, b, "update_opportunity_stage", map[string]any{
		"opportunity_name": "Rollover",
		"new_stage":        "Closed Won",
	}, noToken())
	after := call(t, b, "get_pipeline_summary", nil, noToken())
	open = after["open_pipeline"].(map[string]any)
	if open["opportunity_count"] != 3 {
		t.Errorf("open count after close = %v, want 3", open["opportunity_count"])
	}
	if open["total_value"] != 1600000.0 {
		t.Errorf("open value after close = %v, want 1600000", open["total_value"])
	}
}

// TestBackend_PipelineSummary_Live verifies the aggregate rows and
// open totals decode from the REST API.
func TestBackend_PipelineSummary_Live(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch {
		case strings.Contains(q, "GROUP BY StageName"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"records": []map[string]any{
					{"StageName": "Needs Analysis", "num": 2, "total": 1450000},
					{"StageName": "Prospecting", "num": 1, "total": 150000},
				},
			})
		case strings.Contains(q, "WHERE IsClosed = false"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"records": []map[string]any{{"total": 1600000, "num": 3}},
			})
		default:
			t.Errorf("unexpected query: %q", q)
		}
	}))
	defer srv.Close()

	b := newLiveBackend(srv.URL)
	result := call(t, b, "get_pipeline_summary", nil, sfToken())

	summary := result["summary"].(map[string]any)
	if summary["total_opportunities"] != 3 {
		t.Errorf("total_opportunities = %v, want 3", summary["total_opportunities"])
	}
	if summary["total_value"] != 1600000.0 {
		t.Errorf("total_value = %v, want 1600000", summary["total_value"])
	}
	open := result["open_pipeline"].(map[string]any)
	if open["opportunity_count"] != 3 || open["total_value"] != 1600000.0 {
		t.Errorf("open_pipeline = %v", open)
	}
	if result["source"] != sourceLive {
		t.Errorf("source = %v, want %q", result["source"], sourceLive)
	}
}

// TestBackend_APIFallback verifies API failures degrade to the demo
// org while still reporting the token as present.
func TestBackend_APIFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `[{"errorCode":"INVALID_SESSION_ID"}]`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	b := newLiveBackend(srv.URL)
	result := call(t, b, "search_crm_contacts", map[string]any{"search_term": "Thompson"}, sfToken())

	if result["source"] != sourceMock {
		t.Errorf("source = %v, want %q", result["source"], sourceMock)
	}
	if result["count"] != 1 {
		t.Errorf("count = %v, want 1", result["count"])
	}
	info := vaultInfo(t, result)
	if info["token_available"] != true {
		t.Errorf("token_available = %v, want true", info["token_available"])
	}
}

// TestBackend_CreateTask verifies follow-up tasks attach to a contact.
func TestBackend_CreateTask(t *testing.T) {
	b := newFixtureBackend()

	result := call(t, b, "create_crm_task", map[string]any{
		"subject":      "Follow up on rebalancing proposal",
		"contact_name": "Marcus",
		"due_date":     "2025-03-17",
	}, noToken())

	if result["status"] != "created" {
		t.Fatalf("status = %v, want created", result["status"])
	}
	if result["task_id"] != "00TDEMO001" {
		t.Errorf("task_id = %v, want 00TDEMO001", result["task_id"])
	}
	if result["message"] != `Task "Follow up on rebalancing proposal" created for Marcus Thompson` {
		t.Errorf("message = %v", result["message"])
	}

	miss := call(t, b, "create_crm_task", map[string]any{
		"subject":      "Orphan task",
		"contact_name": "Nobody",
	}, noToken())
	if miss["error"] != "not_found" {
		t.Errorf("error = %v, want not_found", miss["error"])
	}
}

// TestBackend_AddNote verifies notes attach to an account.
func TestBackend_AddNote(t *testing.T) {
	b := newFixtureBackend()

	result := call(t, b, "add_crm_note", map[string]any{
		"account_name": "Chen",
		"title":        "Succession planning call",
		"body":         "Discussed transition timeline with James.",
	}, noToken())

	if result["note_id"] != "002DEMO001" {
		t.Errorf("note_id = %v, want 002DEMO001", result["note_id"])
	}
	if result["message"] != `Note "Succession planning call" added to Chen Industries Holdings` {
		t.Errorf("message = %v", result["message"])
	}

	miss := call(t, b, "add_crm_note", map[string]any{
		"account_name": "No Such Account",
		"title":        "x",
		"body":         "y",
	}, noToken())
	if miss["error"] != "not_found" {
		t.Errorf("error = %v, want not_found", miss["error"])
	}
}

// TestBackend_UnknownTool verifies unroutable names are Go errors.
func TestBackend_UnknownTool(t *testing.T) {
	b := newFixtureBackend()

	_, err := b.Call(context.Background(), "delete_org", nil, noToken())
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("err = %v, want ErrUnknownTool", err)
	}
}

// TestBackend_Checker verifies the readiness check reports fixture
// counts.
func TestBackend_Checker(t *testing.T) {
	b := newFixtureBackend()

	result := b.Checker().Check(context.Background())
	if result.Status != health.StatusHealthy {
		t.Errorf("Status = %v, want healthy", result.Status)
	}
	if result.Details["fixture_contacts"] != 4 {
		t.Errorf("fixture_contacts = %v, want 4", result.Details["fixture_contacts"])
	}
}

// TestAPIClient_EscapesQueries verifies user input cannot break out of
// SOQL strings or SOSL FIND clauses.
func TestAPIClient_EscapesQueries(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode(map[string]any{"records": []any{}, "searchRecords": []any{}})
	}))
	defer srv.Close()

	c := NewAPIClient(APIConfig{InstanceURL: srv.URL})
	ctx := context.Background()

	if _, err := c.FindContact(ctx, "tok", "O'Brien"); err != nil {
		t.Fatalf("FindContact error: %v", err)
	}
	if want := `Name LIKE '%O\'Brien%'`; !strings.Contains(queries[0], want) {
		t.Errorf("SOQL = %q, want substring %q", queries[0], want)
	}

	if _, err := c.SearchContacts(ctx, "tok", "Smith & Co", 5); err != nil {
		t.Fatalf("SearchContacts error: %v", err)
	}
	if want := `FIND {Smith \& Co}`; !strings.Contains(queries[1], want) {
		t.Errorf("SOSL = %q, want substring %q", queries[1], want)
	}
}
