package crm

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/apexwealth/agentgate/health"
	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/token"
	"github.com/apexwealth/agentgate/tool"
)

// Source labels surfaced in tool results so replies can say where the
// data came from.
const (
	sourceLive = "Salesforce (via Auth0 Token Vault)"
	sourceMock = "Demo Data (Mock)"
)

// Config configures the CRM backend.
type Config struct {
	// API is the Salesforce client. Nil gets the demo org instance.
	API *APIClient

	// Fixtures is the local org. Nil seeds the demo org at startup.
	Fixtures *Fixtures

	// Clock supplies the current time for fixture seeding. Nil uses
	// time.Now.
	Clock func() time.Time

	// Observer supplies logging, tracing, and metrics. Nil disables
	// all three.
	Observer observe.Observer
}

// Backend serves the CRM tools.
//
// Contract:
// - Concurrency: safe for concurrent Call use.
// - Errors: only unroutable tool names are Go errors. API failures
//   fall back to the fixture org; lookup misses are result payloads.
// - Every result carries token_vault_info reporting whether a
//   provider token was present, never the token itself.
type Backend struct {
	api      *APIClient
	fixtures *Fixtures
	logger   observe.Logger
}

var _ tool.Backend = (*Backend)(nil)

// New creates a CRM backend.
func New(config Config) *Backend {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.API == nil {
		config.API = NewAPIClient(APIConfig{})
	}
	if config.Fixtures == nil {
		config.Fixtures = NewFixtures(config.Clock())
	}

	mw := observe.NewMiddleware(config.Observer)

	return &Backend{
		api:      config.API,
		fixtures: config.Fixtures,
		logger:   mw.Logger(),
	}
}

// Name identifies the backend in traces and logs.
func (b *Backend) Name() string { return "crm" }

// Tools returns the CRM tool catalog.
func (b *Backend) Tools() []tool.Definition {
	return []tool.Definition{
		{
			Name:        "search_crm_contacts",
			Description: "Search for contacts in Salesforce by name. Returns contact details including email, phone, title, and associated account.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"search_term": map[string]any{
						"type":        "string",
						"description": "Name or partial name to search for",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of contacts to return (default: 10)",
					},
				},
				"required": []string{"search_term"},
			},
		},
		{
			Name:        "get_crm_contact",
			Description: "Get full details for one Salesforce contact by name, including title, contact info, and associated account.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "Name or partial name of the contact",
					},
				},
				"required": []string{"name"},
			},
		},
		{
			Name:        "create_crm_contact",
			Description: "Create a new contact in Salesforce. Can optionally associate with an existing account or create a new one.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"first_name": map[string]any{
						"type":        "string",
						"description": "Contact's first name",
					},
					"last_name": map[string]any{
						"type":        "string",
						"description": "Contact's last name",
					},
					"email": map[string]any{
						"type":        "string",
						"description": "Contact's email address",
					},
					"phone": map[string]any{
						"type":        "string",
						"description": "Contact's phone number",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "Contact's job title",
					},
					"account_name": map[string]any{
						"type":        "string",
						"description": "Company/Account name to associate the contact with",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Additional notes about the contact",
					},
				},
				"required": []string{"first_name", "last_name"},
			},
		},
		{
			Name:        "list_crm_opportunities",
			Description: "List opportunities in the sales pipeline. Filter by contact name to see that client's deals, or by minimum amount to find high-value opportunities.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"contact_name": map[string]any{
						"type":        "string",
						"description": "Optional: list opportunities for this contact's account",
					},
					"min_amount": map[string]any{
						"type":        "number",
						"description": "Optional: only opportunities at or above this amount",
					},
				},
			},
		},
		{
			Name:        "update_opportunity_stage",
			Description: "Update the stage of an opportunity. Common stages: Prospecting, Qualification, Needs Analysis, Value Proposition, Id. Decision Makers, Perception Analysis, Proposal/Price Quote, Negotiation/Review, Closed Won, Closed Lost.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"opportunity_name": map[string]any{
						"type":        "string",
						"description": "Name or partial name of the opportunity",
					},
					"new_stage": map[string]any{
						"type":        "string",
						"description": "New stage to set",
					},
				},
				"required": []string{"opportunity_name", "new_stage"},
			},
		},
		{
			Name:        "get_pipeline_summary",
			Description: "Get the sales pipeline grouped by stage, with count and total value per stage plus open pipeline totals.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"stage_filter": map[string]any{
						"type":        "string",
						"description": "Optional: filter to a specific stage",
					},
				},
			},
		},
		{
			Name:        "create_crm_task",
			Description: "Create a follow-up task for a contact in Salesforce.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"subject": map[string]any{
						"type":        "string",
						"description": "Task subject/title",
					},
					"contact_name": map[string]any{
						"type":        "string",
						"description": "Name of the contact to associate the task with",
					},
					"due_date": map[string]any{
						"type":        "string",
						"description": "Due date in YYYY-MM-DD format",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Task description/notes",
					},
					"priority": map[string]any{
						"type":        "string",
						"enum":        []string{"High", "Normal", "Low"},
						"description": "Task priority",
					},
				},
				"required": []string{"subject", "contact_name"},
			},
		},
		{
			Name:        "add_crm_note",
			Description: "Add a note to an account in Salesforce.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"account_name": map[string]any{
						"type":        "string",
						"description": "Name of the account to add the note to",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "Note title",
					},
					"body": map[string]any{
						"type":        "string",
						"description": "Note content",
					},
				},
				"required": []string{"account_name", "title", "body"},
			},
		},
	}
}

// Call executes one CRM tool and stamps the delegation posture onto
// the result.
func (b *Backend) Call(ctx context.Context, name string, args map[string]any, tok token.Token) (map[string]any, error) {
	var result map[string]any
	switch name {
	case "search_crm_contacts":
		result = b.searchContacts(ctx, args, tok)
	case "get_crm_contact":
		result = b.getContact(ctx, args, tok)
	case "create_crm_contact":
		result = b.createContact(ctx, args, tok)
	case "list_crm_opportunities":
		result = b.listOpportunities(ctx, args, tok)
	case "update_opportunity_stage":
		result = b.updateStage(ctx, args, tok)
	case "get_pipeline_summary":
		result = b.pipelineSummary(ctx, args, tok)
	case "create_crm_task":
		result = b.createTask(ctx, args, tok)
	case "add_crm_note":
		result = b.addNote(ctx, args, tok)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	_, present := tok.Bearer()
	result["token_vault_info"] = map[string]any{
		"security_flow":   "Auth0 Token Vault",
		"token_source":    "salesforce connection",
		"token_available": present,
	}
	return result, nil
}

func (b *Backend) searchContacts(ctx context.Context, args map[string]any, tok token.Token) map[string]any {
	term := tool.StringArg(args, "search_term")
	limit := tool.IntArg(args, "limit", 10)

	if bearer, ok := tok.Bearer(); ok {
		contacts, err := b.api.SearchContacts(ctx, bearer, term, limit)
		if err == nil {
			return map[string]any{
				"contacts":    contacts,
				"count":       len(contacts),
				"search_term": term,
				"source":      sourceLive,
			}
		}
		b.warnFallback(ctx, "contact.search", err)
	}

	contacts := b.fixtures.SearchContacts(term)
	if len(contacts) > limit {
		contacts = contacts[:limit]
	}
	return map[string]any{
		"contacts":    contacts,
		"count":       len(contacts),
		"search_term": term,
		"source":      sourceMock,
	}
}

func (b *Backend) getContact(ctx context.Context, args map[string]any, tok token.Token) map[string]any {
	name := tool.StringArg(args, "name")

	if bearer, ok := tok.Bearer(); ok {
		contact, err := b.api.FindContact(ctx, bearer, name)
		if err == nil {
			if contact == nil {
				return contactNotFound(name)
			}
			return map[string]any{"contact": *contact, "source": sourceLive}
		}
		b.warnFallback(ctx, "contact.get", err)
	}

	contact, found := b.fixtures.FindContact(name)
	if !found {
		return contactNotFound(name)
	}
	return map[string]any{"contact": contact, "source": sourceMock}
}

func (b *Backend) createContact(ctx context.Context, args map[string]any, tok token.Token) map[string]any {
	contact := Contact{
		FirstName:   tool.StringArg(args, "first_name"),
		LastName:    tool.StringArg(args, "last_name"),
		Email:       tool.StringArg(args, "email"),
		Phone:       tool.StringArg(args, "phone"),
		Title:       tool.StringArg(args, "title"),
		Description: tool.StringArg(args, "description"),
	}
	accountName := tool.StringArg(args, "account_name")

	if contact.LastName == "" {
		return map[string]any{
			"error":   "invalid_field",
			"message": "last_name is required",
		}
	}

	if bearer, ok := tok.Bearer(); ok {
		id, err := b.createContactLive(ctx, bearer, contact, accountName)
		if err == nil {
			return createdContact(id, contact, accountName, sourceLive)
		}
		b.warnFallback(ctx, "contact.create", err)
	}

	created := b.fixtures.AddContact(contact, accountName)
	return createdContact(created.ID, created, accountName, sourceMock)
}

// createContactLive resolves or creates the account, then inserts the
// contact.
func (b *Backend) createContactLive(ctx context.Context, bearer string, contact Contact, accountName string) (string, error) {
	accountID := ""
	if accountName != "" {
		acct, err := b.api.FindAccount(ctx, bearer, accountName)
		if err != nil {
			return "", err
		}
		if acct != nil {
			accountID = acct.ID
		} else {
			accountID, err = b.api.CreateAccount(ctx, bearer, accountName)
			if err != nil {
				return "", err
			}
		}
	}
	return b.api.CreateContact(ctx, bearer, contact, accountID)
}

func (b *Backend) listOpportunities(ctx context.Context, args map[string]any, tok token.Token) map[string]any {
	contactName := tool.StringArg(args, "contact_name")
	min := tool.NumberArg(args, "min_amount")

	if contactName != "" {
		return b.contactOpportunities(ctx, contactName, min, tok)
	}

	if bearer, ok := tok.Bearer(); ok {
		var (
			opps []Opportunity
			err  error
		)
		if min > 0 {
			opps, err = b.api.OpportunitiesAbove(ctx, bearer, min)
		} else {
			opps, err = b.api.OpenOpportunities(ctx, bearer)
		}
		if err == nil {
			return opportunityList(opps, min, sourceLive)
		}
		b.warnFallback(ctx, "opportunity.list", err)
	}

	opps := make([]Opportunity, 0, 4)
	for _, o := range b.fixtures.Opportunities() {
		if min > 0 && o.Amount < min {
			continue
		}
		if min <= 0 && o.Closed() {
			continue
		}
		opps = append(opps, o)
	}
	sort.Slice(opps, func(i, j int) bool { return opps[i].Amount > opps[j].Amount })
	return opportunityList(opps, min, sourceMock)
}

// contactOpportunities lists the deals on one contact's account.
func (b *Backend) contactOpportunities(ctx context.Context, name string, min float64, tok token.Token) map[string]any {
	if bearer, ok := tok.Bearer(); ok {
		result, err := b.contactOpportunitiesLive(ctx, bearer, name, min)
		if err == nil {
			return result
		}
		b.warnFallback(ctx, "opportunity.list", err)
	}

	contact, found := b.fixtures.FindContact(name)
	if !found {
		return contactNotFound(name)
	}
	if contact.Account == nil {
		return noAccount()
	}
	opps := make([]Opportunity, 0, 2)
	for _, o := range b.fixtures.Opportunities() {
		if o.Account == nil || o.Account.ID != contact.Account.ID {
			continue
		}
		if min > 0 && o.Amount < min {
			continue
		}
		opps = append(opps, o)
	}
	sort.Slice(opps, func(i, j int) bool { return opps[i].CloseDate > opps[j].CloseDate })
	return contactOpportunityList(contact, opps, sourceMock)
}

func (b *Backend) contactOpportunitiesLive(ctx context.Context, bearer, name string, min float64) (map[string]any, error) {
	contact, err := b.api.FindContact(ctx, bearer, name)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return contactNotFound(name), nil
	}
	if contact.Account == nil || contact.Account.ID == "" {
		return noAccount(), nil
	}

	opps, err := b.api.AccountOpportunities(ctx, bearer, contact.Account.ID)
	if err != nil {
		return nil, err
	}
	if min > 0 {
		kept := opps[:0]
		for _, o := range opps {
			if o.Amount >= min {
				kept = append(kept, o)
			}
		}
		opps = kept
	}
	return contactOpportunityList(*contact, opps, sourceLive), nil
}

func (b *Backend) updateStage(ctx context.Context, args map[string]any, tok token.Token) map[string]any {
	name := tool.StringArg(args, "opportunity_name")
	stage := tool.StringArg(args, "new_stage")

	if bearer, ok := tok.Bearer(); ok {
		result, err := b.updateStageLive(ctx, bearer, name, stage)
		if err == nil {
			return result
		}
		b.warnFallback(ctx, "opportunity.update", err)
	}

	opp, old, found := b.fixtures.UpdateStage(name, stage)
	if !found {
		return opportunityNotFound(name)
	}
	return stageUpdated(opp.Name, old, stage, sourceMock)
}

func (b *Backend) updateStageLive(ctx context.Context, bearer, name, stage string) (map[string]any, error) {
	opp, err := b.api.FindOpportunity(ctx, bearer, name)
	if err != nil {
		return nil, err
	}
	if opp == nil {
		return opportunityNotFound(name), nil
	}
	if err := b.api.UpdateOpportunityStage(ctx, bearer, opp.ID, stage); err != nil {
		return nil, err
	}
	return stageUpdated(opp.Name, opp.StageName, stage, sourceLive), nil
}

func (b *Backend) pipelineSummary(ctx context.Context, args map[string]any, tok token.Token) map[string]any {
	filter := tool.StringArg(args, "stage_filter")

	if bearer, ok := tok.Bearer(); ok {
		result, err := b.pipelineSummaryLive(ctx, bearer, filter)
		if err == nil {
			return result
		}
		b.warnFallback(ctx, "pipeline.summary", err)
	}

	opps := b.fixtures.Opportunities()
	rows := summarizeByStage(opps, filter)

	openValue, openCount := 0.0, 0
	for _, o := range opps {
		if !o.Closed() {
			openValue += o.Amount
			openCount++
		}
	}
	return pipelinePayload(rows, openValue, openCount, sourceMock)
}

func (b *Backend) pipelineSummaryLive(ctx context.Context, bearer, filter string) (map[string]any, error) {
	rows, err := b.api.PipelineByStage(ctx, bearer, filter)
	if err != nil {
		return nil, err
	}
	openValue, openCount, err := b.api.OpenPipeline(ctx, bearer)
	if err != nil {
		return nil, err
	}
	return pipelinePayload(rows, openValue, openCount, sourceLive), nil
}

func (b *Backend) createTask(ctx context.Context, args map[string]any, tok token.Token) map[string]any {
	task := Task{
		Subject:      tool.StringArg(args, "subject"),
		Priority:     tool.StringArgDefault(args, "priority", "Normal"),
		Status:       "Not Started",
		ActivityDate: tool.StringArg(args, "due_date"),
		Description:  tool.StringArg(args, "description"),
	}
	contactName := tool.StringArg(args, "contact_name")

	if bearer, ok := tok.Bearer(); ok {
		result, err := b.createTaskLive(ctx, bearer, task, contactName)
		if err == nil {
			return result
		}
		b.warnFallback(ctx, "task.create", err)
	}

	contact, found := b.fixtures.FindContact(contactName)
	if !found {
		return contactNotFound(contactName)
	}
	task.WhoID = contact.ID
	created := b.fixtures.AddTask(task)
	return taskCreated(created.ID, task.Subject, contact.Name, sourceMock)
}

func (b *Backend) createTaskLive(ctx context.Context, bearer string, task Task, contactName string) (map[string]any, error) {
	contact, err := b.api.FindContact(ctx, bearer, contactName)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return contactNotFound(contactName), nil
	}

	task.WhoID = contact.ID
	id, err := b.api.CreateTask(ctx, bearer, task)
	if err != nil {
		return nil, err
	}
	return taskCreated(id, task.Subject, contact.Name, sourceLive), nil
}

func (b *Backend) addNote(ctx context.Context, args map[string]any, tok token.Token) map[string]any {
	accountName := tool.StringArg(args, "account_name")
	note := Note{
		Title: tool.StringArg(args, "title"),
		Body:  tool.StringArg(args, "body"),
	}

	if bearer, ok := tok.Bearer(); ok {
		result, err := b.addNoteLive(ctx, bearer, note, accountName)
		if err == nil {
			return result
		}
		b.warnFallback(ctx, "note.create", err)
	}

	acct, found := b.fixtures.FindAccount(accountName)
	if !found {
		return accountNotFound(accountName)
	}
	note.ParentID = acct.ID
	created := b.fixtures.AddNote(note)
	return noteAdded(created.ID, note.Title, acct.Name, sourceMock)
}

func (b *Backend) addNoteLive(ctx context.Context, bearer string, note Note, accountName string) (map[string]any, error) {
	acct, err := b.api.FindAccount(ctx, bearer, accountName)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return accountNotFound(accountName), nil
	}

	note.ParentID = acct.ID
	id, err := b.api.CreateNote(ctx, bearer, note)
	if err != nil {
		return nil, err
	}
	return noteAdded(id, note.Title, acct.Name, sourceLive), nil
}

func (b *Backend) warnFallback(ctx context.Context, op string, err error) {
	b.logger.Warn(ctx, "salesforce api failed, serving demo data",
		observe.Field{Key: "op", Value: op},
		observe.Field{Key: "error", Value: err.Error()},
	)
}

// Checker returns a readiness check over the fixture org.
func (b *Backend) Checker() health.Checker {
	return health.NewCheckerFunc("crm_backend", func(ctx context.Context) health.Result {
		counts := b.fixtures.Counts()
		return health.Healthy("crm ready").WithDetails(map[string]any{
			"fixture_contacts":      counts["contacts"],
			"fixture_opportunities": counts["opportunities"],
		})
	})
}

// summarizeByStage folds opportunities into per-stage aggregate rows,
// ordered by stage name.
func summarizeByStage(opps []Opportunity, filter string) []StageSummary {
	byStage := make(map[string]*StageSummary)
	for _, o := range opps {
		if filter != "" && o.StageName != filter {
			continue
		}
		row, ok := byStage[o.StageName]
		if !ok {
			row = &StageSummary{StageName: o.StageName}
			byStage[o.StageName] = row
		}
		row.Count++
		row.Total += o.Amount
	}

	names := make([]string, 0, len(byStage))
	for name := range byStage {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]StageSummary, 0, len(names))
	for _, name := range names {
		rows = append(rows, *byStage[name])
	}
	return rows
}

func contactNotFound(name string) map[string]any {
	return map[string]any{
		"error":   "not_found",
		"message": fmt.Sprintf("No contact found matching %q", name),
	}
}

func accountNotFound(name string) map[string]any {
	return map[string]any{
		"error":   "not_found",
		"message": fmt.Sprintf("No account found matching %q", name),
	}
}

func opportunityNotFound(name string) map[string]any {
	return map[string]any{
		"error":   "not_found",
		"message": fmt.Sprintf("No opportunity found matching %q", name),
	}
}

func noAccount() map[string]any {
	return map[string]any{
		"error":   "no_account",
		"message": "Contact has no associated account",
	}
}

func createdContact(id string, contact Contact, accountName, source string) map[string]any {
	name := contact.Name
	if name == "" {
		name = contact.FirstName + " " + contact.LastName
	}
	result := map[string]any{
		"status":     "created",
		"contact_id": id,
		"name":       name,
		"email":      contact.Email,
		"phone":      contact.Phone,
		"message":    fmt.Sprintf("Successfully created contact %q in Salesforce", name),
		"source":     source,
	}
	if accountName != "" {
		result["account"] = accountName
	}
	return result
}

func opportunityList(opps []Opportunity, min float64, source string) map[string]any {
	result := map[string]any{
		"opportunities": opps,
		"count":         len(opps),
		"source":        source,
	}
	if min > 0 {
		result["threshold"] = min
	}
	return result
}

func contactOpportunityList(contact Contact, opps []Opportunity, source string) map[string]any {
	account := ""
	if contact.Account != nil {
		account = contact.Account.Name
	}
	return map[string]any{
		"contact": map[string]any{
			"name":    contact.Name,
			"account": account,
		},
		"opportunities": opps,
		"count":         len(opps),
		"source":        source,
	}
}

func stageUpdated(name, old, stage, source string) map[string]any {
	return map[string]any{
		"status":      "updated",
		"opportunity": name,
		"old_stage":   old,
		"new_stage":   stage,
		"message":     fmt.Sprintf("Updated %q from %s to %s", name, old, stage),
		"source":      source,
	}
}

func pipelinePayload(rows []StageSummary, openValue float64, openCount int, source string) map[string]any {
	total := 0.0
	count := 0
	for _, r := range rows {
		total += r.Total
		count += r.Count
	}
	return map[string]any{
		"pipeline": rows,
		"summary": map[string]any{
			"total_opportunities": count,
			"total_value":         total,
			"stages":              len(rows),
		},
		"open_pipeline": map[string]any{
			"total_value":       openValue,
			"opportunity_count": openCount,
		},
		"source": source,
	}
}

func taskCreated(id, subject, contactName, source string) map[string]any {
	return map[string]any{
		"status":  "created",
		"task_id": id,
		"message": fmt.Sprintf("Task %q created for %s", subject, contactName),
		"source":  source,
	}
}

func noteAdded(id, title, accountName, source string) map[string]any {
	return map[string]any{
		"status":  "created",
		"note_id": id,
		"message": fmt.Sprintf("Note %q added to %s", title, accountName),
		"source":  source,
	}
}
