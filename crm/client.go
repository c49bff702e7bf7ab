package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultInstanceURL is the demo org instance. Override per
// deployment; instance URLs are org-specific.
const DefaultInstanceURL = "https://orgfarm-2771b5c595-dev-ed.develop.my.salesforce.com"

// apiPath pins the REST API version all calls go through.
const apiPath = "/services/data/v59.0"

const defaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an upstream error body is read.
const maxErrorBody = 16 << 10

// soqlQuotes escapes a value placed inside a single-quoted SOQL
// string.
var soqlQuotes = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// soslReserved escapes the FIND-clause reserved characters.
var soslReserved = strings.NewReplacer(
	`\`, `\\`, `?`, `\?`, `&`, `\&`, `|`, `\|`, `!`, `\!`,
	`{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`, `(`, `\(`, `)`, `\)`,
	`^`, `\^`, `~`, `\~`, `*`, `\*`, `:`, `\:`, `"`, `\"`, `'`, `\'`,
	`+`, `\+`, `-`, `\-`,
)

// APIConfig configures the Salesforce API client.
type APIConfig struct {
	// InstanceURL is the org instance root. Empty gets the demo org.
	InstanceURL string

	// HTTPClient is the transport. Nil gets a default client.
	HTTPClient *http.Client

	// Timeout bounds each API call.
	Timeout time.Duration
}

// APIClient calls the Salesforce REST API with a per-call bearer
// token.
type APIClient struct {
	base    string
	client  *http.Client
	timeout time.Duration
}

// NewAPIClient creates a Salesforce API client.
func NewAPIClient(config APIConfig) *APIClient {
	if config.InstanceURL == "" {
		config.InstanceURL = DefaultInstanceURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &APIClient{
		base:    strings.TrimSuffix(config.InstanceURL, "/"),
		client:  config.HTTPClient,
		timeout: config.Timeout,
	}
}

// SearchContacts runs a SOSL name search over contacts.
func (c *APIClient) SearchContacts(ctx context.Context, bearer, term string, limit int) ([]Contact, error) {
	sosl := fmt.Sprintf(
		"FIND {%s} IN NAME FIELDS RETURNING Contact(Id, Name, Email, Phone, Title, Account.Name) LIMIT %d",
		soslReserved.Replace(term), limit,
	)

	var out struct {
		SearchRecords []Contact `json:"searchRecords"`
	}
	if err := c.do(ctx, http.MethodGet, "/search/?q="+url.QueryEscape(sosl), bearer, nil, &out); err != nil {
		return nil, err
	}
	return out.SearchRecords, nil
}

// FindContact returns the first contact whose name contains name, nil
// when the org has none.
func (c *APIClient) FindContact(ctx context.Context, bearer, name string) (*Contact, error) {
	soql := fmt.Sprintf(
		"SELECT Id, Name, Email, Phone, Title, Description, Account.Id, Account.Name FROM Contact WHERE Name LIKE '%%%s%%' LIMIT 1",
		soqlQuotes.Replace(name),
	)

	var out struct {
		Records []Contact `json:"records"`
	}
	if err := c.query(ctx, bearer, soql, &out); err != nil {
		return nil, err
	}
	if len(out.Records) == 0 {
		return nil, nil
	}
	return &out.Records[0], nil
}

// newContact is the Contact create payload. Name is a compound field
// Salesforce derives server-side, so it never goes on the wire.
type newContact struct {
	FirstName   string `json:"FirstName"`
	LastName    string `json:"LastName"`
	Email       string `json:"Email,omitempty"`
	Phone       string `json:"Phone,omitempty"`
	Title       string `json:"Title,omitempty"`
	Description string `json:"Description,omitempty"`
	AccountID   string `json:"AccountId,omitempty"`
}

// CreateContact inserts a contact, optionally attached to accountID,
// and returns the new record ID.
func (c *APIClient) CreateContact(ctx context.Context, bearer string, contact Contact, accountID string) (string, error) {
	return c.create(ctx, bearer, "Contact", newContact{
		FirstName:   contact.FirstName,
		LastName:    contact.LastName,
		Email:       contact.Email,
		Phone:       contact.Phone,
		Title:       contact.Title,
		Description: contact.Description,
		AccountID:   accountID,
	})
}

// FindAccount returns the first account whose name contains name, nil
// when the org has none.
func (c *APIClient) FindAccount(ctx context.Context, bearer, name string) (*AccountRef, error) {
	soql := fmt.Sprintf(
		"SELECT Id, Name FROM Account WHERE Name LIKE '%%%s%%' LIMIT 1",
		soqlQuotes.Replace(name),
	)

	var out struct {
		Records []AccountRef `json:"records"`
	}
	if err := c.query(ctx, bearer, soql, &out); err != nil {
		return nil, err
	}
	if len(out.Records) == 0 {
		return nil, nil
	}
	return &out.Records[0], nil
}

// CreateAccount inserts an account and returns the new record ID.
func (c *APIClient) CreateAccount(ctx context.Context, bearer, name string) (string, error) {
	return c.create(ctx, bearer, "Account", map[string]string{"Name": name})
}

// AccountOpportunities lists an account's opportunities, most recent
// close date first.
func (c *APIClient) AccountOpportunities(ctx context.Context, bearer, accountID string) ([]Opportunity, error) {
	soql := fmt.Sprintf(
		"SELECT Id, Name, Amount, StageName, CloseDate, Probability FROM Opportunity WHERE AccountId = '%s' ORDER BY CloseDate DESC",
		soqlQuotes.Replace(accountID),
	)
	return c.queryOpportunities(ctx, bearer, soql)
}

// OpenOpportunities lists all open opportunities, largest first.
func (c *APIClient) OpenOpportunities(ctx context.Context, bearer string) ([]Opportunity, error) {
	soql := "SELECT Id, Name, Amount, StageName, CloseDate, Probability, Account.Name FROM Opportunity WHERE IsClosed = false ORDER BY Amount DESC"
	return c.queryOpportunities(ctx, bearer, soql)
}

// OpportunitiesAbove lists opportunities at or above the given amount,
// largest first.
func (c *APIClient) OpportunitiesAbove(ctx context.Context, bearer string, min float64) ([]Opportunity, error) {
	soql := fmt.Sprintf(
		"SELECT Id, Name, Amount, StageName, CloseDate, Probability, Account.Name FROM Opportunity WHERE Amount >= %s ORDER BY Amount DESC",
		strconv.FormatFloat(min, 'f', -1, 64),
	)
	return c.queryOpportunities(ctx, bearer, soql)
}

// FindOpportunity returns the first opportunity whose name contains
// name, nil when the org has none.
func (c *APIClient) FindOpportunity(ctx context.Context, bearer, name string) (*Opportunity, error) {
	soql := fmt.Sprintf(
		"SELECT Id, Name, StageName FROM Opportunity WHERE Name LIKE '%%%s%%' LIMIT 1",
		soqlQuotes.Replace(name),
	)

	var out struct {
		Records []Opportunity `json:"records"`
	}
	if err := c.query(ctx, bearer, soql, &out); err != nil {
		return nil, err
	}
	if len(out.Records) == 0 {
		return nil, nil
	}
	return &out.Records[0], nil
}

// UpdateOpportunityStage moves an opportunity to the given stage.
func (c *APIClient) UpdateOpportunityStage(ctx context.Context, bearer, id, stage string) error {
	path := "/sobjects/Opportunity/" + url.PathEscape(id)
	return c.do(ctx, http.MethodPatch, path, bearer, map[string]string{"StageName": stage}, nil)
}

// PipelineByStage aggregates opportunity count and value per stage. A
// non-empty stageFilter narrows to that stage.
func (c *APIClient) PipelineByStage(ctx context.Context, bearer, stageFilter string) ([]StageSummary, error) {
	where := ""
	if stageFilter != "" {
		where = fmt.Sprintf(" WHERE StageName = '%s'", soqlQuotes.Replace(stageFilter))
	}
	soql := "SELECT StageName, COUNT(Id) num, SUM(Amount) total FROM Opportunity" + where +
		" GROUP BY StageName ORDER BY StageName"

	var out struct {
		Records []StageSummary `json:"records"`
	}
	if err := c.query(ctx, bearer, soql, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// OpenPipeline totals the open opportunities.
func (c *APIClient) OpenPipeline(ctx context.Context, bearer string) (total float64, count int, err error) {
	soql := "SELECT SUM(Amount) total, COUNT(Id) num FROM Opportunity WHERE IsClosed = false"

	var out struct {
		Records []struct {
			Total float64 `json:"total"`
			Num   int     `json:"num"`
		} `json:"records"`
	}
	if err := c.query(ctx, bearer, soql, &out); err != nil {
		return 0, 0, err
	}
	if len(out.Records) == 0 {
		return 0, 0, nil
	}
	return out.Records[0].Total, out.Records[0].Num, nil
}

// CreateTask inserts a task and returns the new record ID.
func (c *APIClient) CreateTask(ctx context.Context, bearer string, t Task) (string, error) {
	return c.create(ctx, bearer, "Task", t)
}

// CreateNote inserts a note and returns the new record ID.
func (c *APIClient) CreateNote(ctx context.Context, bearer string, n Note) (string, error) {
	return c.create(ctx, bearer, "Note", n)
}

func (c *APIClient) queryOpportunities(ctx context.Context, bearer, soql string) ([]Opportunity, error) {
	var out struct {
		Records []Opportunity `json:"records"`
	}
	if err := c.query(ctx, bearer, soql, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// query runs one SOQL statement.
func (c *APIClient) query(ctx context.Context, bearer, soql string, out any) error {
	return c.do(ctx, http.MethodGet, "/query/?q="+url.QueryEscape(soql), bearer, nil, out)
}

// create inserts one sObject record and returns its ID.
func (c *APIClient) create(ctx context.Context, bearer, object string, payload any) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/sobjects/"+object+"/", bearer, payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// do performs one authenticated API call rooted at the REST API
// version, decoding into out when it is non-nil and a body arrives.
func (c *APIClient) do(ctx context.Context, method, path, bearer string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	path = apiPath + path

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("crm: encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return fmt.Errorf("crm: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("crm: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: status %d: %s", ErrAPIStatus, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("crm: decode response: %w", err)
	}
	return nil
}
