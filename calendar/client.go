package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Calendar v3 API root.
const DefaultBaseURL = "https://www.googleapis.com/calendar/v3"

const defaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an upstream error body is read.
const maxErrorBody = 16 << 10

// APIConfig configures the Calendar API client.
type APIConfig struct {
	// BaseURL overrides the API root, for tests.
	BaseURL string

	// HTTPClient is the transport. Nil gets a default client.
	HTTPClient *http.Client

	// Timeout bounds each API call.
	Timeout time.Duration
}

// APIClient calls the Calendar v3 API with a per-call bearer token.
type APIClient struct {
	base    string
	client  *http.Client
	timeout time.Duration
}

// NewAPIClient creates a Calendar API client.
func NewAPIClient(config APIConfig) *APIClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &APIClient{
		base:    strings.TrimSuffix(config.BaseURL, "/"),
		client:  config.HTTPClient,
		timeout: config.Timeout,
	}
}

// ListQuery bounds an events.list call.
type ListQuery struct {
	Now       time.Time
	DaysAhead int
	TimeZone  string
}

// eventList is the events.list response envelope.
type eventList struct {
	Items []Event `json:"items"`
}

// ListEvents lists upcoming primary-calendar events ordered by start
// time.
func (c *APIClient) ListEvents(ctx context.Context, bearer string, q ListQuery) ([]Event, error) {
	timeMin := q.Now.UTC()
	timeMax := timeMin.AddDate(0, 0, q.DaysAhead)

	params := url.Values{}
	params.Set("maxResults", "50")
	params.Set("orderBy", "startTime")
	params.Set("singleEvents", "true")
	params.Set("timeMin", timeMin.Format("2006-01-02T15:04:05Z"))
	params.Set("timeMax", timeMax.Format("2006-01-02T15:04:05Z"))
	if q.TimeZone != "" {
		params.Set("timeZone", q.TimeZone)
	}

	var out eventList
	if err := c.do(ctx, http.MethodGet, "/calendars/primary/events?"+params.Encode(), bearer, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetEvent fetches one event by ID.
func (c *APIClient) GetEvent(ctx context.Context, bearer, id string) (Event, error) {
	var out Event
	err := c.do(ctx, http.MethodGet, "/calendars/primary/events/"+url.PathEscape(id), bearer, nil, &out)
	return out, err
}

// CreateEvent inserts an event on the primary calendar.
func (c *APIClient) CreateEvent(ctx context.Context, bearer string, ev Event) (Event, error) {
	var out Event
	err := c.do(ctx, http.MethodPost, "/calendars/primary/events", bearer, ev, &out)
	return out, err
}

// DeleteEvent removes an event by ID.
func (c *APIClient) DeleteEvent(ctx context.Context, bearer, id string) error {
	return c.do(ctx, http.MethodDelete, "/calendars/primary/events/"+url.PathEscape(id), bearer, nil, nil)
}

// do performs one authenticated API call, decoding into out when it
// is non-nil and a body arrives.
func (c *APIClient) do(ctx context.Context, method, path, bearer string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("calendar: encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return fmt.Errorf("calendar: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calendar: %s %s: %w", method, path, err)
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
		return fmt.Errorf("calendar: decode response: %w", err)
	}
	return nil
}
