package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apexwealth/agentgate/health"
	"github.com/apexwealth/agentgate/observe"
	"github.com/apexwealth/agentgate/token"
	"github.com/apexwealth/agentgate/tool"
)

// Source labels surfaced in tool results so replies can say where the
// data came from.
const (
	sourceLive    = "Google Calendar (via Auth0 Token Vault)"
	sourceMock    = "Demo Data (Mock)"
	sourceMockOne = "Demo Data"
)

// Config configures the calendar backend.
type Config struct {
	// API is the Calendar client. Nil gets the public endpoint.
	API *APIClient

	// Fixtures is the local event book. Nil seeds the demo book at
	// startup.
	Fixtures *Fixtures

	// TimeZone labels event times when a phrase names no zone.
	// Defaults to DefaultTimeZone.
	TimeZone string

	// Clock supplies the current time. Nil uses time.Now.
	Clock func() time.Time

	// Observer supplies logging, tracing, and metrics. Nil disables
	// all three.
	Observer observe.Observer
}

// Backend serves the calendar tools.
//
// Contract:
// - Concurrency: safe for concurrent Call use.
// - Errors: only unroutable tool names are Go errors. API failures
//   fall back to the fixture book; lookup misses are result payloads.
// - Every result carries token_vault_info reporting whether a
//   provider token was present, never the token itself.
type Backend struct {
	api      *APIClient
	fixtures *Fixtures
	zone     string
	clock    func() time.Time
	logger   observe.Logger
}

var _ tool.Backend = (*Backend)(nil)

// New creates a calendar backend.
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
	if config.TimeZone == "" {
		config.TimeZone = DefaultTimeZone
	}

	mw := observe.NewMiddleware(config.Observer)

	return &Backend{
		api:      config.API,
		fixtures: config.Fixtures,
		zone:     config.TimeZone,
		clock:    config.Clock,
		logger:   mw.Logger(),
	}
}

// Name identifies the backend in traces and logs.
func (b *Backend) Name() string { return "calendar" }

// Tools returns the calendar tool catalog.
func (b *Backend) Tools() []tool.Definition {
	return []tool.Definition{
		{
			Name:        "list_calendar_events",
			Description: "List upcoming calendar events. Shows meetings scheduled in the next 7 days by default.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"days_ahead": map[string]any{
						"type":        "integer",
						"description": "Number of days to look ahead (default: 7)",
					},
					"search_query": map[string]any{
						"type":        "string",
						"description": "Optional search query to filter events by title or attendee name",
					},
				},
			},
		},
		{
			Name:        "get_calendar_event",
			Description: "Get details of a specific calendar event by ID",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"event_id": map[string]any{
						"type":        "string",
						"description": "The calendar event ID",
					},
				},
				"required": []string{"event_id"},
			},
		},
		{
			Name:        "create_calendar_event",
			Description: "Schedule a new meeting or event on the calendar",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Event title/summary",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Event description",
					},
					"start_time": map[string]any{
						"type":        "string",
						"description": "Start time in ISO format or natural language (e.g., 'next Tuesday at 2pm')",
					},
					"duration_minutes": map[string]any{
						"type":        "integer",
						"description": "Duration in minutes (default: 60)",
					},
					"attendee_email": map[string]any{
						"type":        "string",
						"description": "Email of attendee to invite",
					},
					"attendee_name": map[string]any{
						"type":        "string",
						"description": "Name of attendee",
					},
				},
				"required": []string{"title", "start_time"},
			},
		},
		{
			Name:        "check_availability",
			Description: "Check if a specific time slot is available",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"date": map[string]any{
						"type":        "string",
						"description": "Date to check (e.g., 'tomorrow', 'Friday', '2025-01-15')",
					},
					"time": map[string]any{
						"type":        "string",
						"description": "Time to check (e.g., '2pm', '14:00')",
					},
				},
				"required": []string{"date"},
			},
		},
		{
			Name:        "cancel_calendar_event",
			Description: "Cancel/delete a calendar event",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"event_id": map[string]any{
						"type":        "string",
						"description": "The calendar event ID to cancel",
					},
				},
				"required": []string{"event_id"},
			},
		},
	}
}

// Call executes one calendar tool and stamps the delegation posture
// onto the result.
func (b *Backend) Call(ctx context.Context, name string, args map[string]any, tok token.Token) (map[string]any, error) {
	var result map[string]any
	switch name {
	case "list_calendar_events":
		result = b.listEvents(ctx, args, tok)
	case "get_calendar_event":
		result = b.getEvent(ctx, args, tok)
	case "create_calendar_event":
		result = b.createEvent(ctx, args, tok)
	case "check_availability":
		result = b.checkAvailability(ctx, args, tok)
	case "cancel_calendar_event":
		result = b.cancelEvent(ctx, args, tok)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	_, present := tok.Bearer()
	result["token_vault_info"] = map[string]any{
		"security_flow":   "Auth0 Token Vault",
		"token_source":    "google-oauth2 connection",
		"token_available": present,
	}
	return result, nil
}

func (b *Backend) listEvents(ctx context.Context, args map[string]any, tok token.Token) map[string]any {
	days := tool.IntArg(args, "days_ahead", 7)
	needle := strings.ToLower(tool.StringArg(args, "search_query"))

	events, source := b.fetchEvents(ctx, tok, days)

	if needle != "" {
		filtered := make([]Event, 0, len(events))
		for _, e := range events {
			if e.Matches(needle) {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	result := map[string]any{
		"events":     events,
		"count":      len(events),
		"days_ahead": days,
		"source":     source,
	}
	if source == sourceLive {
		result["timezone"] = b.zone
	}
	return result
}

func (b *Backend) getEvent(ctx context.Context, args map[string]any, tok token.Token) map[string]any {
	id := tool.StringArg(args, "event_id")

	if bearer, ok := tok.Bearer(); ok {
		ev, err := b.api.GetEvent(ctx, bearer, id)
		if err == nil {
			return map[string]any{"event": ev, "source": sourceLive}
		}
		b.warnFallback(ctx, "events.get", err)
	}

	if ev, found := b.fixtures.Get(id); found {
		return map[string]any{"event": ev, "source": sourceMockOne}
	}
	return map[string]any{
		"error":   "not_found",
		"message": fmt.Sprintf("Event %q not found", id),
	}
}

func (b *Backend) createEvent(ctx context.Context, args map[string]any, tok token.Token) map[string]any {
	title := tool.StringArg(args, "title")
	start := tool.StringArgDefault(args, "start_time", "tomorrow at 2pm")
	duration := tool.IntArg(args, "duration_minutes", 60)

	startAt, zone := ParseStart(start, b.clock(), b.zone)
	endAt := startAt.Add(time.Duration(duration) * time.Minute)

	attendees := []Attendee{}
	if email := tool.StringArg(args, "attendee_email"); email != "" {
		attendees = append(attendees, Attendee{
			Email:       email,
			DisplayName: tool.StringArg(args, "attendee_name"),
		})
	}

	ev := Event{
		Summary:     title,
		Description: tool.StringArg(args, "description"),
		Start:       EventTime{DateTime: startAt.Format("2006-01-02T15:04:05"), TimeZone: zone},
		End:         EventTime{DateTime: endAt.Format("2006-01-02T15:04:05"), TimeZone: zone},
		Attendees:   attendees,
	}
	message := fmt.Sprintf("Meeting %q scheduled for %s", title, startAt.Format("January 02 at 03:04 PM"))

	if bearer, ok := tok.Bearer(); ok {
		created, err := b.api.CreateEvent(ctx, bearer, ev)
		if err == nil {
			return map[string]any{
				"status":  "created",
				"event":   created,
				"message": message,
				"source":  sourceLive,
			}
		}
		b.warnFallback(ctx, "events.insert", err)
	}

	created := b.fixtures.Add(ev)
	return map[string]any{
		"status":  "created",
		"event":   created,
		"message": message,
		"source":  sourceMock,
	}
}

func (b *Backend) checkAvailability(ctx context.Context, args map[string]any, tok token.Token) map[string]any {
	dateExpr := tool.StringArgDefault(args, "date", "tomorrow")
	clockExpr := tool.StringArg(args, "time")

	now := b.clock()
	slot := AvailabilityAt(dateExpr, clockExpr, now)

	// Window wide enough to cover the slot's day.
	days := int(slot.Sub(now).Hours()/24) + 2
	if days < 1 {
		days = 1
	}
	events, _ := b.fetchEvents(ctx, tok, days)

	conflicts := make([]Event, 0, 2)
	for _, e := range events {
		at, ok := e.StartsAt(now.Location())
		if !ok {
			continue
		}
		sameDay := at.Year() == slot.Year() && at.YearDay() == slot.YearDay()
		if sameDay && absDuration(at.Sub(slot)) < time.Hour {
			conflicts = append(conflicts, e)
		}
	}

	if len(conflicts) > 0 {
		return map[string]any{
			"available":  false,
			"message":    fmt.Sprintf("You have a conflict at that time: %s", conflicts[0].Summary),
			"conflicts":  conflicts,
			"suggestion": "Would you like me to find an alternative time?",
		}
	}
	return map[string]any{
		"available": true,
		"message":   fmt.Sprintf("You are free on %s", slot.Format("January 02 at 03:04 PM")),
		"date":      slot.Format("2006-01-02T15:04:05"),
	}
}

func (b *Backend) cancelEvent(ctx context.Context, args map[string]any, tok token.Token) map[string]any {
	id := tool.StringArg(args, "event_id")

	if bearer, ok := tok.Bearer(); ok {
		err := b.api.DeleteEvent(ctx, bearer, id)
		if err == nil {
			return map[string]any{"status": "cancelled", "event_id": id, "source": sourceLive}
		}
		b.warnFallback(ctx, "events.delete", err)
	}

	if ev, found := b.fixtures.Remove(id); found {
		return map[string]any{
			"status":  "cancelled",
			"event":   ev,
			"message": fmt.Sprintf("Meeting %q has been cancelled", ev.Summary),
		}
	}
	return map[string]any{
		"error":   "not_found",
		"message": fmt.Sprintf("Event %q not found", id),
	}
}

// fetchEvents returns upcoming events and the source label, preferring
// the live API when a provider token is present.
func (b *Backend) fetchEvents(ctx context.Context, tok token.Token, days int) ([]Event, string) {
	if bearer, ok := tok.Bearer(); ok {
		events, err := b.api.ListEvents(ctx, bearer, ListQuery{
			Now:       b.clock(),
			DaysAhead: days,
			TimeZone:  b.zone,
		})
		if err == nil {
			return events, sourceLive
		}
		b.warnFallback(ctx, "events.list", err)
	}
	return b.fixtures.List(), sourceMock
}

func (b *Backend) warnFallback(ctx context.Context, op string, err error) {
	b.logger.Warn(ctx, "calendar api failed, serving demo data",
		observe.Field{Key: "op", Value: op},
		observe.Field{Key: "error", Value: err.Error()},
	)
}

// Checker returns a readiness check over the fixture book.
func (b *Backend) Checker() health.Checker {
	return health.NewCheckerFunc("calendar_backend", func(ctx context.Context) health.Result {
		return health.Healthy("calendar ready").WithDetails(map[string]any{
			"fixture_events": b.fixtures.Len(),
			"timezone":       b.zone,
		})
	})
}

// absDuration is the magnitude of d.
func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
