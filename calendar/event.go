package calendar

import (
	"strings"
	"time"
)

// Attendee is a calendar event participant in the Calendar v3 wire
// shape.
type Attendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// EventTime is a Calendar v3 event boundary. DateTime is a wall-clock
// timestamp; TimeZone, when set, names the IANA zone it is read in.
type EventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Event is a calendar event in the Calendar v3 wire shape, used both
// on the wire and for local fixtures.
type Event struct {
	ID          string     `json:"id,omitempty"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Start       EventTime  `json:"start"`
	End         EventTime  `json:"end"`
	Attendees   []Attendee `json:"attendees"`
	Status      string     `json:"status,omitempty"`
}

// startLayouts are the DateTime forms events arrive in: full RFC 3339
// from the live API, zone-less wall clock from fixtures and event
// creation.
var startLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// StartsAt parses the event's start into the given location. The zone
// of an RFC 3339 timestamp wins over loc.
func (e Event) StartsAt(loc *time.Location) (time.Time, bool) {
	raw := strings.TrimSuffix(e.Start.DateTime, "Z")
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Matches reports whether the lowercased needle appears in the event
// summary or an attendee name.
func (e Event) Matches(needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(e.Summary), needle) {
		return true
	}
	for _, a := range e.Attendees {
		if strings.Contains(strings.ToLower(a.DisplayName), needle) {
			return true
		}
	}
	return false
}
