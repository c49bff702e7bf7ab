package calendar

import (
	"fmt"
	"sync"
	"time"
)

// Fixtures is the local event book served when no provider token is
// available. Creation and cancellation mutate it so demo turns stay
// coherent within a session.
type Fixtures struct {
	mu     sync.Mutex
	events []Event
	seq    int
}

// NewFixtures seeds the demo calendar relative to now: one advisory
// meeting per seeded client plus a daily standup.
func NewFixtures(now time.Time) *Fixtures {
	day := func(days, hour, minute int) string {
		d := now.AddDate(0, 0, days)
		return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location()).
			Format("2006-01-02T15:04:05")
	}

	events := []Event{
		{
			ID:          "evt001",
			Summary:     "Portfolio Review - Marcus Thompson",
			Description: "Quarterly portfolio review meeting",
			Start:       EventTime{DateTime: day(2, 10, 0)},
			End:         EventTime{DateTime: day(2, 11, 0)},
			Attendees:   []Attendee{{Email: "marcus.thompson@email.com", DisplayName: "Marcus Thompson"}},
			Status:      "confirmed",
		},
		{
			ID:          "evt002",
			Summary:     "Retirement Planning - Elena Rodriguez",
			Description: "Discuss retirement income strategy",
			Start:       EventTime{DateTime: day(3, 14, 0)},
			End:         EventTime{DateTime: day(3, 15, 0)},
			Attendees:   []Attendee{{Email: "elena.rodriguez@email.com", DisplayName: "Elena Rodriguez"}},
			Status:      "confirmed",
		},
		{
			ID:          "evt003",
			Summary:     "Business Succession Planning - James Chen",
			Description: "Review business succession options",
			Start:       EventTime{DateTime: day(5, 9, 0)},
			End:         EventTime{DateTime: day(5, 10, 30)},
			Attendees:   []Attendee{{Email: "jchen@chenindustries.com", DisplayName: "James Chen"}},
			Status:      "confirmed",
		},
		{
			ID:          "evt004",
			Summary:     "Investment Strategy Call - Priya Patel",
			Description: "Discuss growth portfolio adjustments",
			Start:       EventTime{DateTime: day(1, 16, 0)},
			End:         EventTime{DateTime: day(1, 16, 30)},
			Attendees:   []Attendee{{Email: "priya.patel@email.com", DisplayName: "Priya Patel"}},
			Status:      "confirmed",
		},
		{
			ID:          "evt005",
			Summary:     "Team Standup",
			Description: "Daily team sync",
			Start:       EventTime{DateTime: day(1, 9, 0)},
			End:         EventTime{DateTime: day(1, 9, 30)},
			Attendees:   []Attendee{},
			Status:      "confirmed",
		},
	}

	return &Fixtures{events: events, seq: len(events)}
}

// List returns a copy of the current events.
func (f *Fixtures) List() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

// Get returns one event by ID.
func (f *Fixtures) Get(id string) (Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}

// Add appends the event, assigning the next ID and confirmed status.
func (f *Fixtures) Add(ev Event) Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	ev.ID = fmt.Sprintf("evt%03d", f.seq)
	ev.Status = "confirmed"
	if ev.Attendees == nil {
		ev.Attendees = []Attendee{}
	}
	f.events = append(f.events, ev)
	return ev
}

// Remove deletes one event by ID, returning it.
func (f *Fixtures) Remove(id string) (Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e.ID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return e, true
		}
	}
	return Event{}, false
}

// Len reports the current event count.
func (f *Fixtures) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
