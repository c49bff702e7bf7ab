package calendar

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeZone labels event times when a phrase names no zone.
const DefaultTimeZone = "America/Los_Angeles"

// zonePattern matches timezone mentions on word boundaries, longer
// forms first so "eastern" is never read as "et".
var zonePattern = regexp.MustCompile(`\b(indian|india|ist|pacific|pst|pt|eastern|est|et|central|cst|ct|mountain|mst|mt|utc|gmt)\b`)

var zoneNames = map[string]string{
	"ist": "Asia/Kolkata", "india": "Asia/Kolkata", "indian": "Asia/Kolkata",
	"pst": "America/Los_Angeles", "pacific": "America/Los_Angeles", "pt": "America/Los_Angeles",
	"est": "America/New_York", "eastern": "America/New_York", "et": "America/New_York",
	"cst": "America/Chicago", "central": "America/Chicago", "ct": "America/Chicago",
	"mst": "America/Denver", "mountain": "America/Denver", "mt": "America/Denver",
	"utc": "UTC", "gmt": "UTC",
}

var (
	// clockPattern reads "2pm", "at 2:30pm", "10am".
	clockPattern = regexp.MustCompile(`(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)

	// atHourPattern reads "at 15" or "at 9:30" without a meridiem.
	atHourPattern = regexp.MustCompile(`at\s+(\d{1,2})(?::(\d{2}))?\b`)

	dayPattern     = regexp.MustCompile(`(\d{1,2})(?:st|nd|rd|th)?`)
	yearPattern    = regexp.MustCompile(`\b(20\d{2})\b`)
	numericPattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?`)
)

var weekdays = []struct {
	name string
	day  time.Weekday
}{
	{"monday", time.Monday},
	{"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday},
	{"thursday", time.Thursday},
	{"friday", time.Friday},
	{"saturday", time.Saturday},
	{"sunday", time.Sunday},
}

var months = []struct {
	name  string
	month time.Month
}{
	{"january", time.January}, {"jan", time.January},
	{"february", time.February}, {"feb", time.February},
	{"march", time.March}, {"mar", time.March},
	{"april", time.April}, {"apr", time.April},
	{"may", time.May},
	{"june", time.June}, {"jun", time.June},
	{"july", time.July}, {"jul", time.July},
	{"august", time.August}, {"aug", time.August},
	{"september", time.September}, {"sep", time.September},
	{"october", time.October}, {"oct", time.October},
	{"november", time.November}, {"nov", time.November},
	{"december", time.December}, {"dec", time.December},
}

// ZoneLabel extracts a mentioned timezone from the expression, or
// returns the fallback.
func ZoneLabel(expr, fallback string) string {
	if m := zonePattern.FindStringSubmatch(strings.ToLower(expr)); m != nil {
		return zoneNames[m[1]]
	}
	return fallback
}

// ParseStart interprets a start expression relative to now: ISO
// timestamps, today/tomorrow, weekday names with an optional "next",
// month-day phrases, and m/d[/y] dates. Anything else lands on
// tomorrow at the mentioned (or default 2pm) clock time. The second
// return is the zone label for the event payload.
func ParseStart(expr string, now time.Time, fallbackZone string) (time.Time, string) {
	zone := ZoneLabel(expr, fallbackZone)
	lower := strings.ToLower(strings.TrimSpace(expr))
	loc := now.Location()

	raw := strings.TrimSuffix(strings.TrimSpace(expr), "Z")
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, zone
		}
	}

	hour, minute := clockFrom(lower)

	if strings.Contains(lower, "tomorrow") {
		return dateAt(now.AddDate(0, 0, 1), hour, minute), zone
	}
	if strings.Contains(lower, "today") {
		return dateAt(now, hour, minute), zone
	}

	for _, wd := range weekdays {
		if !strings.Contains(lower, wd.name) {
			continue
		}
		ahead := int(wd.day) - int(now.Weekday())
		if ahead <= 0 {
			ahead += 7
		}
		if strings.Contains(lower, "next") {
			ahead += 7
		}
		return dateAt(now.AddDate(0, 0, ahead), hour, minute), zone
	}

	for _, m := range months {
		if !strings.Contains(lower, m.name) {
			continue
		}
		dm := dayPattern.FindStringSubmatch(lower)
		if dm == nil {
			break
		}
		day, _ := strconv.Atoi(dm[1])

		year := now.Year()
		if ym := yearPattern.FindStringSubmatch(expr); ym != nil {
			year, _ = strconv.Atoi(ym[1])
		} else if monthDayPassed(now, m.month, day) {
			year++
		}
		return time.Date(year, m.month, day, hour, minute, 0, 0, loc), zone
	}

	if dm := numericPattern.FindStringSubmatch(expr); dm != nil {
		month, _ := strconv.Atoi(dm[1])
		day, _ := strconv.Atoi(dm[2])
		year := now.Year()
		if dm[3] != "" {
			year, _ = strconv.Atoi(dm[3])
			if year < 100 {
				year += 2000
			}
		}
		return time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc), zone
	}

	return dateAt(now.AddDate(0, 0, 1), hour, minute), zone
}

// AvailabilityAt resolves a date phrase plus a clock phrase into the
// slot to check. Dates accept ISO form, "today", "tomorrow", or a
// weekday name (walking forward, today included); anything else lands
// on tomorrow.
func AvailabilityAt(dateExpr, clockExpr string, now time.Time) time.Time {
	lower := strings.ToLower(strings.TrimSpace(dateExpr))
	day := now.AddDate(0, 0, 1)

	if t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(dateExpr), now.Location()); err == nil {
		day = t
	} else if strings.Contains(lower, "today") {
		day = now
	} else {
		for _, wd := range weekdays {
			if !strings.Contains(lower, wd.name) {
				continue
			}
			day = now
			for day.Weekday() != wd.day {
				day = day.AddDate(0, 0, 1)
			}
			break
		}
	}

	hour := 14
	clock := strings.ToLower(strings.TrimSpace(clockExpr))
	switch {
	case strings.Contains(clock, "pm"):
		if h, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(clock, "pm"))); err == nil {
			hour = h
			if hour != 12 {
				hour += 12
			}
		}
	case strings.Contains(clock, "am"):
		if h, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(clock, "am"))); err == nil {
			hour = h
		}
	default:
		if h, err := strconv.Atoi(clock); err == nil && h >= 0 && h <= 23 {
			hour = h
		}
	}
	return dateAt(day, hour, 0)
}

// clockFrom extracts an hour and minute mention. Without one the
// business default of 2pm applies.
func clockFrom(expr string) (hour, minute int) {
	hour, minute = 14, 0

	if m := clockPattern.FindStringSubmatch(expr); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		switch {
		case m[3] == "pm" && hour != 12:
			hour += 12
		case m[3] == "am" && hour == 12:
			hour = 0
		}
		return hour, minute
	}

	if m := atHourPattern.FindStringSubmatch(expr); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		// A bare "at 3" in an advisory context means afternoon.
		if hour >= 1 && hour < 8 {
			hour += 12
		}
	}
	return hour, minute
}

// dateAt pins a clock time onto d's date.
func dateAt(d time.Time, hour, minute int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, d.Location())
}

// monthDayPassed reports whether the month-day combination fell
// before today's date this year.
func monthDayPassed(now time.Time, month time.Month, day int) bool {
	candidate := time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return candidate.Before(today)
}
