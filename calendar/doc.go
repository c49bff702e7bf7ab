// Package calendar is the Google Calendar backend. Tool calls carry a
// provider token minted through the vault bridge; with a usable token
// the backend talks to the Calendar v3 API, and without one (or when
// the API fails) it serves deterministic local fixtures so demo turns
// still complete. Start times accept natural-language phrases such as
// "tomorrow at 2pm" or "next Tuesday".
package calendar
