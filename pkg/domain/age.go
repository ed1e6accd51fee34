package domain

import (
	"strings"
	"time"
)

// dateOfBirthLayouts lists the formats date of birth values arrive in: ISO
// dates, RFC 3339 timestamps from date pickers, and the Date.toString() form
// written by the browser client.
var dateOfBirthLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000Z",
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"Mon Jan 2 2006 15:04:05 GMT-0700",
	"02/01/2006",
}

// ParseDateOfBirth parses a stored date of birth.
func ParseDateOfBirth(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, " ("); i > 0 {
		s = s[:i]
	}
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateOfBirthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AgeInYears returns the number of whole years between dob and now, comparing
// the calendar date as written. The bool is false when dob cannot be parsed or
// lies in the future.
func AgeInYears(dob string, now time.Time) (int, bool) {
	born, ok := ParseDateOfBirth(dob)
	if !ok {
		return 0, false
	}
	if born.After(now) {
		return 0, false
	}
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	return years, true
}
