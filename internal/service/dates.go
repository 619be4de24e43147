package service

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// parseDate accepts a calendar date (interpreted in loc) or an RFC3339 instant.
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
