package scheduling

import (
	"strings"
	"time"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

// DefaultSessionDuration is used when a checker is built with a non-positive duration.
const DefaultSessionDuration = time.Hour

// ConflictChecker decides whether a meeting resource is free for a candidate session.
// Every session occupies [date, date+duration).
type ConflictChecker struct {
	duration time.Duration
}

// NewConflictChecker builds a checker for sessions of the given length.
func NewConflictChecker(duration time.Duration) *ConflictChecker {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &ConflictChecker{duration: duration}
}

// Duration returns the fixed session length.
func (c *ConflictChecker) Duration() time.Duration {
	return c.duration
}

// IsAvailable scans sessions booked on resourceID and reports whether
// candidate overlaps none of them. excludeSessionID lets a session be
// rescheduled against itself. Cancelled sessions do not hold the resource.
// Invalid input yields false together with the error.
func (c *ConflictChecker) IsAvailable(resourceID string, candidate time.Time, excludeSessionID string, sessions []models.Session) (bool, error) {
	conflict, err := c.FindConflict(resourceID, candidate, excludeSessionID, sessions)
	if err != nil {
		return false, err
	}
	return conflict == nil, nil
}

// FindConflict returns the first session blocking the candidate slot, if any.
func (c *ConflictChecker) FindConflict(resourceID string, candidate time.Time, excludeSessionID string, sessions []models.Session) (*models.Session, error) {
	if strings.TrimSpace(resourceID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "meeting id is required")
	}
	if candidate.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrInvalidAvailability, "candidate date is required")
	}
	candidateEnd := candidate.Add(c.duration)
	for i := range sessions {
		s := sessions[i]
		if s.MeetingValue() != resourceID {
			continue
		}
		if excludeSessionID != "" && s.ID == excludeSessionID {
			continue
		}
		if s.Status == models.SessionStatusCancelled {
			continue
		}
		if overlaps(candidate, candidateEnd, s.Date, s.Date.Add(c.duration)) {
			return &sessions[i], nil
		}
	}
	return nil, nil
}

// ParseCandidate parses an RFC3339 timestamp supplied by a caller.
func ParseCandidate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrInvalidAvailability, "candidate date is required")
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrInvalidAvailability.Code, appErrors.ErrInvalidAvailability.Status, "candidate date must be RFC3339")
	}
	return ts, nil
}

func overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}
