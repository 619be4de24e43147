package scheduling

import (
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// Materializer expands enrollment availability into dated sessions.
type Materializer struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewMaterializer constructs a Materializer.
func NewMaterializer(logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{logger: logger, now: time.Now}
}

type sessionKey struct {
	studentID string
	tutorID   string
	instant   int64
}

func keyOf(studentID, tutorID string, at time.Time) sessionKey {
	return sessionKey{studentID: studentID, tutorID: tutorID, instant: at.UnixNano()}
}

// Materialize stages new ACTIVE sessions for every availability occurrence
// between weekStart and weekEnd, both days inclusive. Days are walked in
// weekStart's location. A session already present in existing (or staged
// earlier in the same call) for the same student, tutor and instant is skipped,
// so repeated calls are idempotent. Staged sessions carry no ID.
func (m *Materializer) Materialize(weekStart, weekEnd time.Time, enrollments []models.Enrollment, existing []models.Session) []models.Session {
	loc := weekStart.Location()
	first := truncateDay(weekStart)
	last := truncateDay(weekEnd.In(loc))
	if last.Before(first) {
		return nil
	}

	seen := make(map[sessionKey]struct{}, len(existing))
	for _, s := range existing {
		seen[keyOf(s.StudentID, s.TutorID, s.Date)] = struct{}{}
	}

	now := m.now()
	var staged []models.Session
	for _, enrollment := range enrollments {
		if enrollment.Status != models.EnrollmentStatusActive {
			continue
		}
		for _, raw := range enrollment.Availability {
			window, err := ParseWindow(raw)
			if err != nil {
				m.logger.Warn("skipping invalid availability window",
					zap.String("enrollment_id", enrollment.ID),
					zap.String("day", raw.Day),
					zap.String("start_time", raw.StartTime),
					zap.String("end_time", raw.EndTime),
					zap.Error(err),
				)
				continue
			}
			for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
				if day.Weekday() != window.Day || !enrollment.Covers(day) {
					continue
				}
				instant := time.Date(day.Year(), day.Month(), day.Day(), window.Start/60, window.Start%60, 0, 0, loc)
				key := keyOf(enrollment.StudentID, enrollment.TutorID, instant)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				staged = append(staged, models.Session{
					EnrollmentID: enrollment.ID,
					TutorID:      enrollment.TutorID,
					StudentID:    enrollment.StudentID,
					Date:         instant,
					Status:       models.SessionStatusActive,
					MeetingID:    enrollment.MeetingID,
					CreatedAt:    now,
					UpdatedAt:    now,
				})
			}
		}
	}
	return staged
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
