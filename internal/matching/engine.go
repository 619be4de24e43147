package matching

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/scheduling"
)

const (
	subjectWeight  = 10.0
	languageWeight = 3.0
	overlapUnit    = 30.0
)

// Compatibility describes how well a tutor and a student fit.
type Compatibility struct {
	SharedSubjects  []string
	SharedLanguages []string
	Availability    []scheduling.Window
	OverlapMinutes  int
	Score           float64
}

// Compatible reports whether the hard requirements are met: at least one shared
// subject and at least one overlapping availability window.
func (c Compatibility) Compatible() bool {
	return len(c.SharedSubjects) > 0 && len(c.Availability) > 0
}

// AvailabilityModels returns the shared windows in stored form.
func (c Compatibility) AvailabilityModels() models.AvailabilityWindows {
	out := make(models.AvailabilityWindows, 0, len(c.Availability))
	for _, w := range c.Availability {
		out = append(out, w.Model())
	}
	return out
}

// Match is a proposed pairing produced by a cycle.
type Match struct {
	Tutor   models.PairingRequest
	Student models.PairingRequest
	Compatibility
}

// Result is the outcome of one match cycle. Unmatched tutors stay queued.
type Result struct {
	Matches   []Match
	Unmatched []models.PairingRequest
}

// Engine performs greedy single-pass matching. It is not a maximum-weight
// matching; a tutor takes the best student still available when it is popped.
type Engine struct {
	logger *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Evaluate scores a tutor/student profile pair.
func Evaluate(tutor, student models.Profile) Compatibility {
	c := Compatibility{
		SharedSubjects:  intersect(tutor.Subjects, student.Subjects),
		SharedLanguages: intersect(tutor.Languages, student.Languages),
		Availability:    scheduling.Overlaps(tutor.Availability, student.Availability),
	}
	for _, w := range c.Availability {
		c.OverlapMinutes += w.Minutes()
	}
	c.Score = float64(len(c.SharedSubjects))*subjectWeight +
		float64(c.OverlapMinutes)/overlapUnit +
		float64(len(c.SharedLanguages))*languageWeight
	return c
}

// RunMatchCycle pops tutors in queue order and pairs each with the best
// compatible student still waiting. Profiles missing from the lookup or not
// ACTIVE are never matched. tutors and students may be the same queue.
func (e *Engine) RunMatchCycle(tutors, students *Queue, profiles map[string]models.Profile) Result {
	var result Result
	for {
		tutorReq, ok := tutors.DequeueTop(models.ProfileRoleTutor)
		if !ok {
			break
		}
		tutor, ok := profiles[tutorReq.ProfileID]
		if !ok || !tutor.Active() {
			e.logger.Debug("tutor profile unavailable for matching", zap.String("request_id", tutorReq.ID))
			result.Unmatched = append(result.Unmatched, tutorReq)
			continue
		}

		var (
			best      *models.PairingRequest
			bestScore Compatibility
		)
		for _, candidate := range students.Pending(models.ProfileRoleStudent) {
			student, ok := profiles[candidate.ProfileID]
			if !ok || !student.Active() {
				continue
			}
			c := Evaluate(tutor, student)
			if !c.Compatible() {
				continue
			}
			// Pending is ordered, so the first of equal scores has the better tier.
			if best == nil || c.Score > bestScore.Score {
				chosen := candidate
				best = &chosen
				bestScore = c
			}
		}

		if best == nil {
			result.Unmatched = append(result.Unmatched, tutorReq)
			continue
		}
		_ = students.Remove(best.ID)
		result.Matches = append(result.Matches, Match{Tutor: tutorReq, Student: *best, Compatibility: bestScore})
		e.logger.Debug("pairing proposed",
			zap.String("tutor_request_id", tutorReq.ID),
			zap.String("student_request_id", best.ID),
			zap.Float64("score", bestScore.Score),
		)
	}
	for _, req := range result.Unmatched {
		tutors.restore(req)
	}
	return result
}

func intersect(a, b []string) []string {
	index := make(map[string]struct{}, len(b))
	for _, v := range b {
		index[normalize(v)] = struct{}{}
	}
	seen := make(map[string]struct{})
	var shared []string
	for _, v := range a {
		key := normalize(v)
		if key == "" {
			continue
		}
		if _, ok := index[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		shared = append(shared, strings.TrimSpace(v))
	}
	sort.Strings(shared)
	return shared
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
