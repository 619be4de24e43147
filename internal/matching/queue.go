// Package matching holds the pairing queue and the greedy match engine.
package matching

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

// QueueConfig sets the priority policy.
type QueueConfig struct {
	DefaultPriority int
	MaxPriority     int
}

// Queue is an ordered view over pending pairing requests of both roles.
// Order is priority ascending, then createdAt, then insertion sequence.
// Priorities can change in place without requeueing.
type Queue struct {
	mu       sync.Mutex
	items    map[string]*models.PairingRequest
	seq      int64
	cfg      QueueConfig
	now      func() time.Time
	idSource func() string
}

// NewQueue builds an empty queue.
func NewQueue(cfg QueueConfig) *Queue {
	if cfg.DefaultPriority < 0 {
		cfg.DefaultPriority = 0
	}
	if cfg.MaxPriority < cfg.DefaultPriority {
		cfg.MaxPriority = cfg.DefaultPriority
	}
	return &Queue{
		items:    make(map[string]*models.PairingRequest),
		cfg:      cfg,
		now:      time.Now,
		idSource: func() string { return uuid.NewString() },
	}
}

// ResolvePriority applies the priority policy: an explicit value must lie in
// [0, MaxPriority], otherwise DefaultPriority is used.
func (c QueueConfig) ResolvePriority(priority *int) (int, error) {
	if priority == nil {
		return c.DefaultPriority, nil
	}
	if *priority < 0 || *priority > c.MaxPriority {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("priority must be between 0 and %d", c.MaxPriority))
	}
	return *priority, nil
}

// Enqueue adds a pending request. A profile may hold one pending request per role.
func (q *Queue) Enqueue(profileID string, role models.ProfileRole, priority *int) (models.PairingRequest, error) {
	if profileID == "" {
		return models.PairingRequest{}, appErrors.Clone(appErrors.ErrValidation, "profile id is required")
	}
	if !role.Valid() {
		return models.PairingRequest{}, appErrors.Clone(appErrors.ErrValidation, "type must be TUTOR or STUDENT")
	}
	p, err := q.cfg.ResolvePriority(priority)
	if err != nil {
		return models.PairingRequest{}, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pendingFor(profileID, role) != nil {
		return models.PairingRequest{}, appErrors.Clone(appErrors.ErrDuplicateRequest, "")
	}
	q.seq++
	now := q.now()
	req := &models.PairingRequest{
		ID:        q.idSource(),
		ProfileID: profileID,
		Type:      role,
		Priority:  p,
		Status:    models.PairingRequestStatusPending,
		Seq:       q.seq,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.items[req.ID] = req
	return *req, nil
}

// Seed loads already persisted pending requests, keeping their ordering fields.
func (q *Queue) Seed(requests []models.PairingRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, r := range requests {
		if r.Status != models.PairingRequestStatusPending {
			continue
		}
		if _, exists := q.items[r.ID]; exists {
			continue
		}
		if q.pendingFor(r.ProfileID, r.Type) != nil {
			return appErrors.Clone(appErrors.ErrDuplicateRequest, fmt.Sprintf("profile %s already queued as %s", r.ProfileID, r.Type))
		}
		req := r
		q.items[req.ID] = &req
		if req.Seq > q.seq {
			q.seq = req.Seq
		}
	}
	return nil
}

// DequeueTop removes and returns the first request for role.
func (q *Queue) DequeueTop(role models.ProfileRole) (models.PairingRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ordered := q.ordered(role)
	if len(ordered) == 0 {
		return models.PairingRequest{}, false
	}
	top := ordered[0]
	delete(q.items, top.ID)
	return top, true
}

// Peek returns the first request for role without removing it.
func (q *Queue) Peek(role models.ProfileRole) (models.PairingRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ordered := q.ordered(role)
	if len(ordered) == 0 {
		return models.PairingRequest{}, false
	}
	return ordered[0], true
}

// Remove withdraws a request.
func (q *Queue) Remove(requestID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.items[requestID]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "pairing request not found")
	}
	delete(q.items, requestID)
	return nil
}

// SetPriority changes a request's priority in place.
func (q *Queue) SetPriority(requestID string, priority int) error {
	p, err := q.cfg.ResolvePriority(&priority)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	req, ok := q.items[requestID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "pairing request not found")
	}
	req.Priority = p
	req.UpdatedAt = q.now()
	return nil
}

// Pending returns the ordered requests for role.
func (q *Queue) Pending(role models.ProfileRole) []models.PairingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ordered(role)
}

// Len counts queued requests for role.
func (q *Queue) Len(role models.ProfileRole) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, r := range q.items {
		if r.Type == role {
			n++
		}
	}
	return n
}

func (q *Queue) restore(req models.PairingRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[req.ID] = &req
}

func (q *Queue) pendingFor(profileID string, role models.ProfileRole) *models.PairingRequest {
	for _, r := range q.items {
		if r.ProfileID == profileID && r.Type == role {
			return r
		}
	}
	return nil
}

func (q *Queue) ordered(role models.ProfileRole) []models.PairingRequest {
	result := make([]models.PairingRequest, 0, len(q.items))
	for _, r := range q.items {
		if r.Type == role {
			result = append(result, *r)
		}
	}
	SortRequests(result)
	return result
}

// SortRequests orders requests by priority, createdAt, then sequence.
func SortRequests(requests []models.PairingRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		return Less(requests[i], requests[j])
	})
}

// Less reports whether a is served before b.
func Less(a, b models.PairingRequest) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}
