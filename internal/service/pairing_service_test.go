package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/matching"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type requestRepoStub struct {
	items     map[string]*models.PairingRequest
	seq       int64
	createErr error
	clock     time.Time
}

func newRequestRepoStub() *requestRepoStub {
	return &requestRepoStub{
		items: make(map[string]*models.PairingRequest),
		clock: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (s *requestRepoStub) add(id, profileID string, role models.ProfileRole, priority int, status models.PairingRequestStatus) *models.PairingRequest {
	s.seq++
	s.clock = s.clock.Add(time.Minute)
	req := &models.PairingRequest{ID: id, ProfileID: profileID, Type: role, Priority: priority, Status: status, Seq: s.seq, CreatedAt: s.clock, UpdatedAt: s.clock}
	s.items[id] = req
	return req
}

func (s *requestRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, req *models.PairingRequest) error {
	if s.createErr != nil {
		return s.createErr
	}
	if req.ID == "" {
		req.ID = fmt.Sprintf("req-%d", s.seq+1)
	}
	stored := s.add(req.ID, req.ProfileID, req.Type, req.Priority, req.Status)
	*req = *stored
	return nil
}

func (s *requestRepoStub) FindByID(ctx context.Context, id string) (*models.PairingRequest, error) {
	req, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *req
	return &clone, nil
}

func (s *requestRepoStub) HasPending(ctx context.Context, exec sqlx.ExtContext, profileID string, role models.ProfileRole, excludeID string) (bool, error) {
	for _, req := range s.items {
		if req.ProfileID == profileID && req.Type == role && req.Status == models.PairingRequestStatusPending && req.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *requestRepoStub) ListPending(ctx context.Context, exec sqlx.ExtContext, role models.ProfileRole, forUpdate bool) ([]models.PairingRequest, error) {
	var result []models.PairingRequest
	for _, req := range s.items {
		if req.Status == models.PairingRequestStatusPending && (role == "" || req.Type == role) {
			result = append(result, *req)
		}
	}
	matching.SortRequests(result)
	return result, nil
}

func (s *requestRepoStub) ListByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.PairingRequest, error) {
	var result []models.PairingRequest
	for _, id := range ids {
		if req, ok := s.items[id]; ok {
			result = append(result, *req)
		}
	}
	return result, nil
}

func (s *requestRepoStub) UpdatePriority(ctx context.Context, id string, priority int) error {
	req, ok := s.items[id]
	if !ok || req.Status != models.PairingRequestStatusPending {
		return sql.ErrNoRows
	}
	req.Priority = priority
	return nil
}

func (s *requestRepoStub) Withdraw(ctx context.Context, id string) error {
	req, ok := s.items[id]
	if !ok || req.Status != models.PairingRequestStatusPending {
		return sql.ErrNoRows
	}
	req.Status = models.PairingRequestStatusCancelled
	return nil
}

func (s *requestRepoStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.PairingRequestStatus) (int64, error) {
	var n int64
	for _, id := range ids {
		if req, ok := s.items[id]; ok {
			req.Status = status
			n++
		}
	}
	return n, nil
}

func (s *requestRepoStub) CancelPending(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	var n int64
	for _, req := range s.items {
		if req.Status == models.PairingRequestStatusPending {
			req.Status = models.PairingRequestStatusCancelled
			n++
		}
	}
	return n, nil
}

func (s *requestRepoStub) status(id string) models.PairingRequestStatus {
	return s.items[id].Status
}

type memoryCacheRepo struct {
	data        map[string][]byte
	invalidated []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{data: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	m.data = make(map[string][]byte)
	return nil
}

var testQueueConfig = matching.QueueConfig{DefaultPriority: 1, MaxPriority: 10}

func intRef(v int) *int { return &v }

func newPairingServiceFixture(profiles ...models.Profile) (*PairingService, *requestRepoStub, *memoryCacheRepo) {
	requests := newRequestRepoStub()
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewPairingService(requests, newProfileRepoStub(profiles...), cache, nil, nil, testQueueConfig, time.Minute)
	return svc, requests, cacheRepo
}

func activeProfile(id string, role models.ProfileRole, name string) models.Profile {
	return models.Profile{ID: id, Role: role, FullName: name, Status: models.ProfileStatusActive}
}

func TestPairingServiceEnqueue(t *testing.T) {
	svc, requests, cacheRepo := newPairingServiceFixture(activeProfile("s1", models.ProfileRoleStudent, "Sam"))

	req, err := svc.Enqueue(context.Background(), dto.EnqueuePairingRequest{ProfileID: "s1", Type: "STUDENT"})
	require.NoError(t, err)
	assert.Equal(t, 1, req.Priority)
	assert.Equal(t, models.PairingRequestStatusPending, req.Status)
	assert.Len(t, requests.items, 1)
	assert.Contains(t, cacheRepo.invalidated, queueCachePattern)

	_, err = svc.Enqueue(context.Background(), dto.EnqueuePairingRequest{ProfileID: "s1", Type: "STUDENT", Priority: intRef(0)})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateRequest))
	assert.Len(t, requests.items, 1)
}

func TestPairingServiceEnqueueRejections(t *testing.T) {
	inactive := activeProfile("s2", models.ProfileRoleStudent, "Inactive")
	inactive.Status = models.ProfileStatusInactive
	svc, _, _ := newPairingServiceFixture(activeProfile("s1", models.ProfileRoleStudent, "Sam"), inactive)

	cases := []struct {
		name string
		req  dto.EnqueuePairingRequest
		want *appErrors.Error
	}{
		{"missing profile", dto.EnqueuePairingRequest{ProfileID: "nope", Type: "STUDENT"}, appErrors.ErrNotFound},
		{"role mismatch", dto.EnqueuePairingRequest{ProfileID: "s1", Type: "TUTOR"}, appErrors.ErrValidation},
		{"inactive", dto.EnqueuePairingRequest{ProfileID: "s2", Type: "STUDENT"}, appErrors.ErrPreconditionFailed},
		{"priority too high", dto.EnqueuePairingRequest{ProfileID: "s1", Type: "STUDENT", Priority: intRef(11)}, appErrors.ErrValidation},
		{"bad type", dto.EnqueuePairingRequest{ProfileID: "s1", Type: "ADMIN"}, appErrors.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Enqueue(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestPairingServiceEnqueueUniqueViolation(t *testing.T) {
	svc, requests, _ := newPairingServiceFixture(activeProfile("t1", models.ProfileRoleTutor, "Tia"))
	requests.createErr = &pq.Error{Code: "23505"}

	_, err := svc.Enqueue(context.Background(), dto.EnqueuePairingRequest{ProfileID: "t1", Type: "TUTOR"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateRequest))
}

func TestPairingServiceWithdraw(t *testing.T) {
	svc, requests, _ := newPairingServiceFixture()
	requests.add("r1", "s1", models.ProfileRoleStudent, 1, models.PairingRequestStatusPending)
	requests.add("r2", "s2", models.ProfileRoleStudent, 1, models.PairingRequestStatusAccepted)

	require.NoError(t, svc.Withdraw(context.Background(), "r1"))
	assert.Equal(t, models.PairingRequestStatusCancelled, requests.status("r1"))

	err := svc.Withdraw(context.Background(), "r2")
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	err = svc.Withdraw(context.Background(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestPairingServiceSetPriority(t *testing.T) {
	svc, requests, _ := newPairingServiceFixture()
	requests.add("r1", "s1", models.ProfileRoleStudent, 5, models.PairingRequestStatusPending)

	updated, err := svc.SetPriority(context.Background(), "r1", dto.UpdatePriorityRequest{Priority: intRef(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Priority)

	_, err = svc.SetPriority(context.Background(), "r1", dto.UpdatePriorityRequest{Priority: intRef(99)})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.SetPriority(context.Background(), "missing", dto.UpdatePriorityRequest{Priority: intRef(2)})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestPairingServiceQueueOrderAndCache(t *testing.T) {
	svc, requests, cacheRepo := newPairingServiceFixture(
		activeProfile("s1", models.ProfileRoleStudent, "First"),
		activeProfile("s2", models.ProfileRoleStudent, "Urgent"),
		activeProfile("t1", models.ProfileRoleTutor, "Tutor"),
	)
	requests.add("r1", "s1", models.ProfileRoleStudent, 1, models.PairingRequestStatusPending)
	requests.add("r2", "s2", models.ProfileRoleStudent, 0, models.PairingRequestStatusPending)
	requests.add("r3", "t1", models.ProfileRoleTutor, 1, models.PairingRequestStatusPending)

	snapshot, err := svc.Queue(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, snapshot.Students, 2)
	assert.Equal(t, "r2", snapshot.Students[0].ID)
	assert.Equal(t, 1, snapshot.Students[0].Position)
	assert.Equal(t, "Urgent", snapshot.Students[0].ProfileName)
	assert.Equal(t, "r1", snapshot.Students[1].ID)
	require.Len(t, snapshot.Tutors, 1)
	assert.Contains(t, cacheRepo.data, queueCachePrefix+":")

	requests.add("r4", "s3", models.ProfileRoleStudent, 0, models.PairingRequestStatusPending)
	cached, err := svc.Queue(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, cached.Students, 2, "served from cache until invalidated")

	students, err := svc.Queue(context.Background(), models.ProfileRoleStudent)
	require.NoError(t, err)
	assert.Len(t, students.Students, 3)
	assert.Empty(t, students.Tutors)

	_, err = svc.Queue(context.Background(), "ADMIN")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
