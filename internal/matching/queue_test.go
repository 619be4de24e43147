package matching

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

func intPtr(v int) *int { return &v }

func newTestQueue() *Queue {
	q := NewQueue(QueueConfig{DefaultPriority: 1, MaxPriority: 5})
	clock := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	q.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	n := 0
	q.idSource = func() string {
		n++
		return fmt.Sprintf("req-%d", n)
	}
	return q
}

func TestQueueEnqueueAppliesDefaultPriority(t *testing.T) {
	q := newTestQueue()
	req, err := q.Enqueue("p1", models.ProfileRoleTutor, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, req.Priority)
	assert.Equal(t, models.PairingRequestStatusPending, req.Status)
	assert.Equal(t, int64(1), req.Seq)
	assert.Equal(t, 1, q.Len(models.ProfileRoleTutor))
	assert.Equal(t, 0, q.Len(models.ProfileRoleStudent))
}

func TestQueueEnqueueValidates(t *testing.T) {
	q := newTestQueue()
	_, err := q.Enqueue("", models.ProfileRoleTutor, nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = q.Enqueue("p1", models.ProfileRole("PARENT"), nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = q.Enqueue("p1", models.ProfileRoleTutor, intPtr(6))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = q.Enqueue("p1", models.ProfileRoleTutor, intPtr(-1))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestQueueDuplicatePendingLeavesQueueUnchanged(t *testing.T) {
	q := newTestQueue()
	first, err := q.Enqueue("p1", models.ProfileRoleStudent, intPtr(2))
	require.NoError(t, err)
	before := q.Pending(models.ProfileRoleStudent)

	_, err = q.Enqueue("p1", models.ProfileRoleStudent, intPtr(0))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateRequest))
	assert.Equal(t, before, q.Pending(models.ProfileRoleStudent))

	_, err = q.Enqueue("p1", models.ProfileRoleTutor, nil)
	require.NoError(t, err, "same profile may queue for the other role")

	top, ok := q.Peek(models.ProfileRoleStudent)
	require.True(t, ok)
	assert.Equal(t, first.ID, top.ID)
}

func TestQueueDequeueTopOrdersByPriorityThenCreatedAt(t *testing.T) {
	q := newTestQueue()
	late, _ := q.Enqueue("a", models.ProfileRoleStudent, intPtr(2))
	early, _ := q.Enqueue("b", models.ProfileRoleStudent, intPtr(1))
	later, _ := q.Enqueue("c", models.ProfileRoleStudent, intPtr(1))
	_, _ = q.Enqueue("d", models.ProfileRoleTutor, intPtr(0))

	var order []string
	for {
		req, ok := q.DequeueTop(models.ProfileRoleStudent)
		if !ok {
			break
		}
		order = append(order, req.ID)
	}
	assert.Equal(t, []string{early.ID, later.ID, late.ID}, order)
	assert.Equal(t, 1, q.Len(models.ProfileRoleTutor))
}

func TestQueueSeqBreaksCreatedAtTies(t *testing.T) {
	q := NewQueue(QueueConfig{DefaultPriority: 1, MaxPriority: 5})
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, q.Seed([]models.PairingRequest{
		{ID: "r2", ProfileID: "b", Type: models.ProfileRoleTutor, Priority: 1, Status: models.PairingRequestStatusPending, Seq: 2, CreatedAt: at},
		{ID: "r1", ProfileID: "a", Type: models.ProfileRoleTutor, Priority: 1, Status: models.PairingRequestStatusPending, Seq: 1, CreatedAt: at},
		{ID: "r3", ProfileID: "c", Type: models.ProfileRoleTutor, Priority: 1, Status: models.PairingRequestStatusAccepted, Seq: 3, CreatedAt: at},
	}))

	top, ok := q.DequeueTop(models.ProfileRoleTutor)
	require.True(t, ok)
	assert.Equal(t, "r1", top.ID)
	assert.Equal(t, 1, q.Len(models.ProfileRoleTutor), "non-pending requests are not seeded")

	next, err := q.Enqueue("d", models.ProfileRoleTutor, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), next.Seq, "sequence continues after seeded values")
}

func TestQueueSeedRejectsDuplicates(t *testing.T) {
	q := newTestQueue()
	err := q.Seed([]models.PairingRequest{
		{ID: "r1", ProfileID: "a", Type: models.ProfileRoleTutor, Status: models.PairingRequestStatusPending, Seq: 1},
		{ID: "r2", ProfileID: "a", Type: models.ProfileRoleTutor, Status: models.PairingRequestStatusPending, Seq: 2},
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateRequest))
}

func TestQueueSetPriorityReordersWithoutRequeue(t *testing.T) {
	q := newTestQueue()
	first, _ := q.Enqueue("a", models.ProfileRoleTutor, intPtr(1))
	second, _ := q.Enqueue("b", models.ProfileRoleTutor, intPtr(3))

	require.NoError(t, q.SetPriority(second.ID, 0))
	pending := q.Pending(models.ProfileRoleTutor)
	require.Len(t, pending, 2)
	assert.Equal(t, second.ID, pending[0].ID)
	assert.Equal(t, second.Seq, pending[0].Seq)
	assert.Equal(t, first.ID, pending[1].ID)

	assert.True(t, appErrors.Is(q.SetPriority("missing", 1), appErrors.ErrNotFound))
	assert.True(t, appErrors.Is(q.SetPriority(first.ID, 9), appErrors.ErrValidation))
}

func TestQueueRemove(t *testing.T) {
	q := newTestQueue()
	req, _ := q.Enqueue("a", models.ProfileRoleTutor, nil)
	require.NoError(t, q.Remove(req.ID))
	_, ok := q.DequeueTop(models.ProfileRoleTutor)
	assert.False(t, ok)
	assert.True(t, appErrors.Is(q.Remove(req.ID), appErrors.ErrNotFound))

	_, err := q.Enqueue("a", models.ProfileRoleTutor, nil)
	assert.NoError(t, err, "profile can queue again once withdrawn")
}

func TestNewQueueClampsConfig(t *testing.T) {
	q := NewQueue(QueueConfig{DefaultPriority: 3, MaxPriority: 1})
	_, err := q.Enqueue("a", models.ProfileRoleTutor, intPtr(3))
	assert.NoError(t, err)
}
