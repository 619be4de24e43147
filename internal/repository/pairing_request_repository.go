package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const pairingRequestColumns = `id, profile_id, type, priority, status, seq, created_at, updated_at`

// PairingRequestRepository persists the pairing queue.
type PairingRequestRepository struct {
	db *sqlx.DB
}

// NewPairingRequestRepository constructs the repository.
func NewPairingRequestRepository(db *sqlx.DB) *PairingRequestRepository {
	return &PairingRequestRepository{db: db}
}

func (r *PairingRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a pending request and fills its sequence number.
func (r *PairingRequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, req *models.PairingRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = models.PairingRequestStatusPending
	}
	const query = `INSERT INTO pairing_requests (id, profile_id, type, priority, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING seq`
	row := r.exec(exec).QueryRowxContext(ctx, query, req.ID, req.ProfileID, req.Type, req.Priority, req.Status, req.CreatedAt, req.UpdatedAt)
	if err := row.Scan(&req.Seq); err != nil {
		return fmt.Errorf("create pairing request: %w", err)
	}
	return nil
}

// FindByID returns a request by id.
func (r *PairingRequestRepository) FindByID(ctx context.Context, id string) (*models.PairingRequest, error) {
	query := "SELECT " + pairingRequestColumns + " FROM pairing_requests WHERE id = $1"
	var req models.PairingRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// HasPending reports whether profileID already waits in the queue for role.
func (r *PairingRequestRepository) HasPending(ctx context.Context, exec sqlx.ExtContext, profileID string, role models.ProfileRole, excludeID string) (bool, error) {
	query := "SELECT 1 FROM pairing_requests WHERE profile_id = $1 AND type = $2 AND status = $3"
	args := []interface{}{profileID, role, models.PairingRequestStatusPending}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending pairing request: %w", err)
	}
	return true, nil
}

// ListPending returns pending requests in queue order. An empty role lists both.
// forUpdate locks the selected rows for the surrounding transaction.
func (r *PairingRequestRepository) ListPending(ctx context.Context, exec sqlx.ExtContext, role models.ProfileRole, forUpdate bool) ([]models.PairingRequest, error) {
	query := "SELECT " + pairingRequestColumns + " FROM pairing_requests WHERE status = $1"
	args := []interface{}{models.PairingRequestStatusPending}
	if role != "" {
		query += " AND type = $2"
		args = append(args, role)
	}
	query += " ORDER BY priority ASC, created_at ASC, seq ASC"
	if forUpdate {
		query += " FOR UPDATE"
	}
	var requests []models.PairingRequest
	if err := sqlx.SelectContext(ctx, r.exec(exec), &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list pending pairing requests: %w", err)
	}
	return requests, nil
}

// ListByIDs returns the requests with the given ids.
func (r *PairingRequestRepository) ListByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.PairingRequest, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT " + pairingRequestColumns + " FROM pairing_requests WHERE id = ANY($1) ORDER BY seq ASC"
	var requests []models.PairingRequest
	if err := sqlx.SelectContext(ctx, r.exec(exec), &requests, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list pairing requests: %w", err)
	}
	return requests, nil
}

// UpdatePriority changes the priority of a pending request.
func (r *PairingRequestRepository) UpdatePriority(ctx context.Context, id string, priority int) error {
	const query = `UPDATE pairing_requests SET priority = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, priority, time.Now().UTC(), models.PairingRequestStatusPending)
	if err != nil {
		return fmt.Errorf("update pairing request priority: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Withdraw cancels a single request while it is still pending.
func (r *PairingRequestRepository) Withdraw(ctx context.Context, id string) error {
	const query = `UPDATE pairing_requests SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.PairingRequestStatusCancelled, time.Now().UTC(), models.PairingRequestStatusPending)
	if err != nil {
		return fmt.Errorf("withdraw pairing request: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus moves the given requests to status.
func (r *PairingRequestRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.PairingRequestStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE pairing_requests SET status = $2, updated_at = $3 WHERE id = ANY($1)`
	res, err := r.exec(exec).ExecContext(ctx, query, pq.Array(ids), status, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("update pairing request status: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// CancelPending marks every pending request as cancelled.
func (r *PairingRequestRepository) CancelPending(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	const query = `UPDATE pairing_requests SET status = $1, updated_at = $2 WHERE status = $3`
	res, err := r.exec(exec).ExecContext(ctx, query, models.PairingRequestStatusCancelled, time.Now().UTC(), models.PairingRequestStatusPending)
	if err != nil {
		return 0, fmt.Errorf("cancel pending pairing requests: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
