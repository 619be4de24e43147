package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const pairingMatchColumns = `id, tutor_request_id, student_request_id, tutor_id, student_id, enrollment_id, score, shared_subjects, shared_languages, status, created_at, updated_at`

// PairingMatchRepository stores match cycle proposals.
type PairingMatchRepository struct {
	db *sqlx.DB
}

// NewPairingMatchRepository constructs the repository.
func NewPairingMatchRepository(db *sqlx.DB) *PairingMatchRepository {
	return &PairingMatchRepository{db: db}
}

func (r *PairingMatchRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch inserts matches produced by one cycle.
func (r *PairingMatchRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, matches []models.PairingMatch) error {
	if len(matches) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()
	const query = `INSERT INTO pairing_matches (id, tutor_request_id, student_request_id, tutor_id, student_id, enrollment_id, score, shared_subjects, shared_languages, status, created_at, updated_at)
VALUES (:id, :tutor_request_id, :student_request_id, :tutor_id, :student_id, :enrollment_id, :score, :shared_subjects, :shared_languages, :status, :created_at, :updated_at)`
	for i := range matches {
		m := &matches[i]
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.Status == "" {
			m.Status = models.PairingMatchStatusPending
		}
		m.CreatedAt = now
		m.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, m); err != nil {
			return fmt.Errorf("create pairing match: %w", err)
		}
	}
	return nil
}

// List returns matches, newest first.
func (r *PairingMatchRepository) List(ctx context.Context, filter models.PairingMatchFilter) ([]models.PairingMatch, int, error) {
	clause := ""
	var args []interface{}
	if filter.Status != "" {
		clause = " WHERE status = $1"
		args = append(args, filter.Status)
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM pairing_matches%s ORDER BY created_at DESC LIMIT %d OFFSET %d", pairingMatchColumns, clause, limit, offset)
	var matches []models.PairingMatch
	if err := r.db.SelectContext(ctx, &matches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list pairing matches: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM pairing_matches"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count pairing matches: %w", err)
	}
	return matches, total, nil
}

// FindByID loads a match, optionally locking it.
func (r *PairingMatchRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.PairingMatch, error) {
	query := "SELECT " + pairingMatchColumns + " FROM pairing_matches WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	var match models.PairingMatch
	if err := sqlx.GetContext(ctx, r.exec(exec), &match, query, id); err != nil {
		return nil, err
	}
	return &match, nil
}

// ListAll returns every match and locks the rows.
func (r *PairingMatchRepository) ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.PairingMatch, error) {
	query := "SELECT " + pairingMatchColumns + " FROM pairing_matches ORDER BY created_at ASC FOR UPDATE"
	var matches []models.PairingMatch
	if err := sqlx.SelectContext(ctx, r.exec(exec), &matches, query); err != nil {
		return nil, fmt.Errorf("list all pairing matches: %w", err)
	}
	return matches, nil
}

// UpdateStatus records an admin decision.
func (r *PairingMatchRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PairingMatchStatus) error {
	const query = `UPDATE pairing_matches SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update pairing match status: %w", err)
	}
	return nil
}

// DeleteAll removes every match record.
func (r *PairingMatchRepository) DeleteAll(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	res, err := r.exec(exec).ExecContext(ctx, "DELETE FROM pairing_matches")
	if err != nil {
		return 0, fmt.Errorf("delete pairing matches: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
