package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const profileColumns = `id, role, full_name, email, status, subjects, languages, availability, created_at, updated_at`

// ProfileRepository persists tutor and student profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns profiles filtered by role, status and a name/email search.
func (r *ProfileRepository) List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, filter.Role)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+search+"%")
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM profiles%s ORDER BY full_name ASC LIMIT %d OFFSET %d", profileColumns, clause, limit, offset)
	var profiles []models.Profile
	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM profiles"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}
	return profiles, total, nil
}

// FindByID returns a profile by id.
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	query := "SELECT " + profileColumns + " FROM profiles WHERE id = $1"
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListByIDs loads the given profiles, keyed by id.
func (r *ProfileRepository) ListByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]models.Profile, error) {
	result := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := "SELECT " + profileColumns + " FROM profiles WHERE id = ANY($1)"
	var profiles []models.Profile
	if err := sqlx.SelectContext(ctx, r.exec(exec), &profiles, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list profiles by id: %w", err)
	}
	for _, p := range profiles {
		result[p.ID] = p
	}
	return result, nil
}

// Create inserts a profile.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	if profile.Status == "" {
		profile.Status = models.ProfileStatusActive
	}
	const query = `INSERT INTO profiles (id, role, full_name, email, status, subjects, languages, availability, created_at, updated_at)
VALUES (:id, :role, :full_name, :email, :status, :subjects, :languages, :availability, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// UpdateMatching replaces the matching metadata of a profile.
func (r *ProfileRepository) UpdateMatching(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE profiles SET status = $2, subjects = $3, languages = $4, availability = $5, updated_at = $6 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, profile.ID, profile.Status, profile.Subjects, profile.Languages, profile.Availability, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update profile matching: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
