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

const enrollmentColumns = `id, tutor_id, student_id, summary, start_date, end_date, availability, meeting_id, status, created_at, updated_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN profiles tp ON tp.id = e.tutor_id
LEFT JOIN profiles sp ON sp.id = e.student_id`
	var conditions []string
	var args []interface{}

	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("e.tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_date":   "e.start_date",
		"created_at":   "e.created_at",
		"tutor_name":   "tp.full_name",
		"student_name": "sp.full_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT e.id, e.tutor_id, e.student_id, e.summary, e.start_date, e.end_date, e.availability, e.meeting_id, e.status, e.created_at, e.updated_at,
        tp.full_name AS tutor_name, sp.full_name AS student_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, limit, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE id = $1"
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with tutor and student names.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.tutor_id, e.student_id, e.summary, e.start_date, e.end_date, e.availability, e.meeting_id, e.status, e.created_at, e.updated_at,
        tp.full_name AS tutor_name, sp.full_name AS student_name
        FROM enrollments e
        LEFT JOIN profiles tp ON tp.id = e.tutor_id
        LEFT JOIN profiles sp ON sp.id = e.student_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsActive checks if an active enrollment already pairs tutor and student.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, tutorID, studentID, excludeID string) (bool, error) {
	query := "SELECT 1 FROM enrollments WHERE tutor_id = $1 AND student_id = $2 AND status = $3"
	args := []interface{}{tutorID, studentID, models.EnrollmentStatusActive}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.StartDate.IsZero() {
		enrollment.StartDate = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, tutor_id, student_id, summary, start_date, end_date, availability, meeting_id, status, created_at, updated_at)
        VALUES (:id, :tutor_id, :student_id, :summary, :start_date, :end_date, :availability, :meeting_id, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateAvailability replaces the availability windows wholesale.
func (r *EnrollmentRepository) UpdateAvailability(ctx context.Context, id string, windows models.AvailabilityWindows) error {
	const query = `UPDATE enrollments SET availability = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, windows, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update enrollment availability: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus updates status and the assigned meeting for an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus, meetingID *string) error {
	const query = `UPDATE enrollments SET status = $2, meeting_id = COALESCE($3, meeting_id), updated_at = $4 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, status, meetingID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// Delete removes an enrollment. Its sessions are removed by cascade.
func (r *EnrollmentRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	res, err := r.exec(exec).ExecContext(ctx, "DELETE FROM enrollments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByIDs removes the given enrollments that are still in status.
func (r *EnrollmentRepository) DeleteByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.EnrollmentStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.exec(exec).ExecContext(ctx, "DELETE FROM enrollments WHERE id = ANY($1) AND status = $2", pq.Array(ids), status)
	if err != nil {
		return 0, fmt.Errorf("delete enrollments: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// ListActiveBetween returns active enrollments whose date range touches [from, to].
func (r *EnrollmentRepository) ListActiveBetween(ctx context.Context, exec sqlx.ExtContext, from, to time.Time) ([]models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE status = $1 AND start_date <= $3 AND (end_date IS NULL OR end_date >= $2) ORDER BY created_at ASC"
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &enrollments, query, models.EnrollmentStatusActive, from, to); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}
