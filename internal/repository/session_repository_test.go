package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var sessionRowColumns = []string{"id", "enrollment_id", "tutor_id", "student_id", "date", "status", "meeting_id", "exit_form_notes", "created_at", "updated_at"}

func TestSessionRepositoryCreateBatchInTransaction(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	sessions := []models.Session{
		{EnrollmentID: "e1", TutorID: "t1", StudentID: "s1", Date: at},
		{EnrollmentID: "e1", TutorID: "t1", StudentID: "s1", Date: at.AddDate(0, 0, 7)},
	}
	require.NoError(t, repo.CreateBatch(context.Background(), tx, sessions))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, sessions[0].ID)
	assert.NotEqual(t, sessions[0].ID, sessions[1].ID)
	assert.Equal(t, models.SessionStatusActive, sessions[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListByMeetingBetween(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + sessionColumns + " FROM sessions WHERE meeting_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC")).
		WithArgs("room-1", at.Add(-time.Hour), at.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow("s1", "e1", "t1", "st1", at, "ACTIVE", "room-1", nil, at, at))

	sessions, err := repo.ListByMeetingBetween(context.Background(), nil, "room-1", at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "room-1", sessions[0].MeetingValue())
	assert.Nil(t, sessions[0].ExitFormNotes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListAppliesFilter(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + sessionColumns + " FROM sessions WHERE tutor_id = $1 AND status = $2 AND date >= $3 ORDER BY date ASC LIMIT 10 OFFSET 10")).
		WithArgs("t1", models.SessionStatusActive, from).
		WillReturnRows(sqlmock.NewRows(sessionRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sessions WHERE tutor_id = $1")).
		WithArgs("t1", models.SessionStatusActive, from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	_, total, err := repo.List(context.Background(), models.SessionFilter{
		TutorID:  "t1",
		Status:   models.SessionStatusActive,
		From:     &from,
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryUpdateStatusKeepsNotesWhenNil(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET status = $2, exit_form_notes = COALESCE($3, exit_form_notes)")).
		WithArgs("s1", models.SessionStatusCancelled, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "s1", models.SessionStatusCancelled, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
