package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

func TestNotificationRepositoryCreate(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer raw.Close()
	repo := NewNotificationRepository(sqlx.NewDb(raw, "sqlmock"))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).WillReturnResult(sqlmock.NewResult(1, 1))
	n := &models.Notification{ProfileID: "p1", Type: models.NotificationTypeMatchProposed, Payload: types.JSONText(`{"match_id":"m1"}`)}
	require.NoError(t, repo.Create(context.Background(), n))
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryListClampsLimit(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer raw.Close()
	repo := NewNotificationRepository(sqlx.NewDb(raw, "sqlmock"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, profile_id, type, payload, created_at FROM notifications WHERE profile_id = $1")).
		WithArgs("p1", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "profile_id", "type", "payload", "created_at"}))

	_, err = repo.ListByProfile(context.Background(), "p1", 500)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
