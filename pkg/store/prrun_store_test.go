package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadguard/sadguard/pkg/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestPRRunStore_Create(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPRRunStore(db)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO pr_runs`).
		WithArgs("acme/widgets", 42, models.RunStatusBuilding, "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))

	run := &models.PRRun{RepoFullName: "acme/widgets", PRNumber: 42}
	require.NoError(t, store.Create(context.Background(), run))
	assert.Equal(t, int64(1), run.ID)
	assert.Equal(t, models.RunStatusBuilding, run.RunStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPRRunStore_Get_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPRRunStore(db)

	mock.ExpectQuery(`SELECT .* FROM pr_runs WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "repo_full_name", "pr_number", "run_status", "image_name",
			"progress_comment_id", "code_review_comment_id", "sandbox_review_comment_id",
			"created_at", "finished_at", "exit_code", "notes",
		}))

	_, err := store.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPRRunStore_Finalize(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPRRunStore(db)

	mock.ExpectExec(`UPDATE pr_runs`).
		WithArgs(int64(1), models.RunStatusCompleted, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Finalize(context.Background(), 1, 0))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPRRunStore_Fail(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPRRunStore(db)

	mock.ExpectExec(`UPDATE pr_runs`).
		WithArgs(int64(1), models.RunStatusCloneError, "branch not found").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Fail(context.Background(), 1, models.RunStatusCloneError, "branch not found"))
	require.NoError(t, mock.ExpectationsWereMet())
}
