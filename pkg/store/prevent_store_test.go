package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sadguard/sadguard/pkg/models"
)

func TestPREventStore_Create(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPREventStore(db)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO pr_events`).
		WithArgs("acme/widgets", models.EventCloneError, 42, []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(1), now))

	event := &models.PREvent{
		RepoFullName: "acme/widgets",
		EventKind:    models.EventCloneError,
		PRNumber:     42,
	}
	require.NoError(t, store.Create(context.Background(), event))
	require.Equal(t, int64(1), event.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
