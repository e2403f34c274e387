package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadguard/sadguard/pkg/models"
)

func TestAIReviewStore_Append(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewAIReviewStore(db)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO ai_reviews`).
		WithArgs(int64(7), models.RoleAssistant, "looks fine").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))

	review := &models.AIReview{PRRunID: 7, Content: "looks fine"}
	require.NoError(t, store.Append(context.Background(), review))
	assert.Equal(t, int64(1), review.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAIReviewStore_ListByRun_Ordered(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewAIReviewStore(db)

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM ai_reviews`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pr_run_id", "role", "content", "created_at"}).
			AddRow(int64(1), int64(7), models.RoleAssistant, "first", now).
			AddRow(int64(2), int64(7), models.RoleAssistant, "second", now))

	rows, err := store.ListByRun(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "first", rows[0].Content)
	assert.Equal(t, "second", rows[1].Content)
}
