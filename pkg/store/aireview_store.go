package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sadguard/sadguard/pkg/models"
)

// AIReviewStore persists one row per LLM turn within a run's review loop.
type AIReviewStore struct {
	db *sqlx.DB
}

// NewAIReviewStore creates an AIReviewStore backed by db.
func NewAIReviewStore(db *sqlx.DB) *AIReviewStore {
	return &AIReviewStore{db: db}
}

// Append inserts the next AIReview row for a run. Rows are never updated
// in place; a loop abort simply stops calling Append, leaving the rows
// already written intact for audit.
func (s *AIReviewStore) Append(ctx context.Context, review *models.AIReview) error {
	if review.Role == "" {
		review.Role = models.RoleAssistant
	}

	const q = `
		INSERT INTO ai_reviews (pr_run_id, role, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	row := s.db.QueryRowxContext(ctx, q, review.PRRunID, review.Role, review.Content)
	if err := row.Scan(&review.ID, &review.CreatedAt); err != nil {
		return fmt.Errorf("insert ai_review: %w", err)
	}
	return nil
}

// ListByRun returns every AIReview for a run, ordered by id ascending —
// i.e. in iteration order.
func (s *AIReviewStore) ListByRun(ctx context.Context, prRunID int64) ([]*models.AIReview, error) {
	const q = `
		SELECT id, pr_run_id, role, content, created_at
		FROM ai_reviews
		WHERE pr_run_id = $1
		ORDER BY id ASC`

	var rows []*models.AIReview
	if err := s.db.SelectContext(ctx, &rows, q, prRunID); err != nil {
		return nil, fmt.Errorf("list ai_reviews: %w", err)
	}
	return rows, nil
}
