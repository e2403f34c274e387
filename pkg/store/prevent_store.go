package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sadguard/sadguard/pkg/models"
)

// PREventStore persists the append-only PREvent audit log.
type PREventStore struct {
	db *sqlx.DB
}

// NewPREventStore creates a PREventStore backed by db.
func NewPREventStore(db *sqlx.DB) *PREventStore {
	return &PREventStore{db: db}
}

// Create inserts a new PREvent row. Timestamp is always set by the
// schema's now() default; a caller-supplied Timestamp is not written. ID
// and Timestamp are populated on the passed event from the inserted row.
func (s *PREventStore) Create(ctx context.Context, event *models.PREvent) error {
	extra := event.Extra
	if extra == nil {
		extra = map[string]string{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("marshal pr_event extra: %w", err)
	}

	const q = `
		INSERT INTO pr_events (repo_full_name, event_kind, pr_number, extra)
		VALUES ($1, $2, $3, $4)
		RETURNING id, timestamp`

	row := s.db.QueryRowxContext(ctx, q, event.RepoFullName, event.EventKind, event.PRNumber, extraJSON)
	if err := row.Scan(&event.ID, &event.Timestamp); err != nil {
		return fmt.Errorf("insert pr_event: %w", err)
	}
	event.ExtraJSON = extraJSON
	return nil
}

// ListByRepoAndPR returns every PREvent recorded for a given (repo, pr)
// pair, oldest first.
func (s *PREventStore) ListByRepoAndPR(ctx context.Context, repoFullName string, prNumber int) ([]*models.PREvent, error) {
	const q = `
		SELECT id, repo_full_name, event_kind, pr_number, extra, timestamp
		FROM pr_events
		WHERE repo_full_name = $1 AND pr_number = $2
		ORDER BY id ASC`

	var rows []*models.PREvent
	if err := s.db.SelectContext(ctx, &rows, q, repoFullName, prNumber); err != nil {
		return nil, fmt.Errorf("list pr_events: %w", err)
	}
	for _, ev := range rows {
		if len(ev.ExtraJSON) > 0 {
			_ = json.Unmarshal(ev.ExtraJSON, &ev.Extra)
		}
	}
	return rows, nil
}
