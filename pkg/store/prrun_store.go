package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sadguard/sadguard/pkg/models"
)

// PRRunStore persists PRRun rows: one per webhook-triggered run.
type PRRunStore struct {
	db *sqlx.DB
}

// NewPRRunStore creates a PRRunStore backed by db.
func NewPRRunStore(db *sqlx.DB) *PRRunStore {
	return &PRRunStore{db: db}
}

// Create inserts a new PRRun in RunStatusBuilding, before the image build
// starts, per the orchestrator's dispatch contract.
func (s *PRRunStore) Create(ctx context.Context, run *models.PRRun) error {
	if run.RunStatus == "" {
		run.RunStatus = models.RunStatusBuilding
	}

	const q = `
		INSERT INTO pr_runs (repo_full_name, pr_number, run_status, image_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	row := s.db.QueryRowxContext(ctx, q, run.RepoFullName, run.PRNumber, run.RunStatus, run.ImageName)
	if err := row.Scan(&run.ID, &run.CreatedAt); err != nil {
		return fmt.Errorf("insert pr_run: %w", err)
	}
	return nil
}

// Get fetches a PRRun by id. Returns ErrNotFound if no row matches.
func (s *PRRunStore) Get(ctx context.Context, id int64) (*models.PRRun, error) {
	const q = `
		SELECT id, repo_full_name, pr_number, run_status, image_name,
		       progress_comment_id, code_review_comment_id, sandbox_review_comment_id,
		       created_at, finished_at, exit_code, notes
		FROM pr_runs WHERE id = $1`

	var run models.PRRun
	if err := s.db.GetContext(ctx, &run, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get pr_run: %w", err)
	}
	return &run, nil
}

// SetStatus transitions run_status without touching finished_at — used
// for the building→running transition on container start.
func (s *PRRunStore) SetStatus(ctx context.Context, id int64, status models.RunStatus) error {
	const q = `UPDATE pr_runs SET run_status = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, q, id, status); err != nil {
		return fmt.Errorf("update pr_run status: %w", err)
	}
	return nil
}

// SetImageName records the built image tag.
func (s *PRRunStore) SetImageName(ctx context.Context, id int64, imageName string) error {
	const q = `UPDATE pr_runs SET image_name = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, q, id, imageName); err != nil {
		return fmt.Errorf("update pr_run image_name: %w", err)
	}
	return nil
}

// SetProgressCommentID records the progress comment id. Once set it is
// never expected to change for the run's lifetime; Get reads it back. The
// orchestrator keeps the id in memory during a run and writes it here
// once, when the comment is first created.
func (s *PRRunStore) SetProgressCommentID(ctx context.Context, id int64, commentID int64) error {
	const q = `UPDATE pr_runs SET progress_comment_id = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, q, id, commentID); err != nil {
		return fmt.Errorf("update pr_run progress_comment_id: %w", err)
	}
	return nil
}

// SetCodeReviewCommentID caches the code-review comment id.
func (s *PRRunStore) SetCodeReviewCommentID(ctx context.Context, id int64, commentID int64) error {
	const q = `UPDATE pr_runs SET code_review_comment_id = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, q, id, commentID); err != nil {
		return fmt.Errorf("update pr_run code_review_comment_id: %w", err)
	}
	return nil
}

// SetSandboxReviewCommentID caches the sandbox-review comment id.
func (s *PRRunStore) SetSandboxReviewCommentID(ctx context.Context, id int64, commentID int64) error {
	const q = `UPDATE pr_runs SET sandbox_review_comment_id = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, q, id, commentID); err != nil {
		return fmt.Errorf("update pr_run sandbox_review_comment_id: %w", err)
	}
	return nil
}

// Fail transitions a run to a terminal error status (build_error,
// clone_error, container_run_error), stamping finished_at and an optional
// note with the failure text. exit_code is left unset, per spec: it is
// only recorded when the container actually reached exited/dead or was
// stopped on timeout.
func (s *PRRunStore) Fail(ctx context.Context, id int64, status models.RunStatus, notes string) error {
	const q = `
		UPDATE pr_runs
		SET run_status = $2, finished_at = now(), notes = $3
		WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, q, id, status, notes); err != nil {
		return fmt.Errorf("fail pr_run: %w", err)
	}
	return nil
}

// Finalize marks a run completed with its container exit code, per the
// orchestrator's finalize step.
func (s *PRRunStore) Finalize(ctx context.Context, id int64, exitCode int) error {
	const q = `
		UPDATE pr_runs
		SET run_status = $2, finished_at = now(), exit_code = $3
		WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, q, id, models.RunStatusCompleted, exitCode); err != nil {
		return fmt.Errorf("finalize pr_run: %w", err)
	}
	return nil
}
