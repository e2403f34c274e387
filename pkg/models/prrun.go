package models

import "time"

// RunStatus is the terminal/non-terminal status of a PRRun.
type RunStatus string

// Run statuses. A run is terminal iff FinishedAt is set.
const (
	RunStatusBuilding          RunStatus = "building"
	RunStatusRunning           RunStatus = "running"
	RunStatusCompleted         RunStatus = "completed"
	RunStatusBuildError        RunStatus = "build_error"
	RunStatusContainerRunError RunStatus = "container_run_error"
	RunStatusCloneError        RunStatus = "clone_error"
)

// PRRun is the unit of work created once per webhook attempt. The three
// comment-id fields are populated on first create and reused for every
// later edit within the life of the run.
type PRRun struct {
	ID                     int64      `db:"id" json:"id"`
	RepoFullName           string     `db:"repo_full_name" json:"repo_full_name"`
	PRNumber               int        `db:"pr_number" json:"pr_number"`
	RunStatus              RunStatus  `db:"run_status" json:"run_status"`
	ImageName              string     `db:"image_name" json:"image_name"`
	ProgressCommentID      *int64     `db:"progress_comment_id" json:"progress_comment_id,omitempty"`
	CodeReviewCommentID    *int64     `db:"code_review_comment_id" json:"code_review_comment_id,omitempty"`
	SandboxReviewCommentID *int64     `db:"sandbox_review_comment_id" json:"sandbox_review_comment_id,omitempty"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	FinishedAt             *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	ExitCode               *int       `db:"exit_code" json:"exit_code,omitempty"`
	Notes                  *string    `db:"notes" json:"notes,omitempty"`
}

// IsTerminal reports whether the run has reached a final status.
func (r *PRRun) IsTerminal() bool {
	return r.FinishedAt != nil
}
