// Package models holds the persisted entities owned by the PR run
// orchestrator: PREvent, PRRun, and AIReview.
package models

import "time"

// EventKind is a closed vocabulary of PREvent tags.
type EventKind string

// Event kinds recorded by the orchestrator.
const (
	EventPROpened              EventKind = "PR_OPENED"
	EventSadguardConfigModified EventKind = "SADGUARD_CONFIG_MODIFIED"
	EventCloneError             EventKind = "clone_error"
	EventBuildError              EventKind = "build_error"
	EventContainerRunError       EventKind = "container_run_error"
	EventTestsComplete           EventKind = "TESTS_COMPLETE"
)

// PREvent is an append-only audit record of a significant milestone in a
// run's lifecycle. Created by the orchestrator; never updated or deleted.
type PREvent struct {
	ID            int64             `db:"id" json:"id"`
	RepoFullName  string            `db:"repo_full_name" json:"repo_full_name"`
	EventKind     EventKind         `db:"event_kind" json:"event_kind"`
	PRNumber      int               `db:"pr_number" json:"pr_number"`
	Extra         map[string]string `db:"-" json:"extra,omitempty"`
	ExtraJSON     []byte            `db:"extra" json:"-"`
	Timestamp     time.Time         `db:"timestamp" json:"timestamp"`
}
