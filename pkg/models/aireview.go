package models

import "time"

// ReviewRole is the speaker of an AIReview row. Currently always assistant,
// kept as a type so a future user/system turn does not require a migration.
type ReviewRole string

// RoleAssistant is the only role the review loop currently produces.
const RoleAssistant ReviewRole = "assistant"

// AIReview is one row per LLM turn within a run's review loop. Rows within
// a single PRRunID are ordered by ID ascending and form a contiguous,
// dense sequence of iterations; if a loop aborts early the rows already
// written remain for audit.
type AIReview struct {
	ID        int64      `db:"id" json:"id"`
	PRRunID   int64      `db:"pr_run_id" json:"pr_run_id"`
	Role      ReviewRole `db:"role" json:"role"`
	Content   string     `db:"content" json:"content"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
