package orchestrator

import "github.com/go-playground/validator/v10"

var payloadValidator = validator.New()

// WebhookPayload is the subset of a GitHub pull_request webhook the
// orchestrator inspects.
type WebhookPayload struct {
	Action      string      `json:"action" validate:"required"`
	Number      int         `json:"number" validate:"required"`
	PullRequest PullRequest `json:"pull_request" validate:"required"`
	Repository  Repository  `json:"repository" validate:"required"`
}

// Validate reports whether the payload carries the fields the
// orchestrator needs before ShouldRun/Run ever look at them.
func (p WebhookPayload) Validate() error {
	return payloadValidator.Struct(p)
}

// PullRequest is the subset of a GitHub pull request object used to
// dispatch and describe a run.
type PullRequest struct {
	Number int    `json:"number" validate:"required"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url"` // PR API URL, for listPRFiles
	Head   Ref    `json:"head" validate:"required"`
	Base   Ref    `json:"base"`
}

// Ref identifies one side of a pull request (head or base).
type Ref struct {
	Ref string `json:"ref" validate:"required"`
	SHA string `json:"sha"`
}

// Repository is the subset of a GitHub repository object used to locate
// the clone URL and owner/name pair.
type Repository struct {
	FullName string `json:"full_name" validate:"required,contains=/"`
	CloneURL string `json:"clone_url" validate:"required,url"`
}

// actionsTriggeringRun are the pull_request webhook actions that start a
// new PR run. Actions like "closed" or "labeled" are acknowledged but do
// no work.
var actionsTriggeringRun = map[string]bool{
	"opened":      true,
	"synchronize": true,
	"reopened":    true,
}

// Owner returns the "owner" half of a "owner/repo" full name.
func (r Repository) Owner() string {
	for i, c := range r.FullName {
		if c == '/' {
			return r.FullName[:i]
		}
	}
	return r.FullName
}

// Name returns the "repo" half of a "owner/repo" full name.
func (r Repository) Name() string {
	for i, c := range r.FullName {
		if c == '/' {
			return r.FullName[i+1:]
		}
	}
	return ""
}
