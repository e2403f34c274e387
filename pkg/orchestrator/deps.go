package orchestrator

import (
	"context"
	"time"

	"github.com/sadguard/sadguard/pkg/container"
	"github.com/sadguard/sadguard/pkg/models"
	"github.com/sadguard/sadguard/pkg/platform"
	"github.com/sadguard/sadguard/pkg/recipe"
)

// Comment markers embedded in each of the three upserted orchestrator
// comments (progress, code review, sandbox review) so the upsert protocol
// can relocate them after a cached id is lost. Plain one-off comments
// posted with CreateComment carry no marker.
const (
	markerProgress      = "<!-- sadguard-progress -->"
	markerCodeReview    = "<!-- sadguard-code-review -->"
	markerSandboxReview = "<!-- sadguard-sandbox-review -->"
)

// PlatformClient is the subset of pkg/platform's Client the orchestrator
// depends on.
type PlatformClient interface {
	ListPRFiles(ctx context.Context, owner, repo string, prNumber int) ([]platform.FileChange, error)
	CreateComment(ctx context.Context, owner, repo string, prNumber int, body string) (int64, error)
	UpsertMarkedComment(ctx context.Context, owner, repo string, prNumber int, body, marker string, knownID *int64) (int64, error)
}

// WorkspaceManager is the subset of pkg/workspace's Manager the
// orchestrator depends on.
type WorkspaceManager interface {
	WithWorkspace(ctx context.Context, fn func(path string) error) error
	CloneBranch(ctx context.Context, repoURL, branch, dest string) error
}

// RecipeResolver resolves the build/test recipe for a cloned workspace.
type RecipeResolver func(workspaceDir string) (*recipe.Recipe, error)

// ContainerDriver is the subset of pkg/container's Driver the
// orchestrator depends on.
type ContainerDriver interface {
	BuildImage(ctx context.Context, image, contextPath, dockerfileRel string) error
	RunWithStreaming(ctx context.Context, image string, opts container.RunOptions) (*container.RunResult, error)
}

// Completer is the subset of pkg/llm's Client the orchestrator depends
// on, shared with pkg/review.
type Completer interface {
	Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// RunStore is the subset of store.PRRunStore the orchestrator depends on.
type RunStore interface {
	Create(ctx context.Context, run *models.PRRun) error
	SetStatus(ctx context.Context, id int64, status models.RunStatus) error
	SetImageName(ctx context.Context, id int64, imageName string) error
	SetProgressCommentID(ctx context.Context, id int64, commentID int64) error
	SetCodeReviewCommentID(ctx context.Context, id int64, commentID int64) error
	SetSandboxReviewCommentID(ctx context.Context, id int64, commentID int64) error
	Fail(ctx context.Context, id int64, status models.RunStatus, notes string) error
	Finalize(ctx context.Context, id int64, exitCode int) error
}

// EventStore is the subset of store.PREventStore the orchestrator depends
// on.
type EventStore interface {
	Create(ctx context.Context, event *models.PREvent) error
}

// ReviewStore is the subset of store.AIReviewStore the orchestrator
// depends on.
type ReviewStore interface {
	Append(ctx context.Context, review *models.AIReview) error
}

// Config bundles the orchestrator's tunables, loaded from pkg/config.
type Config struct {
	ContainerRunTimeout  time.Duration
	LLMRequestTimeout    time.Duration
	ReviewMaxIterations  int
	ProgressLogThrottle  time.Duration
	ProgressStatThrottle time.Duration
}

// Dependencies bundles every collaborator the orchestrator needs.
type Dependencies struct {
	Platform  PlatformClient
	Workspace WorkspaceManager
	Recipe    RecipeResolver
	Container ContainerDriver
	LLM       Completer
	Runs      RunStore
	Events    EventStore
	Reviews   ReviewStore
	Config    Config
}
