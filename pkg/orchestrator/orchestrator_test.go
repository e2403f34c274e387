package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadguard/sadguard/pkg/container"
	"github.com/sadguard/sadguard/pkg/models"
	"github.com/sadguard/sadguard/pkg/platform"
	"github.com/sadguard/sadguard/pkg/recipe"
)

type fakePlatform struct {
	files    []platform.FileChange
	comments []string
}

func (f *fakePlatform) ListPRFiles(ctx context.Context, owner, repo string, prNumber int) ([]platform.FileChange, error) {
	return f.files, nil
}

func (f *fakePlatform) CreateComment(ctx context.Context, owner, repo string, prNumber int, body string) (int64, error) {
	f.comments = append(f.comments, body)
	return int64(len(f.comments)), nil
}

func (f *fakePlatform) UpsertMarkedComment(ctx context.Context, owner, repo string, prNumber int, body, marker string, knownID *int64) (int64, error) {
	f.comments = append(f.comments, body)
	return int64(len(f.comments)), nil
}

type fakeWorkspace struct {
	cloneErr error
}

func (f *fakeWorkspace) WithWorkspace(ctx context.Context, fn func(path string) error) error {
	return fn("/tmp/fake-workspace")
}

func (f *fakeWorkspace) CloneBranch(ctx context.Context, repoURL, branch, dest string) error {
	return f.cloneErr
}

type fakeContainerDriver struct {
	buildErr error
	runErr   error
	result   *container.RunResult
	lastOpts container.RunOptions
}

func (f *fakeContainerDriver) BuildImage(ctx context.Context, image, contextPath, dockerfileRel string) error {
	return f.buildErr
}

func (f *fakeContainerDriver) RunWithStreaming(ctx context.Context, image string, opts container.RunOptions) (*container.RunResult, error) {
	f.lastOpts = opts
	if f.runErr != nil {
		return nil, f.runErr
	}
	if opts.OnLog != nil {
		opts.OnLog("## Code Output\nall tests passed\n")
	}
	return f.result, nil
}

type fakeCompleter struct{}

func (fakeCompleter) Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	return "looks fine\nACTION: none", nil
}

type fakeRunStore struct {
	created            *models.PRRun
	failed             *models.RunStatus
	finalExit          *int
	progressCommentIDs []int64
}

func (f *fakeRunStore) Create(ctx context.Context, run *models.PRRun) error {
	run.ID = 1
	f.created = run
	return nil
}
func (f *fakeRunStore) SetStatus(ctx context.Context, id int64, status models.RunStatus) error {
	return nil
}
func (f *fakeRunStore) SetImageName(ctx context.Context, id int64, imageName string) error { return nil }
func (f *fakeRunStore) SetProgressCommentID(ctx context.Context, id int64, commentID int64) error {
	f.progressCommentIDs = append(f.progressCommentIDs, commentID)
	return nil
}
func (f *fakeRunStore) SetCodeReviewCommentID(ctx context.Context, id int64, commentID int64) error {
	return nil
}
func (f *fakeRunStore) SetSandboxReviewCommentID(ctx context.Context, id int64, commentID int64) error {
	return nil
}
func (f *fakeRunStore) Fail(ctx context.Context, id int64, status models.RunStatus, notes string) error {
	f.failed = &status
	return nil
}
func (f *fakeRunStore) Finalize(ctx context.Context, id int64, exitCode int) error {
	f.finalExit = &exitCode
	return nil
}

type fakeEventStore struct {
	events []*models.PREvent
}

func (f *fakeEventStore) Create(ctx context.Context, event *models.PREvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeReviewStore struct {
	reviews []*models.AIReview
}

func (f *fakeReviewStore) Append(ctx context.Context, review *models.AIReview) error {
	f.reviews = append(f.reviews, review)
	return nil
}

func basePayload() WebhookPayload {
	return WebhookPayload{
		Action: "opened",
		Number: 7,
		PullRequest: PullRequest{
			Number: 7,
			Title:  "Add feature",
			Body:   "Does a thing",
			Head:   Ref{Ref: "feature-branch", SHA: "abc123"},
		},
		Repository: Repository{FullName: "acme/widgets", CloneURL: "https://example.com/acme/widgets.git"},
	}
}

func newHarness() (*Orchestrator, *fakePlatform, *fakeRunStore, *fakeEventStore, *fakeContainerDriver) {
	plat := &fakePlatform{}
	runs := &fakeRunStore{}
	events := &fakeEventStore{}
	driver := &fakeContainerDriver{result: &container.RunResult{Logs: "## Code Output\nall tests passed\n", ExitCode: 0}}

	deps := Dependencies{
		Platform:  plat,
		Workspace: &fakeWorkspace{},
		Recipe: func(dir string) (*recipe.Recipe, error) {
			return &recipe.Recipe{Language: recipe.LanguagePython, DockerfilePath: dir + "/.sadguard/Dockerfile"}, nil
		},
		Container: driver,
		LLM:       fakeCompleter{},
		Runs:      runs,
		Events:    events,
		Reviews:   &fakeReviewStore{},
		Config: Config{
			ContainerRunTimeout:  time.Second,
			LLMRequestTimeout:    time.Second,
			ReviewMaxIterations:  2,
			ProgressLogThrottle:  time.Hour,
			ProgressStatThrottle: time.Hour,
		},
	}
	return New(deps), plat, runs, events, driver
}

func TestRun_HappyPathFinalizesRun(t *testing.T) {
	o, plat, runs, events, _ := newHarness()

	err := o.Run(context.Background(), basePayload())
	require.NoError(t, err)

	require.NotNil(t, runs.finalExit)
	assert.Equal(t, 0, *runs.finalExit)
	assert.NotEmpty(t, plat.comments)
	assert.Len(t, runs.progressCommentIDs, 1, "progress comment id must be persisted exactly once, on first creation")

	var sawTestsComplete bool
	for _, ev := range events.events {
		if ev.EventKind == models.EventTestsComplete {
			sawTestsComplete = true
		}
	}
	assert.True(t, sawTestsComplete)
}

func TestRun_SandboxReviewCommentCarriesAllAnalysisSections(t *testing.T) {
	o, plat, _, _, _ := newHarness()

	err := o.Run(context.Background(), basePayload())
	require.NoError(t, err)

	var sandboxComment string
	for _, c := range plat.comments {
		if strings.Contains(c, markerSandboxReview) {
			sandboxComment = c
		}
	}
	require.NotEmpty(t, sandboxComment, "expected a sandbox review comment to be posted")
	assert.Contains(t, sandboxComment, "Exit code:")
	assert.Contains(t, sandboxComment, "### Mitmproxy Analysis")
	assert.Contains(t, sandboxComment, "### Tcpdump Analysis")
	assert.Contains(t, sandboxComment, "### Unit Tests")
	assert.Contains(t, sandboxComment, "### Code Error")
}

func TestRun_CloneFailureRecordsCloneError(t *testing.T) {
	o, _, runs, events, _ := newHarness()
	o.deps.Workspace = &fakeWorkspace{cloneErr: errors.New("network unreachable")}

	err := o.Run(context.Background(), basePayload())
	require.NoError(t, err)

	require.NotNil(t, runs.failed)
	assert.Equal(t, models.RunStatusCloneError, *runs.failed)

	var sawCloneError bool
	for _, ev := range events.events {
		if ev.EventKind == models.EventCloneError {
			sawCloneError = true
		}
	}
	assert.True(t, sawCloneError)
}

func TestRun_BuildFailureRecordsBuildError(t *testing.T) {
	o, _, runs, _, driver := newHarness()
	driver.buildErr = errors.New("dockerfile syntax error")

	err := o.Run(context.Background(), basePayload())
	require.NoError(t, err)

	require.NotNil(t, runs.failed)
	assert.Equal(t, models.RunStatusBuildError, *runs.failed)
}

func TestRun_ContainerRunFailureRecordsContainerRunError(t *testing.T) {
	o, _, runs, _, driver := newHarness()
	driver.runErr = errors.New("container exited unexpectedly")

	err := o.Run(context.Background(), basePayload())
	require.NoError(t, err)

	require.NotNil(t, runs.failed)
	assert.Equal(t, models.RunStatusContainerRunError, *runs.failed)
}

func TestRun_SadguardConfigModifiedPostsWarningButProceeds(t *testing.T) {
	o, plat, runs, events, _ := newHarness()
	plat.files = []platform.FileChange{
		{Filename: ".sadguard/Dockerfile", Status: "modified"},
		{Filename: ".sadguard/wrapper.sh", Status: "modified"},
	}

	err := o.Run(context.Background(), basePayload())
	require.NoError(t, err)

	require.NotNil(t, runs.finalExit)

	var sawConfigEvent bool
	for _, ev := range events.events {
		if ev.EventKind == models.EventSadguardConfigModified {
			sawConfigEvent = true
		}
	}
	assert.True(t, sawConfigEvent)
}

func TestRun_RecipeOverridesFlowToContainerRun(t *testing.T) {
	o, _, _, _, driver := newHarness()
	o.deps.Recipe = func(dir string) (*recipe.Recipe, error) {
		return &recipe.Recipe{
			Language:        recipe.LanguagePython,
			DockerfilePath:  dir + "/.sadguard/Dockerfile",
			RunTimeout:      9 * time.Minute,
			MaxIterations:   5,
			DebugExposePort: "8081/tcp",
		}, nil
	}

	err := o.Run(context.Background(), basePayload())
	require.NoError(t, err)

	assert.Equal(t, 9*time.Minute, driver.lastOpts.Deadline)
	assert.Equal(t, "8081/tcp", driver.lastOpts.ExposedPort)
}

func TestShouldRun_OnlyTriggeringActions(t *testing.T) {
	assert.True(t, ShouldRun(WebhookPayload{Action: "opened"}))
	assert.True(t, ShouldRun(WebhookPayload{Action: "synchronize"}))
	assert.False(t, ShouldRun(WebhookPayload{Action: "closed"}))
	assert.False(t, ShouldRun(WebhookPayload{Action: "labeled"}))
}

func TestRepository_OwnerAndName(t *testing.T) {
	r := Repository{FullName: "acme/widgets"}
	assert.Equal(t, "acme", r.Owner())
	assert.Equal(t, "widgets", r.Name())
}
