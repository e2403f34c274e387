// Package orchestrator wires the Guard's collaborators into the PR run
// state machine: received → verified → dispatched → clone → recipe →
// build → start → (logs ∥ stats ∥ poll) → extract → mitm-review →
// tcpdump-review → pre-run-LLM-loop → post-run-LLM-loop → finalize → done.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sadguard/sadguard/pkg/container"
	"github.com/sadguard/sadguard/pkg/models"
	"github.com/sadguard/sadguard/pkg/platform"
	"github.com/sadguard/sadguard/pkg/review"
	"github.com/sadguard/sadguard/pkg/section"
	"github.com/sadguard/sadguard/pkg/workspace"
)

// Orchestrator runs PR webhooks to completion, one call to Run per
// delivery; runs for distinct PRs proceed in parallel with no mutual
// exclusion.
type Orchestrator struct {
	deps Dependencies
}

// New builds an Orchestrator over deps.
func New(deps Dependencies) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// Dispatch reports whether an event kind can start a run at all: only
// pull_request events qualify. The payload's action is checked separately
// by ShouldRun.
func (o *Orchestrator) Dispatch(eventKind string) bool {
	return eventKind == "pull_request"
}

// ShouldRun reports whether a parsed pull_request payload's action
// warrants starting a run.
func ShouldRun(payload WebhookPayload) bool {
	return actionsTriggeringRun[payload.Action]
}

// Run executes one PR run to completion: clone, recipe resolution,
// image build, streamed container run, section extraction, the two
// review-loop passes, and finalize. Errors from clone/build/run-start are
// terminal for this run but are not returned to the caller — they are
// recorded on the PRRun and as a PREvent per spec.
func (o *Orchestrator) Run(ctx context.Context, payload WebhookPayload) error {
	owner := payload.Repository.Owner()
	repoName := payload.Repository.Name()
	prNumber := payload.PullRequest.Number

	log := slog.With("repo", payload.Repository.FullName, "pr_number", prNumber)

	run := &models.PRRun{
		RepoFullName: payload.Repository.FullName,
		PRNumber:     prNumber,
		RunStatus:    models.RunStatusBuilding,
	}
	if err := o.deps.Runs.Create(ctx, run); err != nil {
		return fmt.Errorf("create pr_run: %w", err)
	}
	log = log.With("run_id", run.ID)

	files, err := o.deps.Platform.ListPRFiles(ctx, owner, repoName, prNumber)
	if err != nil {
		log.Warn("list PR files failed", "error", err)
	}
	if sadguardConfigModified(files) {
		o.postPlainComment(ctx, owner, repoName, prNumber,
			"⚠️ This PR modifies both `.sadguard/Dockerfile` and `.sadguard/wrapper.sh`. The run will proceed, but please double check the recipe changes.")
		_ = o.deps.Events.Create(ctx, &models.PREvent{
			RepoFullName: payload.Repository.FullName,
			EventKind:    models.EventSadguardConfigModified,
			PRNumber:     prNumber,
		})
	}

	progress := newProgressComment(ctx, o.deps.Platform, o.deps.Runs, run.ID, owner, repoName, prNumber,
		o.deps.Config.ProgressLogThrottle, o.deps.Config.ProgressStatThrottle)

	var result *container.RunResult
	var recipeLanguage string
	maxIterations := o.deps.Config.ReviewMaxIterations

	runErr := o.deps.Workspace.WithWorkspace(ctx, func(workDir string) error {
		if err := o.deps.Workspace.CloneBranch(ctx, payload.Repository.CloneURL, payload.PullRequest.Head.Ref, workDir); err != nil {
			o.failRun(ctx, run.ID, models.RunStatusCloneError, models.EventCloneError, owner, repoName, prNumber, err)
			return err
		}

		rec, err := o.deps.Recipe(workDir)
		if err != nil {
			o.failRun(ctx, run.ID, models.RunStatusBuildError, models.EventBuildError, owner, repoName, prNumber, err)
			return err
		}
		recipeLanguage = rec.Language
		runTimeout := o.deps.Config.ContainerRunTimeout
		if rec.RunTimeout > 0 {
			runTimeout = rec.RunTimeout
		}
		if rec.MaxIterations > 0 {
			maxIterations = rec.MaxIterations
		}

		image := fmt.Sprintf("sadguard/%s-pr%d:%s", repoName, prNumber, uuid.NewString())
		if err := o.deps.Runs.SetImageName(ctx, run.ID, image); err != nil {
			log.Warn("record image name failed", "error", err)
		}

		dockerfileRel, err := filepath.Rel(workDir, rec.DockerfilePath)
		if err != nil {
			dockerfileRel = ".sadguard/Dockerfile"
		}
		if err := o.deps.Container.BuildImage(ctx, image, workDir, dockerfileRel); err != nil {
			o.failRun(ctx, run.ID, models.RunStatusBuildError, models.EventBuildError, owner, repoName, prNumber, err)
			return err
		}

		if err := o.deps.Runs.SetStatus(ctx, run.ID, models.RunStatusRunning); err != nil {
			log.Warn("record running status failed", "error", err)
		}

		runResult, err := o.deps.Container.RunWithStreaming(ctx, image, container.RunOptions{
			Mount:       &container.BindMount{HostPath: workDir},
			Deadline:    runTimeout,
			OnLog:       progress.onLog,
			OnStat:      progress.onStat,
			ExposedPort: rec.DebugExposePort,
		})
		if err != nil {
			o.failRun(ctx, run.ID, models.RunStatusContainerRunError, models.EventContainerRunError, owner, repoName, prNumber, err)
			return err
		}
		result = runResult
		return nil
	})
	if runErr != nil {
		return nil
	}

	codeOutput := section.Extract(result.Logs, section.TitleCodeOutput)
	codeError := section.Extract(result.Logs, section.TitleCodeError)
	mitmLog := section.Extract(result.Logs, section.TitleMitmproxyLog)
	tcpdumpLog := section.Extract(result.Logs, section.TitleTcpdumpLog)
	netDiff := section.Extract(result.Logs, section.TitleNetworkDifference)

	mitmReview := o.reviewAnalysisSection(ctx, "mitmproxy capture", mitmLog, section.IsUsefulMitmproxy(mitmLog))
	tcpdumpReview := o.reviewAnalysisSection(ctx, "tcpdump capture", tcpdumpLog, section.IsUsefulTcpdump(tcpdumpLog))

	diffs := toFileDiffs(files)

	preRunRecords, err := review.Run(ctx, o.deps.LLM, review.Input{
		PRTitle:        payload.PullRequest.Title,
		PRBody:         payload.PullRequest.Body,
		Diffs:          diffs,
		Questions:      review.PreRunQuestions,
		MaxIterations:  maxIterations,
		RequestTimeout: o.deps.Config.LLMRequestTimeout,
	}, o.storeReview(run.ID))
	if err != nil {
		log.Warn("pre-run review loop aborted", "error", err)
	}
	o.upsertCodeReviewComment(ctx, run.ID, owner, repoName, prNumber, preRunRecords)

	analysisResults := fmt.Sprintf("Mitmproxy review:\n%s\n\nTcpdump review:\n%s\n\nNetwork difference:\n%s",
		mitmReview, tcpdumpReview, netDiff)

	postRunRecords, err := review.Run(ctx, o.deps.LLM, review.Input{
		PRTitle:         payload.PullRequest.Title,
		PRBody:          payload.PullRequest.Body,
		Diffs:           diffs,
		RunResults:      codeOutput,
		AnalysisResults: analysisResults,
		Questions:       review.PostRunQuestions,
		MaxIterations:   maxIterations,
		RequestTimeout:  o.deps.Config.LLMRequestTimeout,
	}, o.storeReview(run.ID))
	if err != nil {
		log.Warn("post-run review loop aborted", "error", err)
	}
	o.upsertSandboxReviewComment(ctx, run.ID, owner, repoName, prNumber, postRunRecords, result, mitmReview, tcpdumpReview, codeOutput, codeError)

	if err := o.deps.Runs.Finalize(ctx, run.ID, result.ExitCode); err != nil {
		log.Warn("finalize pr_run failed", "error", err)
	}
	_ = o.deps.Events.Create(ctx, &models.PREvent{
		RepoFullName: payload.Repository.FullName,
		EventKind:    models.EventTestsComplete,
		PRNumber:     prNumber,
		Extra:        map[string]string{"language": recipeLanguage},
	})

	return nil
}

// storeReview returns a review.Store closure that appends an AIReview row
// for runID.
func (o *Orchestrator) storeReview(runID int64) review.Store {
	return func(ctx context.Context, iteration int, content string) error {
		return o.deps.Reviews.Append(ctx, &models.AIReview{PRRunID: runID, Content: content})
	}
}

// reviewAnalysisSection asks a single LLM completion to summarize a
// capture section, skipping the call entirely when useful reports it
// doesn't carry enough content.
func (o *Orchestrator) reviewAnalysisSection(ctx context.Context, kind, body string, useful bool) string {
	if !useful {
		return fmt.Sprintf("(%s omitted: insufficient content)", kind)
	}
	prompt := fmt.Sprintf("Summarize this %s for a PR reviewer, calling out anything suspicious:\n\n%s", kind, body)
	text, err := o.deps.LLM.Complete(ctx, prompt, o.deps.Config.LLMRequestTimeout)
	if err != nil {
		return fmt.Sprintf("(%s review failed: %v)", kind, err)
	}
	return text
}

func (o *Orchestrator) failRun(ctx context.Context, runID int64, status models.RunStatus, eventKind models.EventKind, owner, repo string, prNumber int, cause error) {
	_ = o.deps.Runs.Fail(ctx, runID, status, cause.Error())
	_ = o.deps.Events.Create(ctx, &models.PREvent{
		RepoFullName: owner + "/" + repo,
		EventKind:    eventKind,
		PRNumber:     prNumber,
	})
	o.postPlainComment(ctx, owner, repo, prNumber, fmt.Sprintf("Run failed: %v", cause))
}

func (o *Orchestrator) postPlainComment(ctx context.Context, owner, repo string, prNumber int, body string) {
	if _, err := o.deps.Platform.CreateComment(ctx, owner, repo, prNumber, body); err != nil {
		slog.Warn("post comment failed", "error", err)
	}
}

func (o *Orchestrator) upsertCodeReviewComment(ctx context.Context, runID int64, owner, repo string, prNumber int, records []review.Iteration) {
	body := markerCodeReview + "\n## Iterative LLM Code Review\n\n" + renderIterations(records)
	id, err := o.deps.Platform.UpsertMarkedComment(ctx, owner, repo, prNumber, body, markerCodeReview, nil)
	if err != nil {
		slog.Warn("upsert code review comment failed", "error", err)
		return
	}
	if err := o.deps.Runs.SetCodeReviewCommentID(ctx, runID, id); err != nil {
		slog.Warn("record code review comment id failed", "error", err)
	}
}

func (o *Orchestrator) upsertSandboxReviewComment(ctx context.Context, runID int64, owner, repo string, prNumber int, records []review.Iteration, result *container.RunResult, mitmReview, tcpdumpReview, codeOutput, codeError string) {
	var body string
	body += markerSandboxReview + "\n## Iterative Sandbox Review\n\n" + renderIterations(records)
	body += fmt.Sprintf("\n\n## Sandbox Analysis\n\nExit code: %d\n\n", result.ExitCode)
	body += fmt.Sprintf("### Mitmproxy Analysis\n%s\n\n", mitmReview)
	body += fmt.Sprintf("### Tcpdump Analysis\n%s\n\n", tcpdumpReview)
	body += fmt.Sprintf("### Unit Tests\n```\n%s\n```\n\n", codeOutput)
	body += fmt.Sprintf("### Code Error\n```\n%s\n```\n", codeError)

	id, err := o.deps.Platform.UpsertMarkedComment(ctx, owner, repo, prNumber, body, markerSandboxReview, nil)
	if err != nil {
		slog.Warn("upsert sandbox review comment failed", "error", err)
		return
	}
	if err := o.deps.Runs.SetSandboxReviewCommentID(ctx, runID, id); err != nil {
		slog.Warn("record sandbox review comment id failed", "error", err)
	}
}

func renderIterations(records []review.Iteration) string {
	var out string
	for _, r := range records {
		out += fmt.Sprintf("### Iteration %d\n\n%s\n\n", r.Iteration, r.Content)
	}
	return out
}

func toFileDiffs(files []platform.FileChange) []review.FileDiff {
	diffs := make([]review.FileDiff, 0, len(files))
	for _, f := range files {
		diffs = append(diffs, review.FileDiff{Filename: f.Filename, Diff: f.Patch})
	}
	return diffs
}

// Compile-time assertion that *workspace.Manager implements
// WorkspaceManager.
var _ WorkspaceManager = (*workspace.Manager)(nil)
