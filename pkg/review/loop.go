// Package review runs the bounded iterative LLM review over a PR's file
// diffs, parsing each response's trailing ACTION token to decide whether
// to continue.
package review

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Action is the continuation token parsed from the end of an LLM
// response.
type Action string

const (
	ActionRerun        Action = "re-run"
	ActionRerunSandbox Action = "re-run-sandbox"
	ActionRerunCode    Action = "re-run-code"
	ActionNone         Action = "none"
	ActionEscalate     Action = "escalate"

	defaultMaxIterations = 3
)

// terminalActions are the tokens that end the loop.
var terminalActions = map[Action]bool{
	ActionNone:     true,
	ActionEscalate: true,
}

var actionLineRe = regexp.MustCompile(`(?m)^ACTION:\s*(\S+)\s*$`)

// Completer is the subset of the LLM client the loop depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// Iteration is one completed turn of the review loop.
type Iteration struct {
	Iteration int
	Content   string
	Action    Action
}

// Store persists one iteration's content as it completes.
type Store func(ctx context.Context, iteration int, content string) error

// Input bundles the parameters for a single loop invocation.
type Input struct {
	PRTitle         string
	PRBody          string
	Diffs           []FileDiff
	RunResults      string
	AnalysisResults string
	Questions       []string
	MaxIterations   int
	RequestTimeout  time.Duration
}

// Run drives the bounded iterative review described by input, calling
// store after each completion. It returns the ordered iteration records
// even if the loop is aborted by an LLM error, since prior iterations
// remain valid audit trail.
func Run(ctx context.Context, completer Completer, input Input, store Store) ([]Iteration, error) {
	maxIterations := input.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	var history []string
	var records []Iteration

	for i := 1; i <= maxIterations; i++ {
		prompt := buildPrompt(input.PRTitle, input.PRBody, history, input.Diffs, input.RunResults, input.AnalysisResults, input.Questions)

		content, err := completer.Complete(ctx, prompt, input.RequestTimeout)
		if err != nil {
			return records, err
		}

		if store != nil {
			if err := store(ctx, i, content); err != nil {
				return records, err
			}
		}

		history = append(history, content)
		action := parseAction(content)
		records = append(records, Iteration{Iteration: i, Content: content, Action: action})

		if terminalActions[action] || action == "" {
			break
		}
	}

	return records, nil
}

// parseAction returns the last "ACTION: <token>" line's token, or the
// empty Action if none is found.
func parseAction(content string) Action {
	matches := actionLineRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return ""
	}
	last := matches[len(matches)-1][1]
	return Action(strings.ToLower(last))
}
