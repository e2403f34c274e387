package review

import (
	"fmt"
	"strings"
)

// rolePreamble is the fixed opening every review prompt carries,
// centralizing the prompt text the way a named template would rather
// than composing it ad hoc at each call site.
const rolePreamble = `You are reviewing a pull request on behalf of an automated guard. Read the PR description, the file diffs, and any runtime observations provided below, then answer the questions at the end.`

// tailTemplate is the fixed closing instruction, parameterized by the
// numbered question list; it names the action tokens the loop understands.
const tailTemplate = `Questions:
%s

End your reply with a single line, exactly in this form:
ACTION: <token>

where <token> is one of: re-run, re-run-sandbox, re-run-code, none, escalate.`

// FileDiff is one file changed by the PR, paired with its patch.
type FileDiff struct {
	Filename string
	Diff     string
}

// buildPrompt composes the per-iteration prompt in the fixed order: role
// preamble, PR title/body, prior iteration history, file diffs, optional
// run_results, optional analysis_results, numbered questions, and the
// fixed tail.
func buildPrompt(prTitle, prBody string, history []string, diffs []FileDiff, runResults, analysisResults string, questions []string) string {
	var sb strings.Builder

	sb.WriteString(rolePreamble)
	sb.WriteString("\n\n## Pull Request\n")
	fmt.Fprintf(&sb, "Title: %s\n\n%s\n", prTitle, prBody)

	if len(history) > 0 {
		sb.WriteString("\n## Prior Review Iterations\n")
		sb.WriteString(strings.Join(history, "\n---\n"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n## File Diffs\n")
	for _, d := range diffs {
		fmt.Fprintf(&sb, "### %s\n%s\n", d.Filename, d.Diff)
	}

	if runResults != "" {
		sb.WriteString("\n## Run Results\n")
		sb.WriteString(runResults)
		sb.WriteString("\n")
	}

	if analysisResults != "" {
		sb.WriteString("\n## Analysis Results\n")
		sb.WriteString(analysisResults)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf(tailTemplate, numberedList(questions)))

	return sb.String()
}

func numberedList(items []string) string {
	var sb strings.Builder
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, item)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// PreRunQuestions are asked during the pre-run code review, over diffs
// alone.
var PreRunQuestions = []string{
	"Does this PR request or use any elevated permissions?",
	"Could this code produce unexpected network side effects?",
	"Are there any suspicious or obfuscated operations in the diff?",
}

// PostRunQuestions are asked during the post-run sandbox review, over
// diffs plus observed runtime behavior.
var PostRunQuestions = []string{
	"Does the observed runtime behavior match what the diff claims to do?",
	"Are the test results adequate to validate the change?",
	"Did the network or process activity reveal anything concerning?",
}
