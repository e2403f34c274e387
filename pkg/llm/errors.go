package llm

import "fmt"

// Error wraps a failure from the LLM provider. Callers in the review loop
// treat it as a soft failure: record it and exit early rather than crash
// the run.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("llm request failed: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }
