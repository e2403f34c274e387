package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
)

// HandleWebhook parses body as a pull_request webhook payload and, if the
// event kind and action warrant it, runs the full PR pipeline to
// completion. Non-pull_request events and actions that don't change the
// head (closed, labeled, ...) are acknowledged with no work.
//
// Callers that want the HTTP handler to return immediately should invoke
// this in a goroutine; clone/build/run failures are recorded on the
// PRRun/PREvent trail rather than propagated, so the errors this returns
// are a malformed or invalid payload and a failure to create the PRRun
// row.
func (o *Orchestrator) HandleWebhook(ctx context.Context, eventKind string, body []byte) error {
	if eventKind != "pull_request" {
		return nil
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("parse webhook payload: %w", err)
	}

	if !ShouldRun(payload) {
		return nil
	}

	if err := payload.Validate(); err != nil {
		return fmt.Errorf("invalid webhook payload: %w", err)
	}

	return o.Run(ctx, payload)
}
