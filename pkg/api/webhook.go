package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/sadguard/sadguard/pkg/signature"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	eventKindHeader = "X-GitHub-Event"
)

type webhookAckResponse struct {
	Message string `json:"message"`
}

// webhookHandler verifies the inbound signature and, on success,
// dispatches the run in the background so the platform's delivery
// timeout is never at risk, returning 200 immediately. An invalid
// signature is rejected with 403 before any work starts.
func (s *Server) webhookHandler(c *echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, webhookAckResponse{Message: "could not read body"})
	}

	if err := signature.Verify(body, c.Request().Header.Get(signatureHeader), s.webhookSecret); err != nil {
		return c.JSON(http.StatusForbidden, webhookAckResponse{Message: "Invalid signature"})
	}

	eventKind := c.Request().Header.Get(eventKindHeader)

	go func() {
		if err := s.orchestrator.HandleWebhook(context.Background(), eventKind, body); err != nil {
			slog.Error("webhook handling failed", "event_kind", eventKind, "error", err)
		}
	}()

	return c.JSON(http.StatusOK, webhookAckResponse{Message: "Event received"})
}

// webhookTestHandler is a liveness probe the platform's webhook UI can
// ping manually.
func (s *Server) webhookTestHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, webhookAckResponse{Message: "Webhook is working!"})
}
