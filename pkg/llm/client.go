// Package llm wraps the Anthropic Messages API behind the single
// synchronous operation the review loop needs.
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultModel = anthropic.ModelClaudeSonnet4_5

// Client completes prompts against a single configured model.
type Client struct {
	inner *anthropic.Client
	model anthropic.Model
}

// NewClient builds a Client authenticated with apiKey.
func NewClient(apiKey string) *Client {
	return newClient(option.WithAPIKey(apiKey))
}

func newClient(opts ...option.RequestOption) *Client {
	c := anthropic.NewClient(opts...)
	return &Client{inner: &c, model: defaultModel}
}

// Complete sends prompt as a single user message and returns the
// concatenated text of the response, bounded by timeout. Failures are
// returned as *Error.
func (c *Client) Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	message, err := c.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}, option.WithRequestTimeout(timeout))
	if err != nil {
		return "", &Error{Err: err}
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
