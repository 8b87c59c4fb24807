// Package anthropic wraps the official anthropic-sdk-go behind the narrow
// completion contract the extraction engine depends on.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Client defines the completion operation used by the pipeline.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Message is a single role-tagged message.
type Message struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// CompletionRequest carries the compiled messages and sampling parameters.
// System-role messages are lifted into the API's system prompt.
type CompletionRequest struct {
	Model       string
	MaxTokens   int64
	Temperature *float64
	Messages    []Message
}

// Completion is the result of a completion call.
type Completion struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// APIError carries the upstream HTTP status of a rejected request so callers
// can distinguish auth, quota and validation failures without depending on
// SDK error types.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic: api status %d: %s", e.StatusCode, e.Detail)
}

// Option configures the client.
type Option func(*sdkOpts)

type sdkOpts struct {
	baseURL string
}

// WithBaseURL overrides the API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(o *sdkOpts) { o.baseURL = url }
}

type sdkClient struct {
	client sdk.Client
}

// NewClient creates a completion client backed by the official SDK.
func NewClient(apiKey string, opts ...Option) Client {
	var o sdkOpts
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}

	return &sdkClient{client: sdk.NewClient(reqOpts...)}
}

func (c *sdkClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
	}

	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	if len(system) > 0 {
		params.System = []sdk.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{StatusCode: apiErr.StatusCode, Detail: apiErr.Error()}
		}
		return nil, eris.Wrap(err, "anthropic: complete")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Text != "" {
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(block.Text)
		}
	}

	return &Completion{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       text.String(),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}
