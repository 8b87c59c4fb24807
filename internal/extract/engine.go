package extract

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/furgoplaza/enrich-cli/internal/fault"
	"github.com/furgoplaza/enrich-cli/internal/model"
	"github.com/furgoplaza/enrich-cli/internal/resilience"
	"github.com/furgoplaza/enrich-cli/pkg/anthropic"
)

// Engine resolves a pipeline's config, compiles its prompt and runs it
// through the model. Every failure it returns carries a fault code.
type Engine struct {
	client  anthropic.Client
	configs *ConfigProvider
}

// NewEngine creates an extraction engine.
func NewEngine(client anthropic.Client, configs *ConfigProvider) *Engine {
	return &Engine{client: client, configs: configs}
}

// Run executes the pipeline's prompt against vars and returns the model's
// text reply.
func (e *Engine) Run(ctx context.Context, pipeline model.PipelineType, vars Vars) (string, error) {
	if e.client == nil {
		return "", fault.New(fault.CodeConfig, "no model client configured")
	}

	cfg, err := e.configs.Get(ctx, pipeline)
	if err != nil {
		return "", err
	}

	messages, err := Compile(cfg, vars)
	if err != nil {
		return "", err
	}

	temp := cfg.Temperature
	completion, err := e.client.Complete(ctx, anthropic.CompletionRequest{
		Model:       cfg.ModelName,
		MaxTokens:   cfg.MaxOutputTokens,
		Temperature: &temp,
		Messages:    messages,
	})
	if err != nil {
		return "", classify(err)
	}

	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return "", fault.New(fault.CodeUnknown, "model returned an empty completion")
	}

	zap.L().Debug("extraction completed",
		zap.String("pipeline", string(pipeline)),
		zap.String("model", completion.Model),
		zap.Int64("input_tokens", completion.Usage.InputTokens),
		zap.Int64("output_tokens", completion.Usage.OutputTokens),
	)
	return text, nil
}

// classify maps a model-call failure onto the fault taxonomy.
func classify(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return fault.Wrap(fault.FromStatus(apiErr.StatusCode), err, "model request rejected")
	}
	if errors.Is(err, context.DeadlineExceeded) || resilience.IsTransient(err) {
		return fault.Wrap(fault.CodeNetwork, err, "model request failed")
	}
	return fault.Wrap(fault.CodeUnknown, err, "model request failed")
}
