// Package extract compiles extraction prompts, runs them through the model,
// and parses the typed results the pipelines persist.
package extract

import (
	"context"
	_ "embed"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/furgoplaza/enrich-cli/internal/fault"
	"github.com/furgoplaza/enrich-cli/internal/model"
	"github.com/furgoplaza/enrich-cli/internal/store"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ConfigSource reads stored extraction configs. Satisfied by store.Store.
type ConfigSource interface {
	GetExtractionConfig(ctx context.Context, pipeline model.PipelineType) (*model.ExtractionConfig, error)
}

// ConfigProvider resolves the extraction config for a pipeline: the stored
// config when one exists, the built-in default otherwise.
type ConfigProvider struct {
	source   ConfigSource
	defaults map[model.PipelineType]model.ExtractionConfig
}

// NewConfigProvider creates a provider backed by src. A nil src serves
// defaults only.
func NewConfigProvider(src ConfigSource) (*ConfigProvider, error) {
	defaults := make(map[model.PipelineType]model.ExtractionConfig)
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		return nil, eris.Wrap(err, "parse built-in extraction defaults")
	}
	return &ConfigProvider{source: src, defaults: defaults}, nil
}

// Get returns the config for pipeline. A pipeline with neither a stored nor
// a default config is a CONFIG_ERROR.
func (p *ConfigProvider) Get(ctx context.Context, pipeline model.PipelineType) (*model.ExtractionConfig, error) {
	if !pipeline.Valid() {
		return nil, fault.New(fault.CodeConfig, "unknown pipeline "+string(pipeline))
	}

	if p.source != nil {
		cfg, err := p.source.GetExtractionConfig(ctx, pipeline)
		switch {
		case err == nil:
			return cfg, nil
		case errors.Is(err, store.ErrNotFound):
			zap.L().Debug("no stored extraction config, using default",
				zap.String("pipeline", string(pipeline)))
		default:
			return nil, fault.Wrap(fault.CodeConfig, err, "load extraction config")
		}
	}

	cfg, ok := p.defaults[pipeline]
	if !ok {
		return nil, fault.New(fault.CodeConfig, "no extraction config for pipeline "+string(pipeline))
	}
	return &cfg, nil
}
