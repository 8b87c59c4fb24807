package model

import "sort"

// PipelineType identifies one enrichment pipeline.
type PipelineType string

const (
	PipelineDescription PipelineType = "descripcion"
	PipelineServices    PipelineType = "servicios"
	PipelinePhotos      PipelineType = "fotos"
	PipelineValuation   PipelineType = "tasacion"
)

// Valid reports whether p names a known pipeline.
func (p PipelineType) Valid() bool {
	switch p {
	case PipelineDescription, PipelineServices, PipelinePhotos, PipelineValuation:
		return true
	}
	return false
}

// PromptSegment is one role-tagged prompt template in an extraction config.
type PromptSegment struct {
	Role            string `json:"role" yaml:"role"`
	ContentTemplate string `json:"content_template" yaml:"content_template"`
	Order           int    `json:"order" yaml:"order"`
	Required        bool   `json:"required" yaml:"required"`
}

// ExtractionConfig holds per-pipeline model and prompt configuration. Stored
// externally and read-only to the pipeline; a built-in default applies when
// no stored config exists.
type ExtractionConfig struct {
	ModelName       string          `json:"model_name" yaml:"model_name"`
	Temperature     float64         `json:"temperature" yaml:"temperature"`
	MaxOutputTokens int64           `json:"max_output_tokens" yaml:"max_output_tokens"`
	Segments        []PromptSegment `json:"prompt_segments" yaml:"prompt_segments"`
}

// SortedSegments returns the prompt segments ordered by their Order field,
// without mutating the config.
func (c ExtractionConfig) SortedSegments() []PromptSegment {
	out := make([]PromptSegment, len(c.Segments))
	copy(out, c.Segments)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// HasRequiredSegment reports whether at least one segment is marked required.
func (c ExtractionConfig) HasRequiredSegment() bool {
	for _, s := range c.Segments {
		if s.Required {
			return true
		}
	}
	return false
}
