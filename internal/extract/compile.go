package extract

import (
	"regexp"
	"strings"

	"github.com/furgoplaza/enrich-cli/internal/fault"
	"github.com/furgoplaza/enrich-cli/internal/model"
	"github.com/furgoplaza/enrich-cli/pkg/anthropic"
)

// Vars holds the placeholder substitutions available to prompt templates.
// Keys are placeholder names without braces (nombre, ciudad, provincia,
// evidencia, comparables, vehiculo).
type Vars map[string]string

var placeholderRe = regexp.MustCompile(`\{\{([a-z_]+)\}\}`)

// Compile turns an extraction config into the ordered message list sent to
// the model. Each segment's template is rendered against vars; placeholders
// without a value stay in the text verbatim. A config with no segments, or
// with none marked required, is a CONFIG_ERROR.
func Compile(cfg *model.ExtractionConfig, vars Vars) ([]anthropic.Message, error) {
	if cfg == nil || len(cfg.Segments) == 0 {
		return nil, fault.New(fault.CodeConfig, "extraction config has no prompt segments")
	}
	if !cfg.HasRequiredSegment() {
		return nil, fault.New(fault.CodeConfig, "extraction config has no required prompt segment")
	}
	if cfg.ModelName == "" {
		return nil, fault.New(fault.CodeConfig, "extraction config has no model name")
	}

	segments := cfg.SortedSegments()
	messages := make([]anthropic.Message, 0, len(segments))
	for _, seg := range segments {
		messages = append(messages, anthropic.Message{
			Role:    seg.Role,
			Content: render(seg.ContentTemplate, vars),
		})
	}
	return messages, nil
}

func render(template string, vars Vars) string {
	out := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.Trim(match, "{}")
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})
	return strings.TrimSpace(out)
}
