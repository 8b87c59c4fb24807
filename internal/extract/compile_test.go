package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furgoplaza/enrich-cli/internal/fault"
	"github.com/furgoplaza/enrich-cli/internal/model"
)

func testConfig() *model.ExtractionConfig {
	return &model.ExtractionConfig{
		ModelName:       "claude-sonnet-4-5",
		MaxOutputTokens: 512,
		Segments: []model.PromptSegment{
			{Role: "user", Order: 2, ContentTemplate: "Área {{nombre}} en {{ciudad}}:\n\n{{evidencia}}"},
			{Role: "system", Order: 1, Required: true, ContentTemplate: "Eres redactor de fichas."},
		},
	}
}

func TestCompileOrdersSegmentsAndSubstitutes(t *testing.T) {
	messages, err := Compile(testConfig(), Vars{
		"nombre":    "Área de Requena",
		"ciudad":    "Requena",
		"evidencia": "[1] agua y luz",
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "user", messages[1].Role)
	assert.Contains(t, messages[1].Content, "Área de Requena en Requena")
	assert.Contains(t, messages[1].Content, "[1] agua y luz")
}

func TestCompileLeavesUnknownPlaceholdersLiteral(t *testing.T) {
	cfg := testConfig()
	cfg.Segments[0].ContentTemplate = "Hola {{nombre}}, dato {{desconocido}}"

	messages, err := Compile(cfg, Vars{"nombre": "X"})
	require.NoError(t, err)
	assert.Equal(t, "Hola X, dato {{desconocido}}", messages[1].Content)
}

func TestCompileNoSegmentsIsConfigError(t *testing.T) {
	cfg := &model.ExtractionConfig{ModelName: "m"}
	_, err := Compile(cfg, nil)
	require.Error(t, err)
	assert.Equal(t, fault.CodeConfig, fault.CodeOf(err))
}

func TestCompileNoRequiredSegmentIsConfigError(t *testing.T) {
	cfg := testConfig()
	for i := range cfg.Segments {
		cfg.Segments[i].Required = false
	}
	_, err := Compile(cfg, nil)
	require.Error(t, err)
	assert.Equal(t, fault.CodeConfig, fault.CodeOf(err))
}

func TestCompileNoModelNameIsConfigError(t *testing.T) {
	cfg := testConfig()
	cfg.ModelName = ""
	_, err := Compile(cfg, nil)
	require.Error(t, err)
	assert.Equal(t, fault.CodeConfig, fault.CodeOf(err))
}
