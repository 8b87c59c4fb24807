package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/furgoplaza/enrich-cli/internal/model"
)

var enrichPipelines string

var enrichCmd = &cobra.Command{
	Use:   "enrich <area-id>",
	Short: "Run enrichment pipelines for a single area",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		environment, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer environment.Close()

		pipelines, err := parsePipelines(enrichPipelines)
		if err != nil {
			return err
		}

		runs, err := environment.runner.EnrichArea(ctx, args[0], pipelines)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	},
}

// parsePipelines turns a comma-separated flag value into validated pipeline
// types. Valuation is vehicle-scoped and rejected here.
func parsePipelines(flag string) ([]model.PipelineType, error) {
	var pipelines []model.PipelineType
	for _, name := range strings.Split(flag, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p := model.PipelineType(name)
		if !p.Valid() {
			return nil, eris.Errorf("unknown pipeline %q", name)
		}
		if p == model.PipelineValuation {
			return nil, eris.New("tasacion runs against vehicles, use the valuate command")
		}
		pipelines = append(pipelines, p)
	}
	if len(pipelines) == 0 {
		return nil, eris.New("no pipelines selected")
	}
	return pipelines, nil
}

func init() {
	enrichCmd.Flags().StringVar(&enrichPipelines, "pipelines", "descripcion,servicios,fotos", "comma-separated pipelines to run")
	rootCmd.AddCommand(enrichCmd)
}
