package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/furgoplaza/enrich-cli/internal/model"
	"github.com/furgoplaza/enrich-cli/internal/store"
)

var (
	runsTarget   string
	runsPipeline string
	runsStatus   string
	runsLimit    int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the enrichment run audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		environment, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer environment.Close()

		runs, err := environment.store.ListRuns(ctx, store.RunFilter{
			TargetID: runsTarget,
			Pipeline: model.PipelineType(runsPipeline),
			Status:   model.RunStatus(runsStatus),
			Limit:    runsLimit,
		})
		if err != nil {
			return err
		}
		if runs == nil {
			runs = []model.EnrichmentRun{}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsTarget, "target", "", "filter by target id")
	runsCmd.Flags().StringVar(&runsPipeline, "pipeline", "", "filter by pipeline")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 0, "max rows (default 100)")
	rootCmd.AddCommand(runsCmd)
}
