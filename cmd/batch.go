package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/furgoplaza/enrich-cli/internal/enrich"
)

var (
	batchPipelines string
	batchLimit     int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Enrich every catalog area sequentially",
	Long:  "Runs the selected pipelines over all areas with a fixed delay between targets. Already-enriched areas are skipped, so the batch is safe to re-run after an interruption.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		environment, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer environment.Close()

		pipelines, err := parsePipelines(batchPipelines)
		if err != nil {
			return err
		}

		ids, err := environment.store.ListAreaIDs(ctx)
		if err != nil {
			return err
		}
		limit := batchLimit
		if limit <= 0 {
			limit = cfg.Batch.Limit
		}
		if limit > 0 && len(ids) > limit {
			ids = ids[:limit]
		}
		zap.L().Info("starting batch",
			zap.Int("targets", len(ids)),
			zap.Int("interval_secs", cfg.Batch.IntervalSecs),
		)

		d := enrich.NewDispatcher(environment.runner, time.Duration(cfg.Batch.IntervalSecs)*time.Second)
		summary, err := d.Run(ctx, ids, pipelines)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchPipelines, "pipelines", "descripcion,servicios,fotos", "comma-separated pipelines to run")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max areas to process (default from config)")
	rootCmd.AddCommand(batchCmd)
}
