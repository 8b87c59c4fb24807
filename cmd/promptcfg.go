package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/furgoplaza/enrich-cli/internal/model"
)

var promptCfgCmd = &cobra.Command{
	Use:   "prompt-config",
	Short: "Manage per-pipeline extraction configs",
}

var promptCfgSetCmd = &cobra.Command{
	Use:   "set <pipeline> <config.yaml>",
	Short: "Store the extraction config for a pipeline",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pipeline := model.PipelineType(args[0])
		if !pipeline.Valid() {
			return eris.Errorf("unknown pipeline %q", args[0])
		}

		raw, err := os.ReadFile(args[1])
		if err != nil {
			return eris.Wrap(err, "read config file")
		}
		var extractionCfg model.ExtractionConfig
		if err := yaml.Unmarshal(raw, &extractionCfg); err != nil {
			return eris.Wrap(err, "parse config file")
		}
		if len(extractionCfg.Segments) == 0 || !extractionCfg.HasRequiredSegment() {
			return eris.New("config needs at least one required prompt segment")
		}

		environment, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer environment.Close()

		if err := environment.store.PutExtractionConfig(ctx, pipeline, extractionCfg); err != nil {
			return err
		}
		zap.L().Info("extraction config stored", zap.String("pipeline", string(pipeline)))
		return nil
	},
}

var promptCfgGetCmd = &cobra.Command{
	Use:   "get <pipeline>",
	Short: "Show the stored extraction config for a pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pipeline := model.PipelineType(args[0])
		if !pipeline.Valid() {
			return eris.Errorf("unknown pipeline %q", args[0])
		}

		environment, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer environment.Close()

		extractionCfg, err := environment.store.GetExtractionConfig(ctx, pipeline)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(extractionCfg)
	},
}

func init() {
	promptCfgCmd.AddCommand(promptCfgSetCmd)
	promptCfgCmd.AddCommand(promptCfgGetCmd)
	rootCmd.AddCommand(promptCfgCmd)
}
