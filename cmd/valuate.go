package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/furgoplaza/enrich-cli/internal/model"
)

var valuateCmd = &cobra.Command{
	Use:   "valuate <vehicle-id>",
	Short: "Generate a valuation report for a vehicle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		environment, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer environment.Close()

		report, err := environment.runner.ValuateVehicle(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

var reportsCmd = &cobra.Command{
	Use:   "reports <vehicle-id>",
	Short: "List the valuation report history for a vehicle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		environment, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer environment.Close()

		reports, err := environment.store.ListValuationReports(ctx, args[0])
		if err != nil {
			return err
		}
		if reports == nil {
			reports = []model.ValuationReport{}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	},
}

func init() {
	rootCmd.AddCommand(valuateCmd)
	rootCmd.AddCommand(reportsCmd)
}
