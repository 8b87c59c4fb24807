package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/furgoplaza/enrich-cli/internal/model"
)

// catalogFile is the import payload: areas and vehicles exported from the
// directory backend.
type catalogFile struct {
	Areas    []model.Area    `json:"areas"`
	Vehicles []model.Vehicle `json:"vehicles"`
}

var importCmd = &cobra.Command{
	Use:   "import <catalog.json>",
	Short: "Import areas and vehicles from a catalog export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read catalog file")
		}
		var catalog catalogFile
		if err := json.Unmarshal(raw, &catalog); err != nil {
			return eris.Wrap(err, "parse catalog file")
		}

		environment, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer environment.Close()

		for _, area := range catalog.Areas {
			if area.ID == "" || area.Name == "" {
				return eris.Errorf("area missing id or name: %+v", area)
			}
			if err := environment.store.UpsertArea(ctx, area); err != nil {
				return err
			}
		}
		for _, vehicle := range catalog.Vehicles {
			if vehicle.ID == "" {
				return eris.Errorf("vehicle missing id: %+v", vehicle)
			}
			if err := environment.store.UpsertVehicle(ctx, vehicle); err != nil {
				return err
			}
		}

		zap.L().Info("catalog imported",
			zap.Int("areas", len(catalog.Areas)),
			zap.Int("vehicles", len(catalog.Vehicles)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
