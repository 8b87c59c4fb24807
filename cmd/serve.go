package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/furgoplaza/enrich-cli/internal/fault"
	"github.com/furgoplaza/enrich-cli/internal/model"
	"github.com/furgoplaza/enrich-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		environment, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer environment.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(ctx, environment),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func newRouter(ctx context.Context, environment *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/areas/{areaID}/enrich", func(w http.ResponseWriter, req *http.Request) {
		areaID := chi.URLParam(req, "areaID")

		var body struct {
			Pipelines string `json:"pipelines"`
		}
		if req.Body != nil {
			_ = json.NewDecoder(req.Body).Decode(&body)
		}
		if body.Pipelines == "" {
			body.Pipelines = "descripcion,servicios,fotos"
		}
		pipelines, err := parsePipelines(body.Pipelines)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		// Enrichment runs in the background; the trigger returns right away.
		go func() {
			runs, err := environment.runner.EnrichArea(ctx, areaID, pipelines)
			if err != nil {
				zap.L().Error("triggered enrichment failed",
					zap.String("area", areaID),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("triggered enrichment complete",
				zap.String("area", areaID),
				zap.Int("pipelines", len(runs)),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "area": areaID})
	})

	r.Post("/vehicles/{vehicleID}/valuate", func(w http.ResponseWriter, req *http.Request) {
		vehicleID := chi.URLParam(req, "vehicleID")

		report, err := environment.runner.ValuateVehicle(req.Context(), vehicleID)
		if err != nil {
			writeJSON(w, valuateStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	r.Get("/vehicles/{vehicleID}/reports", func(w http.ResponseWriter, req *http.Request) {
		reports, err := environment.store.ListValuationReports(req.Context(), chi.URLParam(req, "vehicleID"))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if reports == nil {
			reports = []model.ValuationReport{}
		}
		writeJSON(w, http.StatusOK, reports)
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		filter := store.RunFilter{
			TargetID: req.URL.Query().Get("target_id"),
			Pipeline: model.PipelineType(req.URL.Query().Get("pipeline")),
			Status:   model.RunStatus(req.URL.Query().Get("status")),
		}
		runs, err := environment.store.ListRuns(req.Context(), filter)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if runs == nil {
			runs = []model.EnrichmentRun{}
		}
		writeJSON(w, http.StatusOK, runs)
	})

	return r
}

// valuateStatus maps a valuation failure onto an HTTP status: unknown
// vehicle is 404, caller/config faults are 4xx/5xx on our side, and
// upstream faults are 502.
func valuateStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	switch fault.CodeOf(err) {
	case fault.CodeValidation:
		return http.StatusUnprocessableEntity
	case fault.CodeConfig:
		return http.StatusInternalServerError
	case fault.CodeAuth, fault.CodeRateLimit, fault.CodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to write response", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
