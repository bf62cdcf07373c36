package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-pipeline/internal/ledger"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for research requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		router := newRouter(ctx, env)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the HTTP routes. The background context outlives
// individual requests so webhook-triggered research is not canceled when
// the caller disconnects.
func newRouter(bgCtx context.Context, env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhooks/research", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ProspectID string `json:"prospect_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.ProspectID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prospect_id is required"})
			return
		}

		if _, err := env.Ledger.GetProspect(req.Context(), body.ProspectID); err != nil {
			if errors.Is(err, ledger.ErrProspectNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "prospect not found"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
			return
		}

		// Run research asynchronously
		go func() {
			result, err := env.Pipeline.Research(bgCtx, body.ProspectID)
			if err != nil {
				if errors.Is(err, ledger.ErrAttemptInFlight) {
					zap.L().Info("webhook research skipped, attempt in flight",
						zap.String("prospect_id", body.ProspectID),
					)
					return
				}
				zap.L().Error("webhook research failed",
					zap.String("prospect_id", body.ProspectID),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("webhook research complete",
				zap.String("prospect_id", body.ProspectID),
				zap.Int("score", result.Prospect.QualificationScore),
				zap.String("stage", string(result.Prospect.PipelineStage)),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":      "accepted",
			"prospect_id": body.ProspectID,
		})
	})

	r.Get("/prospects/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		prospect, err := env.Ledger.GetProspect(req.Context(), id)
		if err != nil {
			if errors.Is(err, ledger.ErrProspectNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "prospect not found"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
			return
		}
		writeJSON(w, http.StatusOK, prospect)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
