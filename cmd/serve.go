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

	"github.com/sells-group/parcel-cli/internal/parcel"
	"github.com/sells-group/parcel-cli/internal/pipeline"
)

var servePort int

const shutdownTimeout = 10 * time.Second

// parcelLookup is the slice of the pipeline the HTTP handlers need.
type parcelLookup interface {
	Lookup(ctx context.Context, rawID string) (*pipeline.LookupResult, error)
}

// buildMux assembles the HTTP routes around a lookup service. Factored out
// of the serve command so handlers can be exercised without a listener.
func buildMux(lookups parcelLookup) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/v1/lookup", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ParcelID string `json:"parcel_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.ParcelID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "parcel_id is required"})
			return
		}

		result, err := lookups.Lookup(req.Context(), body.ParcelID)
		if err != nil {
			var vErr *parcel.ValidationError
			switch {
			case errors.As(err, &vErr):
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": vErr.Error()})
			case eris.Is(err, parcel.ErrNotFound):
				// Not-found is a legitimate answer for the form UI, not
				// a transport failure.
				writeJSON(w, http.StatusOK, map[string]any{
					"success":   false,
					"parcel_id": body.ParcelID,
					"detail":    "parcel not found",
				})
			default:
				zap.L().Error("lookup failed",
					zap.String("parcel_id", body.ParcelID),
					zap.Error(err),
				)
				writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream lookup failed"})
			}
			return
		}

		writeJSON(w, http.StatusOK, result)
	})

	return r
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP lookup API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initLookup(countyFlag)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildMux(env.Pipeline),
		}

		// Graceful shutdown: drain in-flight requests on a fresh deadline,
		// since the signal context is already canceled at this point.
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
