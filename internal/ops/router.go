// Package ops exposes the scheduler's operational state over HTTP for
// dashboards and probes. The platform's user-facing front end is a separate
// service; nothing here touches user data.
package ops

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"statusq/internal/config"
	"statusq/internal/jobs"
)

type StatsSource interface {
	Stats(ctx context.Context) (jobs.Stats, error)
}

func NewRouter(cfg config.Config, stats StatsSource, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: cfg.CORSAllowCredentials,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/v1/queue/stats", func(w http.ResponseWriter, r *http.Request) {
		st, err := stats.Stats(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("queue stats failed")
			http.Error(w, "stats unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})

	return r
}
