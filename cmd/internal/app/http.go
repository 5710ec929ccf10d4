package app

import (
	"log/slog"
	"net/http"
	"time"

	deviceapi "devicegate/cmd/internal/device/api"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerHTTP mounts all routes on mux.
func registerHTTP(
	mux *http.ServeMux,
	log *slog.Logger,
	cfg Config,
	dbPool *pgxpool.Pool,
	dbEnabled bool,
	devices *deviceapi.Handler,
	registry *prometheus.Registry,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB {
			if !dbEnabled || dbPool == nil {
				http.Error(w, "db not configured", http.StatusServiceUnavailable)
				return
			}
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				log.Warn("readyz.db_ping.fail", "err", err)
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	devices.Register(mux)
}
