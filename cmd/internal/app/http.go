package app

import (
	"net/http"
	"time"

	authapi "parley/cmd/internal/auth/api"
	"parley/cmd/internal/realtime"

	"github.com/jackc/pgx/v5/pgxpool"
)

const readinessPingTimeout = 2 * time.Second

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	dbPool *pgxpool.Pool,
	dbEnabled bool,
	ws *realtime.WSGateway,
	auth *authapi.Handler,
	metrics *Metrics,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	// Liveness says the process is up; readiness additionally demands a
	// working database when one is required or configured.
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}
		if dbEnabled && dbPool != nil {
			if err := PingDB(r.Context(), dbPool, readinessPingTimeout); err != nil {
				log.Info("readyz.db.not_ready", "err", err)
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	if auth != nil {
		auth.Register(mux)
	}

	mux.HandleFunc("GET /ws/{conversation_id}", ws.HandleWS)
}
