package app

import (
	"net/http"
	"time"

	"pigeon/cmd/internal/auth"
	"pigeon/cmd/internal/chat"
	"pigeon/cmd/internal/metrics"
	"pigeon/cmd/internal/realtime"

	"github.com/jackc/pgx/v5/pgxpool"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	dbPool *pgxpool.Pool,
	dbEnabled bool,
	met *metrics.Metrics,
	ws *realtime.WSGateway,
	authH *auth.Handler,
	chatH *chat.Handler,
	uploadsDir string,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if dbEnabled && dbPool != nil {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if met != nil {
		mux.Handle("/metrics", met.Handler())
	}

	authH.Register(mux)

	// The message API sits behind the auth middleware; handlers read the
	// identity the middleware installs.
	chatMux := http.NewServeMux()
	chatH.Register(chatMux)
	mux.Handle("/api/messages/", authH.RequireAuth(chatMux))

	if uploadsDir != "" {
		mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))))
	}

	mux.HandleFunc("/ws", ws.HandleWS)
}
