package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-arena/internal/config"
	httperrors "github.com/gokatarajesh/trivia-arena/pkg/http/errors"
)

// WSUpgrader handles WebSocket upgrades (configure CORS/security as needed).
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Routes are the handlers mounted on the HTTP listener. Nil handlers are skipped.
type Routes struct {
	WebSocket   http.HandlerFunc
	Leaderboard http.HandlerFunc
	Metrics     http.Handler
}

// NewHTTPServer wires base routes (health, metrics) plus the game endpoints.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, routes Routes) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	metrics := routes.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	mux.Handle("/metrics", metrics)

	if routes.WebSocket != nil {
		mux.HandleFunc("/ws", routes.WebSocket)
	} else {
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			httperrors.RespondNotImplemented(w, "WebSocket handler not configured")
		})
	}

	if routes.Leaderboard != nil {
		mux.HandleFunc("/v1/leaderboard", routes.Leaderboard)
	}

	logger.Debug().Str("addr", cfg.HTTPAddr).Msg("http routes registered")

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
