package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-duel/internal/logging"
	httperrors "github.com/gokatarajesh/quiz-duel/pkg/http/errors"
)

// WSUpgrader handles WebSocket upgrades.
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to configured origins once a web client is deployed
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Check is a named dependency probe for /v1/ping.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Routes are the feature handlers mounted on the API server. Nil handlers are
// answered with 501.
type Routes struct {
	MatchWS     http.HandlerFunc
	Leaderboard http.HandlerFunc
}

// NewHTTPServer wires base routes (health, metrics, ping) and the feature routes.
func NewHTTPServer(addr string, logger zerolog.Logger, gatherer prometheus.Gatherer, checks []Check, routes Routes) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), checks); err != nil {
			logger := logging.FromContext(r.Context())
			logger.Error().Err(err).Msg("dependency ping failed")
			httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeUpstreamError, "upstream error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	mux.HandleFunc("/ws/matches", orNotImplemented(routes.MatchWS))
	mux.HandleFunc("/v1/leaderboard", orNotImplemented(routes.Leaderboard))

	return &http.Server{
		Addr:    addr,
		Handler: logging.Middleware(logger)(mux),
	}
}

func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "handler not configured", http.StatusNotImplemented)
	}
}

func pingDependencies(ctx context.Context, checks []Check) error {
	for _, c := range checks {
		if err := c.Ping(ctx); err != nil {
			return fmt.Errorf("ping %s: %w", c.Name, err)
		}
	}
	return nil
}
