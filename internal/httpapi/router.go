package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicecore/assistant/internal/health"
	"github.com/voicecore/assistant/internal/observe"
)

// NewRouter assembles the full HTTP surface: settings, processing-status,
// health/readiness, metrics, and the websocket upgrade endpoint behind a
// single *http.ServeMux. Every route except /ws runs behind
// observe.Middleware, which traces, logs, and times the request; /ws
// upgrades to a long-lived websocket connection, so wrapping it would
// record connection lifetime instead of request latency.
func NewRouter(settingsAPI *SettingsAPI, statusAPI *StatusAPI, healthHandler *health.Handler, wsHandler http.HandlerFunc) *http.ServeMux {
	mux := http.NewServeMux()
	settingsAPI.Register(mux)
	statusAPI.Register(mux)
	healthHandler.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	mw := observe.Middleware(observe.DefaultMetrics())
	wrapped := http.NewServeMux()
	wrapped.Handle("/", mw(mux))
	wrapped.HandleFunc("GET /ws", wsHandler)
	return wrapped
}
