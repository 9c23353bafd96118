package handlers

import (
	"context"
	"net/http"

	"github.com/NYTimes/gziphandler"

	"uptimedock/app/internal/auth"
	"uptimedock/app/internal/availability"
	"uptimedock/app/internal/cache"
	"uptimedock/app/internal/monitor"
	"uptimedock/app/internal/ratelimit"
	"uptimedock/app/internal/scheduler"
)

// RoundRunner runs one probe round on demand.
type RoundRunner interface {
	RunRound(ctx context.Context) (scheduler.Round, error)
}

// Deps are the collaborators the HTTP layer needs. Nil Auth, PingLimiter,
// Charts and Tracker disable the respective feature.
type Deps struct {
	Options     availability.Options
	Auth        *auth.Auth
	Rounds      RoundRunner
	PingLimiter *ratelimit.Limiter
	Charts      *cache.Cache[[]byte]
	Tracker     *monitor.FailureTracker
}

// SetupRoutes configures all HTTP routes and middlewares
func SetupRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/pings", HandlePings())
	mux.HandleFunc("GET /api/dashboard", HandleDashboard(d.Options))
	mux.HandleFunc("GET /api/summary", HandleSummary(d.Options))
	mux.HandleFunc("GET /api/trend", HandleTrend())
	mux.HandleFunc("GET /api/episodes", HandleEpisodes(d.Options))
	mux.HandleFunc("GET /api/history", HandleHistory())
	mux.HandleFunc("GET /api/urls", HandleURLs())
	mux.HandleFunc("GET /api/chart.png", HandleChart(d.Charts))
	mux.HandleFunc("GET /api/export.xlsx", HandleExport())
	mux.HandleFunc("GET /api/logs", d.Auth.Require(HandleLogs()))

	ping := HandlePing(d.Rounds, d.Charts)
	if d.PingLimiter != nil {
		ping = d.PingLimiter.Middleware(ping)
	}
	mux.HandleFunc("GET /ping", ping)

	registry := d.Auth.Require(HandleURLActions(d.Tracker))
	mux.HandleFunc("GET /url", registry)
	mux.HandleFunc("POST /url", registry)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	return gziphandler.GzipHandler(SecureHeaders(mux))
}
