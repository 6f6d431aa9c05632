// Package httpapi assembles the HTTP surface: middleware chain, public
// routes, authenticated routes, and key-guarded reporting routes.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	broadcasthandler "canvass/internal/broadcast/handler"
	grouphandler "canvass/internal/group/handler"
	memberhandler "canvass/internal/member/handler"
	"canvass/internal/platform/metrics"
	"canvass/internal/platform/middleware"
	submissionhandler "canvass/internal/submission/handler"
	"canvass/pkg/platform/httputil"
)

// Deps carries everything the router mounts.
type Deps struct {
	Members     *memberhandler.Handler
	Groups      *grouphandler.Handler
	Broadcasts  *broadcasthandler.Handler
	Submissions *submissionhandler.Handler

	TokenValidator   middleware.TokenValidator
	ReportingKeyHash string
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
}

// NewRouter wires all endpoints behind the shared middleware chain.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.BrowserSession)
	r.Use(middleware.Timeout(60 * time.Second))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Latency)
	}

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Public: login redirect, auth callback, voter submissions.
	deps.Members.Register(r)
	deps.Submissions.Register(r)

	// Authenticated member surface. All writes here are JSON; the public
	// surface stays unguarded because /respond takes form encoding.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(deps.TokenValidator, deps.Logger))
		deps.Members.RegisterProtected(r)
		deps.Groups.Register(r)
		deps.Broadcasts.Register(r)
	})

	// Reporting surface, guarded by the shared key.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireReportingKey(deps.ReportingKeyHash, deps.Logger))
		deps.Members.RegisterReports(r)
		deps.Submissions.RegisterReports(r)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
