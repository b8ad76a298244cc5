// Package router wires the analysis API routes and applies the middleware
// chain (RequestID → CORS → Metrics → Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/middleware"
)

// Options tunes the middleware chain.
type Options struct {
	AllowOrigins   []string
	RequestTimeout time.Duration
}

// New builds the HTTP handler.
//
// Route table:
//
//	GET    /api/analysis          → current word table
//	POST   /api/rebuild           → forced rebuild, returns the new table
//	GET    /api/analysis/status   → artifact and last build status
//	GET    /health/live           → liveness
//	GET    /health/ready          → readiness
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → Timeout → handler
//
// The rebuild route is exempt from the request timeout; it carries its own
// build deadline.
func New(h *handler.Handler, checker *health.Checker, m *metrics.Metrics, opts Options) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/analysis", h.Analysis)
	mux.HandleFunc("POST /api/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/analysis/status", h.Status)

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(opts.RequestTimeout, "POST /api/rebuild")(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig(opts.AllowOrigins...))(chain)
	chain = middleware.RequestID(chain)

	return chain
}
