// Package handler implements the analysis read, rebuild and status
// endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/api/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/builder"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/metrics"
)

// OutcomeHeader reports the outcome of the build behind a rebuild response.
const OutcomeHeader = "X-Analysis-Outcome"

// Config holds handler settings.
type Config struct {
	// Source yields the build snapshot for each forced rebuild.
	Source config.Source
	// RebuildTimeout bounds a rebuild independently of the client connection.
	RebuildTimeout time.Duration
	// TrustForwardedFor keys rebuild limits on X-Forwarded-For. Enable only
	// behind a proxy that overwrites the header.
	TrustForwardedFor bool
}

// Handler serves the analysis API.
type Handler struct {
	builder        *builder.Builder
	store          cache.Store
	source         config.Source
	limiter        *ratelimit.Limiter
	metrics        *metrics.Metrics
	rebuildTimeout time.Duration
	trustForwarded bool
	logger         *slog.Logger
}

// New creates a Handler. limiter may be nil to disable rebuild limiting.
func New(cfg Config, b *builder.Builder, limiter *ratelimit.Limiter, m *metrics.Metrics) *Handler {
	if cfg.RebuildTimeout <= 0 {
		cfg.RebuildTimeout = 5 * time.Minute
	}
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Handler{
		builder:        b,
		store:          b.Store(),
		source:         cfg.Source,
		limiter:        limiter,
		metrics:        m,
		rebuildTimeout: cfg.RebuildTimeout,
		trustForwarded: cfg.TrustForwardedFor,
		logger:         slog.Default().With("component", "api-handler"),
	}
}

// Analysis returns the current table, or 503 when none has been built.
func (h *Handler) Analysis(w http.ResponseWriter, r *http.Request) {
	table, err := h.store.Read(r.Context())
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCacheNotFound) {
			h.metrics.CacheReadsTotal.WithLabelValues("not_ready").Inc()
			h.writeAppError(w, apperrors.New(apperrors.ErrNotReady, http.StatusServiceUnavailable, h.store.Location()))
			return
		}
		h.metrics.CacheReadsTotal.WithLabelValues("error").Inc()
		logger.FromContext(r.Context()).Error("reading analysis failed", "error", err)
		h.writeAppError(w, err)
		return
	}
	h.metrics.CacheReadsTotal.WithLabelValues("hit").Inc()
	h.writeJSON(w, http.StatusOK, table)
}

// Rebuild forces a build and returns the resulting table. The build runs
// detached from the request so a disconnecting client does not cancel a
// build other callers may share.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	if h.limiter != nil {
		if ok, wait := h.limiter.Allow(clientKey(r, h.trustForwarded)); !ok {
			h.metrics.RebuildsRejected.Inc()
			secs := int(math.Ceil(wait.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			h.writeAppError(w, apperrors.Newf(apperrors.ErrRateLimited, http.StatusTooManyRequests, "retry after %ds", secs))
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.rebuildTimeout)
	defer cancel()

	res, err := h.builder.Trigger(ctx, h.source, true)
	w.Header().Set(OutcomeHeader, string(res.Outcome))
	if err != nil {
		appErr := apperrors.Newf(apperrors.ErrRebuildFailed, http.StatusInternalServerError, "outcome %s: %v", res.Outcome, err)
		log.Error("forced rebuild failed", "trace_id", res.TraceID, "error", appErr)
		h.writeAppError(w, appErr)
		return
	}

	table, err := h.store.Read(ctx)
	if err != nil {
		log.Error("artifact missing after rebuild", "outcome", res.Outcome, "error", err)
		h.writeAppError(w, apperrors.ErrRebuildFailed)
		return
	}
	log.Info("forced rebuild served", "outcome", res.Outcome, "entries", len(table))
	h.writeJSON(w, http.StatusOK, table)
}

// StatusResponse describes the artifact and the latest build.
type StatusResponse struct {
	Ready      bool            `json:"ready"`
	Entries    int             `json:"entries"`
	AgeSeconds *float64        `json:"age_seconds"`
	Location   string          `json:"location"`
	Building   bool            `json:"building"`
	LastBuild  *builder.Result `json:"last_build,omitempty"`
}

// Status reports whether an artifact exists, its size and age, and the
// result of the latest build.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Location: h.store.Location(),
		Building: h.builder.InFlight(),
	}
	if table, err := h.store.Read(r.Context()); err == nil {
		resp.Ready = true
		resp.Entries = len(table)
		if age, err := h.store.Age(r.Context()); err == nil {
			secs := math.Round(age.Seconds()*1000) / 1000
			resp.AgeSeconds = &secs
		}
	} else if !apperrors.Is(err, apperrors.ErrCacheNotFound) {
		logger.FromContext(r.Context()).Warn("status read failed", "error", err)
	}
	if last, ok := h.builder.LastResult(); ok {
		resp.LastBuild = &last
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ReadyCheck returns ErrNotReady until an artifact exists.
func (h *Handler) ReadyCheck(ctx context.Context) error {
	ok, err := h.store.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrNotReady
	}
	return nil
}

// clientKey identifies the caller for rate limiting. X-Forwarded-For is
// client-controlled and only consulted when trustForwarded is set.
func clientKey(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSON serialises data as JSON and writes it with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeAppError maps err to its status code and public message.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": apperrors.PublicMessage(err)})
}
