package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/analysis/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/builder"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/qiita"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/middleware"
)

type emptyFetcher struct{}

func (emptyFetcher) Fetch(ctx context.Context, sel qiita.Selector, maxPages, perPage int) qiita.FetchResult {
	return qiita.FetchResult{}
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := cache.NewFileStore(t.TempDir(), "analysis")
	if err != nil {
		t.Fatal(err)
	}
	b, err := builder.New(builder.Options{
		Store:      store,
		Tokenizer:  tokenizer.Func(func(string) []tokenizer.Token { return nil }),
		NewFetcher: func(config.BuildConfig) builder.Fetcher { return emptyFetcher{} },
	})
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.NewUnregistered()
	h := handler.New(handler.Config{Source: config.StaticSource(config.BuildConfig{Tag: "Go", MaxPages: 1, PerPage: 10})}, b, nil, m)
	checker := health.NewChecker(0)
	checker.Register("analysis", health.Ping(h.ReadyCheck, true))

	srv := httptest.NewServer(New(h, checker, m, Options{AllowOrigins: []string{"*"}}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRoutes(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/analysis", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/analysis/status", http.StatusOK},
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodPost, "/api/rebuild", http.StatusOK},
		{http.MethodGet, "/api/analysis", http.StatusOK},
		{http.MethodGet, "/api/rebuild", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, srv.URL+tt.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tt.method, tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s: got %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
		}
		if resp.Header.Get(middleware.RequestIDHeader) == "" {
			t.Errorf("%s %s: missing request id", tt.method, tt.path)
		}
	}
}

func TestEmptyArtifactIsServed(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Post(srv.URL+"/api/rebuild", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("expected empty array, got %q", body)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newServer(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/rebuild", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS headers on preflight")
	}
}
