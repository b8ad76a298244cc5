package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRunWorstStatusWins(t *testing.T) {
	c := NewChecker(0)
	c.Register("cache", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusUp}
	})
	c.Register("redis", Ping(func(ctx context.Context) error { return errors.New("refused") }, true))

	report := c.Run(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Components["redis"].Message != "refused" {
		t.Errorf("unexpected redis component: %+v", report.Components["redis"])
	}

	c.Register("postgres", Ping(func(ctx context.Context) error { return errors.New("down") }, false))
	if got := c.Run(context.Background()).Status; got != StatusDown {
		t.Errorf("expected down, got %s", got)
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker(0)
	c.Register("analysis", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded, Message: "analysis not ready"}
	})

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded should stay ready, got %d", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != StatusDegraded {
		t.Errorf("expected degraded report, got %s", report.Status)
	}

	c.Register("store", Ping(func(ctx context.Context) error { return errors.New("gone") }, false))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when a component is down, got %d", rec.Code)
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker(0).LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
