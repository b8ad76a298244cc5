package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/resilience"
)

func TestClassifyStopsRetryOnAuthFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"bad password", &pq.Error{Code: "28P01", Message: "password authentication failed"}, 1},
		{"unknown database", &pq.Error{Code: "3D000", Message: "database does not exist"}, 1},
		{"server starting up", &pq.Error{Code: "57P03", Message: "the database system is starting up"}, 3},
		{"connection refused", errors.New("dial tcp: connection refused"), 3},
	}
	cfg := resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := resilience.Retry(context.Background(), "postgres connect", cfg, func(ctx context.Context) error {
				calls++
				return classify(tt.err)
			})
			if calls != tt.wantCalls {
				t.Errorf("expected %d attempts, got %d", tt.wantCalls, calls)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("expected the original error back, got %v", err)
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if classify(nil) != nil {
		t.Error("nil must stay nil")
	}
}
