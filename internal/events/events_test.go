package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/builder"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []BuildEvent
	fail   bool
}

func (p *memPublisher) Publish(ctx context.Context, key string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.keys = append(p.keys, key)
	p.events = append(p.events, value.(BuildEvent))
	return nil
}

func (p *memPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestNotifierPublishesBuildEvents(t *testing.T) {
	pub := &memPublisher{}
	n := NewNotifier(pub, 4)
	n.Start(context.Background())

	res := builder.Result{
		Outcome:  builder.OutcomeBuilt,
		Location: "file:///data/analysis.json",
		Entries:  12,
		TraceID:  "t-1",
		Duration: 1500 * time.Millisecond,
	}
	if err := n.BuildCompleted(context.Background(), res); err != nil {
		t.Fatalf("BuildCompleted: %v", err)
	}
	n.Close()

	if pub.count() != 1 {
		t.Fatalf("expected 1 event, got %d", pub.count())
	}
	ev := pub.events[0]
	if ev.Type != EventBuildCompleted || ev.Entries != 12 || ev.DurationMs != 1500 {
		t.Errorf("unexpected event %+v", ev)
	}
	if pub.keys[0] != res.Location {
		t.Errorf("expected location as key, got %q", pub.keys[0])
	}
}

func TestNotifierDropsWhenFull(t *testing.T) {
	pub := &memPublisher{}
	n := NewNotifier(pub, 1)
	// Not started: the single slot fills and the rest are dropped.
	for i := 0; i < 3; i++ {
		n.BuildCompleted(context.Background(), builder.Result{Outcome: builder.OutcomeBuilt})
	}
	n.Start(context.Background())
	n.Close()
	if pub.count() != 1 {
		t.Errorf("expected 1 published event, got %d", pub.count())
	}
}

func TestNotifierDrainsOnCancel(t *testing.T) {
	pub := &memPublisher{}
	n := NewNotifier(pub, 8)
	for i := 0; i < 3; i++ {
		n.BuildCompleted(context.Background(), builder.Result{Outcome: builder.OutcomeBuilt})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Start(ctx)
	<-n.done
	if pub.count() != 3 {
		t.Errorf("expected queued events flushed, got %d", pub.count())
	}
	n.Close()
}

func TestNotifierDropsAfterClose(t *testing.T) {
	pub := &memPublisher{}
	n := NewNotifier(pub, 4)
	n.Start(context.Background())
	n.Close()

	// A build finishing during shutdown must not send on the closed queue.
	if err := n.BuildCompleted(context.Background(), builder.Result{Outcome: builder.OutcomeBuilt}); err != nil {
		t.Fatalf("BuildCompleted after Close: %v", err)
	}
	if pub.count() != 0 {
		t.Errorf("expected no events after Close, got %d", pub.count())
	}
}

func TestNotifierCloseRacesWithBuilds(t *testing.T) {
	pub := &memPublisher{}
	n := NewNotifier(pub, 4)
	n.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				n.BuildCompleted(context.Background(), builder.Result{Outcome: builder.OutcomeBuilt})
			}
		}()
	}
	n.Close()
	wg.Wait()
}

func TestNotifierSurvivesPublishErrors(t *testing.T) {
	pub := &memPublisher{fail: true}
	n := NewNotifier(pub, 2)
	n.Start(context.Background())
	n.BuildCompleted(context.Background(), builder.Result{Outcome: builder.OutcomeFailed})
	n.Close()
}

func TestHandleRebuildRequests(t *testing.T) {
	var calls []bool
	trigger := func(ctx context.Context, force bool) (builder.Result, error) {
		calls = append(calls, force)
		return builder.Result{Outcome: builder.OutcomeBuilt}, nil
	}
	h := HandleRebuildRequests(trigger)

	notForced := false
	lazy, _ := json.Marshal(RebuildRequest{Type: EventRebuildRequest, Force: &notForced})
	for _, msg := range [][]byte{[]byte(`{"requested_by":"ops"}`), lazy, []byte(`not json`)} {
		if err := h(context.Background(), []byte("k"), msg); err != nil {
			t.Fatalf("handler returned %v", err)
		}
	}
	if len(calls) != 2 || calls[0] != true || calls[1] != false {
		t.Errorf("unexpected trigger calls %v", calls)
	}
}

func TestHandleRebuildRequestsCommitsFailures(t *testing.T) {
	h := HandleRebuildRequests(func(ctx context.Context, force bool) (builder.Result, error) {
		return builder.Result{Outcome: builder.OutcomeFailed}, errors.New("boom")
	})
	if err := h(context.Background(), nil, []byte(`{}`)); err != nil {
		t.Errorf("failed builds must not block the partition, got %v", err)
	}
}
