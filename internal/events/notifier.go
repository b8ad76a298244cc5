package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/builder"
)

// Publisher writes one keyed value. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// Notifier queues build events and publishes them from a background
// goroutine so builds never wait on the broker.
type Notifier struct {
	pub       Publisher
	eventCh   chan BuildEvent
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
	now       func() time.Time

	// mu guards closed against sends racing with Close.
	mu     sync.RWMutex
	closed bool
}

// NewNotifier creates a Notifier with the given queue size.
func NewNotifier(pub Publisher, bufferSize int) *Notifier {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Notifier{
		pub:     pub,
		eventCh: make(chan BuildEvent, bufferSize),
		logger:  slog.Default().With("component", "build-notifier"),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// Start runs the publish loop until Close is called. Events still queued
// when ctx ends are flushed with a background context.
func (n *Notifier) Start(ctx context.Context) {
	go func() {
		defer close(n.done)
		for {
			select {
			case ev, ok := <-n.eventCh:
				if !ok {
					return
				}
				n.publish(ctx, ev)
			case <-ctx.Done():
				n.drain()
				return
			}
		}
	}()
	n.logger.Info("build notifier started", "buffer_size", cap(n.eventCh))
}

// BuildCompleted enqueues res. A full queue or a closed notifier drops the
// event.
func (n *Notifier) BuildCompleted(ctx context.Context, res builder.Result) error {
	ev := NewBuildEvent(res, n.now())
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.logger.Warn("build event dropped (notifier closed)", "trace_id", res.TraceID)
		return nil
	}
	select {
	case n.eventCh <- ev:
	default:
		n.logger.Warn("build event dropped (buffer full)", "trace_id", res.TraceID)
	}
	return nil
}

// Close stops accepting events and waits for the loop to finish.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.eventCh)
		n.mu.Unlock()
	})
	<-n.done
}

func (n *Notifier) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case ev, ok := <-n.eventCh:
			if !ok {
				return
			}
			n.publish(ctx, ev)
		default:
			return
		}
	}
}

func (n *Notifier) publish(ctx context.Context, ev BuildEvent) {
	if err := n.pub.Publish(ctx, ev.Location, ev); err != nil {
		n.logger.Error("failed to publish build event", "trace_id", ev.TraceID, "error", err)
	}
}
