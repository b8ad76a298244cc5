// Package events carries build notifications out to Kafka and rebuild
// requests in from it.
package events

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/builder"
)

type EventType string

const (
	EventBuildCompleted EventType = "analysis.build.completed"
	EventRebuildRequest EventType = "analysis.rebuild.requested"
)

// BuildEvent is published after every build that went past the freshness
// gate.
type BuildEvent struct {
	Type       EventType       `json:"type"`
	Outcome    builder.Outcome `json:"outcome"`
	Forced     bool            `json:"forced"`
	Location   string          `json:"location"`
	Selector   string          `json:"selector"`
	Pages      int             `json:"pages"`
	Fetched    int             `json:"articles_fetched"`
	Qualified  int             `json:"articles_qualified"`
	Entries    int             `json:"entries"`
	FetchError string          `json:"fetch_error,omitempty"`
	Error      string          `json:"error,omitempty"`
	TraceID    string          `json:"trace_id"`
	DurationMs int64           `json:"duration_ms"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewBuildEvent converts a build result.
func NewBuildEvent(res builder.Result, at time.Time) BuildEvent {
	return BuildEvent{
		Type:       EventBuildCompleted,
		Outcome:    res.Outcome,
		Forced:     res.Forced,
		Location:   res.Location,
		Selector:   res.Selector,
		Pages:      res.Pages,
		Fetched:    res.Fetched,
		Qualified:  res.Qualified,
		Entries:    res.Entries,
		FetchError: res.FetchErr,
		Error:      res.Error,
		TraceID:    res.TraceID,
		DurationMs: res.Duration.Milliseconds(),
		Timestamp:  at.UTC(),
	}
}

// RebuildRequest asks the service to rebuild. Force defaults to true when
// absent.
type RebuildRequest struct {
	Type        EventType `json:"type"`
	Force       *bool     `json:"force,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Forced reports the effective force flag.
func (r RebuildRequest) Forced() bool {
	return r.Force == nil || *r.Force
}
