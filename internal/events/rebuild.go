package events

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/builder"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/kafka"
)

// TriggerFunc starts a build.
type TriggerFunc func(ctx context.Context, force bool) (builder.Result, error)

// HandleRebuildRequests returns a consumer handler that runs one build per
// request. Undecodable messages and failed builds are logged and committed
// so a bad message cannot stall the partition.
func HandleRebuildRequests(trigger TriggerFunc) kafka.MessageHandler {
	logger := slog.Default().With("component", "rebuild-consumer")
	return func(ctx context.Context, key, value []byte) error {
		req, err := kafka.DecodeJSON[RebuildRequest](value)
		if err != nil {
			logger.Error("failed to decode rebuild request", "key", string(key), "error", err)
			return nil
		}
		res, err := trigger(ctx, req.Forced())
		if err != nil {
			logger.Error("requested rebuild failed",
				"requested_by", req.RequestedBy,
				"trace_id", res.TraceID,
				"error", err,
			)
			return nil
		}
		logger.Info("requested rebuild finished",
			"requested_by", req.RequestedBy,
			"outcome", res.Outcome,
			"entries", res.Entries,
		)
		return nil
	}
}
