package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/steelburgerz/veloiq/internal/events"
)

// Invalidator drops cached views. dashboard.Service and every cache.Cache satisfy it.
type Invalidator interface {
	Invalidate(ctx context.Context, reason string) error
}

// InvalidationHandler invalidates cached dashboard views whenever the ingestion pipeline reports
// a snapshot change.
type InvalidationHandler struct {
	invalidator Invalidator
	logger      *zap.Logger
}

// NewInvalidationHandler constructs the handler.
func NewInvalidationHandler(invalidator Invalidator, logger *zap.Logger) *InvalidationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvalidationHandler{invalidator: invalidator, logger: logger}
}

// Handle validates the event payload and invalidates. Unknown event types are acknowledged untouched.
func (h *InvalidationHandler) Handle(ctx context.Context, msg Message) error {
	reason, err := describe(msg)
	if err != nil {
		return err
	}
	if reason == "" {
		h.logger.Debug("ignoring event", zap.String("event_type", msg.EventType), zap.String("topic", msg.Topic))
		return nil
	}
	if err := h.invalidator.Invalidate(ctx, reason); err != nil {
		return fmt.Errorf("invalidate (%s): %w", reason, err)
	}
	h.logger.Info("dashboard cache invalidated", zap.String("reason", reason), zap.Int64("offset", msg.Offset))
	return nil
}

// describe turns an event into an invalidation reason, or "" for events that change nothing.
func describe(msg Message) (string, error) {
	switch msg.EventType {
	case events.TypeRideIngested:
		var payload events.RideIngested
		if err := unmarshal(msg, &payload); err != nil {
			return "", err
		}
		if payload.Date == "" {
			return "", fmt.Errorf("%w: ride event without date", ErrPoison)
		}
		return fmt.Sprintf("ride %s on %s", payload.StravaID, payload.Date), nil
	case events.TypeReadinessIngested:
		var payload events.ReadinessIngested
		if err := unmarshal(msg, &payload); err != nil {
			return "", err
		}
		if payload.Date == "" {
			return "", fmt.Errorf("%w: readiness event without date", ErrPoison)
		}
		return "readiness " + payload.Date, nil
	case events.TypeSnapshotRebuilt:
		var payload events.SnapshotRebuilt
		if err := unmarshal(msg, &payload); err != nil {
			return "", err
		}
		return "rebuilt " + payload.Collection, nil
	}
	return "", nil
}

func unmarshal(msg Message, dst any) error {
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrPoison, msg.EventType, err)
	}
	return nil
}
