package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/steelburgerz/veloiq/internal/events"
)

type recordingInvalidator struct {
	reasons []string
	err     error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, reason string) error {
	r.reasons = append(r.reasons, reason)
	return r.err
}

func message(t *testing.T, eventType string, payload any) Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return Message{Topic: "ride_events", EventType: eventType, Payload: raw}
}

func TestInvalidationHandlerInvalidatesOnIngestion(t *testing.T) {
	inv := &recordingInvalidator{}
	h := NewInvalidationHandler(inv, zaptest.NewLogger(t))

	require.NoError(t, h.Handle(context.Background(), message(t, events.TypeRideIngested, events.RideIngested{StravaID: "17", Date: "2026-03-04"})))
	require.NoError(t, h.Handle(context.Background(), message(t, events.TypeReadinessIngested, events.ReadinessIngested{Date: "2026-03-04", Status: "GREEN"})))
	require.NoError(t, h.Handle(context.Background(), message(t, events.TypeSnapshotRebuilt, events.SnapshotRebuilt{Collection: "rides"})))

	require.Equal(t, []string{"ride 17 on 2026-03-04", "readiness 2026-03-04", "rebuilt rides"}, inv.reasons)
}

func TestInvalidationHandlerIgnoresUnknownEvents(t *testing.T) {
	inv := &recordingInvalidator{}
	h := NewInvalidationHandler(inv, nil)
	require.NoError(t, h.Handle(context.Background(), Message{EventType: "gear.updated", Payload: json.RawMessage(`{}`)}))
	require.Empty(t, inv.reasons)
}

func TestInvalidationHandlerFlagsPoison(t *testing.T) {
	h := NewInvalidationHandler(&recordingInvalidator{}, nil)

	err := h.Handle(context.Background(), Message{EventType: events.TypeRideIngested, Payload: json.RawMessage(`not json`)})
	require.ErrorIs(t, err, ErrPoison)

	err = h.Handle(context.Background(), message(t, events.TypeReadinessIngested, events.ReadinessIngested{}))
	require.ErrorIs(t, err, ErrPoison)
}

func TestInvalidationHandlerSurfacesInvalidatorErrors(t *testing.T) {
	inv := &recordingInvalidator{err: errors.New("redis down")}
	err := NewInvalidationHandler(inv, nil).Handle(context.Background(), message(t, events.TypeSnapshotRebuilt, events.SnapshotRebuilt{Collection: "readiness"}))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrPoison)
}
