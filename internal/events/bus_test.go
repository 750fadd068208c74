package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aperture-prints/backend-prints/internal/events"
)

type stubStore struct {
	lastTopic     string
	lastAggregate string
	lastPayload   []byte
	err           error
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic, aggregateID string, payload []byte) (events.DomainEvent, error) {
	s.lastTopic = topic
	s.lastAggregate = aggregateID
	s.lastPayload = payload
	if s.err != nil {
		return events.DomainEvent{}, s.err
	}
	return events.DomainEvent{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}, nil
}

type captureScheduler struct {
	events []events.DomainEvent
	err    error
}

func (c *captureScheduler) Schedule(_ context.Context, event events.DomainEvent) error {
	c.events = append(c.events, event)
	return c.err
}

type captureNotifier struct {
	events []events.DomainEvent
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.DomainEvent) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{}
	notifier := &captureNotifier{}
	bus := &events.Bus{Store: store, Scheduler: scheduler, Notifiers: []events.Notifier{notifier}}

	payload := map[string]any{"orderNumber": "AP-000001", "total": 9899}
	ev, err := bus.Emit(context.Background(), events.TopicOrderConfirmed, "pi_123", payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderConfirmed, ev.Topic)
	require.Equal(t, "pi_123", ev.AggregateID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(store.lastPayload, &decoded))
	require.Equal(t, "AP-000001", decoded["orderNumber"])

	require.Len(t, scheduler.events, 1)
	require.Len(t, notifier.events, 1)
}

func TestEmitRejectsMissingTopic(t *testing.T) {
	bus := &events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), "  ", "pi_123", nil)
	require.Error(t, err)
}

func TestEmitRejectsInvalidJSONBytes(t *testing.T) {
	bus := &events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), events.TopicOrderConfirmed, "pi_123", []byte("{not json"))
	require.Error(t, err)
}

func TestEmitJoinsDownstreamErrors(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{err: errors.New("queue down")}
	notifier := &captureNotifier{err: errors.New("smtp down")}
	bus := &events.Bus{Store: store, Scheduler: scheduler, Notifiers: []events.Notifier{notifier}}

	ev, err := bus.Emit(context.Background(), events.TopicOrderCancelled, "pi_456", nil)
	require.Error(t, err)
	// The event is persisted even when downstream handlers fail.
	require.Equal(t, events.TopicOrderCancelled, ev.Topic)
	require.Equal(t, events.TopicOrderCancelled, store.lastTopic)
	require.Equal(t, "pi_456", store.lastAggregate)
}
