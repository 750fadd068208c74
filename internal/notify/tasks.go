package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/aperture-prints/backend-prints/internal/events"
	"github.com/aperture-prints/backend-prints/internal/obs"
)

// TaskOrderEmail is the asynq task type carrying a serialized domain event
// for email delivery.
const TaskOrderEmail = "notify:order_email"

type taskPayload struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Enqueuer schedules event deliveries onto the task queue. It implements
// events.DeliveryScheduler.
type Enqueuer struct {
	Client *asynq.Client
}

// Schedule enqueues the event for the worker. The event ID doubles as the
// task id so asynq deduplicates redeliveries of the same event.
func (e Enqueuer) Schedule(ctx context.Context, event events.DomainEvent) error {
	if e.Client == nil {
		return nil
	}
	body, err := json.Marshal(taskPayload{
		ID:          event.ID.String(),
		Topic:       event.Topic,
		AggregateID: event.AggregateID,
		Payload:     json.RawMessage(event.Payload),
		OccurredAt:  event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("notify: encode task: %w", err)
	}
	task := asynq.NewTask(TaskOrderEmail, body)
	_, err = e.Client.EnqueueContext(ctx, task,
		asynq.TaskID(event.ID.String()),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if err == asynq.ErrTaskIDConflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", event.Topic, err)
	}
	return nil
}

// Worker consumes notification tasks and delivers the emails.
type Worker struct {
	Notifier EmailNotifier
	Logger   zerolog.Logger
}

// Register attaches the worker's handlers to the asynq mux.
func (w Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskOrderEmail, w.HandleOrderEmail)
}

// HandleOrderEmail processes a single email delivery task. Errors are
// returned so asynq retries with backoff.
func (w Worker) HandleOrderEmail(ctx context.Context, task *asynq.Task) error {
	result := "error"
	defer func() {
		if obs.NotifyDeliveriesTotal != nil {
			obs.NotifyDeliveriesTotal.WithLabelValues(result).Inc()
		}
	}()
	var tp taskPayload
	if err := json.Unmarshal(task.Payload(), &tp); err != nil {
		result = "malformed"
		w.Logger.Error().Err(err).Msg("notify_task_malformed")
		return fmt.Errorf("notify: decode task: %w", asynq.SkipRetry)
	}
	event := events.DomainEvent{
		Topic:       tp.Topic,
		AggregateID: tp.AggregateID,
		Payload:     []byte(tp.Payload),
		OccurredAt:  tp.OccurredAt,
	}
	if err := w.Notifier.Notify(ctx, event); err != nil {
		w.Logger.Error().Err(err).Str("topic", tp.Topic).Msg("notify_delivery_failed")
		return err
	}
	result = "ok"
	w.Logger.Info().Str("topic", tp.Topic).Str("aggregate_id", tp.AggregateID).Msg("notify_delivered")
	return nil
}
