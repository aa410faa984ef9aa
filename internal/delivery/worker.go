package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"safewheels-anpr/internal/domain/detection"
	"safewheels-anpr/internal/notifier"
)

// Worker states and the events that move between them.
const (
	StateIdle       = "idle"
	StatePolling    = "polling"
	StateDelivering = "delivering"

	eventPoll    = "poll"
	eventDeliver = "deliver"
	eventRest    = "rest"
)

type RecordSource interface {
	ListAfter(ctx context.Context, minID int64) ([]detection.Record, error)
}

type CursorStore interface {
	Load() (int64, error)
	Store(id int64) error
}

type Renderer interface {
	Render(rec detection.Record) ([]byte, string, error)
}

type Notifier interface {
	Send(ctx context.Context, chatID int64, alert notifier.Alert) error
}

// Worker polls for stored detections past the delivery watermark, renders an
// alert per record and fans it out to every recipient, advancing the
// persisted cursor under the partial-success rule: a record counts as
// delivered as long as at least one recipient did not explicitly refuse it.
//
// Exactly one Worker may run against a cursor file; the watermark has no
// concurrency control. Delivery is at-least-once: a transport timeout is
// treated as possibly-delivered, so a crash between a timed-out send and the
// next cursor persist can repeat a send after restart.
type Worker struct {
	records    RecordSource
	cursors    CursorStore
	renderer   Renderer
	notifier   Notifier
	recipients []int64

	pollInterval time.Duration
	machine      *fsm.FSM
	cursor       int64
	log          zerolog.Logger
}

func NewWorker(
	records RecordSource,
	cursors CursorStore,
	renderer Renderer,
	notif Notifier,
	recipients []int64,
	pollInterval time.Duration,
	log zerolog.Logger,
) *Worker {
	w := &Worker{
		records:      records,
		cursors:      cursors,
		renderer:     renderer,
		notifier:     notif,
		recipients:   recipients,
		pollInterval: pollInterval,
		log:          log,
	}

	w.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventPoll, Src: []string{StateIdle}, Dst: StatePolling},
			{Name: eventDeliver, Src: []string{StatePolling}, Dst: StateDelivering},
			{Name: eventRest, Src: []string{StatePolling, StateDelivering}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				w.log.Trace().Str("from", e.Src).Str("to", e.Dst).Msg("delivery state change")
			},
		},
	)

	return w
}

// State reports the current loop state, mainly for health endpoints.
func (w *Worker) State() string {
	return w.machine.Current()
}

// Cursor reports the in-memory watermark.
func (w *Worker) Cursor() int64 {
	return w.cursor
}

// Run loads the persisted cursor and loops until the context is cancelled.
// Cancellation is honored between cycles; a poll failure is logged and
// retried on the next cycle, while cursor persistence failures terminate the
// loop since continuing could double-send or silently drop records.
func (w *Worker) Run(ctx context.Context) error {
	if len(w.recipients) == 0 {
		return errors.New("no recipients configured")
	}

	id, err := w.cursors.Load()
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	w.cursor = id

	w.log.Info().
		Int64("cursor", id).
		Int("recipients", len(w.recipients)).
		Dur("poll_interval", w.pollInterval).
		Msg("delivery worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Int64("cursor", w.cursor).Msg("delivery worker stopping")
			return ctx.Err()
		default:
		}

		w.fire(ctx, eventPoll)

		records, err := w.records.ListAfter(ctx, w.cursor)
		switch {
		case err != nil:
			w.log.Error().Err(err).Int64("cursor", w.cursor).Msg("failed to poll new records")
		case len(records) > 0:
			w.log.Info().Int("count", len(records)).Int64("cursor", w.cursor).Msg("found new records")
			w.fire(ctx, eventDeliver)
			if err := w.deliverBatch(ctx, records); err != nil {
				w.fire(ctx, eventRest)
				return err
			}
		}

		w.fire(ctx, eventRest)

		if !w.sleep(ctx) {
			w.log.Info().Int64("cursor", w.cursor).Msg("delivery worker stopping")
			return ctx.Err()
		}
	}
}

// deliverBatch processes records in ascending id order and stops at the
// first record that every recipient explicitly refused, so the cursor never
// skips over an undelivered record. A nil return means the loop keeps going;
// an error terminates the worker.
func (w *Worker) deliverBatch(ctx context.Context, records []detection.Record) error {
	for _, rec := range records {
		if rec.Vehicle.Type == detection.VehicleTypeMotorcycle {
			w.log.Debug().Int64("record_id", rec.ID).Msg("skipping motorcycle detection")
			continue
		}

		delivered, err := w.deliverRecord(ctx, rec)
		if err != nil {
			return err
		}
		if !delivered {
			// Re-fetched on the next poll, across the whole recipient set.
			w.log.Warn().Int64("record_id", rec.ID).Msg("record undelivered, stopping batch")
			return nil
		}

		w.cursor = rec.ID
		if err := w.cursors.Store(rec.ID); err != nil {
			return fmt.Errorf("persist cursor %d: %w", rec.ID, err)
		}
	}
	return nil
}

func (w *Worker) deliverRecord(ctx context.Context, rec detection.Record) (bool, error) {
	photo, caption, err := w.renderer.Render(rec)
	if err != nil {
		w.log.Error().Err(err).Int64("record_id", rec.ID).Str("stage", "render").Msg("failed to render alert")
		return false, nil
	}
	alert := notifier.Alert{RecordID: rec.ID, Photo: photo, Caption: caption}

	errorCount := 0
	for _, chatID := range w.recipients {
		err := w.notifier.Send(ctx, chatID, alert)
		switch {
		case err == nil:
		case errors.Is(err, notifier.ErrTimeout):
			// Possibly delivered; not counted as a failure.
			w.log.Warn().
				Err(err).
				Int64("record_id", rec.ID).
				Int64("recipient", chatID).
				Str("stage", "send").
				Msg("send timed out, assuming possibly delivered")
		default:
			errorCount++
			w.log.Error().
				Err(err).
				Int64("record_id", rec.ID).
				Int64("recipient", chatID).
				Str("stage", "send").
				Msg("failed to send alert")
		}
	}

	if errorCount == len(w.recipients) {
		return false, nil
	}

	w.log.Info().
		Int64("record_id", rec.ID).
		Str("plate", rec.Plate.Number).
		Int("errors", errorCount).
		Int("recipients", len(w.recipients)).
		Msg("alert delivered")
	return true, nil
}

// sleep waits out the poll interval, returning false if the context was
// cancelled first.
func (w *Worker) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (w *Worker) fire(ctx context.Context, event string) {
	if err := w.machine.Event(ctx, event); err != nil {
		w.log.Debug().Err(err).Str("event", event).Msg("state machine event rejected")
	}
}
