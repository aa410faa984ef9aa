package delivery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"safewheels-anpr/internal/domain/detection"
	"safewheels-anpr/internal/notifier"
)

type fakeRecords struct {
	records []detection.Record
	listErr error
	minIDs  []int64
	onList  func(minID int64)
}

func (f *fakeRecords) ListAfter(_ context.Context, minID int64) ([]detection.Record, error) {
	f.minIDs = append(f.minIDs, minID)
	if f.onList != nil {
		f.onList(minID)
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []detection.Record
	for _, r := range f.records {
		if r.ID > minID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memCursor struct {
	value  int64
	stores []int64
}

func (c *memCursor) Load() (int64, error) { return c.value, nil }

func (c *memCursor) Store(id int64) error {
	c.value = id
	c.stores = append(c.stores, id)
	return nil
}

type fakeRenderer struct {
	failIDs map[int64]bool
	renders []int64
}

func (f *fakeRenderer) Render(rec detection.Record) ([]byte, string, error) {
	f.renders = append(f.renders, rec.ID)
	if f.failIDs[rec.ID] {
		return nil, "", errors.New("render failed")
	}
	return []byte("photo"), fmt.Sprintf("record-%d", rec.ID), nil
}

type sentAlert struct {
	chatID   int64
	recordID int64
	caption  string
}

type fakeNotifier struct {
	decide func(chatID int64, caption string) error
	sends  []sentAlert
}

func (f *fakeNotifier) Send(_ context.Context, chatID int64, alert notifier.Alert) error {
	f.sends = append(f.sends, sentAlert{chatID: chatID, recordID: alert.RecordID, caption: alert.Caption})
	if f.decide != nil {
		return f.decide(chatID, alert.Caption)
	}
	return nil
}

func record(id int64, vehicleType string) detection.Record {
	return detection.Record{
		ID:      id,
		Plate:   detection.Plate{Number: "AB123CD"},
		Vehicle: detection.Vehicle{Type: vehicleType},
		Snap:    detection.Snap{Time: time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)},
	}
}

func newTestWorker(records RecordSource, cursors CursorStore, renderer Renderer, notif Notifier, recipients []int64) *Worker {
	return NewWorker(records, cursors, renderer, notif, recipients, time.Millisecond, zerolog.Nop())
}

func TestDeliverBatch_PartialSuccessAdvancesCursor(t *testing.T) {
	cursors := &memCursor{}
	notif := &fakeNotifier{decide: func(chatID int64, _ string) error {
		if chatID == 100 {
			return errors.New("blocked by user")
		}
		return nil
	}}
	w := newTestWorker(nil, cursors, &fakeRenderer{}, notif, []int64{100, 200, 300})

	err := w.deliverBatch(context.Background(), []detection.Record{record(5, "Car")})
	if err != nil {
		t.Fatalf("deliverBatch failed: %v", err)
	}

	if len(cursors.stores) != 1 || cursors.stores[0] != 5 {
		t.Errorf("cursor stores = %v, want [5]", cursors.stores)
	}
	if w.Cursor() != 5 {
		t.Errorf("cursor = %d, want 5", w.Cursor())
	}
}

func TestDeliverBatch_AlertCarriesRecordID(t *testing.T) {
	notif := &fakeNotifier{}
	w := newTestWorker(nil, &memCursor{}, &fakeRenderer{}, notif, []int64{100, 200})

	if err := w.deliverBatch(context.Background(), []detection.Record{record(17, "Car")}); err != nil {
		t.Fatalf("deliverBatch failed: %v", err)
	}

	if len(notif.sends) != 2 {
		t.Fatalf("sends = %d, want 2", len(notif.sends))
	}
	for _, s := range notif.sends {
		if s.recordID != 17 {
			t.Errorf("alert record id = %d, want 17", s.recordID)
		}
	}
}

func TestDeliverBatch_FullFailureHoldsCursorAndStopsBatch(t *testing.T) {
	cursors := &memCursor{}
	notif := &fakeNotifier{decide: func(_ int64, caption string) error {
		if caption == "record-6" {
			return errors.New("blocked by user")
		}
		return nil
	}}
	renderer := &fakeRenderer{}
	w := newTestWorker(nil, cursors, renderer, notif, []int64{100, 200})

	batch := []detection.Record{record(5, "Car"), record(6, "Car"), record(7, "Car")}
	if err := w.deliverBatch(context.Background(), batch); err != nil {
		t.Fatalf("deliverBatch failed: %v", err)
	}

	if w.Cursor() != 5 {
		t.Errorf("cursor = %d, want 5 (must not skip past record 6)", w.Cursor())
	}
	// Record 7 must not be attempted once 6 fully failed.
	for _, id := range renderer.renders {
		if id == 7 {
			t.Error("record 7 was rendered despite batch stopping at 6")
		}
	}
}

func TestDeliverBatch_TimeoutIsNotAFailure(t *testing.T) {
	cursors := &memCursor{}
	notif := &fakeNotifier{decide: func(chatID int64, _ string) error {
		switch chatID {
		case 100:
			return fmt.Errorf("%w: read deadline", notifier.ErrTimeout)
		case 200:
			return errors.New("blocked by user")
		}
		return nil
	}}
	// Recipient 100 times out (ambiguous), 200 explicitly fails: one of two
	// did not explicitly error, so the record counts as delivered.
	w := newTestWorker(nil, cursors, &fakeRenderer{}, notif, []int64{100, 200})

	if err := w.deliverBatch(context.Background(), []detection.Record{record(9, "Car")}); err != nil {
		t.Fatalf("deliverBatch failed: %v", err)
	}

	if w.Cursor() != 9 {
		t.Errorf("cursor = %d, want 9", w.Cursor())
	}
}

func TestDeliverBatch_SkipsMotorcycles(t *testing.T) {
	cursors := &memCursor{}
	notif := &fakeNotifier{}
	renderer := &fakeRenderer{}
	w := newTestWorker(nil, cursors, renderer, notif, []int64{100})

	batch := []detection.Record{record(3, "Motorcycle"), record(4, "Car")}
	if err := w.deliverBatch(context.Background(), batch); err != nil {
		t.Fatalf("deliverBatch failed: %v", err)
	}

	for _, id := range renderer.renders {
		if id == 3 {
			t.Error("motorcycle record was rendered")
		}
	}
	for _, s := range notif.sends {
		if s.caption == "record-3" {
			t.Error("motorcycle record was sent")
		}
	}
	if w.Cursor() != 4 {
		t.Errorf("cursor = %d, want 4", w.Cursor())
	}
}

func TestDeliverBatch_RenderFailureStopsBatch(t *testing.T) {
	cursors := &memCursor{}
	renderer := &fakeRenderer{failIDs: map[int64]bool{5: true}}
	w := newTestWorker(nil, cursors, renderer, &fakeNotifier{}, []int64{100})

	batch := []detection.Record{record(5, "Car"), record(6, "Car")}
	if err := w.deliverBatch(context.Background(), batch); err != nil {
		t.Fatalf("deliverBatch failed: %v", err)
	}

	if len(cursors.stores) != 0 {
		t.Errorf("cursor stores = %v, want none", cursors.stores)
	}
}

func TestDeliverBatch_CursorPersistFailureIsFatal(t *testing.T) {
	w := newTestWorker(nil, failingCursor{}, &fakeRenderer{}, &fakeNotifier{}, []int64{100})

	err := w.deliverBatch(context.Background(), []detection.Record{record(5, "Car")})
	if err == nil {
		t.Error("expected error when cursor persistence fails")
	}
}

type failingCursor struct{}

func (failingCursor) Load() (int64, error) { return 0, nil }
func (failingCursor) Store(int64) error    { return errors.New("disk full") }

func TestRun_ResumesFromPersistedCursor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	records := &fakeRecords{onList: func(int64) { cancel() }}
	cursors := &memCursor{value: 42}
	w := newTestWorker(records, cursors, &fakeRenderer{}, &fakeNotifier{}, []int64{100})

	err := w.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	if len(records.minIDs) == 0 || records.minIDs[0] != 42 {
		t.Errorf("first poll minID = %v, want 42", records.minIDs)
	}
}

func TestRun_DeliversNewRecordsAndHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	records := &fakeRecords{records: []detection.Record{record(1, "Car"), record(2, "Car")}}
	polls := 0
	records.onList = func(int64) {
		polls++
		if polls >= 2 {
			cancel()
		}
	}

	cursors := &memCursor{}
	notif := &fakeNotifier{}
	w := newTestWorker(records, cursors, &fakeRenderer{}, notif, []int64{100, 200})

	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	// Two records, two recipients each.
	if len(notif.sends) != 4 {
		t.Errorf("sends = %d, want 4", len(notif.sends))
	}
	if cursors.value != 2 {
		t.Errorf("persisted cursor = %d, want 2", cursors.value)
	}

	// Cursor writes must be monotonically increasing.
	for i := 1; i < len(cursors.stores); i++ {
		if cursors.stores[i] < cursors.stores[i-1] {
			t.Errorf("cursor stores not monotone: %v", cursors.stores)
		}
	}
}

func TestRun_PollErrorIsRetriedNotFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	records := &fakeRecords{listErr: errors.New("connection refused")}
	polls := 0
	records.onList = func(int64) {
		polls++
		if polls >= 3 {
			cancel()
		}
	}

	w := newTestWorker(records, &memCursor{}, &fakeRenderer{}, &fakeNotifier{}, []int64{100})

	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled after retries", err)
	}
	if polls < 3 {
		t.Errorf("polls = %d, want at least 3", polls)
	}
}

func TestRun_NoRecipients(t *testing.T) {
	w := newTestWorker(&fakeRecords{}, &memCursor{}, &fakeRenderer{}, &fakeNotifier{}, nil)
	if err := w.Run(context.Background()); err == nil {
		t.Error("expected error with empty recipient set")
	}
}
