package service

import (
	"context"

	"github.com/rs/zerolog"

	"safewheels-anpr/internal/domain/detection"
)

type ImageSaver interface {
	Save(event detection.Event) (string, error)
}

type RecordInserter interface {
	Insert(ctx context.Context, rec *detection.Record) error
}

// IngestService turns a raw camera notification into a stored image and a
// detection record.
type IngestService struct {
	images  ImageSaver
	records RecordInserter
	log     zerolog.Logger
}

func NewIngestService(images ImageSaver, records RecordInserter, log zerolog.Logger) *IngestService {
	return &IngestService{
		images:  images,
		records: records,
		log:     log,
	}
}

// IngestResult reports both phases of ingestion. RecordStored is false when
// the image was written but the record insert failed; the image is kept.
type IngestResult struct {
	RecordID     int64  `json:"record_id,omitempty"`
	ImagePath    string `json:"image_path"`
	RecordStored bool   `json:"record_stored"`
}

// ProcessNotification parses, stores the image, then inserts the record.
// Parse and image failures abort the attempt and surface to the caller so
// the camera retries. An insert failure after a successful image write is
// swallowed: the image is retained as an orphan for out-of-band
// reconciliation rather than deleted, trading consistency for data
// retention.
func (s *IngestService) ProcessNotification(ctx context.Context, raw []byte) (*IngestResult, error) {
	event, err := detection.Parse(raw)
	if err != nil {
		return nil, err
	}

	imagePath, err := s.images.Save(event)
	if err != nil {
		// No record may reference a missing image.
		return nil, err
	}

	rec := &detection.Record{
		Plate:     event.Plate,
		Vehicle:   event.Vehicle,
		Snap:      event.Snap,
		ImagePath: imagePath,
	}

	if err := s.records.Insert(ctx, rec); err != nil {
		s.log.Error().
			Err(err).
			Str("plate", event.Plate.Number).
			Str("image_path", imagePath).
			Str("stage", "insert").
			Msg("failed to store detection record, image retained for reconciliation")
		return &IngestResult{ImagePath: imagePath, RecordStored: false}, nil
	}

	s.log.Info().
		Int64("record_id", rec.ID).
		Str("plate", rec.Plate.Number).
		Time("detection_time", rec.Snap.Time).
		Str("image_path", imagePath).
		Msg("stored detection")

	return &IngestResult{RecordID: rec.ID, ImagePath: imagePath, RecordStored: true}, nil
}
