package render

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"safewheels-anpr/internal/domain/detection"
)

const captionTimeLayout = "2006-01-02 15:04:05"

// Renderer builds the alert artifact for a stored detection: the vehicle
// crop of the snapshot, with the plate box drawn when one was reported, and
// a human-readable caption.
type Renderer struct {
	annotator Annotator

	// confidenceThreshold uses the camera's integer confidence scale
	// (0-100); a plate is shown only at or above it.
	confidenceThreshold int

	log zerolog.Logger
}

func NewRenderer(annotator Annotator, confidenceThreshold int, log zerolog.Logger) *Renderer {
	return &Renderer{
		annotator:           annotator,
		confidenceThreshold: confidenceThreshold,
		log:                 log,
	}
}

// Render returns the alert photo and caption for a record. The photo is
// always the vehicle crop, never the plate crop; when the camera reported no
// vehicle box the full frame goes out instead.
func (r *Renderer) Render(rec detection.Record) ([]byte, string, error) {
	photo, err := r.annotator.RenderCrop(rec.ImagePath, rec.Plate.BBox, rec.Vehicle.BBox)
	if err != nil {
		return nil, "", fmt.Errorf("render record %d: %w", rec.ID, err)
	}

	r.log.Debug().
		Int64("record_id", rec.ID).
		Str("image_path", rec.ImagePath).
		Int("photo_bytes", len(photo)).
		Msg("rendered alert photo")

	return photo, r.caption(rec), nil
}

func (r *Renderer) caption(rec detection.Record) string {
	var b strings.Builder
	b.WriteString("🚗 Vehicle detected\n")

	var directionGlyph string
	switch rec.Snap.Direction {
	case "Obverse":
		directionGlyph = "⬇️"
	case "Reverse":
		directionGlyph = "⬆️"
	default:
		directionGlyph = "❓"
	}
	fmt.Fprintf(&b, "📏 Direction: %s\n", directionGlyph)

	switch {
	case rec.Plate.Confidence >= r.confidenceThreshold && rec.Plate.Number != "":
		fmt.Fprintf(&b, "📝 License plate: %s\n", rec.Plate.Number)
	case rec.Plate.BBox.Valid():
		b.WriteString("⚠️⚠️⚠️ No license plate recognized ⚠️⚠️⚠️\n")
	default:
		b.WriteString("🚨🚨🚨 No license plate detected 🚨🚨🚨\n")
	}

	fmt.Fprintf(&b, "⏱️ Time: %s", rec.Snap.Time.Format(captionTimeLayout))
	return b.String()
}
