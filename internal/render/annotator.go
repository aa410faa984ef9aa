package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"safewheels-anpr/internal/domain/detection"
)

// Annotator turns a stored snapshot into the alert photo: an optional
// highlight rectangle drawn on the frame, then a crop re-encoded as JPEG.
type Annotator interface {
	RenderCrop(path string, rect, crop detection.BoundingBox) ([]byte, error)
}

var plateBoxColor = color.RGBA{G: 255}

// CVAnnotator implements Annotator on top of OpenCV.
type CVAnnotator struct{}

func NewCVAnnotator() CVAnnotator {
	return CVAnnotator{}
}

func (CVAnnotator) RenderCrop(path string, rect, crop detection.BoundingBox) ([]byte, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return nil, fmt.Errorf("failed to read image %s", path)
	}
	defer img.Close()

	frame := image.Rect(0, 0, img.Cols(), img.Rows())

	if rect.Valid() {
		if r, ok := boxToRect(rect, frame); ok {
			gocv.Rectangle(&img, r, plateBoxColor, 2)
		}
	}

	out := img
	if crop.Valid() {
		if r, ok := boxToRect(crop, frame); ok {
			region := img.Region(r)
			defer region.Close()
			out = region
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image %s: %w", path, err)
	}
	defer buf.Close()

	// The buffer is backed by native memory, copy before it closes.
	encoded := make([]byte, buf.Len())
	copy(encoded, buf.GetBytes())
	return encoded, nil
}

// boxToRect clamps a camera-reported box to the frame bounds. Boxes that
// spill past the sensor edge happen whenever a vehicle is clipped at the
// frame boundary, and OpenCV's ROI constructor rejects them outright, so
// the out-of-frame part is discarded instead. A box entirely outside the
// frame reports ok=false and the caller keeps the full frame.
func boxToRect(box detection.BoundingBox, frame image.Rectangle) (image.Rectangle, bool) {
	r := image.Rect(box[0], box[1], box[2], box[3]).Intersect(frame)
	return r, !r.Empty()
}
