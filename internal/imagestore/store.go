package imagestore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"safewheels-anpr/internal/domain/detection"
)

var ErrImageWrite = errors.New("image write failed")

const (
	dateDirLayout  = "2006-01-02"
	fileTimeLayout = "20060102_150405.000000"
)

// Store writes detection snapshots under a root directory, one subdirectory
// per calendar day of the snapshot time. Files are write-once: a camera
// replaying the same timestamp and plate finds its previous upload instead
// of clobbering it.
type Store struct {
	root string
	log  zerolog.Logger
}

func NewStore(root string, log zerolog.Logger) *Store {
	return &Store{root: root, log: log}
}

// Save decodes the event's base64 image payload and writes it to
// <root>/<YYYY-MM-DD>/<time>_<plate>.jpg, returning the full path. The day
// directory follows the snapshot's own clock, not the server wall clock.
func (s *Store) Save(event detection.Event) (string, error) {
	dir := filepath.Join(s.root, event.Snap.Time.Format(dateDirLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrImageWrite, dir, err)
	}

	filename := fmt.Sprintf("%s_%s.jpg", event.Snap.Time.Format(fileTimeLayout), event.Plate.Number)
	path := filepath.Join(dir, filename)

	if _, err := os.Stat(path); err == nil {
		s.log.Warn().
			Str("path", path).
			Str("plate", event.Plate.Number).
			Msg("image already exists, treating as camera replay")
		return path, nil
	}

	data, err := base64.StdEncoding.DecodeString(event.Image.Content)
	if err != nil {
		return "", fmt.Errorf("%w: decode base64: %v", ErrImageWrite, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", ErrImageWrite, path, err)
	}

	s.log.Debug().
		Str("path", path).
		Str("plate", event.Plate.Number).
		Int("bytes", len(data)).
		Msg("saved vehicle image")

	return path, nil
}
