package cursor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileStore persists the delivery watermark (last delivered record id) as a
// decimal integer in a single file. Writes go through a temp file and rename
// so a crash mid-write never leaves a torn value behind.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the persisted watermark, or 0 when no file exists yet, which
// means "deliver everything".
func (s *FileStore) Load() (int64, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor %s: %w", s.path, err)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cursor %s: %w", s.path, err)
	}
	return id, nil
}

func (s *FileStore) Store(id int64) error {
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(id, 10)), 0o644); err != nil {
		return fmt.Errorf("write cursor %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit cursor %s: %w", s.path, err)
	}
	return nil
}

// Path is exposed for startup logging.
func (s *FileStore) Path() string {
	return filepath.Clean(s.path)
}
