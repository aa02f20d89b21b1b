package sendstate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LastRunStore remembers the calendar day a periodic workflow last ran,
// as a single ISO date (YYYY-MM-DD) in a plain text file. Only the day is
// kept: two runs on the same day are both considered "already run"
// regardless of hour.
type LastRunStore struct {
	path string
}

func NewLastRunStore(path string) *LastRunStore {
	return &LastRunStore{path: path}
}

// Load returns the recorded day and true, or a zero time and false when
// the file is missing, empty, or unparsable.
func (s *LastRunStore) Load() (time.Time, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return time.Time{}, false
	}
	day, err := time.Parse("2006-01-02", strings.TrimSpace(string(raw)))
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func (s *LastRunStore) Save(day time.Time) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("sendstate: create state dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(day.Format("2006-01-02")), 0o644); err != nil {
		return fmt.Errorf("sendstate: write %s: %w", s.path, err)
	}
	return nil
}
