package sendstate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DayStore keeps the last sent date per entity for a single category,
// backed by a JSON file of the form {"<entity>": "YYYY-MM-DD"}. Only the
// most recent period is retained, which is enough to answer "already sent
// this period" for daily workflows such as birthdays.
type DayStore struct {
	path string
	sent map[string]string
}

func NewDayStore(path string) *DayStore {
	return &DayStore{path: path, sent: map[string]string{}}
}

// Load reads the backing file. A missing or corrupt file yields an empty
// state: re-sending is preferred over never sending again.
func (s *DayStore) Load() error {
	s.sent = map[string]string{}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	s.sent = m
	return nil
}

func (s *DayStore) HasSent(_ context.Context, entityID, _, period string) (bool, error) {
	return s.sent[entityID] == period, nil
}

func (s *DayStore) MarkSent(_ context.Context, entityID, _, period string, _ time.Time) error {
	s.sent[entityID] = period
	return nil
}

// Flush persists the current state, creating the state directory on first
// write.
func (s *DayStore) Flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("sendstate: create state dir: %w", err)
	}
	raw, err := json.MarshalIndent(s.sent, "", "  ")
	if err != nil {
		return fmt.Errorf("sendstate: encode %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("sendstate: write %s: %w", s.path, err)
	}
	return nil
}
