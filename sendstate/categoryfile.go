package sendstate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CategoryStore keeps the last sent date per entity and category, backed
// by a JSON file of the form {"<entity>": {"<category>": "YYYY-MM-DD"}}.
// Used by workflows that send more than one greeting category to the same
// entity (e.g. natal and ano_novo).
type CategoryStore struct {
	path string
	sent map[string]map[string]string
}

func NewCategoryStore(path string) *CategoryStore {
	return &CategoryStore{path: path, sent: map[string]map[string]string{}}
}

// Load reads the backing file, treating absence or corruption as empty
// state. Entries whose value is not a category map are dropped.
func (s *CategoryStore) Load() error {
	s.sent = map[string]map[string]string{}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var m map[string]map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	for entity, cats := range m {
		if cats == nil {
			continue
		}
		s.sent[entity] = cats
	}
	return nil
}

func (s *CategoryStore) HasSent(_ context.Context, entityID, category, period string) (bool, error) {
	return s.sent[entityID][category] == period, nil
}

func (s *CategoryStore) MarkSent(_ context.Context, entityID, category, period string, _ time.Time) error {
	if s.sent[entityID] == nil {
		s.sent[entityID] = map[string]string{}
	}
	s.sent[entityID][category] = period
	return nil
}

func (s *CategoryStore) Flush() error {
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
