package store

import (
	"encoding/json"
	"fmt"

	"talekeeper/internal/event"
)

// Encode serializes the store as its plain JSON tree.
func (s *Store) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding store: %w", err)
	}
	return data, nil
}

// Decode parses a current-generation store. It validates required base fields
// on every event and returns an error, never panicking, so callers can fall
// back to an empty store. Optional fields added by later minor versions (the
// extraction marker set, snapshot forecasts) default to empty when absent.
// Older generations are rejected here; the migrate package owns those.
func Decode(data []byte) (*Store, error) {
	var s Store
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding store: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("decoding store: unsupported version %d, expected %d (run migrate)", s.Version, Version)
	}
	for i := range s.StateEvents {
		if err := s.StateEvents[i].Validate(); err != nil {
			return nil, fmt.Errorf("decoding store: state event %d: %w", i, err)
		}
	}
	for i := range s.NarrativeEvents {
		if err := s.NarrativeEvents[i].Validate(); err != nil {
			return nil, fmt.Errorf("decoding store: narrative event %d: %w", i, err)
		}
	}
	if s.NarrativeEvents == nil {
		s.NarrativeEvents = []event.Narrative{}
	}
	if s.StateEvents == nil {
		s.StateEvents = []event.State{}
	}
	if s.Extracted == nil {
		s.Extracted = map[string]bool{}
	}
	s.sortStateEvents()
	s.sortNarrativeEvents()
	return &s, nil
}
