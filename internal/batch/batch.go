// Package batch parses candidate-event batch files, the handoff format
// between the extraction step and ingest.
package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"talekeeper/internal/event"
)

// Batch is one extraction's worth of candidates for a single (message, swipe).
// Candidates carry no ids or timestamps; ingest assigns those on commit.
type Batch struct {
	MessageID  int               `json:"messageId"`
	SwipeID    int               `json:"swipeId"`
	States     []event.State     `json:"stateEvents"`
	Narratives []event.Narrative `json:"narrativeEvents"`
	SourceFile string            `json:"-"`
}

var (
	ErrInvalidJSON     = errors.New("batch is not valid JSON")
	ErrNegativeMessage = errors.New("batch messageId must not be negative")
	ErrNegativeSwipe   = errors.New("batch swipeId must not be negative")
	ErrEmptyBatch      = errors.New("batch contains no candidates")
	ErrMissingKind     = errors.New("state candidate missing 'kind' field")
	ErrMissingSummary  = errors.New("narrative candidate missing 'summary' field")
)

// ParseFile reads and parses a batch file.
func ParseFile(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	b.SourceFile = path
	return b, nil
}

// Parse decodes and shape-checks a batch. Full event validation happens at
// commit time, after ingest has assigned ids and timestamps; Parse only
// rejects batches that could never commit.
func Parse(content []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(content, &b); err != nil {
		return nil, ErrInvalidJSON
	}

	if b.MessageID < 0 {
		return nil, ErrNegativeMessage
	}
	if b.SwipeID < 0 {
		return nil, ErrNegativeSwipe
	}
	if len(b.States) == 0 && len(b.Narratives) == 0 {
		return nil, ErrEmptyBatch
	}

	for i := range b.States {
		if b.States[i].Kind == "" {
			return nil, fmt.Errorf("state candidate %d: %w", i, ErrMissingKind)
		}
	}
	for i := range b.Narratives {
		if strings.TrimSpace(b.Narratives[i].Summary) == "" {
			return nil, fmt.Errorf("narrative candidate %d: %w", i, ErrMissingSummary)
		}
	}
	return &b, nil
}
