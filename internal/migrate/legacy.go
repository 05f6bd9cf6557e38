package migrate

import (
	"encoding/json"
	"fmt"

	"talekeeper/internal/event"
)

// storeV2 is the oldest persisted generation: chapters embed their own event
// lists, relationships embed their own milestone lists, and events for the
// still-open chapter live in per-message lists.
type storeV2 struct {
	Version       int                          `json:"version"`
	Chapters      []chapterV2                  `json:"chapters"`
	Relationships []relationshipV2             `json:"relationships"`
	MessageEvents map[string][]event.Narrative `json:"messageEvents"`
}

type chapterV2 struct {
	Index          int               `json:"index"`
	Title          string            `json:"title,omitempty"`
	StartMessageID int               `json:"startMessageId"`
	EndMessageID   int               `json:"endMessageId"`
	Open           bool              `json:"open,omitempty"`
	Events         []event.Narrative `json:"events"`
}

type relationshipV2 struct {
	Pair       []string      `json:"pair"`
	Status     string        `json:"status,omitempty"`
	Milestones []milestoneV2 `json:"milestones"`
}

type milestoneV2 struct {
	Type        string `json:"type"`
	MessageID   int    `json:"messageId"`
	Description string `json:"description,omitempty"`
}

// storeV3 has a single flat narrative-event array as the source of truth;
// chapters and relationships hold event-id references and firstFor is
// computed rather than stored per relationship.
type storeV3 struct {
	Version              int                       `json:"version"`
	Events               []event.Narrative         `json:"events"`
	Chapters             []chapterV3               `json:"chapters"`
	Relationships        []relationshipV3          `json:"relationships"`
	RelationshipSnapshot map[string]pairSnapshotV3 `json:"relationshipSnapshot,omitempty"`
	Messages             []MessageState            `json:"messages,omitempty"`
}

type chapterV3 struct {
	Index          int      `json:"index"`
	Title          string   `json:"title,omitempty"`
	StartMessageID int      `json:"startMessageId"`
	EndMessageID   int      `json:"endMessageId"`
	Open           bool     `json:"open,omitempty"`
	EventIDs       []string `json:"eventIds"`
}

type relationshipV3 struct {
	Pair     []string `json:"pair"`
	EventIDs []string `json:"eventIds"`
}

// pairSnapshotV3 freezes a relationship as of the last closed chapter
// boundary.
type pairSnapshotV3 struct {
	Status     string   `json:"status,omitempty"`
	Milestones []string `json:"milestones,omitempty"`
	MessageID  int      `json:"messageId"`
}

func decodeV2(data []byte) (*storeV2, error) {
	var s storeV2
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding v2 store: %w", err)
	}
	return &s, nil
}

func decodeV3(data []byte) (*storeV3, error) {
	var s storeV3
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding v3 store: %w", err)
	}
	return &s, nil
}
