package event

// Narrative is a summarized story event extracted from conversation text.
// Unlike state events it carries no fold semantics; milestone derivation
// annotates its AffectedPairs after commit.
type Narrative struct {
	ID        string `json:"id" validate:"required,uuid"`
	MessageID int    `json:"messageId" validate:"min=0"`
	SwipeID   int    `json:"swipeId" validate:"min=0"`
	Timestamp int64  `json:"timestamp" validate:"required"`
	Deleted   bool   `json:"deleted,omitempty"`

	Summary            string         `json:"summary" validate:"required"`
	EventTypes         []string       `json:"eventTypes,omitempty"`
	TensionLevel       int            `json:"tensionLevel,omitempty"`
	TensionType        string         `json:"tensionType,omitempty"`
	Witnesses          []string       `json:"witnesses,omitempty"`
	Location           string         `json:"location,omitempty"`
	NarrativeTimestamp string         `json:"narrativeTimestamp,omitempty"`
	ChapterIndex       *int           `json:"chapterIndex,omitempty"`
	AffectedPairs      []AffectedPair `json:"affectedPairs,omitempty"`
}

// AffectedPair records which character pair an interaction changed. FirstFor
// and MilestoneDescriptions are derived by the milestone pass, never set by
// extraction.
type AffectedPair struct {
	Pair                  []string          `json:"pair" validate:"len=2"`
	Changes               string            `json:"changes,omitempty"`
	FirstFor              []string          `json:"firstFor,omitempty"`
	MilestoneDescriptions map[string]string `json:"milestoneDescriptions,omitempty"`
}

// Key returns the canonical pair key for the affected pair.
func (p AffectedPair) Key() string {
	if len(p.Pair) != 2 {
		return ""
	}
	return PairKey(p.Pair[0], p.Pair[1])
}

// PairIndex returns the index of the affected pair matching key, or -1.
func (n *Narrative) PairIndex(key string) int {
	for i, pair := range n.AffectedPairs {
		if pair.Key() == key {
			return i
		}
	}
	return -1
}
