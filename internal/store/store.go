// Package store implements the append-only, soft-deletable container for
// narrative and state events plus their projection snapshots.
package store

import (
	"fmt"
	"sort"

	"talekeeper/internal/event"
)

// Version is the current persisted store format generation.
const Version = 4

// Store is the unified event store for one chat session. Both event slices
// are kept sorted by (MessageID asc, Timestamp asc) after every mutation.
// All operations are synchronous and total: no operation panics for a
// well-formed store, and malformed events are rejected by validation before
// they reach Append.
type Store struct {
	Version           int                     `json:"version"`
	NarrativeEvents   []event.Narrative       `json:"narrativeEvents"`
	StateEvents       []event.State           `json:"stateEvents"`
	InitialProjection *event.ChapterSnapshot  `json:"initialProjection,omitempty"`
	ChapterSnapshots  []event.ChapterSnapshot `json:"chapterSnapshots,omitempty"`

	// ProjectionInvalidFrom is an advisory watermark: the lowest message id
	// touched by an edit since consumers last re-rendered. Nil means clean.
	ProjectionInvalidFrom *int `json:"projectionInvalidFrom,omitempty"`

	// Extracted marks (messageId, swipeId) pairs whose extraction has
	// completed, so a second completion signal racing the first is dropped.
	Extracted map[string]bool `json:"extracted,omitempty"`
}

// New returns an empty store at the current version.
func New() *Store {
	return &Store{
		Version:         Version,
		NarrativeEvents: []event.Narrative{},
		StateEvents:     []event.State{},
		Extracted:       map[string]bool{},
	}
}

func extractionKey(messageID, swipeID int) string {
	return fmt.Sprintf("%d:%d", messageID, swipeID)
}

// Append validates and inserts state events, then restores sort order.
func (s *Store) Append(events ...event.State) error {
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return fmt.Errorf("appending state event: %w", err)
		}
	}
	s.StateEvents = append(s.StateEvents, events...)
	s.sortStateEvents()
	return nil
}

// AppendNarrative validates and inserts narrative events, then restores sort
// order.
func (s *Store) AppendNarrative(events ...event.Narrative) error {
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return fmt.Errorf("appending narrative event: %w", err)
		}
	}
	s.NarrativeEvents = append(s.NarrativeEvents, events...)
	s.sortNarrativeEvents()
	return nil
}

func (s *Store) sortStateEvents() {
	sort.SliceStable(s.StateEvents, func(i, j int) bool {
		a, b := s.StateEvents[i], s.StateEvents[j]
		if a.MessageID != b.MessageID {
			return a.MessageID < b.MessageID
		}
		return a.Timestamp < b.Timestamp
	})
}

func (s *Store) sortNarrativeEvents() {
	sort.SliceStable(s.NarrativeEvents, func(i, j int) bool {
		a, b := s.NarrativeEvents[i], s.NarrativeEvents[j]
		if a.MessageID != b.MessageID {
			return a.MessageID < b.MessageID
		}
		return a.Timestamp < b.Timestamp
	})
}

// SoftDelete flags the event with the given id as deleted. It reports false
// when no event carries the id, which is expected during concurrent-edit
// races and is not an error.
func (s *Store) SoftDelete(id string) bool {
	for i := range s.StateEvents {
		if s.StateEvents[i].ID == id {
			s.StateEvents[i].Deleted = true
			return true
		}
	}
	for i := range s.NarrativeEvents {
		if s.NarrativeEvents[i].ID == id {
			s.NarrativeEvents[i].Deleted = true
			return true
		}
	}
	return false
}

// SoftDeleteAtMessage flags every event at the message, across all swipes.
func (s *Store) SoftDeleteAtMessage(messageID int) int {
	count := 0
	for i := range s.StateEvents {
		if s.StateEvents[i].MessageID == messageID && !s.StateEvents[i].Deleted {
			s.StateEvents[i].Deleted = true
			count++
		}
	}
	for i := range s.NarrativeEvents {
		if s.NarrativeEvents[i].MessageID == messageID && !s.NarrativeEvents[i].Deleted {
			s.NarrativeEvents[i].Deleted = true
			count++
		}
	}
	return count
}

// SoftDeleteAtSwipe flags every event at the specific (message, swipe) pair.
func (s *Store) SoftDeleteAtSwipe(messageID, swipeID int) int {
	count := 0
	for i := range s.StateEvents {
		e := &s.StateEvents[i]
		if e.MessageID == messageID && e.SwipeID == swipeID && !e.Deleted {
			e.Deleted = true
			count++
		}
	}
	for i := range s.NarrativeEvents {
		e := &s.NarrativeEvents[i]
		if e.MessageID == messageID && e.SwipeID == swipeID && !e.Deleted {
			e.Deleted = true
			count++
		}
	}
	return count
}

// ReindexSwipesAfterDeletion decrements the swipe id of every event at the
// message whose swipe id is greater than deletedSwipeID. Swipe ids are
// positional, not stable, so removing a swipe shifts its successors down.
func (s *Store) ReindexSwipesAfterDeletion(messageID, deletedSwipeID int) {
	for i := range s.StateEvents {
		e := &s.StateEvents[i]
		if e.MessageID == messageID && e.SwipeID > deletedSwipeID {
			e.SwipeID--
		}
	}
	for i := range s.NarrativeEvents {
		e := &s.NarrativeEvents[i]
		if e.MessageID == messageID && e.SwipeID > deletedSwipeID {
			e.SwipeID--
		}
	}
	for i := range s.ChapterSnapshots {
		snap := &s.ChapterSnapshots[i]
		if snap.MessageID == messageID && snap.SwipeID > deletedSwipeID {
			snap.SwipeID--
		}
	}
}

// DeleteEventsAfterMessage removes every event, snapshot, and extraction
// marker past the boundary. Used when chat history is truncated or branched:
// the messages no longer exist, so their events are dropped outright rather
// than soft-deleted.
func (s *Store) DeleteEventsAfterMessage(boundary int) int {
	removed := 0

	kept := s.StateEvents[:0]
	for _, e := range s.StateEvents {
		if e.MessageID <= boundary {
			kept = append(kept, e)
		} else {
			removed++
		}
	}
	s.StateEvents = kept

	keptNarrative := s.NarrativeEvents[:0]
	for _, e := range s.NarrativeEvents {
		if e.MessageID <= boundary {
			keptNarrative = append(keptNarrative, e)
		} else {
			removed++
		}
	}
	s.NarrativeEvents = keptNarrative

	keptSnapshots := s.ChapterSnapshots[:0]
	for _, snap := range s.ChapterSnapshots {
		if snap.MessageID <= boundary {
			keptSnapshots = append(keptSnapshots, snap)
		}
	}
	s.ChapterSnapshots = keptSnapshots

	for key := range s.Extracted {
		var messageID, swipeID int
		if _, err := fmt.Sscanf(key, "%d:%d", &messageID, &swipeID); err == nil && messageID > boundary {
			delete(s.Extracted, key)
		}
	}

	return removed
}

// InvalidateSnapshotsFrom drops chapter snapshots at or after the edited
// message and lowers the watermark. The initial projection survives unless
// the edit reaches it.
func (s *Store) InvalidateSnapshotsFrom(messageID int) {
	kept := s.ChapterSnapshots[:0]
	for _, snap := range s.ChapterSnapshots {
		if snap.MessageID < messageID {
			kept = append(kept, snap)
		}
	}
	s.ChapterSnapshots = kept
	s.MarkProjectionInvalid(messageID)
}

// MarkProjectionInvalid lowers the advisory watermark to min(current, m).
func (s *Store) MarkProjectionInvalid(messageID int) {
	if s.ProjectionInvalidFrom == nil || messageID < *s.ProjectionInvalidFrom {
		m := messageID
		s.ProjectionInvalidFrom = &m
	}
}

// ClearProjectionInvalid resets the watermark once consumers have
// re-rendered.
func (s *Store) ClearProjectionInvalid() {
	s.ProjectionInvalidFrom = nil
}

// MarkExtracted records that extraction completed for the pair.
func (s *Store) MarkExtracted(messageID, swipeID int) {
	if s.Extracted == nil {
		s.Extracted = map[string]bool{}
	}
	s.Extracted[extractionKey(messageID, swipeID)] = true
}

// ClearExtracted forgets a completed extraction so the pair may be
// re-extracted after a rewrite.
func (s *Store) ClearExtracted(messageID, swipeID int) {
	delete(s.Extracted, extractionKey(messageID, swipeID))
}

// WasExtracted reports whether the pair already completed extraction.
func (s *Store) WasExtracted(messageID, swipeID int) bool {
	return s.Extracted[extractionKey(messageID, swipeID)]
}

// SetInitialProjection records the bootstrap snapshot. The snapshot state is
// inclusive of the recorded message's events for the recorded swipe.
func (s *Store) SetInitialProjection(snap *event.ChapterSnapshot) {
	s.InitialProjection = snap
}

// AddChapterSnapshot records a cached projection at a chapter boundary,
// replacing any previous snapshot for the same chapter index.
func (s *Store) AddChapterSnapshot(snap event.ChapterSnapshot) {
	for i := range s.ChapterSnapshots {
		if s.ChapterSnapshots[i].ChapterIndex == snap.ChapterIndex {
			s.ChapterSnapshots[i] = snap
			return
		}
	}
	s.ChapterSnapshots = append(s.ChapterSnapshots, snap)
	sort.SliceStable(s.ChapterSnapshots, func(i, j int) bool {
		return s.ChapterSnapshots[i].MessageID < s.ChapterSnapshots[j].MessageID
	})
}
