package store

import (
	"strings"

	"talekeeper/internal/event"
)

// ActiveStateEvents returns non-deleted state events in store order.
func (s *Store) ActiveStateEvents() []event.State {
	out := make([]event.State, 0, len(s.StateEvents))
	for _, e := range s.StateEvents {
		if !e.Deleted {
			out = append(out, e)
		}
	}
	return out
}

// ActiveNarrativeEvents returns non-deleted narrative events in store order.
func (s *Store) ActiveNarrativeEvents() []event.Narrative {
	out := make([]event.Narrative, 0, len(s.NarrativeEvents))
	for _, e := range s.NarrativeEvents {
		if !e.Deleted {
			out = append(out, e)
		}
	}
	return out
}

// StateEventsAt returns non-deleted state events for a specific
// (message, swipe) pair.
func (s *Store) StateEventsAt(messageID, swipeID int) []event.State {
	var out []event.State
	for _, e := range s.StateEvents {
		if !e.Deleted && e.MessageID == messageID && e.SwipeID == swipeID {
			out = append(out, e)
		}
	}
	return out
}

// NarrativeEventsAt returns non-deleted narrative events for a specific
// (message, swipe) pair.
func (s *Store) NarrativeEventsAt(messageID, swipeID int) []event.Narrative {
	var out []event.Narrative
	for _, e := range s.NarrativeEvents {
		if !e.Deleted && e.MessageID == messageID && e.SwipeID == swipeID {
			out = append(out, e)
		}
	}
	return out
}

// NarrativeEventsForPair returns non-deleted narrative events that affect the
// given pair key.
func (s *Store) NarrativeEventsForPair(pairKey string) []event.Narrative {
	var out []event.Narrative
	for _, e := range s.NarrativeEvents {
		if e.Deleted {
			continue
		}
		if e.PairIndex(pairKey) >= 0 {
			out = append(out, e)
		}
	}
	return out
}

// NarrativeEventsForChapter returns non-deleted narrative events assigned to
// the chapter index.
func (s *Store) NarrativeEventsForChapter(chapterIndex int) []event.Narrative {
	var out []event.Narrative
	for _, e := range s.NarrativeEvents {
		if e.Deleted || e.ChapterIndex == nil {
			continue
		}
		if *e.ChapterIndex == chapterIndex {
			out = append(out, e)
		}
	}
	return out
}

// HasForecast reports whether an active forecast event exists for the area at
// the given (message, swipe) pair. Forecasts are write-once per area per
// message.
func (s *Store) HasForecast(area string, messageID, swipeID int) bool {
	for _, e := range s.StateEvents {
		if e.Deleted || e.Kind != event.KindForecast || e.Forecast == nil {
			continue
		}
		if e.MessageID == messageID && e.SwipeID == swipeID &&
			strings.EqualFold(e.Forecast.Area, area) {
			return true
		}
	}
	return false
}

// FindState returns the active state event with the given id, or nil.
func (s *Store) FindState(id string) *event.State {
	for i := range s.StateEvents {
		if s.StateEvents[i].ID == id {
			return &s.StateEvents[i]
		}
	}
	return nil
}

// FindNarrative returns the narrative event with the given id, or nil.
func (s *Store) FindNarrative(id string) *event.Narrative {
	for i := range s.NarrativeEvents {
		if s.NarrativeEvents[i].ID == id {
			return &s.NarrativeEvents[i]
		}
	}
	return nil
}

// ReplaceNarrative substitutes the full field set of the narrative event with
// the same id, preserving its position in the log. It reports false when the
// id is unknown.
func (s *Store) ReplaceNarrative(updated event.Narrative) bool {
	for i := range s.NarrativeEvents {
		if s.NarrativeEvents[i].ID == updated.ID {
			s.NarrativeEvents[i] = updated
			s.sortNarrativeEvents()
			return true
		}
	}
	return false
}

// ReplaceState substitutes the full field set of the state event with the
// same id. It reports false when the id is unknown.
func (s *Store) ReplaceState(updated event.State) bool {
	for i := range s.StateEvents {
		if s.StateEvents[i].ID == updated.ID {
			s.StateEvents[i] = updated
			s.sortStateEvents()
			return true
		}
	}
	return false
}

// MaxChapterIndex returns the highest chapter index carried by any active
// narrative event, or -1 when none is assigned.
func (s *Store) MaxChapterIndex() int {
	max := -1
	for _, e := range s.NarrativeEvents {
		if e.Deleted || e.ChapterIndex == nil {
			continue
		}
		if *e.ChapterIndex > max {
			max = *e.ChapterIndex
		}
	}
	return max
}
