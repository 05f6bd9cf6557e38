package milestone

import (
	"talekeeper/internal/event"
	"talekeeper/internal/store"
)

// seenSet tracks which milestones each pair key has already reached.
type seenSet map[string]map[Type]bool

func (s seenSet) has(pairKey string, m Type) bool {
	return s[pairKey][m]
}

func (s seenSet) mark(pairKey string, m Type) {
	if s[pairKey] == nil {
		s[pairKey] = map[Type]bool{}
	}
	s[pairKey][m] = true
}

// Recompute rederives firstFor tags for every pair across the whole store.
func Recompute(s *store.Store) {
	RecomputeFrom(s, 0, nil)
}

// RecomputeFrom rederives firstFor tags for events at or after fromMessageID.
// When pairKeys is non-empty only those pairs are touched. The seen-set is
// first reconstructed from all active events strictly before the restart
// point, so a partial recompute observes the same history as a full one.
func RecomputeFrom(s *store.Store, fromMessageID int, pairKeys []string) {
	scope := map[string]bool{}
	for _, key := range pairKeys {
		scope[key] = true
	}
	inScope := func(key string) bool {
		return len(scope) == 0 || scope[key]
	}

	seen := seenSet{}
	for i := range s.NarrativeEvents {
		e := &s.NarrativeEvents[i]
		if e.Deleted || e.MessageID >= fromMessageID {
			continue
		}
		for _, pair := range e.AffectedPairs {
			key := pair.Key()
			if !inScope(key) {
				continue
			}
			for _, m := range pair.FirstFor {
				seen.mark(key, Type(m))
			}
		}
	}

	// Events are already sorted by (messageId, timestamp), so a single
	// forward walk is first-occurrence order.
	for i := range s.NarrativeEvents {
		e := &s.NarrativeEvents[i]
		if e.Deleted || e.MessageID < fromMessageID {
			continue
		}
		for j := range e.AffectedPairs {
			pair := &e.AffectedPairs[j]
			key := pair.Key()
			if !inScope(key) {
				continue
			}
			pair.FirstFor = nil
			pair.MilestoneDescriptions = nil
			for _, eventType := range e.EventTypes {
				m, ok := ForEventType(eventType)
				if !ok || seen.has(key, m) {
					continue
				}
				pair.FirstFor = append(pair.FirstFor, string(m))
				describe(pair, m)
				seen.mark(key, m)
			}
		}
	}
}

// PromoteAfterDeletion re-tags milestones orphaned by soft-deleting the
// event: for each pair and milestone the deleted event was first for, the
// next surviving event for that pair whose event types include a trigger of
// the same milestone inherits the tag.
func PromoteAfterDeletion(s *store.Store, deleted *event.Narrative) {
	for _, pair := range deleted.AffectedPairs {
		key := pair.Key()
		for _, tagged := range pair.FirstFor {
			m := Type(tagged)
			promoteOne(s, deleted, key, m)
		}
	}
}

func promoteOne(s *store.Store, deleted *event.Narrative, pairKey string, m Type) {
	for i := range s.NarrativeEvents {
		e := &s.NarrativeEvents[i]
		if e.Deleted || e.ID == deleted.ID {
			continue
		}
		if e.MessageID < deleted.MessageID ||
			(e.MessageID == deleted.MessageID && e.Timestamp < deleted.Timestamp) {
			continue
		}
		idx := e.PairIndex(pairKey)
		if idx < 0 {
			continue
		}
		if !triggers(e.EventTypes, m) {
			continue
		}
		pair := &e.AffectedPairs[idx]
		if !containsType(pair.FirstFor, m) {
			pair.FirstFor = append(pair.FirstFor, string(m))
			describe(pair, m)
		}
		return
	}
}

// describe records the milestone's display text next to its tag, so readers
// of the serialized event need no access to the derivation table.
func describe(pair *event.AffectedPair, m Type) {
	if pair.MilestoneDescriptions == nil {
		pair.MilestoneDescriptions = map[string]string{}
	}
	pair.MilestoneDescriptions[string(m)] = Describe(m)
}

func triggers(eventTypes []string, m Type) bool {
	for _, eventType := range eventTypes {
		if got, ok := ForEventType(eventType); ok && got == m {
			return true
		}
	}
	return false
}

func containsType(values []string, m Type) bool {
	for _, v := range values {
		if v == string(m) {
			return true
		}
	}
	return false
}

// Milestones collects the accumulated milestone set for a pair from active
// events.
func Milestones(s *store.Store, pairKey string) map[Type]bool {
	out := map[Type]bool{}
	for i := range s.NarrativeEvents {
		e := &s.NarrativeEvents[i]
		if e.Deleted {
			continue
		}
		idx := e.PairIndex(pairKey)
		if idx < 0 {
			continue
		}
		for _, m := range e.AffectedPairs[idx].FirstFor {
			out[Type(m)] = true
		}
	}
	return out
}

// StatusOf derives the current relationship status for a pair.
func StatusOf(s *store.Store, pairKey string) Status {
	return StatusFor(Milestones(s, pairKey))
}
