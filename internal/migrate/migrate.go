// Package migrate upgrades persisted stores from older schema generations to
// the current event-sourced format. v2 kept events embedded inside chapters,
// v3 flattened them into one array, and v4 adds state events, snapshots and
// extraction markers.
package migrate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"talekeeper/internal/event"
	"talekeeper/internal/milestone"
	"talekeeper/internal/store"
)

// Run upgrades a serialized store of any known generation to the current
// format. A store already at the current version passes through Decode
// unchanged. Tracked per-message states (used to synthesize state events when
// coming from v3) may be supplied explicitly; they are merged with any states
// embedded in the file itself.
//
// Unrecognized version numbers are migrated best-effort with a warning
// rather than rejected: old logs must stay openable.
func Run(raw []byte, states []MessageState, log zerolog.Logger) (*store.Store, error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("reading store version: %w", err)
	}

	switch probe.Version {
	case store.Version:
		return store.Decode(raw)
	case 3:
		v3, err := decodeV3(raw)
		if err != nil {
			return nil, err
		}
		return v3ToV4(v3, states, log)
	case 2:
		v2, err := decodeV2(raw)
		if err != nil {
			return nil, err
		}
		v3, err := v2ToV3(v2, log)
		if err != nil {
			return nil, err
		}
		return v3ToV4(v3, states, log)
	}

	log.Warn().Int("version", probe.Version).Msg("unknown store version, attempting best-effort migration")
	return runBestEffort(raw, states, log)
}

// runBestEffort guesses the generation from the document shape. Chapters with
// embedded event arrays mean v2, a flat events array means v3, anything else
// yields a fresh empty store.
func runBestEffort(raw []byte, states []MessageState, log zerolog.Logger) (*store.Store, error) {
	var shape struct {
		Chapters []json.RawMessage `json:"chapters"`
		Events   []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("probing store shape: %w", err)
	}

	switch {
	case len(shape.Events) > 0:
		v3, err := decodeV3(raw)
		if err != nil {
			return nil, err
		}
		return v3ToV4(v3, states, log)
	case len(shape.Chapters) > 0:
		v2, err := decodeV2(raw)
		if err != nil {
			return nil, err
		}
		v3, err := v2ToV3(v2, log)
		if err != nil {
			return nil, err
		}
		return v3ToV4(v3, states, log)
	}

	log.Warn().Msg("store shape unrecognized, starting empty")
	return store.New(), nil
}

// v2ToV3 flattens chapter-embedded and per-message event lists into one
// deduplicated array, rebuilds chapter and relationship references against it
// and freezes a relationship snapshot at the last closed chapter boundary.
func v2ToV3(src *storeV2, log zerolog.Logger) (*storeV3, error) {
	var events []event.Narrative
	seen := make(map[string]bool)
	add := func(e event.Narrative, chapterIndex *int) {
		key := fmt.Sprintf("%d|%s", e.MessageID, strings.TrimSpace(e.Summary))
		if seen[key] {
			return
		}
		seen[key] = true
		if chapterIndex != nil && e.ChapterIndex == nil {
			idx := *chapterIndex
			e.ChapterIndex = &idx
		}
		events = append(events, e)
	}

	for _, ch := range src.Chapters {
		idx := ch.Index
		for _, e := range ch.Events {
			add(e, &idx)
		}
	}
	for _, list := range src.MessageEvents {
		for _, e := range list {
			add(e, nil)
		}
	}

	normalizeNarratives(events)
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].MessageID != events[j].MessageID {
			return events[i].MessageID < events[j].MessageID
		}
		return events[i].Timestamp < events[j].Timestamp
	})

	tagged, err := deriveMilestones(events)
	if err != nil {
		return nil, fmt.Errorf("deriving milestones during v2 migration: %w", err)
	}

	out := &storeV3{Version: 3, Events: tagged}
	for _, ch := range src.Chapters {
		ref := chapterV3{
			Index:          ch.Index,
			Title:          ch.Title,
			StartMessageID: ch.StartMessageID,
			EndMessageID:   ch.EndMessageID,
			Open:           ch.Open,
		}
		for _, e := range tagged {
			if e.ChapterIndex != nil && *e.ChapterIndex == ch.Index {
				ref.EventIDs = append(ref.EventIDs, e.ID)
			}
		}
		out.Chapters = append(out.Chapters, ref)
	}

	pairEvents := make(map[string][]string)
	for _, e := range tagged {
		for _, pair := range e.AffectedPairs {
			key := pair.Key()
			pairEvents[key] = append(pairEvents[key], e.ID)
		}
	}
	for _, rel := range src.Relationships {
		if len(rel.Pair) != 2 {
			log.Warn().Strs("pair", rel.Pair).Msg("skipping malformed v2 relationship")
			continue
		}
		key := event.PairKey(rel.Pair[0], rel.Pair[1])
		first, second := event.SortPair(rel.Pair[0], rel.Pair[1])
		out.Relationships = append(out.Relationships, relationshipV3{
			Pair:     []string{first, second},
			EventIDs: pairEvents[key],
		})
	}

	if boundary, ok := lastClosedBoundary(src.Chapters); ok {
		out.RelationshipSnapshot = snapshotAt(tagged, boundary)
	}
	return out, nil
}

// v3ToV4 carries the narrative array into the current store and synthesizes
// state events by diffing the tracked per-message states the v3 era attached
// to messages. The earliest tracked state becomes the initial projection.
func v3ToV4(src *storeV3, states []MessageState, log zerolog.Logger) (*store.Store, error) {
	out := store.New()

	events := append([]event.Narrative(nil), src.Events...)
	normalizeNarratives(events)
	for i := range events {
		if events[i].ChapterIndex == nil {
			if idx, ok := chapterIndexFor(src.Chapters, events[i].ID); ok {
				events[i].ChapterIndex = &idx
			}
		}
	}
	if err := out.AppendNarrative(events...); err != nil {
		return nil, fmt.Errorf("carrying narrative events to v4: %w", err)
	}

	tracked := append(append([]MessageState(nil), src.Messages...), states...)
	tracked = compactTracked(tracked)

	var prev *event.ProjectedState
	for _, ms := range tracked {
		if ms.State == nil {
			continue
		}
		if prev == nil {
			out.SetInitialProjection(&event.ChapterSnapshot{
				MessageID: ms.MessageID,
				SwipeID:   ms.SwipeID,
				State:     ms.State.Clone(),
			})
			prev = ms.State
			continue
		}
		synth := diffStates(prev, ms.State, ms.MessageID, ms.SwipeID, int64(ms.MessageID)*1000)
		if err := out.Append(synth...); err != nil {
			return nil, fmt.Errorf("synthesizing state events at message %d: %w", ms.MessageID, err)
		}
		if idx, ok := chapterEndingAt(src.Chapters, ms.MessageID); ok {
			out.AddChapterSnapshot(event.ChapterSnapshot{
				ChapterIndex: idx,
				MessageID:    ms.MessageID,
				SwipeID:      ms.SwipeID,
				State:        ms.State.Clone(),
			})
		}
		prev = ms.State
	}

	milestone.Recompute(out)
	log.Info().
		Int("narrativeEvents", len(out.NarrativeEvents)).
		Int("stateEvents", len(out.StateEvents)).
		Int("trackedStates", len(tracked)).
		Msg("migrated store to current version")
	return out, nil
}

// normalizeNarratives backfills identifiers and timestamps that older
// generations did not always record.
func normalizeNarratives(events []event.Narrative) {
	for i := range events {
		if uuid.Validate(events[i].ID) != nil {
			events[i].ID = uuid.NewString()
		}
		if events[i].Timestamp == 0 {
			events[i].Timestamp = int64(events[i].MessageID)*1000 + int64(i)
		}
	}
}

// deriveMilestones runs first-occurrence tagging over a bare event list by
// staging it in a scratch store.
func deriveMilestones(events []event.Narrative) ([]event.Narrative, error) {
	scratch := store.New()
	if err := scratch.AppendNarrative(events...); err != nil {
		return nil, err
	}
	milestone.Recompute(scratch)
	return scratch.NarrativeEvents, nil
}

func lastClosedBoundary(chapters []chapterV2) (int, bool) {
	boundary, found := 0, false
	for _, ch := range chapters {
		if !ch.Open && ch.EndMessageID >= boundary {
			boundary = ch.EndMessageID
			found = true
		}
	}
	return boundary, found
}

// snapshotAt freezes per-pair status and milestone history as of the given
// message boundary.
func snapshotAt(events []event.Narrative, boundary int) map[string]pairSnapshotV3 {
	milestones := make(map[string]map[milestone.Type]bool)
	for _, e := range events {
		if e.MessageID > boundary || e.Deleted {
			continue
		}
		for _, pair := range e.AffectedPairs {
			key := pair.Key()
			for _, first := range pair.FirstFor {
				if milestones[key] == nil {
					milestones[key] = make(map[milestone.Type]bool)
				}
				milestones[key][milestone.Type(first)] = true
			}
		}
	}

	out := make(map[string]pairSnapshotV3, len(milestones))
	for key, set := range milestones {
		snap := pairSnapshotV3{
			Status:    string(milestone.StatusFor(set)),
			MessageID: boundary,
		}
		for m := range set {
			snap.Milestones = append(snap.Milestones, string(m))
		}
		sort.Strings(snap.Milestones)
		out[key] = snap
	}
	return out
}

func chapterIndexFor(chapters []chapterV3, eventID string) (int, bool) {
	for _, ch := range chapters {
		for _, id := range ch.EventIDs {
			if id == eventID {
				return ch.Index, true
			}
		}
	}
	return 0, false
}

func chapterEndingAt(chapters []chapterV3, messageID int) (int, bool) {
	for _, ch := range chapters {
		if !ch.Open && ch.EndMessageID == messageID {
			return ch.Index, true
		}
	}
	return 0, false
}

// compactTracked sorts tracked states by message then swipe and keeps the
// last entry per (message, swipe).
func compactTracked(states []MessageState) []MessageState {
	sort.SliceStable(states, func(i, j int) bool {
		if states[i].MessageID != states[j].MessageID {
			return states[i].MessageID < states[j].MessageID
		}
		return states[i].SwipeID < states[j].SwipeID
	})
	out := states[:0]
	for _, ms := range states {
		if n := len(out); n > 0 && out[n-1].MessageID == ms.MessageID && out[n-1].SwipeID == ms.SwipeID {
			out[n-1] = ms
			continue
		}
		out = append(out, ms)
	}
	return out
}
