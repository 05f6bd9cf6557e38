// Package ingest coordinates committing extracted candidate events into the
// store: deduplication against the prior projection, milestone re-derivation,
// extraction markers and snapshot maintenance all happen on one path.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"talekeeper/internal/dedup"
	"talekeeper/internal/event"
	"talekeeper/internal/milestone"
	"talekeeper/internal/projection"
	"talekeeper/internal/store"
)

// Coordinator serializes all mutations of one session's store. Store
// operations themselves are synchronous; the coordinator adds the in-flight
// guard that keeps a second extraction for the same (message, swipe) from
// racing the first.
type Coordinator struct {
	store     *store.Store
	engine    *projection.Engine
	canonical projection.CanonicalSwipe
	log       zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// New builds a coordinator over the store. canonical resolves the currently
// selected swipe per message and is consulted on every projection.
func New(s *store.Store, canonical projection.CanonicalSwipe, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:     s,
		engine:    projection.NewEngine(s),
		canonical: canonical,
		log:       log,
		inFlight:  make(map[string]bool),
	}
}

// Engine exposes the projection engine bound to the coordinator's store.
func (c *Coordinator) Engine() *projection.Engine {
	return c.engine
}

// Result summarizes one commit.
type Result struct {
	AcceptedState      int
	DroppedState       int
	AcceptedNarratives int
	Skipped            bool
	Pairs              []string
}

// Commit ingests the extraction output for one (message, swipe): state
// candidates are deduplicated against the prior projection, narrative events
// are deduplicated by summary, milestones are re-derived for the affected
// pairs and the pair is marked extracted. A commit for an already-extracted
// pair is skipped, and a commit racing an in-flight one is rejected.
func (c *Coordinator) Commit(ctx context.Context, messageID, swipeID int, states []event.State, narratives []event.Narrative) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("committing message %d: %w", messageID, err)
	}

	key := fmt.Sprintf("%d:%d", messageID, swipeID)
	c.mu.Lock()
	if c.inFlight[key] {
		c.mu.Unlock()
		return nil, fmt.Errorf("committing message %d: extraction already in flight for swipe %d", messageID, swipeID)
	}
	c.inFlight[key] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
	}()

	if c.store.WasExtracted(messageID, swipeID) {
		c.log.Debug().Int("message", messageID).Int("swipe", swipeID).Msg("already extracted, skipping")
		return &Result{Skipped: true}, nil
	}

	normalizeStates(states, messageID, swipeID)
	normalizeNarratives(narratives, messageID, swipeID)

	if c.store.InitialProjection == nil {
		return c.bootstrap(messageID, swipeID, states, narratives)
	}

	prior, err := c.engine.Before(messageID, c.canonical)
	if err != nil {
		return nil, fmt.Errorf("committing message %d: %w", messageID, err)
	}
	deduper := dedup.New(c.store, c.engine, c.canonical)
	accepted, err := deduper.FilterAgainst(prior, messageID, swipeID, states)
	if err != nil {
		return nil, fmt.Errorf("committing message %d: %w", messageID, err)
	}
	if err := c.store.Append(accepted...); err != nil {
		return nil, fmt.Errorf("committing message %d: %w", messageID, err)
	}

	fresh := c.freshNarratives(messageID, swipeID, narratives)
	if err := c.store.AppendNarrative(fresh...); err != nil {
		return nil, fmt.Errorf("committing message %d: %w", messageID, err)
	}
	c.store.MarkExtracted(messageID, swipeID)
	c.refreshInitialProjection(messageID)

	pairs := affectedPairs(fresh)
	if len(pairs) > 0 {
		milestone.RecomputeFrom(c.store, messageID, pairs)
	}
	c.maybeSnapshotChapter(messageID, swipeID, fresh)

	res := &Result{
		AcceptedState:      len(accepted),
		DroppedState:       len(states) - len(accepted),
		AcceptedNarratives: len(fresh),
		Pairs:              pairs,
	}
	c.log.Info().
		Int("message", messageID).
		Int("swipe", swipeID).
		Int("stateAccepted", res.AcceptedState).
		Int("stateDropped", res.DroppedState).
		Int("narratives", res.AcceptedNarratives).
		Msg("committed extraction")
	return res, nil
}

// bootstrap handles the very first commit: all state candidates are taken as
// given, folded onto an empty state, and the result becomes the initial
// projection, inclusive of this message's own events.
func (c *Coordinator) bootstrap(messageID, swipeID int, states []event.State, narratives []event.Narrative) (*Result, error) {
	base := event.NewProjectedState()
	for i := range states {
		if err := projection.Apply(base, states[i]); err != nil {
			return nil, fmt.Errorf("bootstrapping at message %d: %w", messageID, err)
		}
	}
	if err := c.store.Append(states...); err != nil {
		return nil, fmt.Errorf("bootstrapping at message %d: %w", messageID, err)
	}
	if err := c.store.AppendNarrative(narratives...); err != nil {
		return nil, fmt.Errorf("bootstrapping at message %d: %w", messageID, err)
	}
	c.store.SetInitialProjection(&event.ChapterSnapshot{
		MessageID: messageID,
		SwipeID:   swipeID,
		State:     base,
	})
	c.store.MarkExtracted(messageID, swipeID)

	pairs := affectedPairs(narratives)
	if len(pairs) > 0 {
		milestone.RecomputeFrom(c.store, messageID, pairs)
	}
	c.log.Info().Int("message", messageID).Int("swipe", swipeID).
		Int("stateEvents", len(states)).Msg("bootstrapped initial projection")
	return &Result{
		AcceptedState:      len(states),
		AcceptedNarratives: len(narratives),
		Pairs:              pairs,
	}, nil
}

// Replace rewrites one (message, swipe): its previous events are soft-deleted,
// snapshots at or past the message are invalidated, and the new candidates go
// through a normal commit.
func (c *Coordinator) Replace(ctx context.Context, messageID, swipeID int, states []event.State, narratives []event.Narrative) (*Result, error) {
	deleted := c.store.NarrativeEventsAt(messageID, swipeID)
	c.store.SoftDeleteAtSwipe(messageID, swipeID)
	c.store.ClearExtracted(messageID, swipeID)
	c.store.InvalidateSnapshotsFrom(messageID)
	for i := range deleted {
		milestone.PromoteAfterDeletion(c.store, &deleted[i])
	}
	return c.Commit(ctx, messageID, swipeID, states, narratives)
}

// DeleteSwipe removes one swipe's events and shifts the swipe ids of later
// variants down, mirroring positional swipe renumbering in the chat client.
func (c *Coordinator) DeleteSwipe(messageID, swipeID int) {
	deleted := c.store.NarrativeEventsAt(messageID, swipeID)
	removed := c.store.SoftDeleteAtSwipe(messageID, swipeID)
	c.store.ClearExtracted(messageID, swipeID)
	c.store.ReindexSwipesAfterDeletion(messageID, swipeID)
	c.store.InvalidateSnapshotsFrom(messageID)
	for i := range deleted {
		milestone.PromoteAfterDeletion(c.store, &deleted[i])
	}
	c.refreshInitialProjection(messageID)
	c.log.Info().Int("message", messageID).Int("swipe", swipeID).
		Int("events", removed).Msg("deleted swipe")
}

// DeleteEvent soft-deletes a single event by id, promoting any milestones it
// held to the next surviving occurrence.
func (c *Coordinator) DeleteEvent(id string) bool {
	if n := c.store.FindNarrative(id); n != nil {
		deleted := *n
		if !c.store.SoftDelete(id) {
			return false
		}
		milestone.PromoteAfterDeletion(c.store, &deleted)
		c.store.InvalidateSnapshotsFrom(deleted.MessageID)
		return true
	}
	if st := c.store.FindState(id); st != nil {
		messageID := st.MessageID
		if !c.store.SoftDelete(id) {
			return false
		}
		c.store.InvalidateSnapshotsFrom(messageID)
		c.refreshInitialProjection(messageID)
		return true
	}
	return false
}

// Truncate drops everything past the boundary message, for branch rollback.
func (c *Coordinator) Truncate(boundary int) int {
	removed := c.store.DeleteEventsAfterMessage(boundary)
	milestone.RecomputeFrom(c.store, boundary, nil)
	if init := c.store.InitialProjection; init != nil && init.MessageID > boundary {
		init.MessageID = boundary
		c.refreshInitialProjection(boundary)
	}
	c.log.Info().Int("boundary", boundary).Int("removed", removed).Msg("truncated store")
	return removed
}

// refreshInitialProjection rebuilds the bootstrap snapshot from the live log
// when a rewrite reaches its message. The bootstrap events themselves live in
// the log, so refolding canonical-path events from empty reproduces the
// inclusive snapshot over whatever survived the edit.
func (c *Coordinator) refreshInitialProjection(messageID int) {
	init := c.store.InitialProjection
	if init == nil || messageID > init.MessageID {
		return
	}
	swipe := c.canonical(init.MessageID)
	base := event.NewProjectedState()
	for _, ev := range c.store.StateEvents {
		if ev.Deleted || ev.MessageID > init.MessageID {
			continue
		}
		if ev.SwipeID != c.canonical(ev.MessageID) {
			continue
		}
		if err := projection.Apply(base, ev); err != nil {
			c.log.Warn().Err(err).Str("event", ev.ID).Msg("skipping event while rebuilding initial projection")
		}
	}
	c.store.SetInitialProjection(&event.ChapterSnapshot{
		MessageID: init.MessageID,
		SwipeID:   swipe,
		State:     base,
	})
}

// freshNarratives drops candidates whose summary already exists at the same
// message on any live swipe.
func (c *Coordinator) freshNarratives(messageID, swipeID int, candidates []event.Narrative) []event.Narrative {
	existing := make(map[string]bool)
	for _, e := range c.store.ActiveNarrativeEvents() {
		if e.MessageID == messageID {
			existing[strings.ToLower(strings.TrimSpace(e.Summary))] = true
		}
	}
	var fresh []event.Narrative
	for _, cand := range candidates {
		key := strings.ToLower(strings.TrimSpace(cand.Summary))
		if existing[key] {
			continue
		}
		existing[key] = true
		fresh = append(fresh, cand)
	}
	return fresh
}

// maybeSnapshotChapter caches a projection when a commit advances the story
// into a new chapter, so later projections replay from the boundary instead
// of the initial projection.
func (c *Coordinator) maybeSnapshotChapter(messageID, swipeID int, committed []event.Narrative) {
	highest := -1
	for _, e := range committed {
		if e.ChapterIndex != nil && *e.ChapterIndex > highest {
			highest = *e.ChapterIndex
		}
	}
	if highest < 0 {
		return
	}
	for _, snap := range c.store.ChapterSnapshots {
		if snap.ChapterIndex == highest {
			return
		}
	}
	state, err := c.engine.At(messageID, swipeID, c.canonical)
	if err != nil {
		c.log.Warn().Err(err).Int("chapter", highest).Msg("skipping chapter snapshot")
		return
	}
	c.store.AddChapterSnapshot(event.ChapterSnapshot{
		ChapterIndex: highest,
		MessageID:    messageID,
		SwipeID:      swipeID,
		State:        state,
	})
}

func normalizeStates(states []event.State, messageID, swipeID int) {
	now := time.Now().UnixMilli()
	for i := range states {
		states[i].MessageID = messageID
		states[i].SwipeID = swipeID
		if uuid.Validate(states[i].ID) != nil {
			states[i].ID = uuid.NewString()
		}
		if states[i].Timestamp == 0 {
			states[i].Timestamp = now + int64(i)
		}
	}
}

func normalizeNarratives(narratives []event.Narrative, messageID, swipeID int) {
	now := time.Now().UnixMilli()
	for i := range narratives {
		narratives[i].MessageID = messageID
		narratives[i].SwipeID = swipeID
		if uuid.Validate(narratives[i].ID) != nil {
			narratives[i].ID = uuid.NewString()
		}
		if narratives[i].Timestamp == 0 {
			narratives[i].Timestamp = now + int64(i)
		}
	}
}

func affectedPairs(narratives []event.Narrative) []string {
	seen := make(map[string]bool)
	var pairs []string
	for _, n := range narratives {
		for _, pair := range n.AffectedPairs {
			key := pair.Key()
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, key)
		}
	}
	return pairs
}
