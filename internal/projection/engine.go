package projection

import (
	"errors"
	"fmt"

	"talekeeper/internal/event"
	"talekeeper/internal/store"
)

// ErrNotBootstrapped is returned when projection is requested before any
// initial projection has been recorded. Every other path assumes projection
// succeeds once bootstrapped, so this is a hard error rather than a fallback.
var ErrNotBootstrapped = errors.New("no initial projection recorded")

// CanonicalSwipe resolves the currently selected swipe for a message. It is
// backed by the host's chat array and treated as authoritative and stateless.
type CanonicalSwipe func(messageID int) int

// Engine computes projections against a store. Snapshot use is a pure
// optimization: the result is identical to a replay from the initial
// projection for any valid snapshot choice.
type Engine struct {
	store *store.Store
}

func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s}
}

// At reconstructs the state at (messageID, swipeID). Events at messages
// strictly before the target contribute only on the canonical swipe path;
// events at the target itself use the caller-supplied swipe, so the engine
// can answer "what would the state be if swipe K were selected" even when K
// is not canonical.
func (e *Engine) At(messageID, swipeID int, canonical CanonicalSwipe) (*event.ProjectedState, error) {
	if e.store.InitialProjection == nil {
		return nil, ErrNotBootstrapped
	}
	base := e.selectBase(messageID, swipeID, canonical)
	return e.fold(base, messageID, swipeID, canonical)
}

// Before reconstructs the state immediately prior to the message: the
// canonical projection at messageID-1, or the pre-bootstrap empty state when
// the message is at or before the initial projection.
func (e *Engine) Before(messageID int, canonical CanonicalSwipe) (*event.ProjectedState, error) {
	if e.store.InitialProjection == nil {
		return event.NewProjectedState(), nil
	}
	if messageID <= e.store.InitialProjection.MessageID {
		return event.NewProjectedState(), nil
	}
	prior := messageID - 1
	return e.At(prior, canonical(prior), canonical)
}

// FullReplay reconstructs the state ignoring chapter snapshots, folding every
// canonical-path event from the initial projection forward. It exists so the
// snapshot-assisted path can be checked against it.
func (e *Engine) FullReplay(messageID, swipeID int, canonical CanonicalSwipe) (*event.ProjectedState, error) {
	if e.store.InitialProjection == nil {
		return nil, ErrNotBootstrapped
	}
	base := e.initialBase(messageID, swipeID, canonical)
	return e.fold(base, messageID, swipeID, canonical)
}

// selectBase picks the usable snapshot with the greatest message id at or
// before the target, falling back to the initial projection. A snapshot is
// usable only if its recorded swipe is still canonical at its message, and,
// when it sits exactly at the target, only if the requested swipe matches it.
func (e *Engine) selectBase(messageID, swipeID int, canonical CanonicalSwipe) *event.ChapterSnapshot {
	var best *event.ChapterSnapshot
	for i := range e.store.ChapterSnapshots {
		snap := &e.store.ChapterSnapshots[i]
		if !snapshotUsable(snap, messageID, swipeID, canonical) {
			continue
		}
		if best == nil || snap.MessageID > best.MessageID {
			best = snap
		}
	}
	if best != nil {
		return best
	}
	return e.initialBase(messageID, swipeID, canonical)
}

func (e *Engine) initialBase(messageID, swipeID int, canonical CanonicalSwipe) *event.ChapterSnapshot {
	init := e.store.InitialProjection
	if snapshotUsable(init, messageID, swipeID, canonical) {
		return init
	}
	// The initial projection no longer matches the requested path (a swipe
	// change at its own message). Fold from empty over whatever canonical
	// events exist; the bootstrap events live in the log, so this stays
	// equivalent for live-extracted stores.
	return &event.ChapterSnapshot{MessageID: -1, State: event.NewProjectedState()}
}

func snapshotUsable(snap *event.ChapterSnapshot, messageID, swipeID int, canonical CanonicalSwipe) bool {
	if snap.MessageID > messageID {
		return false
	}
	if canonical(snap.MessageID) != snap.SwipeID {
		return false
	}
	if snap.MessageID == messageID && snap.SwipeID != swipeID {
		return false
	}
	return true
}

func (e *Engine) fold(base *event.ChapterSnapshot, messageID, swipeID int, canonical CanonicalSwipe) (*event.ProjectedState, error) {
	st := base.State.Clone()
	for _, ev := range e.store.StateEvents {
		if ev.Deleted {
			continue
		}
		if ev.MessageID <= base.MessageID || ev.MessageID > messageID {
			continue
		}
		if ev.MessageID == messageID {
			if ev.SwipeID != swipeID {
				continue
			}
		} else if ev.SwipeID != canonical(ev.MessageID) {
			continue
		}
		if err := Apply(st, ev); err != nil {
			return nil, fmt.Errorf("projecting at message %d: %w", messageID, err)
		}
	}
	return st, nil
}
