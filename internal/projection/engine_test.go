package projection

import (
	"errors"
	"reflect"
	"testing"

	"talekeeper/internal/event"
	"talekeeper/internal/store"
)

func canonicalAll(swipes map[int]int) CanonicalSwipe {
	return func(messageID int) int {
		return swipes[messageID]
	}
}

// seedStore bootstraps a store: initial projection at message 0 (inclusive of
// the bootstrap events), then a handful of canonical and off-path events.
func seedStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()

	bootstrap := []event.State{
		timeInitial(0, 1),
		moved(0, 2, "Harbor", "Pier 9", ""),
		character(0, 3, event.CharacterAppeared, "Alice", nil),
	}
	if err := s.Append(bootstrap...); err != nil {
		t.Fatalf("append bootstrap: %v", err)
	}

	init := event.NewProjectedState()
	for _, e := range bootstrap {
		if err := Apply(init, e); err != nil {
			t.Fatalf("bootstrap apply: %v", err)
		}
	}
	s.SetInitialProjection(&event.ChapterSnapshot{MessageID: 0, SwipeID: 0, State: init})

	later := []event.State{
		timeDelta(1, 10, 0, 0, 5),
		character(2, 20, event.CharacterAppeared, "Bob", nil),
		character(3, 30, event.CharacterMoodAdded, "Alice", func(p *event.CharacterPayload) { p.Mood = "tense" }),
		relationship(4, 40, event.RelationshipFeelingAdded, "Alice", "Bob", "wary trust"),
	}
	if err := s.Append(later...); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Off-path swipe variant at message 3.
	alt := character(3, 31, event.CharacterMoodAdded, "Alice", func(p *event.CharacterPayload) { p.Mood = "furious" })
	alt.SwipeID = 1
	if err := s.Append(alt); err != nil {
		t.Fatalf("append swipe variant: %v", err)
	}

	return s
}

func TestEngineAt(t *testing.T) {
	s := seedStore(t)
	engine := NewEngine(s)
	canonical := canonicalAll(nil)

	t.Run("time delta round trip", func(t *testing.T) {
		st, err := engine.At(1, 0, canonical)
		if err != nil {
			t.Fatalf("at: %v", err)
		}
		if st.Time.Hour != 10 || st.Time.Minute != 5 {
			t.Fatalf("expected 10:05:00, got %s", st.Time)
		}
	})

	t.Run("canonical path excludes other swipes", func(t *testing.T) {
		st, err := engine.At(4, 0, canonical)
		if err != nil {
			t.Fatalf("at: %v", err)
		}
		moods := st.FindCharacter("Alice").Moods
		if len(moods) != 1 || moods[0] != "tense" {
			t.Fatalf("expected canonical mood only, got %v", moods)
		}
	})

	t.Run("target message uses the requested swipe", func(t *testing.T) {
		st, err := engine.At(3, 1, canonical)
		if err != nil {
			t.Fatalf("at: %v", err)
		}
		moods := st.FindCharacter("Alice").Moods
		if len(moods) != 1 || moods[0] != "furious" {
			t.Fatalf("expected swipe-1 mood, got %v", moods)
		}
	})

	t.Run("not bootstrapped", func(t *testing.T) {
		empty := NewEngine(store.New())
		if _, err := empty.At(0, 0, canonical); !errors.Is(err, ErrNotBootstrapped) {
			t.Fatalf("expected ErrNotBootstrapped, got %v", err)
		}
	})
}

func TestEngineSnapshotEquivalence(t *testing.T) {
	s := seedStore(t)
	engine := NewEngine(s)
	canonical := canonicalAll(nil)

	// Cache a chapter snapshot at message 2 and verify the assisted path
	// matches a full replay for every later point.
	snapState, err := engine.FullReplay(2, 0, canonical)
	if err != nil {
		t.Fatalf("full replay: %v", err)
	}
	s.AddChapterSnapshot(event.ChapterSnapshot{ChapterIndex: 1, MessageID: 2, SwipeID: 0, State: snapState})

	for messageID := 0; messageID <= 4; messageID++ {
		assisted, err := engine.At(messageID, 0, canonical)
		if err != nil {
			t.Fatalf("at %d: %v", messageID, err)
		}
		replayed, err := engine.FullReplay(messageID, 0, canonical)
		if err != nil {
			t.Fatalf("replay %d: %v", messageID, err)
		}
		if !reflect.DeepEqual(assisted, replayed) {
			t.Fatalf("snapshot-assisted projection diverged at message %d:\nassisted: %+v\nreplayed: %+v", messageID, assisted, replayed)
		}
	}
}

func TestEngineSkipsStaleSnapshot(t *testing.T) {
	s := seedStore(t)
	engine := NewEngine(s)

	// Snapshot recorded for swipe 0 at message 3; canonical now says swipe 1.
	snapState, err := engine.FullReplay(3, 0, canonicalAll(nil))
	if err != nil {
		t.Fatalf("full replay: %v", err)
	}
	s.AddChapterSnapshot(event.ChapterSnapshot{ChapterIndex: 1, MessageID: 3, SwipeID: 0, State: snapState})

	canonical := canonicalAll(map[int]int{3: 1})
	st, err := engine.At(4, 0, canonical)
	if err != nil {
		t.Fatalf("at: %v", err)
	}
	moods := st.FindCharacter("Alice").Moods
	if len(moods) != 1 || moods[0] != "furious" {
		t.Fatalf("stale snapshot must be skipped; expected swipe-1 mood, got %v", moods)
	}
}

func TestEngineDoesNotMutateSnapshots(t *testing.T) {
	s := seedStore(t)
	engine := NewEngine(s)
	canonical := canonicalAll(nil)

	if _, err := engine.At(4, 0, canonical); err != nil {
		t.Fatalf("at: %v", err)
	}
	init := s.InitialProjection.State
	if len(init.Characters) != 1 {
		t.Fatalf("projection mutated the cached initial projection: %+v", init.Characters)
	}
	if init.Time.Minute != 0 {
		t.Fatalf("projection mutated the cached clock: %s", init.Time)
	}
}

func TestEngineBefore(t *testing.T) {
	s := seedStore(t)
	engine := NewEngine(s)
	canonical := canonicalAll(nil)

	t.Run("prior state excludes the target message", func(t *testing.T) {
		st, err := engine.Before(3, canonical)
		if err != nil {
			t.Fatalf("before: %v", err)
		}
		if moods := st.FindCharacter("Alice").Moods; len(moods) != 0 {
			t.Fatalf("message 3 events must be excluded, got %v", moods)
		}
		if st.FindCharacter("Bob") == nil {
			t.Fatalf("message 2 events must be included")
		}
	})

	t.Run("at or before the initial projection is empty", func(t *testing.T) {
		st, err := engine.Before(0, canonical)
		if err != nil {
			t.Fatalf("before: %v", err)
		}
		if len(st.Characters) != 0 || st.Time != nil {
			t.Fatalf("expected pre-bootstrap empty state")
		}
	})
}
