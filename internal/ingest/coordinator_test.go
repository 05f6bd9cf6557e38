package ingest

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"talekeeper/internal/event"
	"talekeeper/internal/store"
)

func canonicalZero(int) int { return 0 }

func newCoordinator(t *testing.T) (*store.Store, *Coordinator) {
	t.Helper()
	s := store.New()
	return s, New(s, canonicalZero, zerolog.Nop())
}

func timeAnchor() event.State {
	return event.State{
		Kind: event.KindTimeInitial,
		TimeInitial: &event.TimeInitialPayload{
			Year: 2024, Month: 6, Day: 15, Hour: 10,
		},
	}
}

func moodAdd(name, value string) event.State {
	return event.State{
		Kind:      event.KindCharacter,
		Character: &event.CharacterPayload{Action: event.CharacterMoodAdded, Name: name, Mood: value},
	}
}

func appeared(name string) event.State {
	return event.State{
		Kind:      event.KindCharacter,
		Character: &event.CharacterPayload{Action: event.CharacterAppeared, Name: name},
	}
}

func narrative(summary string, eventTypes []string, pair ...string) event.Narrative {
	n := event.Narrative{Summary: summary, EventTypes: eventTypes}
	if len(pair) == 2 {
		n.AffectedPairs = []event.AffectedPair{{Pair: pair}}
	}
	return n
}

func mustCommit(t *testing.T, c *Coordinator, messageID, swipeID int, states []event.State, narratives []event.Narrative) *Result {
	t.Helper()
	res, err := c.Commit(context.Background(), messageID, swipeID, states, narratives)
	if err != nil {
		t.Fatalf("commit at message %d: %v", messageID, err)
	}
	return res
}

func TestFirstCommitBootstraps(t *testing.T) {
	s, c := newCoordinator(t)

	res := mustCommit(t, c, 0, 0,
		[]event.State{timeAnchor(), appeared("Alice")},
		[]event.Narrative{narrative("Alice arrives", nil)})

	if s.InitialProjection == nil {
		t.Fatal("no initial projection after first commit")
	}
	if res.AcceptedState != 2 {
		t.Fatalf("accepted = %d, want 2", res.AcceptedState)
	}
	init := s.InitialProjection.State
	if init.Time == nil || init.Time.Hour != 10 {
		t.Fatalf("initial time = %+v", init.Time)
	}
	if alice := init.FindCharacter("Alice"); alice == nil || !alice.Present {
		t.Fatal("Alice not present in initial projection")
	}
	if !s.WasExtracted(0, 0) {
		t.Fatal("bootstrap commit not marked extracted")
	}
}

func TestCommitDeduplicatesAgainstPriorState(t *testing.T) {
	s, c := newCoordinator(t)
	mustCommit(t, c, 0, 0, []event.State{timeAnchor(), appeared("Alice"), moodAdd("Alice", "tense")}, nil)

	res := mustCommit(t, c, 1, 0, []event.State{
		moodAdd("Alice", "Tense"),   // already projected, case differs
		moodAdd("Alice", "hopeful"), // genuinely new
	}, nil)

	if res.AcceptedState != 1 || res.DroppedState != 1 {
		t.Fatalf("accepted=%d dropped=%d, want 1/1", res.AcceptedState, res.DroppedState)
	}
	if got := len(s.StateEventsAt(1, 0)); got != 1 {
		t.Fatalf("events stored at message 1 = %d, want 1", got)
	}
}

func TestCommitSkipsAlreadyExtracted(t *testing.T) {
	s, c := newCoordinator(t)
	mustCommit(t, c, 0, 0, []event.State{timeAnchor()}, nil)
	mustCommit(t, c, 1, 0, []event.State{appeared("Alice")}, nil)

	res := mustCommit(t, c, 1, 0, []event.State{appeared("Bob")}, nil)
	if !res.Skipped {
		t.Fatal("second commit for the same swipe must be skipped")
	}
	if len(s.StateEventsAt(1, 0)) != 1 {
		t.Fatal("skipped commit must not append events")
	}
}

func TestCommitRespectsContextCancellation(t *testing.T) {
	_, c := newCoordinator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Commit(ctx, 0, 0, []event.State{timeAnchor()}, nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestCommitDerivesMilestones(t *testing.T) {
	s, c := newCoordinator(t)
	mustCommit(t, c, 0, 0, []event.State{timeAnchor()}, nil)
	mustCommit(t, c, 1, 0, nil, []event.Narrative{
		narrative("Alice meets Bob", []string{"meeting"}, "Alice", "Bob"),
	})

	events := s.NarrativeEventsForPair("alice|bob")
	if len(events) != 1 {
		t.Fatalf("pair events = %d, want 1", len(events))
	}
	first := events[0].AffectedPairs[0].FirstFor
	if len(first) != 1 || first[0] != "first_meeting" {
		t.Fatalf("firstFor = %v, want [first_meeting]", first)
	}
}

func TestCommitDropsDuplicateNarrativeSummaries(t *testing.T) {
	s, c := newCoordinator(t)
	mustCommit(t, c, 0, 0, []event.State{timeAnchor()}, nil)

	res := mustCommit(t, c, 1, 0, nil, []event.Narrative{
		narrative("they argue", nil),
		narrative("They Argue", nil),
	})
	if res.AcceptedNarratives != 1 {
		t.Fatalf("accepted narratives = %d, want 1", res.AcceptedNarratives)
	}
	if len(s.ActiveNarrativeEvents()) != 1 {
		t.Fatal("duplicate summary stored")
	}
}

func TestReplaceRewritesSwipe(t *testing.T) {
	s, c := newCoordinator(t)
	mustCommit(t, c, 0, 0, []event.State{timeAnchor()}, nil)
	mustCommit(t, c, 1, 0, []event.State{moodAdd("Alice", "angry")}, []event.Narrative{
		narrative("Alice storms off", nil),
	})

	res, err := c.Replace(context.Background(), 1, 0,
		[]event.State{moodAdd("Alice", "amused")},
		[]event.Narrative{narrative("Alice laughs it off", nil)})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if res.Skipped {
		t.Fatal("replace must re-commit, not skip")
	}

	live := s.StateEventsAt(1, 0)
	if len(live) != 1 || live[0].Character.Mood != "amused" {
		t.Fatalf("live events after replace = %+v", live)
	}
	if s.ProjectionInvalidFrom == nil || *s.ProjectionInvalidFrom != 1 {
		t.Fatal("replace must set the invalidation watermark")
	}
}

func TestReplaceAtBootstrapMessageRebuildsProjection(t *testing.T) {
	_, c := newCoordinator(t)
	mustCommit(t, c, 0, 0,
		[]event.State{timeAnchor(), appeared("Alice"), moodAdd("Alice", "happy")}, nil)

	_, err := c.Replace(context.Background(), 0, 0,
		[]event.State{timeAnchor(), appeared("Alice"), moodAdd("Alice", "angry")}, nil)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	state, err := c.Engine().At(0, 0, canonicalZero)
	if err != nil {
		t.Fatalf("projecting after replace: %v", err)
	}
	alice := state.FindCharacter("Alice")
	if alice == nil {
		t.Fatal("Alice absent after replace")
	}
	if len(alice.Moods) != 1 || alice.Moods[0] != "angry" {
		t.Fatalf("moods after replace = %v, want [angry]", alice.Moods)
	}
}

func TestDeleteEventAtBootstrapMessageRefoldsProjection(t *testing.T) {
	s, c := newCoordinator(t)
	mustCommit(t, c, 0, 0,
		[]event.State{timeAnchor(), appeared("Alice"), moodAdd("Alice", "happy")}, nil)

	var moodID string
	for _, ev := range s.StateEventsAt(0, 0) {
		if ev.Character != nil && ev.Character.Action == event.CharacterMoodAdded {
			moodID = ev.ID
		}
	}
	if moodID == "" {
		t.Fatal("no mood event stored at the bootstrap message")
	}
	if !c.DeleteEvent(moodID) {
		t.Fatal("delete reported failure")
	}

	state, err := c.Engine().At(0, 0, canonicalZero)
	if err != nil {
		t.Fatalf("projecting after delete: %v", err)
	}
	alice := state.FindCharacter("Alice")
	if alice == nil || !alice.Present {
		t.Fatal("Alice must survive deleting only her mood event")
	}
	if len(alice.Moods) != 0 {
		t.Fatalf("moods after delete = %v, want none", alice.Moods)
	}
}

func TestDeleteSwipeReindexesAndPromotes(t *testing.T) {
	s, c := newCoordinator(t)
	mustCommit(t, c, 0, 0, []event.State{timeAnchor()}, nil)
	mustCommit(t, c, 1, 0, nil, []event.Narrative{
		narrative("their first kiss", []string{"kiss"}, "Alice", "Bob"),
	})
	mustCommit(t, c, 1, 1, nil, []event.Narrative{
		narrative("a second kiss, rewritten", []string{"kiss"}, "Alice", "Bob"),
	})

	c.DeleteSwipe(1, 0)

	events := s.NarrativeEventsForPair("alice|bob")
	var surviving *event.Narrative
	for i := range events {
		if !events[i].Deleted {
			surviving = &events[i]
		}
	}
	if surviving == nil {
		t.Fatal("no surviving kiss event")
	}
	if surviving.SwipeID != 0 {
		t.Fatalf("surviving swipe = %d, want 0 after reindex", surviving.SwipeID)
	}
	first := surviving.AffectedPairs[0].FirstFor
	if len(first) != 1 || first[0] != "first_kiss" {
		t.Fatalf("firstFor = %v, want promoted first_kiss", first)
	}
}

func TestDeleteEventPromotesMilestone(t *testing.T) {
	s, c := newCoordinator(t)
	mustCommit(t, c, 0, 0, []event.State{timeAnchor()}, nil)
	mustCommit(t, c, 1, 0, nil, []event.Narrative{
		narrative("first kiss on the pier", []string{"kiss"}, "Alice", "Bob"),
	})
	mustCommit(t, c, 2, 0, nil, []event.Narrative{
		narrative("another kiss at dawn", []string{"kiss"}, "Alice", "Bob"),
	})

	target := s.NarrativeEventsAt(1, 0)[0].ID
	if !c.DeleteEvent(target) {
		t.Fatal("delete reported failure")
	}

	later := s.NarrativeEventsAt(2, 0)[0]
	first := later.AffectedPairs[0].FirstFor
	if len(first) != 1 || first[0] != "first_kiss" {
		t.Fatalf("firstFor = %v, want promoted first_kiss", first)
	}
}

func TestTruncateDropsEverythingPastBoundary(t *testing.T) {
	s, c := newCoordinator(t)
	mustCommit(t, c, 0, 0, []event.State{timeAnchor()}, nil)
	mustCommit(t, c, 1, 0, []event.State{appeared("Alice")}, nil)
	mustCommit(t, c, 5, 0, []event.State{appeared("Bob")}, []event.Narrative{
		narrative("Bob arrives late", nil),
	})

	removed := c.Truncate(1)
	if removed == 0 {
		t.Fatal("nothing removed")
	}
	if len(s.StateEventsAt(5, 0)) != 0 || len(s.NarrativeEventsAt(5, 0)) != 0 {
		t.Fatal("events past the boundary survived truncation")
	}
	if !s.WasExtracted(1, 0) {
		t.Fatal("extraction marker inside the boundary must survive")
	}
	if s.WasExtracted(5, 0) {
		t.Fatal("extraction marker past the boundary must be dropped")
	}
}

func TestChapterSnapshotCreatedOnNewChapter(t *testing.T) {
	s, c := newCoordinator(t)
	mustCommit(t, c, 0, 0, []event.State{timeAnchor()}, nil)

	ch := 1
	n := narrative("the storm chapter opens", nil)
	n.ChapterIndex = &ch
	mustCommit(t, c, 3, 0, []event.State{appeared("Alice")}, []event.Narrative{n})

	if len(s.ChapterSnapshots) != 1 {
		t.Fatalf("chapter snapshots = %d, want 1", len(s.ChapterSnapshots))
	}
	snap := s.ChapterSnapshots[0]
	if snap.ChapterIndex != 1 || snap.MessageID != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if alice := snap.State.FindCharacter("Alice"); alice == nil || !alice.Present {
		t.Fatal("snapshot must include the commit's own events")
	}
}
