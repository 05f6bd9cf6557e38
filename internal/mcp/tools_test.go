package mcp

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"talekeeper/internal/event"
	"talekeeper/internal/milestone"
	"talekeeper/internal/persist"
	"talekeeper/internal/store"
)

type mockSessions struct {
	stores map[string]*store.Store

	lastLoaded string
	listErr    error
}

func (m *mockSessions) Close(ctx context.Context) error        { return nil }
func (m *mockSessions) EnsureSchema(ctx context.Context) error { return nil }

func (m *mockSessions) Delete(ctx context.Context, id string) error {
	delete(m.stores, id)
	return nil
}

func (m *mockSessions) Save(ctx context.Context, id string, s *store.Store) error {
	m.stores[id] = s
	return nil
}

func (m *mockSessions) Load(ctx context.Context, id string) (*store.Store, error) {
	m.lastLoaded = id
	s, ok := m.stores[id]
	if !ok {
		return nil, persist.ErrSessionNotFound
	}
	return s, nil
}

func (m *mockSessions) LoadRaw(ctx context.Context, id string) ([]byte, error) {
	s, ok := m.stores[id]
	if !ok {
		return nil, persist.ErrSessionNotFound
	}
	return s.Encode()
}

func (m *mockSessions) List(ctx context.Context) ([]persist.SessionInfo, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []persist.SessionInfo
	for id, s := range m.stores {
		out = append(out, persist.SessionInfo{
			SessionID:       id,
			NarrativeEvents: len(s.NarrativeEvents),
			StateEvents:     len(s.StateEvents),
		})
	}
	return out, nil
}

func seededServer(t *testing.T) (*Server, *mockSessions) {
	t.Helper()
	s := store.New()

	init := event.NewProjectedState()
	init.Time = &event.DateTime{Year: 2024, Month: 6, Day: 15, Hour: 10}
	alice := init.Character("Alice")
	alice.Present = true
	s.SetInitialProjection(&event.ChapterSnapshot{MessageID: 0, SwipeID: 0, State: init})

	if err := s.Append(event.State{
		ID: uuid.NewString(), MessageID: 2, Timestamp: 2000,
		Kind:      event.KindCharacter,
		Character: &event.CharacterPayload{Action: event.CharacterMoodAdded, Name: "Alice", Mood: "hopeful"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendNarrative(event.Narrative{
		ID: uuid.NewString(), MessageID: 2, Timestamp: 2001,
		Summary:       "Alice meets Bob",
		EventTypes:    []string{"meeting"},
		AffectedPairs: []event.AffectedPair{{Pair: []string{"Alice", "Bob"}}},
	}); err != nil {
		t.Fatal(err)
	}
	milestone.Recompute(s)

	sessions := &mockSessions{stores: map[string]*store.Store{"seaside": s}}
	return NewServer(sessions, zerolog.Nop(), "test"), sessions
}

func TestProjectState(t *testing.T) {
	server, sessions := seededServer(t)

	_, output, err := server.handleProjectState(context.Background(), nil, ProjectStateInput{
		Session:   "seaside",
		MessageID: 2,
	})
	if err != nil {
		t.Fatalf("project_state: %v", err)
	}
	if sessions.lastLoaded != "seaside" {
		t.Fatalf("loaded session %q", sessions.lastLoaded)
	}
	alice := output.State.FindCharacter("Alice")
	if alice == nil || len(alice.Moods) != 1 || alice.Moods[0] != "hopeful" {
		t.Fatalf("projected Alice = %+v", alice)
	}
}

func TestProjectStateUnknownSession(t *testing.T) {
	server, _ := seededServer(t)
	_, _, err := server.handleProjectState(context.Background(), nil, ProjectStateInput{
		Session:   "missing",
		MessageID: 0,
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestProjectStateRequiresSession(t *testing.T) {
	server, _ := seededServer(t)
	_, _, err := server.handleProjectState(context.Background(), nil, ProjectStateInput{MessageID: 0})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestListEventsByPair(t *testing.T) {
	server, _ := seededServer(t)

	_, output, err := server.handleListEvents(context.Background(), nil, ListEventsInput{
		Session: "seaside",
		Pair:    "Bob|Alice",
	})
	if err != nil {
		t.Fatalf("list_events: %v", err)
	}
	if len(output.Events) != 1 || output.Events[0].Summary != "Alice meets Bob" {
		t.Fatalf("events = %+v", output.Events)
	}
}

func TestGetRelationship(t *testing.T) {
	server, _ := seededServer(t)

	_, output, err := server.handleGetRelationship(context.Background(), nil, GetRelationshipInput{
		Session: "seaside",
		From:    "Bob",
		Toward:  "Alice",
	})
	if err != nil {
		t.Fatalf("get_relationship: %v", err)
	}
	if output.Pair[0] != "Alice" || output.Pair[1] != "Bob" {
		t.Fatalf("pair = %v, want sorted", output.Pair)
	}
	if output.Status != "acquaintances" {
		t.Fatalf("status = %q, want acquaintances", output.Status)
	}
	if len(output.Milestones) != 1 || output.Milestones[0] != "first_meeting" {
		t.Fatalf("milestones = %v", output.Milestones)
	}
}

func TestGetRelationshipHonorsSwipes(t *testing.T) {
	server, sessions := seededServer(t)
	st := sessions.stores["seaside"]
	if err := st.Append(event.State{
		ID: uuid.NewString(), MessageID: 2, SwipeID: 1, Timestamp: 2002,
		Kind: event.KindRelationship,
		Relationship: &event.RelationshipPayload{
			Action:          event.RelationshipFeelingAdded,
			FromCharacter:   "Alice",
			TowardCharacter: "Bob",
			Value:           "curiosity",
		},
	}); err != nil {
		t.Fatal(err)
	}

	_, onCanonical, err := server.handleGetRelationship(context.Background(), nil, GetRelationshipInput{
		Session: "seaside", From: "Alice", Toward: "Bob",
	})
	if err != nil {
		t.Fatalf("get_relationship: %v", err)
	}
	if len(onCanonical.AToB.Feelings) != 0 {
		t.Fatalf("swipe 0 must not see the swipe 1 feeling, got %v", onCanonical.AToB.Feelings)
	}

	_, onSwipe, err := server.handleGetRelationship(context.Background(), nil, GetRelationshipInput{
		Session: "seaside", From: "Alice", Toward: "Bob",
		Swipes: map[string]int{"2": 1},
	})
	if err != nil {
		t.Fatalf("get_relationship with swipes: %v", err)
	}
	if len(onSwipe.AToB.Feelings) != 1 || onSwipe.AToB.Feelings[0] != "curiosity" {
		t.Fatalf("feelings on swipe 1 = %v, want [curiosity]", onSwipe.AToB.Feelings)
	}
}

func TestGetRelationshipNotBootstrapped(t *testing.T) {
	server, sessions := seededServer(t)
	sessions.stores["bare"] = store.New()

	_, _, err := server.handleGetRelationship(context.Background(), nil, GetRelationshipInput{
		Session: "bare", From: "Alice", Toward: "Bob",
	})
	if err == nil {
		t.Fatal("expected projection error for a session with no initial projection")
	}
}

func TestListMilestones(t *testing.T) {
	server, _ := seededServer(t)

	_, output, err := server.handleListMilestones(context.Background(), nil, ListMilestonesInput{
		Session: "seaside",
		Pair:    "alice|bob",
	})
	if err != nil {
		t.Fatalf("list_milestones: %v", err)
	}
	if len(output.Milestones) != 1 {
		t.Fatalf("milestones = %+v", output.Milestones)
	}
	m := output.Milestones[0]
	if m.Type != "first_meeting" || m.MessageID != 2 {
		t.Fatalf("milestone = %+v", m)
	}
	if m.Description == "" {
		t.Fatal("milestone description missing")
	}
}

func TestStoreInfo(t *testing.T) {
	server, _ := seededServer(t)

	_, output, err := server.handleStoreInfo(context.Background(), nil, StoreInfoInput{Session: "seaside"})
	if err != nil {
		t.Fatalf("store_info: %v", err)
	}
	if !output.Bootstrapped || output.NarrativeEvents != 1 || output.StateEvents != 1 {
		t.Fatalf("info = %+v", output)
	}
}
