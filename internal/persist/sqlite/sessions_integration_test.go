//go:build integration

package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"talekeeper/internal/event"
	"talekeeper/internal/persist"
	"talekeeper/internal/store"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	client, err := New(ctx, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("opening sqlite client: %v", err)
	}
	t.Cleanup(func() { client.Close(ctx) })

	if err := client.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return client
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()

	err := s.Append(event.State{
		ID:        uuid.NewString(),
		MessageID: 0,
		SwipeID:   0,
		Timestamp: 1000,
		Kind:      event.KindTimeInitial,
		TimeInitial: &event.TimeInitialPayload{
			Year: 2024, Month: 6, Day: 15, Hour: 10,
		},
	})
	if err != nil {
		t.Fatalf("appending state event: %v", err)
	}

	err = s.AppendNarrative(event.Narrative{
		ID:        uuid.NewString(),
		MessageID: 0,
		SwipeID:   0,
		Timestamp: 1001,
		Summary:   "Alice arrives at the tavern",
	})
	if err != nil {
		t.Fatalf("appending narrative event: %v", err)
	}
	return s
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)
	saved := testStore(t)

	if err := client.Save(ctx, "session-1", saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := client.Load(ctx, "session-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(saved, loaded) {
		t.Fatalf("loaded store differs from saved:\nsaved:  %+v\nloaded: %+v", saved, loaded)
	}
}

func TestSaveReplacesExistingSession(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)
	saved := testStore(t)

	if err := client.Save(ctx, "session-1", saved); err != nil {
		t.Fatalf("first save: %v", err)
	}

	err := saved.AppendNarrative(event.Narrative{
		ID:        uuid.NewString(),
		MessageID: 1,
		SwipeID:   0,
		Timestamp: 2000,
		Summary:   "Bob joins",
	})
	if err != nil {
		t.Fatalf("appending narrative event: %v", err)
	}
	if err := client.Save(ctx, "session-1", saved); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := client.Load(ctx, "session-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.NarrativeEvents) != 2 {
		t.Fatalf("narrative events = %d, want 2", len(loaded.NarrativeEvents))
	}

	infos, err := client.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("sessions = %d, want 1", len(infos))
	}
	if infos[0].NarrativeEvents != 2 || infos[0].StateEvents != 1 {
		t.Fatalf("listing counts = %d/%d, want 2/1", infos[0].NarrativeEvents, infos[0].StateEvents)
	}
}

func TestLoadUnknownSession(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)

	if _, err := client.Load(ctx, "missing"); !errors.Is(err, persist.ErrSessionNotFound) {
		t.Fatalf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)

	if err := client.Save(ctx, "session-1", testStore(t)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := client.Delete(ctx, "session-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.Load(ctx, "session-1"); !errors.Is(err, persist.ErrSessionNotFound) {
		t.Fatalf("error after delete = %v, want ErrSessionNotFound", err)
	}
	if err := client.Delete(ctx, "session-1"); !errors.Is(err, persist.ErrSessionNotFound) {
		t.Fatalf("second delete = %v, want ErrSessionNotFound", err)
	}
}
