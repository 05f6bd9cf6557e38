package validate

import (
	"testing"

	"github.com/google/uuid"

	"talekeeper/internal/event"
	"talekeeper/internal/milestone"
	"talekeeper/internal/store"
)

func kissAt(messageID int) event.Narrative {
	return event.Narrative{
		ID:         uuid.NewString(),
		MessageID:  messageID,
		Timestamp:  int64(messageID) * 1000,
		Summary:    "a kiss",
		EventTypes: []string{"kiss"},
		AffectedPairs: []event.AffectedPair{
			{Pair: []string{"Alice", "Bob"}},
		},
	}
}

func hasCode(r *Report, code string) bool {
	for _, issue := range r.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

func TestCleanStoreHasNoIssues(t *testing.T) {
	s := store.New()
	if err := s.AppendNarrative(kissAt(1), kissAt(3)); err != nil {
		t.Fatal(err)
	}
	milestone.Recompute(s)

	report := Run(s)
	if len(report.Issues) != 0 {
		t.Fatalf("issues = %+v, want none", report.Issues)
	}
	if report.Errors() != 0 {
		t.Fatalf("errors = %d", report.Errors())
	}
}

func TestStaleMilestoneTagsDetected(t *testing.T) {
	s := store.New()
	if err := s.AppendNarrative(kissAt(1), kissAt(3)); err != nil {
		t.Fatal(err)
	}
	// Tag the later event instead of the first occurrence.
	s.NarrativeEvents[1].AffectedPairs[0].FirstFor = []string{"first_kiss"}

	report := Run(s)
	if !hasCode(report, "stale_milestone_tags") {
		t.Fatalf("issues = %+v, want stale_milestone_tags", report.Issues)
	}
}

func TestDuplicateIDDetected(t *testing.T) {
	s := store.New()
	a := kissAt(1)
	b := kissAt(2)
	b.ID = a.ID
	if err := s.AppendNarrative(a, b); err != nil {
		t.Fatal(err)
	}
	milestone.Recompute(s)

	report := Run(s)
	if !hasCode(report, "duplicate_event_id") {
		t.Fatalf("issues = %+v, want duplicate_event_id", report.Issues)
	}
	if report.Errors() == 0 {
		t.Fatal("duplicate ids must be errors")
	}
}

func TestPendingWatermarkIsWarning(t *testing.T) {
	s := store.New()
	if err := s.AppendNarrative(kissAt(1)); err != nil {
		t.Fatal(err)
	}
	milestone.Recompute(s)
	s.MarkProjectionInvalid(1)

	report := Run(s)
	if !hasCode(report, "projection_watermark_pending") {
		t.Fatalf("issues = %+v, want projection_watermark_pending", report.Issues)
	}
	if report.Errors() != 0 {
		t.Fatal("a pending watermark is advisory, not an error")
	}
}

func TestDanglingSnapshotDetected(t *testing.T) {
	s := store.New()
	if err := s.AppendNarrative(kissAt(1)); err != nil {
		t.Fatal(err)
	}
	milestone.Recompute(s)
	s.AddChapterSnapshot(event.ChapterSnapshot{
		ChapterIndex: 2,
		MessageID:    40,
		State:        event.NewProjectedState(),
	})

	report := Run(s)
	if !hasCode(report, "snapshot_beyond_events") {
		t.Fatalf("issues = %+v, want snapshot_beyond_events", report.Issues)
	}
}
