// Package validate runs consistency checks over a store: ordering, id
// uniqueness, snapshot placement and milestone tags. Errors mean the store
// needs repair; warnings are advisory.
package validate

import (
	"fmt"
	"reflect"

	"talekeeper/internal/event"
	"talekeeper/internal/milestone"
	"talekeeper/internal/store"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeOutOfOrder       = "events_out_of_order"
	codeDuplicateID      = "duplicate_event_id"
	codeInvalidEvent     = "invalid_event"
	codeSnapshotDangling = "snapshot_beyond_events"
	codeStaleMilestones  = "stale_milestone_tags"
	codeWatermarkPending = "projection_watermark_pending"
	codeMarkerDangling   = "extraction_marker_beyond_events"
)

type Issue struct {
	Severity Severity
	Code     string
	Message  string
	EventID  string
}

type Report struct {
	Issues []Issue
}

// Errors reports how many issues are hard errors.
func (r *Report) Errors() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			count++
		}
	}
	return count
}

// Run checks every store invariant that can drift through hand-editing or a
// buggy writer. It never mutates the store.
func Run(s *store.Store) *Report {
	issues := make([]Issue, 0)

	issues = append(issues, checkOrdering(s)...)
	issues = append(issues, checkIDs(s)...)
	issues = append(issues, checkEvents(s)...)
	issues = append(issues, checkSnapshots(s)...)
	issues = append(issues, checkMilestones(s)...)
	issues = append(issues, checkMarkers(s)...)

	if s.ProjectionInvalidFrom != nil {
		issues = append(issues, Issue{
			Severity: SeverityWarn,
			Code:     codeWatermarkPending,
			Message:  fmt.Sprintf("projection invalid from message %d, consumers have not re-rendered", *s.ProjectionInvalidFrom),
		})
	}

	return &Report{Issues: issues}
}

func checkOrdering(s *store.Store) []Issue {
	var issues []Issue
	outOfOrder := func(kind string) Issue {
		return Issue{
			Severity: SeverityError,
			Code:     codeOutOfOrder,
			Message:  fmt.Sprintf("%s events are not sorted by (messageId, timestamp)", kind),
		}
	}
	for i := 1; i < len(s.StateEvents); i++ {
		a, b := s.StateEvents[i-1], s.StateEvents[i]
		if b.MessageID < a.MessageID || (b.MessageID == a.MessageID && b.Timestamp < a.Timestamp) {
			issues = append(issues, outOfOrder("state"))
			break
		}
	}
	for i := 1; i < len(s.NarrativeEvents); i++ {
		a, b := s.NarrativeEvents[i-1], s.NarrativeEvents[i]
		if b.MessageID < a.MessageID || (b.MessageID == a.MessageID && b.Timestamp < a.Timestamp) {
			issues = append(issues, outOfOrder("narrative"))
			break
		}
	}
	return issues
}

func checkIDs(s *store.Store) []Issue {
	var issues []Issue
	seen := make(map[string]bool)
	flag := func(id string) {
		if seen[id] {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeDuplicateID,
				Message:  "event id appears more than once",
				EventID:  id,
			})
		}
		seen[id] = true
	}
	for i := range s.StateEvents {
		flag(s.StateEvents[i].ID)
	}
	for i := range s.NarrativeEvents {
		flag(s.NarrativeEvents[i].ID)
	}
	return issues
}

func checkEvents(s *store.Store) []Issue {
	var issues []Issue
	for i := range s.StateEvents {
		if err := s.StateEvents[i].Validate(); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeInvalidEvent,
				Message:  err.Error(),
				EventID:  s.StateEvents[i].ID,
			})
		}
	}
	for i := range s.NarrativeEvents {
		if err := s.NarrativeEvents[i].Validate(); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeInvalidEvent,
				Message:  err.Error(),
				EventID:  s.NarrativeEvents[i].ID,
			})
		}
	}
	return issues
}

func checkSnapshots(s *store.Store) []Issue {
	max := maxMessageID(s)
	var issues []Issue
	for _, snap := range s.ChapterSnapshots {
		if snap.MessageID > max {
			issues = append(issues, Issue{
				Severity: SeverityWarn,
				Code:     codeSnapshotDangling,
				Message:  fmt.Sprintf("chapter %d snapshot at message %d is past the last event", snap.ChapterIndex, snap.MessageID),
			})
		}
		if snap.State == nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeSnapshotDangling,
				Message:  fmt.Sprintf("chapter %d snapshot has no state", snap.ChapterIndex),
			})
		}
	}
	return issues
}

// checkMilestones re-derives first-occurrence tags on a scratch copy and
// compares. Stale tags appear when a writer deletes events without running
// promotion.
func checkMilestones(s *store.Store) []Issue {
	data, err := s.Encode()
	if err != nil {
		return nil
	}
	scratch, err := store.Decode(data)
	if err != nil {
		return nil
	}
	milestone.Recompute(scratch)

	var issues []Issue
	for i := range s.NarrativeEvents {
		got := firstForSets(&s.NarrativeEvents[i])
		want := firstForSets(&scratch.NarrativeEvents[i])
		if !reflect.DeepEqual(got, want) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeStaleMilestones,
				Message:  "milestone tags disagree with re-derivation",
				EventID:  s.NarrativeEvents[i].ID,
			})
		}
	}
	return issues
}

func firstForSets(n *event.Narrative) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, pair := range n.AffectedPairs {
		set := make(map[string]bool)
		for _, first := range pair.FirstFor {
			set[first] = true
		}
		out[pair.Key()] = set
	}
	return out
}

func checkMarkers(s *store.Store) []Issue {
	max := maxMessageID(s)
	var issues []Issue
	for key := range s.Extracted {
		var messageID, swipeID int
		if _, err := fmt.Sscanf(key, "%d:%d", &messageID, &swipeID); err != nil {
			continue
		}
		if messageID > max {
			issues = append(issues, Issue{
				Severity: SeverityWarn,
				Code:     codeMarkerDangling,
				Message:  fmt.Sprintf("extraction marker %s is past the last event", key),
			})
		}
	}
	return issues
}

func maxMessageID(s *store.Store) int {
	max := -1
	for i := range s.StateEvents {
		if s.StateEvents[i].MessageID > max {
			max = s.StateEvents[i].MessageID
		}
	}
	for i := range s.NarrativeEvents {
		if s.NarrativeEvents[i].MessageID > max {
			max = s.NarrativeEvents[i].MessageID
		}
	}
	return max
}
