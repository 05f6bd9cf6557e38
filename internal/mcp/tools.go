package mcp

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"talekeeper/internal/event"
	"talekeeper/internal/milestone"
	"talekeeper/internal/projection"
	"talekeeper/internal/store"
)

type ProjectStateInput struct {
	Session   string         `json:"session" jsonschema:"session id"`
	MessageID int            `json:"message_id" jsonschema:"message to project at"`
	SwipeID   int            `json:"swipe_id,omitempty" jsonschema:"swipe variant at the target message"`
	Swipes    map[string]int `json:"swipes,omitempty" jsonschema:"selected swipe per message id, defaults to 0"`
}

type ProjectStateOutput struct {
	State *event.ProjectedState `json:"state"`
}

type ListEventsInput struct {
	Session   string `json:"session" jsonschema:"session id"`
	MessageID *int   `json:"message_id,omitempty" jsonschema:"restrict to one message"`
	Pair      string `json:"pair,omitempty" jsonschema:"restrict to a character pair, e.g. 'Alice|Bob'"`
	Chapter   *int   `json:"chapter,omitempty" jsonschema:"restrict to a chapter index"`
}

type NarrativeOutput struct {
	ID           string   `json:"id"`
	MessageID    int      `json:"message_id"`
	SwipeID      int      `json:"swipe_id"`
	Summary      string   `json:"summary"`
	EventTypes   []string `json:"event_types,omitempty"`
	TensionLevel int      `json:"tension_level,omitempty"`
	Location     string   `json:"location,omitempty"`
	ChapterIndex *int     `json:"chapter_index,omitempty"`
}

type ListEventsOutput struct {
	Events []NarrativeOutput `json:"events"`
}

type GetRelationshipInput struct {
	Session string         `json:"session" jsonschema:"session id"`
	From    string         `json:"from" jsonschema:"first character name"`
	Toward  string         `json:"toward" jsonschema:"second character name"`
	Swipes  map[string]int `json:"swipes,omitempty" jsonschema:"selected swipe per message id, defaults to 0"`
}

type AttitudeOutput struct {
	Feelings []string `json:"feelings,omitempty"`
	Secrets  []string `json:"secrets,omitempty"`
	Wants    []string `json:"wants,omitempty"`
}

type GetRelationshipOutput struct {
	Pair       []string       `json:"pair"`
	Status     string         `json:"status"`
	AToB       AttitudeOutput `json:"a_to_b"`
	BToA       AttitudeOutput `json:"b_to_a"`
	Milestones []string       `json:"milestones,omitempty"`
}

type ListMilestonesInput struct {
	Session string `json:"session" jsonschema:"session id"`
	Pair    string `json:"pair" jsonschema:"character pair, e.g. 'Alice|Bob'"`
}

type MilestoneOutput struct {
	Type        string `json:"type"`
	MessageID   int    `json:"message_id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
}

type ListMilestonesOutput struct {
	Milestones []MilestoneOutput `json:"milestones"`
}

type StoreInfoInput struct {
	Session string `json:"session" jsonschema:"session id"`
}

type StoreInfoOutput struct {
	Version               int  `json:"version"`
	NarrativeEvents       int  `json:"narrative_events"`
	StateEvents           int  `json:"state_events"`
	ChapterSnapshots      int  `json:"chapter_snapshots"`
	Bootstrapped          bool `json:"bootstrapped"`
	ProjectionInvalidFrom *int `json:"projection_invalid_from,omitempty"`
}

type ListSessionsInput struct{}

type SessionOutput struct {
	SessionID       string `json:"session_id"`
	NarrativeEvents int    `json:"narrative_events"`
	StateEvents     int    `json:"state_events"`
}

type ListSessionsOutput struct {
	Sessions []SessionOutput `json:"sessions"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "project_state",
		Description: "Reconstruct the narrative state at a message by folding events",
	}, s.handleProjectState)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_events",
		Description: "List narrative events, optionally filtered by message, pair, or chapter",
	}, s.handleListEvents)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_relationship",
		Description: "Return the current relationship between two characters",
	}, s.handleGetRelationship)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_milestones",
		Description: "List relationship milestones for a character pair",
	}, s.handleListMilestones)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "store_info",
		Description: "Return event counts and health information for a session",
	}, s.handleStoreInfo)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_sessions",
		Description: "List stored sessions",
	}, s.handleListSessions)
}

func (s *Server) loadSession(ctx context.Context, sessionID string) (*store.Store, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session is required")
	}
	return s.sessions.Load(ctx, sessionID)
}

func canonicalFromSwipes(swipes map[string]int) projection.CanonicalSwipe {
	return func(messageID int) int {
		if swipe, ok := swipes[strconv.Itoa(messageID)]; ok {
			return swipe
		}
		return 0
	}
}

func (s *Server) handleProjectState(ctx context.Context, req *sdk.CallToolRequest, input ProjectStateInput) (*sdk.CallToolResult, ProjectStateOutput, error) {
	st, err := s.loadSession(ctx, input.Session)
	if err != nil {
		return nil, ProjectStateOutput{}, err
	}

	engine := projection.NewEngine(st)
	canonical := canonicalFromSwipes(input.Swipes)
	swipeID := input.SwipeID
	if swipeID == 0 {
		swipeID = canonical(input.MessageID)
	}
	state, err := engine.At(input.MessageID, swipeID, canonical)
	if err != nil {
		return nil, ProjectStateOutput{}, err
	}
	return nil, ProjectStateOutput{State: state}, nil
}

func (s *Server) handleListEvents(ctx context.Context, req *sdk.CallToolRequest, input ListEventsInput) (*sdk.CallToolResult, ListEventsOutput, error) {
	st, err := s.loadSession(ctx, input.Session)
	if err != nil {
		return nil, ListEventsOutput{}, err
	}

	var events []event.Narrative
	switch {
	case input.Pair != "":
		events = st.NarrativeEventsForPair(normalizePair(input.Pair))
	case input.Chapter != nil:
		events = st.NarrativeEventsForChapter(*input.Chapter)
	default:
		events = st.ActiveNarrativeEvents()
	}

	output := make([]NarrativeOutput, 0, len(events))
	for _, e := range events {
		if input.MessageID != nil && e.MessageID != *input.MessageID {
			continue
		}
		output = append(output, NarrativeOutput{
			ID:           e.ID,
			MessageID:    e.MessageID,
			SwipeID:      e.SwipeID,
			Summary:      e.Summary,
			EventTypes:   e.EventTypes,
			TensionLevel: e.TensionLevel,
			Location:     e.Location,
			ChapterIndex: e.ChapterIndex,
		})
	}
	return nil, ListEventsOutput{Events: output}, nil
}

func (s *Server) handleGetRelationship(ctx context.Context, req *sdk.CallToolRequest, input GetRelationshipInput) (*sdk.CallToolResult, GetRelationshipOutput, error) {
	if input.From == "" || input.Toward == "" {
		return nil, GetRelationshipOutput{}, fmt.Errorf("from and toward are required")
	}
	st, err := s.loadSession(ctx, input.Session)
	if err != nil {
		return nil, GetRelationshipOutput{}, err
	}

	pairKey := event.PairKey(input.From, input.Toward)
	first, second := event.SortPair(input.From, input.Toward)
	out := GetRelationshipOutput{
		Pair:   []string{first, second},
		Status: string(milestone.StatusOf(st, pairKey)),
	}
	for m := range milestone.Milestones(st, pairKey) {
		out.Milestones = append(out.Milestones, string(m))
	}
	sort.Strings(out.Milestones)

	engine := projection.NewEngine(st)
	canonical := canonicalFromSwipes(input.Swipes)
	last := maxMessageID(st)
	state, err := engine.At(last, canonical(last), canonical)
	if err != nil {
		return nil, GetRelationshipOutput{}, fmt.Errorf("projecting relationship state: %w", err)
	}
	if r, ok := state.Relationships[pairKey]; ok {
		out.AToB = AttitudeOutput(r.AToB)
		out.BToA = AttitudeOutput(r.BToA)
		if r.Status != "" {
			out.Status = r.Status
		}
	}
	return nil, out, nil
}

func (s *Server) handleListMilestones(ctx context.Context, req *sdk.CallToolRequest, input ListMilestonesInput) (*sdk.CallToolResult, ListMilestonesOutput, error) {
	if input.Pair == "" {
		return nil, ListMilestonesOutput{}, fmt.Errorf("pair is required")
	}
	st, err := s.loadSession(ctx, input.Session)
	if err != nil {
		return nil, ListMilestonesOutput{}, err
	}

	pairKey := normalizePair(input.Pair)
	output := make([]MilestoneOutput, 0)
	for _, e := range st.NarrativeEventsForPair(pairKey) {
		idx := e.PairIndex(pairKey)
		if idx < 0 {
			continue
		}
		pair := e.AffectedPairs[idx]
		for _, first := range pair.FirstFor {
			output = append(output, MilestoneOutput{
				Type:        first,
				MessageID:   e.MessageID,
				Summary:     e.Summary,
				Description: pair.MilestoneDescriptions[first],
			})
		}
	}
	return nil, ListMilestonesOutput{Milestones: output}, nil
}

func (s *Server) handleStoreInfo(ctx context.Context, req *sdk.CallToolRequest, input StoreInfoInput) (*sdk.CallToolResult, StoreInfoOutput, error) {
	st, err := s.loadSession(ctx, input.Session)
	if err != nil {
		return nil, StoreInfoOutput{}, err
	}
	return nil, StoreInfoOutput{
		Version:               st.Version,
		NarrativeEvents:       len(st.ActiveNarrativeEvents()),
		StateEvents:           len(st.ActiveStateEvents()),
		ChapterSnapshots:      len(st.ChapterSnapshots),
		Bootstrapped:          st.InitialProjection != nil,
		ProjectionInvalidFrom: st.ProjectionInvalidFrom,
	}, nil
}

func (s *Server) handleListSessions(ctx context.Context, req *sdk.CallToolRequest, input ListSessionsInput) (*sdk.CallToolResult, ListSessionsOutput, error) {
	infos, err := s.sessions.List(ctx)
	if err != nil {
		return nil, ListSessionsOutput{}, err
	}
	output := make([]SessionOutput, 0, len(infos))
	for _, info := range infos {
		output = append(output, SessionOutput{
			SessionID:       info.SessionID,
			NarrativeEvents: info.NarrativeEvents,
			StateEvents:     info.StateEvents,
		})
	}
	return nil, ListSessionsOutput{Sessions: output}, nil
}

// normalizePair accepts "Alice|Bob" in any order or case and returns the
// canonical pair key.
func normalizePair(pair string) string {
	a, b, ok := strings.Cut(pair, "|")
	if !ok {
		return strings.ToLower(strings.TrimSpace(pair))
	}
	return event.PairKey(a, b)
}

func maxMessageID(st *store.Store) int {
	max := 0
	for _, e := range st.StateEvents {
		if !e.Deleted && e.MessageID > max {
			max = e.MessageID
		}
	}
	for _, e := range st.NarrativeEvents {
		if !e.Deleted && e.MessageID > max {
			max = e.MessageID
		}
	}
	return max
}
