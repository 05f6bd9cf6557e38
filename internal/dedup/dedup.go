// Package dedup filters freshly extracted candidate events against the
// projection immediately prior to their message, so the committed log never
// contains observably redundant transitions. Extraction output is
// untrustworthy in detail: candidates that restate the projected state are
// dropped, and outfit/location "previous value" claims are rewritten from the
// projection rather than believed.
package dedup

import (
	"fmt"
	"strings"

	"talekeeper/internal/event"
	"talekeeper/internal/projection"
	"talekeeper/internal/store"
)

// Deduper filters candidate batches for one store.
type Deduper struct {
	store     *store.Store
	engine    *projection.Engine
	canonical projection.CanonicalSwipe
}

func New(s *store.Store, engine *projection.Engine, canonical projection.CanonicalSwipe) *Deduper {
	return &Deduper{store: s, engine: engine, canonical: canonical}
}

// Filter projects the state immediately before the target message and
// returns the candidates that still carry information, with untrustworthy
// previous values repaired. The input order is preserved; the batch itself
// is also deduplicated (a later candidate that the earlier ones make
// redundant is dropped).
func (d *Deduper) Filter(messageID, swipeID int, candidates []event.State) ([]event.State, error) {
	prior, err := d.engine.Before(messageID, d.canonical)
	if err != nil {
		return nil, fmt.Errorf("deduplicating at message %d: %w", messageID, err)
	}
	return d.filterAgainst(prior, messageID, swipeID, candidates)
}

// FilterAgainst is Filter with a caller-supplied prior projection, used by
// the ingest coordinator which already computed it.
func (d *Deduper) FilterAgainst(prior *event.ProjectedState, messageID, swipeID int, candidates []event.State) ([]event.State, error) {
	return d.filterAgainst(prior, messageID, swipeID, candidates)
}

func (d *Deduper) filterAgainst(prior *event.ProjectedState, messageID, swipeID int, candidates []event.State) ([]event.State, error) {
	// Work on a copy of the prior state and fold accepted candidates into it,
	// so a duplicate within the batch is caught the same way as a duplicate
	// against history.
	working := prior.Clone()

	kept := make([]event.State, 0, len(candidates))
	for _, candidate := range candidates {
		keep, err := d.examine(working, messageID, swipeID, &candidate)
		if err != nil {
			return nil, fmt.Errorf("deduplicating at message %d: %w", messageID, err)
		}
		if !keep {
			continue
		}
		if err := projection.Apply(working, candidate); err != nil {
			return nil, fmt.Errorf("deduplicating at message %d: %w", messageID, err)
		}
		kept = append(kept, candidate)
	}
	return kept, nil
}

// examine decides whether the candidate is a no-op against the working state
// and repairs its previous-value fields. It may mutate the candidate.
func (d *Deduper) examine(st *event.ProjectedState, messageID, swipeID int, c *event.State) (bool, error) {
	switch c.Kind {
	case event.KindTimeInitial:
		// Exactly one anchor per projection lineage.
		return st.Time == nil, nil
	case event.KindTime:
		return c.Time.Days != 0 || c.Time.Hours != 0 || c.Time.Minutes != 0, nil
	case event.KindLocation:
		return examineLocation(st, c.Location), nil
	case event.KindCharacter:
		return examineCharacter(st, c.Character), nil
	case event.KindRelationship:
		return examineRelationship(st, c.Relationship), nil
	case event.KindForecast:
		// Write-once per area per message.
		return !d.store.HasForecast(c.Forecast.Area, messageID, swipeID), nil
	default:
		return false, fmt.Errorf("unknown event kind %q", c.Kind)
	}
}

func examineLocation(st *event.ProjectedState, p *event.LocationPayload) bool {
	current := st.Location
	switch p.Action {
	case event.LocationMoved:
		if current != nil &&
			strings.EqualFold(current.Area, p.Area) &&
			strings.EqualFold(current.Place, p.Place) &&
			strings.EqualFold(current.Position, p.Position) {
			return false
		}
		// Rewrite the claimed previous location from the projection.
		p.PreviousArea, p.PreviousPlace, p.PreviousPosition = "", "", ""
		if current != nil {
			p.PreviousArea = current.Area
			p.PreviousPlace = current.Place
			p.PreviousPosition = current.Position
		}
		return true
	case event.LocationPropAdded:
		return current == nil || !containsFold(current.Props, p.Prop)
	case event.LocationPropRemoved:
		return current != nil && containsFold(current.Props, p.Prop)
	}
	return true
}

func examineCharacter(st *event.ProjectedState, p *event.CharacterPayload) bool {
	c := st.FindCharacter(p.Name)
	switch p.Action {
	case event.CharacterAppeared:
		return c == nil || !c.Present
	case event.CharacterDeparted:
		return c != nil && c.Present
	case event.CharacterPositionChanged:
		return c == nil || !strings.EqualFold(c.Position, p.Position)
	case event.CharacterActivityChanged:
		return c == nil || !strings.EqualFold(c.Activity, p.Activity)
	case event.CharacterMoodAdded:
		return c == nil || !containsFold(c.Moods, p.Mood)
	case event.CharacterMoodRemoved:
		return c != nil && containsFold(c.Moods, p.Mood)
	case event.CharacterPhysicalStateAdded:
		return c == nil || !containsFold(c.PhysicalStates, p.PhysicalState)
	case event.CharacterPhysicalStateRemoved:
		return c != nil && containsFold(c.PhysicalStates, p.PhysicalState)
	case event.CharacterOutfitChanged:
		// Never dropped: the extractor's previousValue estimate is replaced
		// with the actually projected prior value.
		p.PreviousValue = ""
		if c != nil {
			p.PreviousValue = c.Outfit[p.Slot]
		}
		return true
	}
	return true
}

func examineRelationship(st *event.ProjectedState, p *event.RelationshipPayload) bool {
	if p.Action == event.RelationshipStatusChanged {
		key := event.PairKey(p.Pair[0], p.Pair[1])
		r := st.Relationships[key]
		return r == nil || !strings.EqualFold(r.Status, p.Status)
	}

	key := event.PairKey(p.FromCharacter, p.TowardCharacter)
	r := st.Relationships[key]
	var attitude *event.Attitude
	if r != nil {
		attitude = &r.AToB
		if !strings.EqualFold(p.FromCharacter, r.Pair[0]) {
			attitude = &r.BToA
		}
	}

	switch p.Action {
	case event.RelationshipFeelingAdded:
		return attitude == nil || !containsFold(attitude.Feelings, p.Value)
	case event.RelationshipFeelingRemoved:
		return attitude != nil && containsFold(attitude.Feelings, p.Value)
	case event.RelationshipSecretAdded:
		return attitude == nil || !containsFold(attitude.Secrets, p.Value)
	case event.RelationshipSecretRemoved:
		return attitude != nil && containsFold(attitude.Secrets, p.Value)
	case event.RelationshipWantAdded:
		return attitude == nil || !containsFold(attitude.Wants, p.Value)
	case event.RelationshipWantRemoved:
		return attitude != nil && containsFold(attitude.Wants, p.Value)
	}
	return true
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return true
		}
	}
	return false
}
