// Package projection reconstructs narrative state by folding state events
// onto a base snapshot.
package projection

import (
	"encoding/json"
	"fmt"
	"strings"

	"talekeeper/internal/event"
)

// Apply folds a single event into the state. The state must be owned by the
// caller: the engine clones the base snapshot once per fold, so Apply is free
// to mutate in place without touching any cached projection. Apply is total
// over the closed set of kinds; an unknown kind or subkind is a bug upstream
// of validation and is reported as an error rather than silently ignored.
func Apply(st *event.ProjectedState, e event.State) error {
	switch e.Kind {
	case event.KindTimeInitial:
		p := e.TimeInitial
		st.Time = &event.DateTime{
			Year:   p.Year,
			Month:  p.Month,
			Day:    p.Day,
			Hour:   p.Hour,
			Minute: p.Minute,
			Second: p.Second,
		}
	case event.KindTime:
		// Deltas shift the current folded time, never a stored absolute.
		// A delta before any anchor has nothing to shift.
		if st.Time != nil {
			shifted := st.Time.Add(e.Time.Days, e.Time.Hours, e.Time.Minutes)
			st.Time = &shifted
		}
	case event.KindLocation:
		return applyLocation(st, e.Location)
	case event.KindCharacter:
		return applyCharacter(st, e.Character)
	case event.KindRelationship:
		return applyRelationship(st, e.Relationship)
	case event.KindForecast:
		if st.Forecasts == nil {
			st.Forecasts = make(map[string]json.RawMessage)
		}
		st.Forecasts[strings.ToLower(e.Forecast.Area)] = append(json.RawMessage(nil), e.Forecast.Payload...)
	default:
		return fmt.Errorf("applying event %s: unknown kind %q", e.ID, e.Kind)
	}
	return nil
}

func applyLocation(st *event.ProjectedState, p *event.LocationPayload) error {
	if st.Location == nil {
		st.Location = &event.Location{}
	}
	switch p.Action {
	case event.LocationMoved:
		// A move replaces the coordinates and keeps the prop list.
		st.Location.Area = p.Area
		st.Location.Place = p.Place
		st.Location.Position = p.Position
	case event.LocationPropAdded:
		if !containsFold(st.Location.Props, p.Prop) {
			st.Location.Props = append(st.Location.Props, p.Prop)
		}
	case event.LocationPropRemoved:
		st.Location.Props = removeFold(st.Location.Props, p.Prop)
	default:
		return fmt.Errorf("unknown location action %q", p.Action)
	}
	return nil
}

func applyCharacter(st *event.ProjectedState, p *event.CharacterPayload) error {
	c := st.Character(p.Name)
	switch p.Action {
	case event.CharacterAppeared:
		c.Present = true
		if p.Position != "" {
			c.Position = p.Position
		}
		if p.Activity != "" {
			c.Activity = p.Activity
		}
	case event.CharacterDeparted:
		// Keep the entry so outfit and mood survive a re-entry.
		c.Present = false
	case event.CharacterPositionChanged:
		c.Position = p.Position
	case event.CharacterActivityChanged:
		c.Activity = p.Activity
	case event.CharacterMoodAdded:
		if !containsFold(c.Moods, p.Mood) {
			c.Moods = append(c.Moods, p.Mood)
		}
	case event.CharacterMoodRemoved:
		c.Moods = removeFold(c.Moods, p.Mood)
	case event.CharacterPhysicalStateAdded:
		if !containsFold(c.PhysicalStates, p.PhysicalState) {
			c.PhysicalStates = append(c.PhysicalStates, p.PhysicalState)
		}
	case event.CharacterPhysicalStateRemoved:
		c.PhysicalStates = removeFold(c.PhysicalStates, p.PhysicalState)
	case event.CharacterOutfitChanged:
		if c.Outfit == nil {
			c.Outfit = make(map[event.OutfitSlot]string)
		}
		c.Outfit[p.Slot] = p.NewValue
	default:
		return fmt.Errorf("unknown character action %q", p.Action)
	}
	return nil
}

func applyRelationship(st *event.ProjectedState, p *event.RelationshipPayload) error {
	if p.Action == event.RelationshipStatusChanged {
		r := st.Relationship(p.Pair[0], p.Pair[1])
		r.Status = p.Status
		return nil
	}

	r := st.Relationship(p.FromCharacter, p.TowardCharacter)
	attitude := &r.AToB
	if !strings.EqualFold(p.FromCharacter, r.Pair[0]) {
		attitude = &r.BToA
	}

	switch p.Action {
	case event.RelationshipFeelingAdded:
		if !containsFold(attitude.Feelings, p.Value) {
			attitude.Feelings = append(attitude.Feelings, p.Value)
		}
	case event.RelationshipFeelingRemoved:
		attitude.Feelings = removeFold(attitude.Feelings, p.Value)
	case event.RelationshipSecretAdded:
		if !containsFold(attitude.Secrets, p.Value) {
			attitude.Secrets = append(attitude.Secrets, p.Value)
		}
	case event.RelationshipSecretRemoved:
		attitude.Secrets = removeFold(attitude.Secrets, p.Value)
	case event.RelationshipWantAdded:
		if !containsFold(attitude.Wants, p.Value) {
			attitude.Wants = append(attitude.Wants, p.Value)
		}
	case event.RelationshipWantRemoved:
		attitude.Wants = removeFold(attitude.Wants, p.Value)
	default:
		return fmt.Errorf("unknown relationship action %q", p.Action)
	}
	return nil
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return true
		}
	}
	return false
}

func removeFold(values []string, target string) []string {
	out := values[:0]
	for _, v := range values {
		if !strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			out = append(out, v)
		}
	}
	return out
}
