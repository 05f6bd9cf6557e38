package migrate

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"talekeeper/internal/event"
)

// MessageState is a tracked projection attached to one message during the
// v3 era, when the full world state was re-extracted per message instead of
// being folded from events.
type MessageState struct {
	MessageID int                   `json:"messageId"`
	SwipeID   int                   `json:"swipeId"`
	State     *event.ProjectedState `json:"state"`
}

// diffStates synthesizes the state events that would transform prev into
// next. Relationship changes are not diffed: the v3 format never tracked
// directional attitudes, so there is nothing to recover.
func diffStates(prev, next *event.ProjectedState, messageID, swipeID int, ts int64) []event.State {
	var out []event.State
	emit := func(e event.State) {
		e.ID = uuid.NewString()
		e.MessageID = messageID
		e.SwipeID = swipeID
		e.Timestamp = ts
		ts++
		out = append(out, e)
	}

	diffTime(prev, next, emit)
	diffLocation(prev, next, emit)
	diffCharacters(prev, next, emit)
	return out
}

func diffTime(prev, next *event.ProjectedState, emit func(event.State)) {
	switch {
	case next.Time == nil:
	case prev.Time == nil:
		t := *next.Time
		emit(event.State{Kind: event.KindTimeInitial, TimeInitial: &event.TimeInitialPayload{
			Year:   t.Year,
			Month:  t.Month,
			Day:    t.Day,
			Hour:   t.Hour,
			Minute: t.Minute,
			Second: t.Second,
		}})
	case *prev.Time != *next.Time:
		mins := next.Time.MinutesSince(*prev.Time)
		if mins == 0 {
			return
		}
		d := event.TimeDeltaPayload{
			Days:    mins / (24 * 60),
			Hours:   (mins % (24 * 60)) / 60,
			Minutes: mins % 60,
		}
		emit(event.State{Kind: event.KindTime, Time: &d})
	}
}

func diffLocation(prev, next *event.ProjectedState, emit func(event.State)) {
	if next.Location == nil {
		return
	}
	p := prev.Location
	if p == nil {
		p = &event.Location{}
	}
	if !strings.EqualFold(p.Area, next.Location.Area) ||
		!strings.EqualFold(p.Place, next.Location.Place) ||
		!strings.EqualFold(p.Position, next.Location.Position) {
		emit(event.State{Kind: event.KindLocation, Location: &event.LocationPayload{
			Action:           event.LocationMoved,
			Area:             next.Location.Area,
			Place:            next.Location.Place,
			Position:         next.Location.Position,
			PreviousArea:     p.Area,
			PreviousPlace:    p.Place,
			PreviousPosition: p.Position,
		}})
	}
	for _, prop := range next.Location.Props {
		if !containsFold(p.Props, prop) {
			emit(event.State{Kind: event.KindLocation, Location: &event.LocationPayload{
				Action: event.LocationPropAdded,
				Prop:   prop,
			}})
		}
	}
	for _, prop := range p.Props {
		if !containsFold(next.Location.Props, prop) {
			emit(event.State{Kind: event.KindLocation, Location: &event.LocationPayload{
				Action: event.LocationPropRemoved,
				Prop:   prop,
			}})
		}
	}
}

func diffCharacters(prev, next *event.ProjectedState, emit func(event.State)) {
	char := func(action event.CharacterAction, name string) *event.CharacterPayload {
		return &event.CharacterPayload{Action: action, Name: name}
	}

	for _, key := range sortedKeys(next.Characters) {
		nc := next.Characters[key]
		pc := prev.FindCharacter(nc.Name)
		if pc == nil {
			pc = &event.CharacterState{Name: nc.Name}
		}
		if nc.Present && !pc.Present {
			p := char(event.CharacterAppeared, nc.Name)
			p.Position = nc.Position
			p.Activity = nc.Activity
			emit(event.State{Kind: event.KindCharacter, Character: p})
		}
		if !nc.Present && pc.Present {
			emit(event.State{Kind: event.KindCharacter, Character: char(event.CharacterDeparted, nc.Name)})
		}
		if nc.Position != "" && !strings.EqualFold(nc.Position, pc.Position) && !(nc.Present && !pc.Present) {
			p := char(event.CharacterPositionChanged, nc.Name)
			p.Position = nc.Position
			emit(event.State{Kind: event.KindCharacter, Character: p})
		}
		if nc.Activity != "" && !strings.EqualFold(nc.Activity, pc.Activity) && !(nc.Present && !pc.Present) {
			p := char(event.CharacterActivityChanged, nc.Name)
			p.Activity = nc.Activity
			emit(event.State{Kind: event.KindCharacter, Character: p})
		}
		diffMoods(nc.Moods, pc.Moods, nc.Name, emit)
		diffPhysical(nc.PhysicalStates, pc.PhysicalStates, nc.Name, emit)
		for _, slot := range event.OutfitSlots {
			nv, pv := nc.Outfit[slot], pc.Outfit[slot]
			if nv != pv {
				p := char(event.CharacterOutfitChanged, nc.Name)
				p.Slot = slot
				p.NewValue = nv
				p.PreviousValue = pv
				emit(event.State{Kind: event.KindCharacter, Character: p})
			}
		}
	}

	// A character dropped from the tracked map entirely has left the scene.
	for _, key := range sortedKeys(prev.Characters) {
		pc := prev.Characters[key]
		if pc.Present && next.FindCharacter(pc.Name) == nil {
			emit(event.State{Kind: event.KindCharacter, Character: char(event.CharacterDeparted, pc.Name)})
		}
	}
}

func diffMoods(next, prev []string, name string, emit func(event.State)) {
	for _, v := range next {
		if !containsFold(prev, v) {
			emit(event.State{Kind: event.KindCharacter, Character: &event.CharacterPayload{
				Action: event.CharacterMoodAdded, Name: name, Mood: v,
			}})
		}
	}
	for _, v := range prev {
		if !containsFold(next, v) {
			emit(event.State{Kind: event.KindCharacter, Character: &event.CharacterPayload{
				Action: event.CharacterMoodRemoved, Name: name, Mood: v,
			}})
		}
	}
}

func diffPhysical(next, prev []string, name string, emit func(event.State)) {
	for _, v := range next {
		if !containsFold(prev, v) {
			emit(event.State{Kind: event.KindCharacter, Character: &event.CharacterPayload{
				Action: event.CharacterPhysicalStateAdded, Name: name, PhysicalState: v,
			}})
		}
	}
	for _, v := range prev {
		if !containsFold(next, v) {
			emit(event.State{Kind: event.KindCharacter, Character: &event.CharacterPayload{
				Action: event.CharacterPhysicalStateRemoved, Name: name, PhysicalState: v,
			}})
		}
	}
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]*event.CharacterState) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
