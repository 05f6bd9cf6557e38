package event

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a state event before it may enter a store. Malformed events
// fail here rather than during a fold.
func (e *State) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("validating state event: %w", err)
	}
	if err := e.validatePayload(); err != nil {
		return fmt.Errorf("validating state event %s: %w", e.ID, err)
	}
	return nil
}

func (e *State) validatePayload() error {
	if n := e.payloadCount(); n != 1 {
		return fmt.Errorf("expected exactly one payload for kind %q, got %d", e.Kind, n)
	}

	switch e.Kind {
	case KindTimeInitial:
		if e.TimeInitial == nil {
			return fmt.Errorf("kind %q requires a timeInitial payload", e.Kind)
		}
	case KindTime:
		if e.Time == nil {
			return fmt.Errorf("kind %q requires a time payload", e.Kind)
		}
	case KindLocation:
		if e.Location == nil {
			return fmt.Errorf("kind %q requires a location payload", e.Kind)
		}
		switch e.Location.Action {
		case LocationMoved:
		case LocationPropAdded, LocationPropRemoved:
			if strings.TrimSpace(e.Location.Prop) == "" {
				return fmt.Errorf("action %q requires a prop", e.Location.Action)
			}
		default:
			return fmt.Errorf("unknown location action %q", e.Location.Action)
		}
	case KindCharacter:
		if e.Character == nil {
			return fmt.Errorf("kind %q requires a character payload", e.Kind)
		}
		return e.Character.validate()
	case KindRelationship:
		if e.Relationship == nil {
			return fmt.Errorf("kind %q requires a relationship payload", e.Kind)
		}
		return e.Relationship.validate()
	case KindForecast:
		if e.Forecast == nil {
			return fmt.Errorf("kind %q requires a forecast payload", e.Kind)
		}
		if strings.TrimSpace(e.Forecast.Area) == "" {
			return fmt.Errorf("forecast area is required")
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}

func (e *State) payloadCount() int {
	count := 0
	if e.TimeInitial != nil {
		count++
	}
	if e.Time != nil {
		count++
	}
	if e.Location != nil {
		count++
	}
	if e.Character != nil {
		count++
	}
	if e.Relationship != nil {
		count++
	}
	if e.Forecast != nil {
		count++
	}
	return count
}

func (p *CharacterPayload) validate() error {
	switch p.Action {
	case CharacterAppeared, CharacterDeparted:
	case CharacterPositionChanged, CharacterActivityChanged:
	case CharacterMoodAdded, CharacterMoodRemoved:
		if strings.TrimSpace(p.Mood) == "" {
			return fmt.Errorf("action %q requires a mood", p.Action)
		}
	case CharacterPhysicalStateAdded, CharacterPhysicalStateRemoved:
		if strings.TrimSpace(p.PhysicalState) == "" {
			return fmt.Errorf("action %q requires a physical state", p.Action)
		}
	case CharacterOutfitChanged:
		if !ValidOutfitSlot(p.Slot) {
			return fmt.Errorf("unknown outfit slot %q", p.Slot)
		}
	default:
		return fmt.Errorf("unknown character action %q", p.Action)
	}
	return nil
}

func (p *RelationshipPayload) validate() error {
	switch p.Action {
	case RelationshipStatusChanged:
		if len(p.Pair) != 2 {
			return fmt.Errorf("action %q requires a two-element pair", p.Action)
		}
		if strings.TrimSpace(p.Status) == "" {
			return fmt.Errorf("action %q requires a status", p.Action)
		}
	case RelationshipFeelingAdded, RelationshipFeelingRemoved,
		RelationshipSecretAdded, RelationshipSecretRemoved,
		RelationshipWantAdded, RelationshipWantRemoved:
		if strings.TrimSpace(p.FromCharacter) == "" || strings.TrimSpace(p.TowardCharacter) == "" {
			return fmt.Errorf("action %q requires fromCharacter and towardCharacter", p.Action)
		}
		if strings.TrimSpace(p.Value) == "" {
			return fmt.Errorf("action %q requires a value", p.Action)
		}
	default:
		return fmt.Errorf("unknown relationship action %q", p.Action)
	}
	return nil
}

// Validate checks a narrative event before it may enter a store.
func (n *Narrative) Validate() error {
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("validating narrative event: %w", err)
	}
	for i, pair := range n.AffectedPairs {
		if len(pair.Pair) != 2 {
			return fmt.Errorf("validating narrative event %s: affected pair %d must have two names", n.ID, i)
		}
	}
	return nil
}
