package event

import "encoding/json"

// Kind discriminates state event payloads.
type Kind string

const (
	KindTimeInitial  Kind = "time_initial"
	KindTime         Kind = "time"
	KindLocation     Kind = "location"
	KindCharacter    Kind = "character"
	KindRelationship Kind = "relationship"
	KindForecast     Kind = "forecast_generated"
)

// LocationAction is the subkind of a location event.
type LocationAction string

const (
	LocationMoved       LocationAction = "moved"
	LocationPropAdded   LocationAction = "prop_added"
	LocationPropRemoved LocationAction = "prop_removed"
)

// CharacterAction is the subkind of a character event.
type CharacterAction string

const (
	CharacterAppeared             CharacterAction = "appeared"
	CharacterDeparted             CharacterAction = "departed"
	CharacterPositionChanged      CharacterAction = "position_changed"
	CharacterActivityChanged      CharacterAction = "activity_changed"
	CharacterMoodAdded            CharacterAction = "mood_added"
	CharacterMoodRemoved          CharacterAction = "mood_removed"
	CharacterPhysicalStateAdded   CharacterAction = "physical_state_added"
	CharacterPhysicalStateRemoved CharacterAction = "physical_state_removed"
	CharacterOutfitChanged        CharacterAction = "outfit_changed"
)

// RelationshipAction is the subkind of a relationship event.
type RelationshipAction string

const (
	RelationshipFeelingAdded   RelationshipAction = "feeling_added"
	RelationshipFeelingRemoved RelationshipAction = "feeling_removed"
	RelationshipSecretAdded    RelationshipAction = "secret_added"
	RelationshipSecretRemoved  RelationshipAction = "secret_removed"
	RelationshipWantAdded      RelationshipAction = "want_added"
	RelationshipWantRemoved    RelationshipAction = "want_removed"
	RelationshipStatusChanged  RelationshipAction = "status_changed"
)

// OutfitSlot is one of the fixed clothing slots tracked per character.
type OutfitSlot string

const (
	SlotHead      OutfitSlot = "head"
	SlotNeck      OutfitSlot = "neck"
	SlotJacket    OutfitSlot = "jacket"
	SlotBack      OutfitSlot = "back"
	SlotTorso     OutfitSlot = "torso"
	SlotLegs      OutfitSlot = "legs"
	SlotUnderwear OutfitSlot = "underwear"
	SlotSocks     OutfitSlot = "socks"
	SlotFootwear  OutfitSlot = "footwear"
)

// OutfitSlots lists every tracked slot in display order.
var OutfitSlots = []OutfitSlot{
	SlotHead, SlotNeck, SlotJacket, SlotBack, SlotTorso,
	SlotLegs, SlotUnderwear, SlotSocks, SlotFootwear,
}

// ValidOutfitSlot reports whether s is one of the fixed slots.
func ValidOutfitSlot(s OutfitSlot) bool {
	for _, slot := range OutfitSlots {
		if slot == s {
			return true
		}
	}
	return false
}

// State is a fine-grained state event. Events are immutable once appended
// except for the Deleted soft-delete flag. Exactly one payload pointer is
// non-nil, matching Kind.
type State struct {
	ID        string `json:"id" validate:"required,uuid"`
	MessageID int    `json:"messageId" validate:"min=0"`
	SwipeID   int    `json:"swipeId" validate:"min=0"`
	Timestamp int64  `json:"timestamp" validate:"required"`
	Deleted   bool   `json:"deleted,omitempty"`
	Kind      Kind   `json:"kind" validate:"required"`

	TimeInitial  *TimeInitialPayload  `json:"timeInitial,omitempty"`
	Time         *TimeDeltaPayload    `json:"time,omitempty"`
	Location     *LocationPayload     `json:"location,omitempty"`
	Character    *CharacterPayload    `json:"character,omitempty"`
	Relationship *RelationshipPayload `json:"relationship,omitempty"`
	Forecast     *ForecastPayload     `json:"forecast,omitempty"`
}

// TimeInitialPayload anchors the narrative clock at an absolute calendar time.
type TimeInitialPayload struct {
	Year    int    `json:"year" validate:"required"`
	Month   int    `json:"month" validate:"min=1,max=12"`
	Day     int    `json:"day" validate:"min=1,max=31"`
	Hour    int    `json:"hour" validate:"min=0,max=23"`
	Minute  int    `json:"minute" validate:"min=0,max=59"`
	Second  int    `json:"second" validate:"min=0,max=59"`
	Weekday string `json:"weekday,omitempty"`
}

// TimeDeltaPayload is a signed offset from the immediately preceding folded
// time, never an absolute value. Editing an early delta shifts every later
// absolute time on replay.
type TimeDeltaPayload struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

type LocationPayload struct {
	Action LocationAction `json:"action" validate:"required"`

	Area     string `json:"area,omitempty"`
	Place    string `json:"place,omitempty"`
	Position string `json:"position,omitempty"`

	PreviousArea     string `json:"previousArea,omitempty"`
	PreviousPlace    string `json:"previousPlace,omitempty"`
	PreviousPosition string `json:"previousPosition,omitempty"`

	Prop string `json:"prop,omitempty"`
}

type CharacterPayload struct {
	Action CharacterAction `json:"action" validate:"required"`
	Name   string          `json:"name" validate:"required"`

	Position string `json:"position,omitempty"`
	Activity string `json:"activity,omitempty"`

	Mood          string `json:"mood,omitempty"`
	PhysicalState string `json:"physicalState,omitempty"`

	Slot          OutfitSlot `json:"slot,omitempty"`
	NewValue      string     `json:"newValue,omitempty"`
	PreviousValue string     `json:"previousValue,omitempty"`
}

// RelationshipPayload carries directional attitude changes (From/Toward) or
// the symmetric status_changed with an explicit sorted pair. The pair key is
// always derived by sorting, never stored.
type RelationshipPayload struct {
	Action RelationshipAction `json:"action" validate:"required"`

	FromCharacter   string `json:"fromCharacter,omitempty"`
	TowardCharacter string `json:"towardCharacter,omitempty"`
	Value           string `json:"value,omitempty"`

	Pair   []string `json:"pair,omitempty"`
	Status string   `json:"status,omitempty"`
}

// ForecastPayload caches a generated weather forecast for an area.
// Write-once per area per message.
type ForecastPayload struct {
	Area    string          `json:"area" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PairKey returns the canonical relationship key for the event, or "" when the
// event is not a relationship event.
func (e *State) PairKey() string {
	if e.Kind != KindRelationship || e.Relationship == nil {
		return ""
	}
	r := e.Relationship
	if r.Action == RelationshipStatusChanged {
		if len(r.Pair) != 2 {
			return ""
		}
		return PairKey(r.Pair[0], r.Pair[1])
	}
	return PairKey(r.FromCharacter, r.TowardCharacter)
}
