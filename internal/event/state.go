package event

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// DateTime is the narrative clock. Weekday is always derived, never stored.
type DateTime struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
	Second int `json:"second"`
}

func (d DateTime) asTime() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, d.Second, 0, time.UTC)
}

func dateTimeFrom(t time.Time) DateTime {
	return DateTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// Add applies a signed delta and returns the shifted clock.
func (d DateTime) Add(days, hours, minutes int) DateTime {
	t := d.asTime().
		AddDate(0, 0, days).
		Add(time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute)
	return dateTimeFrom(t)
}

// MinutesSince returns the signed whole-minute distance from other to d.
func (d DateTime) MinutesSince(other DateTime) int {
	return int(d.asTime().Sub(other.asTime()) / time.Minute)
}

// Weekday returns the derived weekday name.
func (d DateTime) Weekday() string {
	return d.asTime().Weekday().String()
}

func (d DateTime) String() string {
	return d.asTime().Format("2006-01-02 15:04:05")
}

// Location is the projected scene location.
type Location struct {
	Area     string   `json:"area,omitempty"`
	Place    string   `json:"place,omitempty"`
	Position string   `json:"position,omitempty"`
	Props    []string `json:"props,omitempty"`
}

// CharacterState is the projected per-character state. Departed characters
// stay in the character map with Present=false so outfit and mood survive a
// re-entry.
type CharacterState struct {
	Name           string                `json:"name"`
	Present        bool                  `json:"present"`
	Position       string                `json:"position,omitempty"`
	Activity       string                `json:"activity,omitempty"`
	Moods          []string              `json:"moods,omitempty"`
	PhysicalStates []string              `json:"physicalStates,omitempty"`
	Outfit         map[OutfitSlot]string `json:"outfit,omitempty"`
}

// Attitude is one direction of a relationship.
type Attitude struct {
	Feelings []string `json:"feelings,omitempty"`
	Secrets  []string `json:"secrets,omitempty"`
	Wants    []string `json:"wants,omitempty"`
}

// RelationshipState is the projected pairwise relationship. Pair is always
// the alphabetically sorted character names; AToB is the attitude of Pair[0]
// toward Pair[1].
type RelationshipState struct {
	Pair   []string `json:"pair"`
	AToB   Attitude `json:"aToB"`
	BToA   Attitude `json:"bToA"`
	Status string   `json:"status,omitempty"`
}

// ProjectedState is the narrative state reconstructed by folding events onto
// a base snapshot.
type ProjectedState struct {
	Time          *DateTime                     `json:"time,omitempty"`
	Location      *Location                     `json:"location,omitempty"`
	Characters    map[string]*CharacterState    `json:"characters,omitempty"`
	Relationships map[string]*RelationshipState `json:"relationships,omitempty"`
	Forecasts     map[string]json.RawMessage    `json:"forecasts,omitempty"`
}

// NewProjectedState returns an empty state with initialized containers.
func NewProjectedState() *ProjectedState {
	return &ProjectedState{
		Characters:    make(map[string]*CharacterState),
		Relationships: make(map[string]*RelationshipState),
		Forecasts:     make(map[string]json.RawMessage),
	}
}

// ChapterSnapshot caches a full projection at a chapter boundary. The state is
// inclusive of the recorded message's own events for the recorded swipe. The
// initial projection shares this shape with ChapterIndex zero.
type ChapterSnapshot struct {
	ChapterIndex int             `json:"chapterIndex"`
	MessageID    int             `json:"messageId"`
	SwipeID      int             `json:"swipeId"`
	State        *ProjectedState `json:"state"`
}

// SortPair returns the two names in canonical (case-insensitive alphabetical)
// order.
func SortPair(a, b string) (string, string) {
	if strings.ToLower(a) > strings.ToLower(b) {
		return b, a
	}
	return a, b
}

// PairKey returns the canonical relationship map key for two characters.
func PairKey(a, b string) string {
	first, second := SortPair(strings.TrimSpace(a), strings.TrimSpace(b))
	return strings.ToLower(first) + "|" + strings.ToLower(second)
}

// Character returns the character entry for name, creating it if absent.
func (s *ProjectedState) Character(name string) *CharacterState {
	if s.Characters == nil {
		s.Characters = make(map[string]*CharacterState)
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if c, ok := s.Characters[key]; ok {
		return c
	}
	c := &CharacterState{Name: strings.TrimSpace(name), Outfit: make(map[OutfitSlot]string)}
	s.Characters[key] = c
	return c
}

// FindCharacter returns the character entry for name without creating it.
func (s *ProjectedState) FindCharacter(name string) *CharacterState {
	if s.Characters == nil {
		return nil
	}
	return s.Characters[strings.ToLower(strings.TrimSpace(name))]
}

// Relationship returns the relationship entry for the pair, creating it if
// absent.
func (s *ProjectedState) Relationship(a, b string) *RelationshipState {
	if s.Relationships == nil {
		s.Relationships = make(map[string]*RelationshipState)
	}
	key := PairKey(a, b)
	if r, ok := s.Relationships[key]; ok {
		return r
	}
	first, second := SortPair(strings.TrimSpace(a), strings.TrimSpace(b))
	r := &RelationshipState{Pair: []string{first, second}}
	s.Relationships[key] = r
	return r
}

// PresentCharacters returns the names of characters currently in the scene,
// sorted for stable output.
func (s *ProjectedState) PresentCharacters() []string {
	var names []string
	for _, c := range s.Characters {
		if c.Present {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy safe to mutate without touching the receiver.
// Snapshots are cached and reused across consumers, so every fold works on a
// clone.
func (s *ProjectedState) Clone() *ProjectedState {
	if s == nil {
		return NewProjectedState()
	}
	out := NewProjectedState()
	if s.Time != nil {
		t := *s.Time
		out.Time = &t
	}
	if s.Location != nil {
		loc := *s.Location
		loc.Props = append([]string(nil), s.Location.Props...)
		out.Location = &loc
	}
	for key, c := range s.Characters {
		copied := *c
		copied.Moods = append([]string(nil), c.Moods...)
		copied.PhysicalStates = append([]string(nil), c.PhysicalStates...)
		copied.Outfit = make(map[OutfitSlot]string, len(c.Outfit))
		for slot, value := range c.Outfit {
			copied.Outfit[slot] = value
		}
		out.Characters[key] = &copied
	}
	for key, r := range s.Relationships {
		copied := *r
		copied.Pair = append([]string(nil), r.Pair...)
		copied.AToB = cloneAttitude(r.AToB)
		copied.BToA = cloneAttitude(r.BToA)
		out.Relationships[key] = &copied
	}
	for area, payload := range s.Forecasts {
		out.Forecasts[area] = append(json.RawMessage(nil), payload...)
	}
	return out
}

func cloneAttitude(a Attitude) Attitude {
	return Attitude{
		Feelings: append([]string(nil), a.Feelings...),
		Secrets:  append([]string(nil), a.Secrets...),
		Wants:    append([]string(nil), a.Wants...),
	}
}

// Clone returns a deep copy of the snapshot.
func (cs *ChapterSnapshot) Clone() *ChapterSnapshot {
	if cs == nil {
		return nil
	}
	return &ChapterSnapshot{
		ChapterIndex: cs.ChapterIndex,
		MessageID:    cs.MessageID,
		SwipeID:      cs.SwipeID,
		State:        cs.State.Clone(),
	}
}
