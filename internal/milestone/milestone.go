// Package milestone derives per-pair "first occurrence" tags from committed
// narrative events and a coarse relationship status from the accumulated
// milestone set. Tags are never extracted: they are recomputable annotations,
// strictly first-occurrence-wins in (messageId, timestamp) order.
package milestone

// Type names a milestone-worthy interaction, tagged once per pair on the
// earliest event that triggers it.
type Type string

const (
	FirstMeeting    Type = "first_meeting"
	FirstEmbrace    Type = "first_embrace"
	FirstHandHold   Type = "first_hand_hold"
	FirstGift       Type = "first_gift"
	FirstDate       Type = "first_date"
	FirstSecret     Type = "first_secret_shared"
	FirstConfession Type = "first_confession"
	FirstKiss       Type = "first_kiss"
	FirstIntimacy   Type = "first_intimacy"
	Betrayal        Type = "betrayal"
	MajorArgument   Type = "major_argument"
	Reconciliation  Type = "reconciliation"
)

// byEventType maps narrative event types to milestones. Many-to-one; event
// types absent from the table never produce a milestone.
var byEventType = map[string]Type{
	"meeting":         FirstMeeting,
	"introduction":    FirstMeeting,
	"embrace":         FirstEmbrace,
	"hug":             FirstEmbrace,
	"hand_holding":    FirstHandHold,
	"gift":            FirstGift,
	"date":            FirstDate,
	"secret_shared":   FirstSecret,
	"confession":      FirstConfession,
	"love_confession": FirstConfession,
	"kiss":            FirstKiss,
	"intimacy":        FirstIntimacy,
	"betrayal":        Betrayal,
	"major_argument":  MajorArgument,
	"reconciliation":  Reconciliation,
}

// ForEventType returns the milestone triggered by a narrative event type, if
// any.
func ForEventType(eventType string) (Type, bool) {
	m, ok := byEventType[eventType]
	return m, ok
}

var descriptions = map[Type]string{
	FirstMeeting:    "The first time these two met",
	FirstEmbrace:    "Their first embrace",
	FirstHandHold:   "The first time they held hands",
	FirstGift:       "The first gift given between them",
	FirstDate:       "Their first date",
	FirstSecret:     "The first secret shared between them",
	FirstConfession: "The first confession of feelings",
	FirstKiss:       "Their first kiss",
	FirstIntimacy:   "Their first intimate moment",
	Betrayal:        "A betrayal between them",
	MajorArgument:   "A major argument between them",
	Reconciliation:  "A reconciliation after conflict",
}

// Describe returns the display text for a milestone.
func Describe(m Type) string {
	return descriptions[m]
}

// Status is the derived relationship tier. Never stored; recomputed from the
// milestone set on demand.
type Status string

const (
	StatusStrangers     Status = "strangers"
	StatusAcquaintances Status = "acquaintances"
	StatusStrained      Status = "strained"
	StatusHostile       Status = "hostile"
	StatusFriendly      Status = "friendly"
	StatusClose         Status = "close"
	StatusIntimate      Status = "intimate"
)

var tierOrder = map[Status]int{
	StatusStrangers:     0,
	StatusAcquaintances: 1,
	StatusStrained:      2,
	StatusHostile:       2,
	StatusFriendly:      3,
	StatusClose:         4,
	StatusIntimate:      5,
}

// Tier returns the ladder ordinal of a status; ties resolve to the higher
// tier by callers comparing with >=.
func Tier(s Status) int {
	return tierOrder[s]
}

var positiveTier = map[Type]Status{
	FirstMeeting:    StatusAcquaintances,
	FirstEmbrace:    StatusFriendly,
	FirstHandHold:   StatusFriendly,
	FirstGift:       StatusFriendly,
	FirstDate:       StatusClose,
	FirstSecret:     StatusClose,
	FirstConfession: StatusClose,
	FirstKiss:       StatusIntimate,
	FirstIntimacy:   StatusIntimate,
	Reconciliation:  StatusFriendly,
}

// StatusFor derives the relationship tier from an accumulated milestone set:
// the highest tier reached by any milestone, except that an unreconciled
// rupture pins the pair at hostile.
func StatusFor(milestones map[Type]bool) Status {
	if len(milestones) == 0 {
		return StatusStrangers
	}

	// Both rupture branches resolve to the same tier; the source treated
	// betrayal and major arguments identically once unreconciled.
	if milestones[Betrayal] && !milestones[Reconciliation] {
		return StatusHostile
	}
	if milestones[MajorArgument] && !milestones[Reconciliation] {
		return StatusHostile
	}

	status := StatusAcquaintances
	for m := range milestones {
		tier, ok := positiveTier[m]
		if !ok {
			continue
		}
		if Tier(tier) >= Tier(status) {
			status = tier
		}
	}
	return status
}
