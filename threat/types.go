// Package threat resolves combat-log events into threat values. It is a pure
// rules interpreter: every call reads its inputs, consults the declarative
// configuration and the caller's actor state, and returns a description of
// the threat the event generates. It holds no state between calls.
package threat

import (
	"encoding/json"
	"slices"
	"time"

	"golang.org/x/exp/maps"

	"github.com/tstirrat/newthreat/combatlog"
	"github.com/tstirrat/newthreat/position"
)

// AuraSet is the membership set of active buff and debuff spell ids on a unit.
type AuraSet map[int]struct{}

// NewAuraSet builds a set from the provided ids.
func NewAuraSet(ids ...int) AuraSet {
	s := make(AuraSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is active. A nil set holds nothing.
func (s AuraSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Add marks id active.
func (s AuraSet) Add(id int) {
	s[id] = struct{}{}
}

// Remove clears id.
func (s AuraSet) Remove(id int) {
	delete(s, id)
}

// IDs returns the active ids in ascending order.
func (s AuraSet) IDs() []int {
	ids := maps.Keys(s)
	slices.Sort(ids)
	return ids
}

// Clone returns an independent copy.
func (s AuraSet) Clone() AuraSet {
	out := make(AuraSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// ActorThreat pairs an actor with its threat against one enemy.
type ActorThreat struct {
	ActorID int     `json:"actorId"`
	Threat  float64 `json:"threat"`
}

// ActorContext exposes the caller's live fight state to formulas. Missing
// data is reported as absent or zero; implementations never fail.
type ActorContext interface {
	Position(actor combatlog.ActorRef) (position.Point, bool)
	Distance(a, b combatlog.ActorRef) (float64, bool)
	ActorsInRange(actor combatlog.ActorRef, maxDistance float64) []int
	Threat(actorID int, enemy combatlog.EnemyRef) float64
	// TopActorsByThreat returns at most count actors ordered by descending threat.
	TopActorsByThreat(enemy combatlog.EnemyRef, count int) []ActorThreat
	IsActorAlive(actor combatlog.ActorRef) bool
	CurrentTarget(actor combatlog.ActorRef) (combatlog.EnemyRef, bool)
	LastTarget(actor combatlog.ActorRef) (combatlog.EnemyRef, bool)
}

// NopActors is an ActorContext that knows nothing about the fight.
type NopActors struct{}

func (NopActors) Position(combatlog.ActorRef) (position.Point, bool) {
	return position.Point{}, false
}

func (NopActors) Distance(_, _ combatlog.ActorRef) (float64, bool) {
	return 0, false
}

func (NopActors) ActorsInRange(combatlog.ActorRef, float64) []int {
	return nil
}

func (NopActors) Threat(int, combatlog.EnemyRef) float64 {
	return 0
}

func (NopActors) TopActorsByThreat(combatlog.EnemyRef, int) []ActorThreat {
	return nil
}

func (NopActors) IsActorAlive(combatlog.ActorRef) bool {
	return true
}

func (NopActors) CurrentTarget(combatlog.ActorRef) (combatlog.EnemyRef, bool) {
	return combatlog.EnemyRef{}, false
}

func (NopActors) LastTarget(combatlog.ActorRef) (combatlog.EnemyRef, bool) {
	return combatlog.EnemyRef{}, false
}

// Context is the per-call input handed to formulas and modifier factories.
type Context struct {
	Event       combatlog.Event
	Amount      float64
	SourceAuras AuraSet
	TargetAuras AuraSet
	SourceActor combatlog.Actor
	TargetActor combatlog.Actor
	// EncounterID is zero outside boss encounters.
	EncounterID int
	Actors      ActorContext
}

// Formula computes the base threat for an event.
type Formula func(ctx *Context) FormulaResult

// FormulaResult is a formula's output before multipliers are applied.
type FormulaResult struct {
	Formula           string   `json:"formula"`
	Value             float64  `json:"value"`
	SplitAmongEnemies bool     `json:"splitAmongEnemies"`
	Special           *Special `json:"special,omitempty"`
}

// SpecialType tells the caller how to apply a result beyond a plain add.
type SpecialType string

const (
	// SpecialTaunt sets the source to the enemy's top threat plus the base
	// value and fixates the enemy on the source.
	SpecialTaunt SpecialType = "taunt"
	// SpecialThreatDrop zeroes the source's threat on its current targets.
	SpecialThreatDrop SpecialType = "threatDrop"
	// SpecialNoThreatWindow suppresses the source's threat for Duration.
	SpecialNoThreatWindow SpecialType = "noThreatWindow"
	// SpecialCustomThreat carries explicit Changes to apply verbatim.
	SpecialCustomThreat SpecialType = "customThreat"
	// SpecialModifyThreat scales existing threat by Multiplier.
	SpecialModifyThreat SpecialType = "modifyThreat"
	// SpecialCastCanMiss marks threat applied at cast time that must be
	// cancelled if the ability is later reported as missed.
	SpecialCastCanMiss SpecialType = "castCanMiss"
)

// ModifyTarget selects whose threat a modifyThreat special scales.
type ModifyTarget string

const (
	ModifyTargetTarget ModifyTarget = "target"
	ModifyTargetAll    ModifyTarget = "all"
)

// Special is the optional payload attached to a formula result.
type Special struct {
	Type           SpecialType
	FixateDuration time.Duration
	Duration       time.Duration
	Changes        []Change
	Multiplier     float64
	Target         ModifyTarget
}

type specialWire struct {
	Type           SpecialType  `json:"type"`
	FixateDuration int64        `json:"fixateDuration,omitempty"`
	Duration       int64        `json:"duration,omitempty"`
	Changes        []Change     `json:"changes,omitempty"`
	Multiplier     *float64     `json:"multiplier,omitempty"`
	Target         ModifyTarget `json:"target,omitempty"`
}

// MarshalJSON renders durations in milliseconds, matching event timestamps.
func (s Special) MarshalJSON() ([]byte, error) {
	wire := specialWire{
		Type:           s.Type,
		FixateDuration: s.FixateDuration.Milliseconds(),
		Duration:       s.Duration.Milliseconds(),
		Changes:        s.Changes,
		Target:         s.Target,
	}
	if s.Type == SpecialModifyThreat {
		m := s.Multiplier
		wire.Multiplier = &m
	}
	return json.Marshal(wire)
}

// Operator is how a Change combines with the existing total.
type Operator string

const (
	OperatorAdd Operator = "add"
	OperatorSet Operator = "set"
)

// Change is an explicit update to the caller's threat table. Total is the
// value the entry holds after the change.
type Change struct {
	SourceID       int      `json:"sourceId"`
	TargetID       int      `json:"targetId"`
	TargetInstance int      `json:"targetInstance"`
	Operator       Operator `json:"operator"`
	Amount         float64  `json:"amount"`
	Total          float64  `json:"total"`
}

// Enemy returns the enemy the change applies to.
func (c Change) Enemy() combatlog.EnemyRef {
	return combatlog.EnemyRef{ID: c.TargetID, InstanceID: c.TargetInstance}
}

// ModifierSource tags where a multiplier came from.
type ModifierSource string

const (
	ModifierSourceClass  ModifierSource = "class"
	ModifierSourceAura   ModifierSource = "aura"
	ModifierSourceStance ModifierSource = "stance"
	ModifierSourceTalent ModifierSource = "talent"
	ModifierSourceGear   ModifierSource = "gear"
)

// Modifier is one multiplicative contribution to an event's threat.
type Modifier struct {
	Source ModifierSource `json:"source"`
	Name   string         `json:"name"`
	Value  float64        `json:"value"`
}

// ModifierFunc produces the modifier for an active aura.
type ModifierFunc func(ctx *Context) Modifier
