package combatlog

// EventType enumerates the combat-log event kinds the simulation understands.
// Unknown types decode fine and are treated as zero-threat events.
type EventType string

const (
	EventDamage           EventType = "damage"
	EventHeal             EventType = "heal"
	EventEnergize         EventType = "energize"
	EventCast             EventType = "cast"
	EventBeginCast        EventType = "begincast"
	EventApplyBuff        EventType = "applybuff"
	EventApplyBuffStack   EventType = "applybuffstack"
	EventRefreshBuff      EventType = "refreshbuff"
	EventRemoveBuff       EventType = "removebuff"
	EventApplyDebuff      EventType = "applydebuff"
	EventApplyDebuffStack EventType = "applydebuffstack"
	EventRefreshDebuff    EventType = "refreshdebuff"
	EventRemoveDebuff     EventType = "removedebuff"
	EventDeath            EventType = "death"
)

// ResourceActor tells which side of an event the optional coordinates belong to.
type ResourceActor uint8

const (
	ResourceActorNone ResourceActor = iota
	ResourceActorSource
	ResourceActorTarget
)

// HitTypeMissThreshold is the highest hit type that still counts as landing.
// Larger values (miss, dodge, parry, immune, resist, ...) mean the ability
// did not connect.
const HitTypeMissThreshold = 6

// Event is a single combat-log entry. Type discriminates which payload fields
// are meaningful; the rest stay at their zero values.
type Event struct {
	Timestamp        int64     `json:"timestamp" jsonschema:"description=Milliseconds since the start of the report"`
	Type             EventType `json:"type" jsonschema:"description=Event kind such as damage or applybuff"`
	SourceID         int       `json:"sourceID"`
	SourceInstance   int       `json:"sourceInstance,omitempty"`
	SourceIsFriendly bool      `json:"sourceIsFriendly"`
	TargetID         int       `json:"targetID"`
	TargetInstance   int       `json:"targetInstance,omitempty"`
	TargetIsFriendly bool      `json:"targetIsFriendly"`
	AbilityGameID    int       `json:"abilityGameID,omitempty" jsonschema:"description=Spell id; zero when the event carries no ability"`

	Amount             float64 `json:"amount,omitempty"`
	Overheal           float64 `json:"overheal,omitempty"`
	Absorbed           float64 `json:"absorbed,omitempty"`
	HitType            int     `json:"hitType,omitempty"`
	ResourceChange     float64 `json:"resourceChange,omitempty"`
	ResourceChangeType int     `json:"resourceChangeType,omitempty"`
	Waste              float64 `json:"waste,omitempty"`

	X             *float64      `json:"x,omitempty"`
	Y             *float64      `json:"y,omitempty"`
	ResourceActor ResourceActor `json:"resourceActor,omitempty" jsonschema:"enum=0,enum=1,enum=2,description=1 when x/y describe the source and 2 when they describe the target"`
}

// HasAbility reports whether the event references a spell id.
func (e Event) HasAbility() bool {
	return e.AbilityGameID != 0
}

// Source returns the reference of the acting unit.
func (e Event) Source() ActorRef {
	return ActorRef{ID: e.SourceID, InstanceID: e.SourceInstance}
}

// Target returns the reference of the affected unit.
func (e Event) Target() ActorRef {
	return ActorRef{ID: e.TargetID, InstanceID: e.TargetInstance}
}

// SourceEnemy returns the source as an enemy reference.
func (e Event) SourceEnemy() EnemyRef {
	return EnemyRef{ID: e.SourceID, InstanceID: e.SourceInstance}
}

// TargetEnemy returns the target as an enemy reference.
func (e Event) TargetEnemy() EnemyRef {
	return EnemyRef{ID: e.TargetID, InstanceID: e.TargetInstance}
}

// Missed reports whether a damage event describes an avoided attack.
func (e Event) Missed() bool {
	return e.Type == EventDamage && e.HitType > HitTypeMissThreshold
}

// Coordinates returns the position carried by the event and the actor it
// belongs to.
func (e Event) Coordinates() (actorID int, x, y float64, ok bool) {
	if e.X == nil || e.Y == nil {
		return 0, 0, 0, false
	}
	switch e.ResourceActor {
	case ResourceActorSource:
		return e.SourceID, *e.X, *e.Y, true
	case ResourceActorTarget:
		return e.TargetID, *e.X, *e.Y, true
	default:
		return 0, 0, 0, false
	}
}

// IsAuraApplication reports whether the event adds an aura to its target.
func (e Event) IsAuraApplication() bool {
	switch e.Type {
	case EventApplyBuff, EventApplyDebuff, EventApplyBuffStack, EventApplyDebuffStack, EventRefreshBuff, EventRefreshDebuff:
		return true
	}
	return false
}

// IsAuraRemoval reports whether the event removes an aura from its target.
func (e Event) IsAuraRemoval() bool {
	return e.Type == EventRemoveBuff || e.Type == EventRemoveDebuff
}
