package combatlog

import "strings"

// Class names a playable class. Enemies and most pets carry an empty class.
type Class string

const (
	ClassNone    Class = ""
	ClassDruid   Class = "druid"
	ClassHunter  Class = "hunter"
	ClassMage    Class = "mage"
	ClassPaladin Class = "paladin"
	ClassPriest  Class = "priest"
	ClassRogue   Class = "rogue"
	ClassShaman  Class = "shaman"
	ClassWarlock Class = "warlock"
	ClassWarrior Class = "warrior"
)

var knownClasses = map[Class]struct{}{
	ClassDruid: {}, ClassHunter: {}, ClassMage: {}, ClassPaladin: {}, ClassPriest: {},
	ClassRogue: {}, ClassShaman: {}, ClassWarlock: {}, ClassWarrior: {},
}

// Known reports whether c names a playable class.
func (c Class) Known() bool {
	_, ok := knownClasses[c]
	return ok
}

// DisplayName capitalises the first letter of the class name.
func (c Class) DisplayName() string {
	if c == ClassNone {
		return "Class"
	}
	s := string(c)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Actor identifies a unit participating in the fight.
type Actor struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Class    Class  `json:"class,omitempty"`
	PetOwner int    `json:"petOwner,omitempty"`
}

// HasClass reports whether the actor is a classed player.
func (a Actor) HasClass() bool {
	return a.Class != ClassNone
}

// ActorRef points at a unit, optionally at a specific instance of it.
type ActorRef struct {
	ID         int `json:"id"`
	InstanceID int `json:"instanceId,omitempty"`
}

// EnemyRef identifies one copy of an enemy. Threat is always tracked against
// the pair, never against the bare id.
type EnemyRef struct {
	ID         int `json:"id"`
	InstanceID int `json:"instanceId"`
}

// Ref converts the enemy to a generic actor reference.
func (e EnemyRef) Ref() ActorRef {
	return ActorRef{ID: e.ID, InstanceID: e.InstanceID}
}

// Roster maps actor ids to their records.
type Roster map[int]Actor

// Lookup returns the actor for id, or a classless placeholder when unknown.
func (r Roster) Lookup(id int) Actor {
	if actor, ok := r[id]; ok {
		return actor
	}
	return Actor{ID: id}
}
