// Package threattest provides fakes for exercising threat formulas.
package threattest

import (
	"sort"

	"github.com/tstirrat/newthreat/combatlog"
	"github.com/tstirrat/newthreat/position"
	"github.com/tstirrat/newthreat/threat"
)

// Actors is an in-memory ActorContext. Zero value is an empty fight.
type Actors struct {
	Positions *position.Tracker
	// Threats maps enemy -> actor id -> threat.
	Threats map[combatlog.EnemyRef]map[int]float64
	Dead    map[int]bool
	Current map[int]combatlog.EnemyRef
	Last    map[int]combatlog.EnemyRef
}

var _ threat.ActorContext = (*Actors)(nil)

// NewActors returns an empty fake with a position tracker.
func NewActors() *Actors {
	return &Actors{
		Positions: position.NewTracker(),
		Threats:   make(map[combatlog.EnemyRef]map[int]float64),
		Dead:      make(map[int]bool),
		Current:   make(map[int]combatlog.EnemyRef),
		Last:      make(map[int]combatlog.EnemyRef),
	}
}

// SetThreat records threat for actorID against enemy.
func (a *Actors) SetThreat(actorID int, enemy combatlog.EnemyRef, value float64) {
	if a.Threats == nil {
		a.Threats = make(map[combatlog.EnemyRef]map[int]float64)
	}
	table := a.Threats[enemy]
	if table == nil {
		table = make(map[int]float64)
		a.Threats[enemy] = table
	}
	table[actorID] = value
}

// Place records a position.
func (a *Actors) Place(actorID int, x, y float64) {
	if a.Positions == nil {
		a.Positions = position.NewTracker()
	}
	a.Positions.Update(actorID, x, y)
}

func (a *Actors) Position(actor combatlog.ActorRef) (position.Point, bool) {
	return a.Positions.Position(actor.ID)
}

func (a *Actors) Distance(x, y combatlog.ActorRef) (float64, bool) {
	if a.Positions == nil {
		return 0, false
	}
	return a.Positions.Distance(x.ID, y.ID)
}

func (a *Actors) ActorsInRange(actor combatlog.ActorRef, maxDistance float64) []int {
	if a.Positions == nil {
		return nil
	}
	return a.Positions.ActorsInRange(actor.ID, maxDistance)
}

func (a *Actors) Threat(actorID int, enemy combatlog.EnemyRef) float64 {
	return a.Threats[enemy][actorID]
}

func (a *Actors) TopActorsByThreat(enemy combatlog.EnemyRef, count int) []threat.ActorThreat {
	table := a.Threats[enemy]
	out := make([]threat.ActorThreat, 0, len(table))
	for id, value := range table {
		out = append(out, threat.ActorThreat{ActorID: id, Threat: value})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Threat != out[j].Threat {
			return out[i].Threat > out[j].Threat
		}
		return out[i].ActorID < out[j].ActorID
	})
	if count >= 0 && len(out) > count {
		out = out[:count]
	}
	return out
}

func (a *Actors) IsActorAlive(actor combatlog.ActorRef) bool {
	return !a.Dead[actor.ID]
}

func (a *Actors) CurrentTarget(actor combatlog.ActorRef) (combatlog.EnemyRef, bool) {
	ref, ok := a.Current[actor.ID]
	return ref, ok
}

func (a *Actors) LastTarget(actor combatlog.ActorRef) (combatlog.EnemyRef, bool) {
	ref, ok := a.Last[actor.ID]
	return ref, ok
}

// Context builds a formula context around event with sane defaults: a
// warrior source, a classless target, and amount 100.
func Context(event combatlog.Event, actors threat.ActorContext) *threat.Context {
	if actors == nil {
		actors = threat.NopActors{}
	}
	return &threat.Context{
		Event:       event,
		Amount:      100,
		SourceAuras: threat.NewAuraSet(),
		TargetAuras: threat.NewAuraSet(),
		SourceActor: combatlog.Actor{ID: event.SourceID, Name: "TestSource", Class: combatlog.ClassWarrior},
		TargetActor: combatlog.Actor{ID: event.TargetID, Name: "TestTarget"},
		Actors:      actors,
	}
}
