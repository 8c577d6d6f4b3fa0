// Package sim replays a fight through the threat engine. It owns everything
// the engine deliberately does not: the threat tables, positions, auras,
// liveness and targeting, and it applies each calculation to them in
// timestamp order.
package sim

import (
	"cmp"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/tstirrat/newthreat/combatlog"
	"github.com/tstirrat/newthreat/position"
	"github.com/tstirrat/newthreat/rulesets"
	"github.com/tstirrat/newthreat/threat"
)

// Fixate is a taunt's forced target on one enemy.
type Fixate struct {
	ActorID int   `json:"actorId"`
	Until   int64 `json:"until"`
}

type castKey struct {
	actorID   int
	abilityID int
}

type pendingCast struct {
	enemy  combatlog.EnemyRef
	amount float64
}

// State is the per-encounter fight state. It is owned by one replay and is
// not safe for concurrent use.
type State struct {
	positions *position.Tracker
	threat    map[combatlog.EnemyRef]map[int]float64
	auras     map[int]threat.AuraSet
	dead      map[combatlog.ActorRef]bool
	current   map[int]combatlog.EnemyRef
	last      map[int]combatlog.EnemyRef
	engaged   map[combatlog.EnemyRef]struct{}
	fixates   map[combatlog.EnemyRef]Fixate
	silenced  map[int]int64
	pending   map[castKey]pendingCast
}

var _ threat.ActorContext = (*State)(nil)

// NewState returns an empty fight state.
func NewState() *State {
	return &State{
		positions: position.NewTracker(),
		threat:    make(map[combatlog.EnemyRef]map[int]float64),
		auras:     make(map[int]threat.AuraSet),
		dead:      make(map[combatlog.ActorRef]bool),
		current:   make(map[int]combatlog.EnemyRef),
		last:      make(map[int]combatlog.EnemyRef),
		engaged:   make(map[combatlog.EnemyRef]struct{}),
		fixates:   make(map[combatlog.EnemyRef]Fixate),
		silenced:  make(map[int]int64),
		pending:   make(map[castKey]pendingCast),
	}
}

// Seed applies a combatant's pre-pull auras and talent auras.
func (s *State) Seed(actor combatlog.Actor, combatant combatlog.Combatant) {
	auras := s.Auras(combatant.ActorID)
	for _, id := range combatant.Auras {
		auras.Add(id)
	}
	for _, id := range rulesets.TalentAuras(actor.Class, combatant.Talents) {
		auras.Add(id)
	}
}

// Auras returns the live aura set of actorID, creating it on first use.
func (s *State) Auras(actorID int) threat.AuraSet {
	set := s.auras[actorID]
	if set == nil {
		set = threat.NewAuraSet()
		s.auras[actorID] = set
	}
	return set
}

func (s *State) Position(actor combatlog.ActorRef) (position.Point, bool) {
	return s.positions.Position(actor.ID)
}

func (s *State) Distance(a, b combatlog.ActorRef) (float64, bool) {
	return s.positions.Distance(a.ID, b.ID)
}

func (s *State) ActorsInRange(actor combatlog.ActorRef, maxDistance float64) []int {
	return s.positions.ActorsInRange(actor.ID, maxDistance)
}

func (s *State) Threat(actorID int, enemy combatlog.EnemyRef) float64 {
	return s.threat[enemy][actorID]
}

// TopActorsByThreat orders by descending threat, then ascending actor id.
func (s *State) TopActorsByThreat(enemy combatlog.EnemyRef, count int) []threat.ActorThreat {
	table := s.threat[enemy]
	out := make([]threat.ActorThreat, 0, len(table))
	for id, value := range table {
		out = append(out, threat.ActorThreat{ActorID: id, Threat: value})
	}
	slices.SortFunc(out, func(a, b threat.ActorThreat) int {
		if c := cmp.Compare(b.Threat, a.Threat); c != 0 {
			return c
		}
		return cmp.Compare(a.ActorID, b.ActorID)
	})
	if count >= 0 && len(out) > count {
		out = out[:count]
	}
	return out
}

func (s *State) IsActorAlive(actor combatlog.ActorRef) bool {
	return !s.dead[actor]
}

func (s *State) CurrentTarget(actor combatlog.ActorRef) (combatlog.EnemyRef, bool) {
	ref, ok := s.current[actor.ID]
	return ref, ok
}

func (s *State) LastTarget(actor combatlog.ActorRef) (combatlog.EnemyRef, bool) {
	ref, ok := s.last[actor.ID]
	return ref, ok
}

// Fixate returns the active taunt on enemy at timestamp.
func (s *State) Fixate(enemy combatlog.EnemyRef, timestamp int64) (Fixate, bool) {
	f, ok := s.fixates[enemy]
	if !ok || timestamp >= f.Until {
		return Fixate{}, false
	}
	return f, true
}

// Engaged returns the living enemies currently in combat, ordered by id then
// instance.
func (s *State) Engaged() []combatlog.EnemyRef {
	enemies := maps.Keys(s.engaged)
	slices.SortFunc(enemies, compareEnemies)
	return enemies
}

// Enemies returns every enemy with a threat table, in the same order as
// Engaged.
func (s *State) Enemies() []combatlog.EnemyRef {
	enemies := maps.Keys(s.threat)
	slices.SortFunc(enemies, compareEnemies)
	return enemies
}

func compareEnemies(a, b combatlog.EnemyRef) int {
	if c := cmp.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	return cmp.Compare(a.InstanceID, b.InstanceID)
}

// silencedAt reports whether actorID's threat is suppressed at timestamp.
func (s *State) silencedAt(actorID int, timestamp int64) bool {
	until, ok := s.silenced[actorID]
	return ok && timestamp < until
}

func (s *State) set(actorID int, enemy combatlog.EnemyRef, value float64) threat.Change {
	table := s.threat[enemy]
	if table == nil {
		table = make(map[int]float64)
		s.threat[enemy] = table
	}
	table[actorID] = value
	return threat.Change{
		SourceID:       actorID,
		TargetID:       enemy.ID,
		TargetInstance: enemy.InstanceID,
		Operator:       threat.OperatorSet,
		Amount:         value,
		Total:          value,
	}
}

// add never takes a total below zero. The change reports the delta
// actually applied, so a clamped reduction carries less than amount.
func (s *State) add(actorID int, enemy combatlog.EnemyRef, amount float64) threat.Change {
	pre := s.Threat(actorID, enemy)
	total := max(0, pre+amount)
	change := s.set(actorID, enemy, total)
	change.Operator = threat.OperatorAdd
	change.Amount = total - pre
	return change
}

// observe records what an event reveals about the fight before the engine
// sees it: positions, liveness, engagement and targeting.
func (s *State) observe(event combatlog.Event) {
	if id, x, y, ok := event.Coordinates(); ok {
		s.positions.Update(id, x, y)
	}
	if event.Type != combatlog.EventDeath && event.SourceID != 0 {
		delete(s.dead, event.Source())
	}
	switch {
	case event.SourceIsFriendly && hostileTarget(event):
		enemy := event.TargetEnemy()
		s.engage(enemy)
		if cur, ok := s.current[event.SourceID]; ok && cur != enemy {
			s.last[event.SourceID] = cur
		}
		s.current[event.SourceID] = enemy
	case !event.SourceIsFriendly && event.SourceID != 0 && event.TargetIsFriendly && event.TargetID != 0:
		s.engage(event.SourceEnemy())
	}
}

func (s *State) engage(enemy combatlog.EnemyRef) {
	if s.dead[enemy.Ref()] {
		return
	}
	s.engaged[enemy] = struct{}{}
}

// settle applies what an event changes after the engine has seen it: aura
// membership and deaths. Deaths of friendly units clear their threat; the
// returned changes describe that.
func (s *State) settle(event combatlog.Event) []threat.Change {
	switch {
	case event.IsAuraApplication() && event.HasAbility():
		s.Auras(event.TargetID).Add(event.AbilityGameID)
	case event.IsAuraRemoval() && event.HasAbility():
		s.Auras(event.TargetID).Remove(event.AbilityGameID)
	case event.Type == combatlog.EventDeath:
		return s.kill(event)
	}
	return nil
}

func (s *State) kill(event combatlog.Event) []threat.Change {
	s.dead[event.Target()] = true
	if !event.TargetIsFriendly {
		enemy := event.TargetEnemy()
		delete(s.engaged, enemy)
		delete(s.fixates, enemy)
		return nil
	}
	var changes []threat.Change
	for _, enemy := range s.Enemies() {
		if _, ok := s.threat[enemy][event.TargetID]; ok {
			changes = append(changes, s.set(event.TargetID, enemy, 0))
		}
	}
	delete(s.current, event.TargetID)
	return changes
}

func hostileTarget(event combatlog.Event) bool {
	return event.TargetID != 0 && !event.TargetIsFriendly
}
