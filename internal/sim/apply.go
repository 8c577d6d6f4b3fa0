package sim

import (
	"github.com/tstirrat/newthreat/combatlog"
	"github.com/tstirrat/newthreat/threat"
)

// outcome is what applying one calculation did to the fight state.
type outcome struct {
	changes []threat.Change
	fixate  *FixateChange
}

// FixateChange reports a taunt landing on an enemy.
type FixateChange struct {
	Enemy combatlog.EnemyRef `json:"enemy"`
	Fixate
}

func (s *State) apply(event combatlog.Event, calc threat.Calculation) outcome {
	var out outcome
	out.changes = append(out.changes, s.resolvePendingCast(event)...)

	if special := calc.Special; special != nil {
		switch special.Type {
		case threat.SpecialTaunt:
			if change, fixate, ok := s.taunt(event, calc, special); ok {
				out.changes = append(out.changes, change)
				out.fixate = &fixate
			}
			return out
		case threat.SpecialThreatDrop:
			out.changes = append(out.changes, s.drop(event)...)
			return out
		case threat.SpecialNoThreatWindow:
			s.silenced[event.SourceID] = event.Timestamp + special.Duration.Milliseconds()
			return out
		case threat.SpecialCustomThreat:
			out.changes = append(out.changes, s.custom(special.Changes)...)
			return out
		case threat.SpecialModifyThreat:
			out.changes = append(out.changes, s.modify(event, special)...)
			return out
		case threat.SpecialCastCanMiss:
			if event.Type != combatlog.EventCast {
				return out
			}
			changes := s.plain(event, calc)
			for _, change := range changes {
				s.pending[castKey{event.SourceID, event.AbilityGameID}] = pendingCast{enemy: change.Enemy(), amount: change.Amount}
			}
			out.changes = append(out.changes, changes...)
			return out
		}
	}
	out.changes = append(out.changes, s.plain(event, calc)...)
	return out
}

// plain adds modified threat from a friendly source, either to one enemy or
// divided evenly across every engaged enemy.
func (s *State) plain(event combatlog.Event, calc threat.Calculation) []threat.Change {
	value := calc.ModifiedThreat
	if value == 0 || !event.SourceIsFriendly || event.SourceID == 0 {
		return nil
	}
	if value > 0 && s.silencedAt(event.SourceID, event.Timestamp) {
		return nil
	}
	if calc.IsSplit {
		enemies := s.Engaged()
		if len(enemies) == 0 {
			return nil
		}
		share := value / float64(len(enemies))
		changes := make([]threat.Change, 0, len(enemies))
		for _, enemy := range enemies {
			changes = append(changes, s.add(event.SourceID, enemy, share))
		}
		return changes
	}
	enemy, ok := s.enemyFor(event)
	if !ok {
		return nil
	}
	return []threat.Change{s.add(event.SourceID, enemy, value)}
}

// enemyFor picks the enemy a single-target result lands on: the event's
// hostile target, else the source's current target.
func (s *State) enemyFor(event combatlog.Event) (combatlog.EnemyRef, bool) {
	if hostileTarget(event) {
		return event.TargetEnemy(), true
	}
	enemy, ok := s.current[event.SourceID]
	if !ok {
		return combatlog.EnemyRef{}, false
	}
	if _, engaged := s.engaged[enemy]; !engaged {
		return combatlog.EnemyRef{}, false
	}
	return enemy, true
}

// taunt raises the source to the enemy's top threat plus the formula's base
// value and fixates the enemy.
func (s *State) taunt(event combatlog.Event, calc threat.Calculation, special *threat.Special) (threat.Change, FixateChange, bool) {
	if !event.SourceIsFriendly || !hostileTarget(event) {
		return threat.Change{}, FixateChange{}, false
	}
	enemy := event.TargetEnemy()
	top := 0.0
	if leaders := s.TopActorsByThreat(enemy, 1); len(leaders) > 0 {
		top = leaders[0].Threat
	}
	current := s.Threat(event.SourceID, enemy)
	change := s.set(event.SourceID, enemy, max(top, current)+calc.BaseThreat)
	fixate := Fixate{ActorID: event.SourceID, Until: event.Timestamp + special.FixateDuration.Milliseconds()}
	s.fixates[enemy] = fixate
	return change, FixateChange{Enemy: enemy, Fixate: fixate}, true
}

// drop zeroes the source on its hostile target, or on every enemy when the
// ability targets the source itself.
func (s *State) drop(event combatlog.Event) []threat.Change {
	if hostileTarget(event) {
		return []threat.Change{s.set(event.SourceID, event.TargetEnemy(), 0)}
	}
	var changes []threat.Change
	for _, enemy := range s.Enemies() {
		if _, ok := s.threat[enemy][event.SourceID]; ok {
			changes = append(changes, s.set(event.SourceID, enemy, 0))
		}
	}
	return changes
}

// custom replays explicit changes against the live tables. Totals are
// recomputed so they reflect anything applied earlier in the same event.
func (s *State) custom(requested []threat.Change) []threat.Change {
	changes := make([]threat.Change, 0, len(requested))
	for _, change := range requested {
		switch change.Operator {
		case threat.OperatorSet:
			changes = append(changes, s.set(change.SourceID, change.Enemy(), change.Amount))
		default:
			changes = append(changes, s.add(change.SourceID, change.Enemy(), change.Amount))
		}
	}
	return changes
}

// modify scales existing threat. A hostile source scales threat on itself;
// a friendly source scales its own threat on its target.
func (s *State) modify(event combatlog.Event, special *threat.Special) []threat.Change {
	var enemy combatlog.EnemyRef
	var actorID int
	switch {
	case !event.SourceIsFriendly && event.SourceID != 0:
		enemy, actorID = event.SourceEnemy(), event.TargetID
	case hostileTarget(event):
		enemy, actorID = event.TargetEnemy(), event.SourceID
	default:
		return nil
	}

	table := s.threat[enemy]
	if special.Target == threat.ModifyTargetAll {
		ids := make([]int, 0, len(table))
		for _, entry := range s.TopActorsByThreat(enemy, len(table)) {
			ids = append(ids, entry.ActorID)
		}
		changes := make([]threat.Change, 0, len(ids))
		for _, id := range ids {
			changes = append(changes, s.set(id, enemy, threat.ApplyMultiplier(table[id], special.Multiplier)))
		}
		return changes
	}
	current, ok := table[actorID]
	if !ok {
		return nil
	}
	return []threat.Change{s.set(actorID, enemy, threat.ApplyMultiplier(current, special.Multiplier))}
}

// resolvePendingCast settles threat applied at cast time once the ability's
// outcome is known: a miss takes it back, anything else confirms it.
func (s *State) resolvePendingCast(event combatlog.Event) []threat.Change {
	if event.Type != combatlog.EventDamage || !event.HasAbility() {
		return nil
	}
	key := castKey{event.SourceID, event.AbilityGameID}
	pending, ok := s.pending[key]
	if !ok {
		return nil
	}
	delete(s.pending, key)
	if !event.Missed() {
		return nil
	}
	current := s.Threat(event.SourceID, pending.enemy)
	refund := min(pending.amount, current)
	change := s.set(event.SourceID, pending.enemy, current-refund)
	change.Operator = threat.OperatorAdd
	change.Amount = -refund
	return []threat.Change{change}
}
