// Package encounters holds boss abilities whose threat lands on actors other
// than the event's nominal source and target.
package encounters

import (
	"fmt"
	"strconv"

	"github.com/tstirrat/newthreat/combatlog"
	"github.com/tstirrat/newthreat/threat"
)

// Naxxramas spell ids.
const (
	HatefulStrike = 28308
	NothBlink     = 29210
	NothBlinkAlt  = 29211
)

const (
	// DefaultCandidates is how deep into the threat table a cleave looks.
	DefaultCandidates = 100
	// HatefulStrikeThreat is provisional; the exact amount is unverified.
	HatefulStrikeThreat = 1000
	// MeleeRangeYards is provisional.
	MeleeRangeYards = 10
)

// Cleave configures NearbyDefenders.
type Cleave struct {
	// Amount is added to every selected actor's threat.
	Amount float64
	// TargetCount caps how many actors are selected.
	TargetCount int
	// Candidates is the number of top-threat actors considered. Zero means
	// DefaultCandidates.
	Candidates int
	// MeleeRange is the selection radius in yards. Zero or less means
	// MeleeRangeYards.
	MeleeRange float64
	// UnitsPerYard converts yards into log coordinate units. Zero means 1.
	UnitsPerYard float64
	// IncludeDirectTarget always selects the event target first.
	IncludeDirectTarget bool
	Label               string
	// BaseThreat is reported as the formula value and still goes through
	// the usual multipliers.
	BaseThreat float64
}

func (c Cleave) radius() float64 {
	yards := c.MeleeRange
	if yards <= 0 {
		yards = MeleeRangeYards
	}
	units := c.UnitsPerYard
	if units == 0 {
		units = 1
	}
	return yards * units
}

func (c Cleave) candidates() int {
	if c.Candidates <= 0 {
		return DefaultCandidates
	}
	return c.Candidates
}

func (c Cleave) label() string {
	if c.Label != "" {
		return c.Label
	}
	return fmt.Sprintf("nearbyDefenders(%s)", strconv.FormatFloat(c.Amount, 'f', -1, 64))
}

// NearbyDefenders adds a fixed amount of threat to the highest-threat actors
// within melee range of the casting enemy. When no candidate has a known
// position the range check is skipped and plain threat order is used.
func NearbyDefenders(c Cleave) threat.Formula {
	label := c.label()
	return func(ctx *threat.Context) threat.FormulaResult {
		enemy := ctx.Event.SourceEnemy()
		selected := selectDefenders(ctx, c, enemy)

		changes := make([]threat.Change, 0, len(selected))
		for _, actorID := range selected {
			current := ctx.Actors.Threat(actorID, enemy)
			changes = append(changes, threat.Change{
				SourceID:       actorID,
				TargetID:       enemy.ID,
				TargetInstance: enemy.InstanceID,
				Operator:       threat.OperatorAdd,
				Amount:         c.Amount,
				Total:          current + c.Amount,
			})
		}
		return threat.FormulaResult{
			Formula: label,
			Value:   c.BaseThreat,
			Special: &threat.Special{Type: threat.SpecialCustomThreat, Changes: changes},
		}
	}
}

func selectDefenders(ctx *threat.Context, c Cleave, enemy combatlog.EnemyRef) []int {
	if c.TargetCount <= 0 {
		return nil
	}
	selected := make([]int, 0, c.TargetCount)
	direct := 0
	if c.IncludeDirectTarget && ctx.Event.TargetID != 0 && ctx.Event.TargetID != enemy.ID {
		direct = ctx.Event.TargetID
		selected = append(selected, direct)
	}

	top := ctx.Actors.TopActorsByThreat(enemy, c.candidates())
	ranked := make([]int, 0, len(top))
	inRange := make([]int, 0, len(top))
	known := false
	radius := c.radius()
	for _, entry := range top {
		if entry.ActorID == direct {
			continue
		}
		ranked = append(ranked, entry.ActorID)
		d, ok := ctx.Actors.Distance(combatlog.ActorRef{ID: entry.ActorID}, enemy.Ref())
		if !ok {
			continue
		}
		known = true
		if d <= radius {
			inRange = append(inRange, entry.ActorID)
		}
	}
	pool := inRange
	if !known {
		pool = ranked
	}
	for _, id := range pool {
		if len(selected) >= c.TargetCount {
			break
		}
		selected = append(selected, id)
	}
	return selected
}

// WipeThreat zeroes every actor's threat on the casting enemy.
func WipeThreat() threat.Formula {
	return threat.ModifyThreat(0, threat.ModifyTargetAll)
}

// Naxxramas returns the boss ability table for Naxxramas. The returned map
// is freshly allocated.
func Naxxramas() map[int]threat.Formula {
	return map[int]threat.Formula{
		HatefulStrike: NearbyDefenders(Cleave{
			Amount:      HatefulStrikeThreat,
			TargetCount: 4,
			MeleeRange:  MeleeRangeYards,
			Label:       "hatefulStrike(1000)",
		}),
		NothBlink:    WipeThreat(),
		NothBlinkAlt: WipeThreat(),
	}
}
