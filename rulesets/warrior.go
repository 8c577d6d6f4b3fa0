package rulesets

import (
	"fmt"
	"time"

	"github.com/tstirrat/newthreat/threat"
)

// Warrior spell ids. The stance factors and coefficients in this file are
// provisional and have not been checked against a reference ruleset.
const (
	BattleStance      = 2457
	DefensiveStance   = 71
	BerserkerStance   = 2458
	Taunt             = 355
	MockingBlow       = 20560
	SunderArmor       = 11597
	ShieldSlam        = 23925
	Revenge           = 25288
	HeroicStrike      = 25286
	Cleave            = 20569
	ShieldBash        = 1672
	BattleShout       = 25289
	DemoralizingShout = 11556
	BerserkerRage     = 18499
)

var defianceRanks = []int{12303, 12788, 12789, 12791, 12792}

func warrior() *threat.ClassConfig {
	auras := map[int]threat.ModifierFunc{
		BattleStance:    static(threat.ModifierSourceStance, "Battle Stance", 0.8),
		DefensiveStance: static(threat.ModifierSourceStance, "Defensive Stance", 1.3),
		BerserkerStance: static(threat.ModifierSourceStance, "Berserker Stance", 0.8),
	}
	for i, id := range defianceRanks {
		rank := i + 1
		auras[id] = whileActive(threat.ModifierSourceTalent,
			fmt.Sprintf("Defiance (Rank %d)", rank), 1+0.03*float64(rank), DefensiveStance)
	}
	return &threat.ClassConfig{
		AuraModifiers: auras,
		Abilities: map[int]threat.Formula{
			Taunt:             threat.TauntTarget(0, 3*time.Second, threat.TauntOptions{}),
			MockingBlow:       threat.TauntTarget(0, 6*time.Second, threat.TauntOptions{AddDamage: true}),
			SunderArmor:       threat.CastCanMiss(261),
			ShieldSlam:        threat.ModAmountFlat(1, 254),
			Revenge:           threat.ModAmountFlat(1, 355),
			HeroicStrike:      threat.ModAmountFlat(1, 175),
			Cleave:            threat.ModAmountFlat(1, 100),
			ShieldBash:        threat.ModAmountFlat(1, 230),
			BattleShout:       threat.ThreatOnBuff(60),
			DemoralizingShout: threat.ThreatOnDebuff(43),
			BerserkerRage:     threat.NoThreat(0),
		},
	}
}
