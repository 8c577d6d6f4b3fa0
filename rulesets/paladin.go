package rulesets

import (
	"time"

	"github.com/tstirrat/newthreat/threat"
)

// Paladin spell ids.
const (
	RighteousFury              = 25780
	BlessingOfSalvation        = 1038
	GreaterBlessingOfSalvation = 25895
	HandOfReckoning            = 407631
	EngraveHandOfReckoning     = 410001
)

// Salvation is keyed in the paladin table but applies to whoever carries the
// buff.
func paladin() *threat.ClassConfig {
	salvation := static(threat.ModifierSourceAura, "Blessing of Salvation", 0.7)
	return &threat.ClassConfig{
		Abilities: map[int]threat.Formula{},
		AuraModifiers: map[int]threat.ModifierFunc{
			RighteousFury:              static(threat.ModifierSourceAura, "Righteous Fury", 1.6),
			BlessingOfSalvation:        salvation,
			GreaterBlessingOfSalvation: salvation,
		},
	}
}

func paladinDiscovery() *threat.ClassConfig {
	cc := paladin()
	cc.Abilities[HandOfReckoning] = threat.TauntTarget(0, 3*time.Second, threat.TauntOptions{})
	cc.AuraModifiers[EngraveHandOfReckoning] = whileActive(threat.ModifierSourceGear,
		"Engrave Gloves - Hand of Reckoning", 1.5, RighteousFury)
	return cc
}
