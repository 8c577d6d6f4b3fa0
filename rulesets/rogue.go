package rulesets

import "github.com/tstirrat/newthreat/threat"

// Rogue spell ids.
const (
	VanishR1 = 1856
	VanishR2 = 1857
	FeintR1  = 1966
	FeintR2  = 6768
	FeintR3  = 8637
	FeintR4  = 11303
	FeintR5  = 25302
)

// rogueBaseFactor applies to every rogue action.
const rogueBaseFactor = 0.71

func rogue() *threat.ClassConfig {
	abilities := sameFormula(threat.ThreatDrop(), VanishR1, VanishR2)
	abilities[FeintR1] = threat.Flat(-150)
	abilities[FeintR2] = threat.Flat(-240)
	abilities[FeintR3] = threat.Flat(-390)
	abilities[FeintR4] = threat.Flat(-600)
	abilities[FeintR5] = threat.Flat(-800)
	return &threat.ClassConfig{
		BaseThreatFactor: rogueBaseFactor,
		Abilities:        abilities,
		AuraModifiers:    map[int]threat.ModifierFunc{},
	}
}
