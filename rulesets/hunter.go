package rulesets

import "github.com/tstirrat/newthreat/threat"

// Hunter spell ids.
const (
	FeignDeath        = 5384
	DistractingShotR1 = 20736
	DistractingShotR2 = 14274
	DistractingShotR3 = 15629
	DistractingShotR4 = 15630
	DistractingShotR5 = 15631
	DistractingShotR6 = 15632
	DisengageR1       = 781
	DisengageR2       = 14272
	DisengageR3       = 14273

	// T1Ranged2pc is the Season of Discovery tier set bonus aura.
	T1Ranged2pc = 456339
)

func hunter() *threat.ClassConfig {
	return &threat.ClassConfig{
		AuraModifiers: map[int]threat.ModifierFunc{},
		Abilities: map[int]threat.Formula{
			FeignDeath:        threat.ThreatDrop(),
			DistractingShotR1: threat.ModAmountFlat(1, 110),
			DistractingShotR2: threat.ModAmountFlat(1, 160),
			DistractingShotR3: threat.ModAmountFlat(1, 250),
			DistractingShotR4: threat.ModAmountFlat(1, 350),
			DistractingShotR5: threat.ModAmountFlat(1, 465),
			DistractingShotR6: threat.ModAmountFlat(1, 600),
			DisengageR1:       threat.Flat(-140),
			DisengageR2:       threat.Flat(-280),
			DisengageR3:       threat.Flat(-405),
		},
	}
}

func hunterDiscovery() *threat.ClassConfig {
	cc := hunter()
	cc.AuraModifiers[T1Ranged2pc] = static(threat.ModifierSourceGear, "S03 T1 Hunter Ranged 2pc", 2)
	return cc
}
