package rulesets

import "github.com/tstirrat/newthreat/threat"

// Priest spell ids by rank.
var (
	mindBlastRanks    = []int{8092, 8102, 8103, 8104, 8105, 8106, 10945, 10946, 10947}
	mindBlastBonus    = []float64{40, 77, 121, 180, 236, 303, 380, 460, 540}
	holyNovaDamageIDs = []int{15237, 15430, 15431, 27799, 27800, 27801}
	holyNovaHealIDs   = []int{23455, 23458, 23459, 27803, 27804, 27805}
)

// WeakenedSoul never generates threat.
const WeakenedSoul = 6788

func priest() *threat.ClassConfig {
	abilities := make(map[int]threat.Formula, len(mindBlastRanks)+len(holyNovaDamageIDs)+len(holyNovaHealIDs)+1)
	for i, id := range mindBlastRanks {
		abilities[id] = threat.ModAmountFlat(1, mindBlastBonus[i])
	}
	none := threat.NoThreat(0)
	merge(abilities, sameFormula(none, holyNovaDamageIDs...))
	merge(abilities, sameFormula(none, holyNovaHealIDs...))
	abilities[WeakenedSoul] = none
	return &threat.ClassConfig{
		Abilities:     abilities,
		AuraModifiers: map[int]threat.ModifierFunc{},
	}
}
