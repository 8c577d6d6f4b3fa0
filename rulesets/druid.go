package rulesets

import (
	"fmt"
	"time"

	"github.com/tstirrat/newthreat/threat"
)

// Druid spell ids. The stance factors and coefficients in this file are
// provisional and have not been checked against a reference ruleset.
const (
	BearForm        = 5487
	DireBearForm    = 9634
	CatForm         = 768
	Growl           = 6795
	Maul            = 9881
	Swipe           = 9908
	FaerieFireFeral = 17392
)

var feralInstinctRanks = []int{16947, 16948, 16949, 16950, 16951}

func druid() *threat.ClassConfig {
	auras := map[int]threat.ModifierFunc{
		BearForm:     static(threat.ModifierSourceStance, "Bear Form", 1.3),
		DireBearForm: static(threat.ModifierSourceStance, "Dire Bear Form", 1.3),
		CatForm:      static(threat.ModifierSourceStance, "Cat Form", 0.71),
	}
	for i, id := range feralInstinctRanks {
		rank := i + 1
		auras[id] = whileActive(threat.ModifierSourceTalent,
			fmt.Sprintf("Feral Instinct (Rank %d)", rank), 1+0.03*float64(rank), BearForm, DireBearForm)
	}
	return &threat.ClassConfig{
		AuraModifiers: auras,
		Abilities: map[int]threat.Formula{
			Growl:           threat.TauntTarget(0, 3*time.Second, threat.TauntOptions{}),
			Maul:            threat.ModAmount(1.75),
			Swipe:           threat.ModAmount(1.75),
			FaerieFireFeral: threat.ThreatOnDebuff(108),
		},
	}
}
