// Package rulesets builds the threat tables for each supported game flavour.
// Every constructor returns freshly allocated tables, so callers may extend
// the result without affecting other encounters.
package rulesets

import (
	"github.com/tstirrat/newthreat/combatlog"
	"github.com/tstirrat/newthreat/encounters"
	"github.com/tstirrat/newthreat/threat"
)

// Ruleset names accepted by ByName.
const (
	NameAnniversary       = "anniversary"
	NameSeasonOfDiscovery = "sod"
)

// Global aura ids.
const (
	TranquilAirTotem   = 25909
	FetishOfSandReaver = 26400
)

// Resource types carried by energize events.
const (
	resourceRage   = 1
	resourceEnergy = 3
)

// Anniversary returns the Anniversary Edition ruleset.
func Anniversary() *threat.Config {
	abilities := make(map[int]threat.Formula)
	merge(abilities, encounters.Naxxramas())
	return &threat.Config{
		Name:       NameAnniversary,
		BaseThreat: baseThreat(),
		Abilities:  abilities,
		AuraModifiers: map[int]threat.ModifierFunc{
			TranquilAirTotem:   static(threat.ModifierSourceAura, "Tranquil Air Totem", 0.8),
			FetishOfSandReaver: static(threat.ModifierSourceGear, "Fetish of the Sand Reaver", 0.3),
		},
		Classes: map[combatlog.Class]*threat.ClassConfig{
			combatlog.ClassWarrior: warrior(),
			combatlog.ClassRogue:   rogue(),
			combatlog.ClassHunter:  hunter(),
			combatlog.ClassPriest:  priest(),
			combatlog.ClassPaladin: paladin(),
			combatlog.ClassDruid:   druid(),
		},
	}
}

// SeasonOfDiscovery returns the Season of Discovery ruleset: the Anniversary
// tables with the rune and tier set overlays.
func SeasonOfDiscovery() *threat.Config {
	cfg := Anniversary()
	cfg.Name = NameSeasonOfDiscovery
	cfg.Classes[combatlog.ClassPaladin] = paladinDiscovery()
	cfg.Classes[combatlog.ClassHunter] = hunterDiscovery()
	return cfg
}

// ByName returns the built-in ruleset called name.
func ByName(name string) (*threat.Config, bool) {
	switch name {
	case NameAnniversary:
		return Anniversary(), true
	case NameSeasonOfDiscovery:
		return SeasonOfDiscovery(), true
	default:
		return nil, false
	}
}

func baseThreat() threat.BaseThreat {
	return threat.BaseThreat{
		Damage:   threat.Default(),
		Heal:     threat.ModHeal(0.5),
		Energize: ResourceGain(),
	}
}

// ResourceGain scores resource gains by type: rage and energy at 5 per point,
// everything else at half the mana gained. Gains always split.
func ResourceGain() threat.Formula {
	mana := threat.ModAmount(0.5, threat.Split())
	perPoint := threat.ModAmount(5, threat.Split())
	return func(ctx *threat.Context) threat.FormulaResult {
		switch ctx.Event.ResourceChangeType {
		case resourceRage, resourceEnergy:
			return perPoint(ctx)
		default:
			return mana(ctx)
		}
	}
}
