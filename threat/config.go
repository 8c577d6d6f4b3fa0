package threat

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/tstirrat/newthreat/combatlog"
)

var (
	errMissingBaseFormula = errors.New("base threat formula must not be nil")
	errNilFormula         = errors.New("ability formula must not be nil")
	errNilModifier        = errors.New("aura modifier must not be nil")
	errNegativeFactor     = errors.New("base threat factor must not be negative")
)

// BaseThreat holds the fallback formulas used when no ability entry matches.
type BaseThreat struct {
	Damage   Formula
	Heal     Formula
	Energize Formula
}

// ClassConfig overlays the global tables for one class.
type ClassConfig struct {
	// BaseThreatFactor scales every event from this class. Zero means 1.
	BaseThreatFactor float64
	Abilities        map[int]Formula
	AuraModifiers    map[int]ModifierFunc
}

// Factor returns the effective base threat factor.
func (c *ClassConfig) Factor() float64 {
	if c == nil || c.BaseThreatFactor == 0 {
		return 1
	}
	return c.BaseThreatFactor
}

// Config is the declarative threat table for one game ruleset. It is never
// mutated by the engine, so one value may serve concurrent encounters.
type Config struct {
	Name          string
	BaseThreat    BaseThreat
	Abilities     map[int]Formula
	AuraModifiers map[int]ModifierFunc
	Classes       map[combatlog.Class]*ClassConfig
}

// Class returns the overlay for class, or nil.
func (c *Config) Class(class combatlog.Class) *ClassConfig {
	if c == nil || class == combatlog.ClassNone {
		return nil
	}
	return c.Classes[class]
}

// AbilityFormula finds the formula for abilityID as seen by a source of the
// given class. Class entries shadow global ones.
func (c *Config) AbilityFormula(class combatlog.Class, abilityID int) (Formula, bool) {
	if c == nil {
		return nil, false
	}
	if cc := c.Class(class); cc != nil {
		if f, ok := cc.Abilities[abilityID]; ok && f != nil {
			return f, true
		}
	}
	if f, ok := c.Abilities[abilityID]; ok && f != nil {
		return f, true
	}
	return nil, false
}

// AuraModifier finds the modifier factory for auraID across the global table
// and every class table. Class tables overlay the global one in ascending
// class-name order, so the last class defining an aura wins.
func (c *Config) AuraModifier(auraID int) (ModifierFunc, bool) {
	if c == nil {
		return nil, false
	}
	classes := c.classNames()
	for i := len(classes) - 1; i >= 0; i-- {
		cc := c.Classes[classes[i]]
		if cc == nil {
			continue
		}
		if f, ok := cc.AuraModifiers[auraID]; ok && f != nil {
			return f, true
		}
	}
	if f, ok := c.AuraModifiers[auraID]; ok && f != nil {
		return f, true
	}
	return nil, false
}

func (c *Config) classNames() []combatlog.Class {
	classes := maps.Keys(c.Classes)
	slices.Sort(classes)
	return classes
}

// Validate reports structural problems in the tables. Calculate tolerates an
// invalid config by degrading to zero threat, so loaders should call this.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("threat config: %w", errMissingBaseFormula)
	}
	if c.BaseThreat.Damage == nil {
		return fmt.Errorf("threat config %q: damage: %w", c.Name, errMissingBaseFormula)
	}
	if c.BaseThreat.Heal == nil {
		return fmt.Errorf("threat config %q: heal: %w", c.Name, errMissingBaseFormula)
	}
	if c.BaseThreat.Energize == nil {
		return fmt.Errorf("threat config %q: energize: %w", c.Name, errMissingBaseFormula)
	}
	if err := validateTables("global", c.Abilities, c.AuraModifiers); err != nil {
		return fmt.Errorf("threat config %q: %w", c.Name, err)
	}
	for _, class := range c.classNames() {
		cc := c.Classes[class]
		if cc == nil {
			continue
		}
		if cc.BaseThreatFactor < 0 {
			return fmt.Errorf("threat config %q: class %s: %w", c.Name, class, errNegativeFactor)
		}
		if err := validateTables(string(class), cc.Abilities, cc.AuraModifiers); err != nil {
			return fmt.Errorf("threat config %q: %w", c.Name, err)
		}
	}
	return nil
}

func validateTables(scope string, abilities map[int]Formula, auras map[int]ModifierFunc) error {
	abilityIDs := maps.Keys(abilities)
	slices.Sort(abilityIDs)
	for _, id := range abilityIDs {
		if abilities[id] == nil {
			return fmt.Errorf("%s ability %d: %w", scope, id, errNilFormula)
		}
	}
	auraIDs := maps.Keys(auras)
	slices.Sort(auraIDs)
	for _, id := range auraIDs {
		if auras[id] == nil {
			return fmt.Errorf("%s aura %d: %w", scope, id, errNilModifier)
		}
	}
	return nil
}
