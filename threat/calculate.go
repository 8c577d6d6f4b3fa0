package threat

import "github.com/tstirrat/newthreat/combatlog"

// Resolution records which lookup produced an event's formula.
type Resolution string

const (
	// ResolutionAbility means an ability entry matched.
	ResolutionAbility Resolution = "ability"
	// ResolutionBase means the event-type fallback formula was used.
	ResolutionBase Resolution = "base"
	// ResolutionNone means nothing modelled the event; threat is zero.
	ResolutionNone Resolution = "none"
)

// Options carries the caller-owned state for one calculation.
type Options struct {
	SourceAuras AuraSet
	TargetAuras AuraSet
	SourceActor combatlog.Actor
	TargetActor combatlog.Actor
	EncounterID int
	// Actors defaults to NopActors when nil.
	Actors ActorContext
}

// Calculation is the engine's answer for one event.
type Calculation struct {
	Formula        string     `json:"formula"`
	Amount         float64    `json:"amount"`
	BaseThreat     float64    `json:"baseThreat"`
	ModifiedThreat float64    `json:"modifiedThreat"`
	IsSplit        bool       `json:"isSplit"`
	Modifiers      []Modifier `json:"modifiers"`
	Special        *Special   `json:"special,omitempty"`
	Resolution     Resolution `json:"resolution"`
}

// Multiplier returns the product of the calculation's modifiers.
func (c Calculation) Multiplier() float64 {
	return TotalMultiplier(c.Modifiers)
}

// Calculate resolves the formula for event, gathers the active multipliers
// and returns the resulting threat. Unknown abilities and event types yield
// a zero result instead of an error.
func Calculate(event combatlog.Event, opts Options, cfg *Config) Calculation {
	actors := opts.Actors
	if actors == nil {
		actors = NopActors{}
	}
	amount := EventAmount(event)
	ctx := &Context{
		Event:       event,
		Amount:      amount,
		SourceAuras: opts.SourceAuras,
		TargetAuras: opts.TargetAuras,
		SourceActor: opts.SourceActor,
		TargetActor: opts.TargetActor,
		EncounterID: opts.EncounterID,
		Actors:      actors,
	}

	result, resolution := resolveFormula(ctx, cfg)

	modifiers := make([]Modifier, 0, 2)
	modifiers = append(modifiers, classModifiers(opts.SourceActor.Class, cfg)...)
	modifiers = append(modifiers, auraModifiers(ctx, cfg)...)
	multiplier := TotalMultiplier(modifiers)

	return Calculation{
		Formula:        result.Formula,
		Amount:         amount,
		BaseThreat:     result.Value,
		ModifiedThreat: result.Value * multiplier,
		IsSplit:        result.SplitAmongEnemies,
		Modifiers:      modifiers,
		Special:        result.Special,
		Resolution:     resolution,
	}
}

// EventAmount is the part of an event that can generate threat. Overheal and
// wasted resource never count.
func EventAmount(event combatlog.Event) float64 {
	switch event.Type {
	case combatlog.EventDamage:
		return event.Amount
	case combatlog.EventHeal:
		return max(0, event.Amount-event.Overheal)
	case combatlog.EventEnergize:
		return max(0, event.ResourceChange-event.Waste)
	default:
		return 0
	}
}

// TotalMultiplier multiplies the modifier values in order. An empty list is 1.
func TotalMultiplier(modifiers []Modifier) float64 {
	total := 1.0
	for _, m := range modifiers {
		total *= m.Value
	}
	return total
}

func resolveFormula(ctx *Context, cfg *Config) (FormulaResult, Resolution) {
	if cfg == nil {
		return zeroResult(), ResolutionNone
	}
	if ctx.Event.HasAbility() {
		if f, ok := cfg.AbilityFormula(ctx.SourceActor.Class, ctx.Event.AbilityGameID); ok {
			return f(ctx), ResolutionAbility
		}
	}

	var base Formula
	switch ctx.Event.Type {
	case combatlog.EventDamage:
		base = cfg.BaseThreat.Damage
	case combatlog.EventHeal:
		base = cfg.BaseThreat.Heal
	case combatlog.EventEnergize:
		base = cfg.BaseThreat.Energize
	}
	if base == nil {
		return zeroResult(), ResolutionNone
	}
	return base(ctx), ResolutionBase
}

func zeroResult() FormulaResult {
	return FormulaResult{Formula: "0"}
}

func classModifiers(class combatlog.Class, cfg *Config) []Modifier {
	cc := cfg.Class(class)
	if cc == nil || cc.Factor() == 1 {
		return nil
	}
	return []Modifier{{
		Source: ModifierSourceClass,
		Name:   class.DisplayName(),
		Value:  cc.Factor(),
	}}
}

// auraModifiers evaluates every configured modifier whose aura is active on
// the source, in ascending aura id order. The lookup spans all class tables
// so cross-class buffs apply to any receiver.
func auraModifiers(ctx *Context, cfg *Config) []Modifier {
	if cfg == nil || len(ctx.SourceAuras) == 0 {
		return nil
	}
	var out []Modifier
	for _, id := range ctx.SourceAuras.IDs() {
		f, ok := cfg.AuraModifier(id)
		if !ok {
			continue
		}
		out = append(out, f(ctx))
	}
	return out
}
