package threat

import (
	"fmt"
	"strconv"
	"time"
)

// FormulaOption tweaks how a formula's result is applied.
type FormulaOption func(*formulaOptions)

type formulaOptions struct {
	split bool
}

// Split marks the result to be divided evenly across every engaged enemy.
func Split() FormulaOption {
	return func(o *formulaOptions) { o.split = true }
}

// NoSplit applies the result to a single enemy. Only meaningful for
// formulas that split by default.
func NoSplit() FormulaOption {
	return func(o *formulaOptions) { o.split = false }
}

func resolveOptions(defaultSplit bool, opts []FormulaOption) formulaOptions {
	o := formulaOptions{split: defaultSplit}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// formatNumber renders v the way the audit labels have always shown numbers:
// shortest round-trip decimal, no exponent for ordinary magnitudes.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Default uses the event amount as threat.
func Default(opts ...FormulaOption) Formula {
	o := resolveOptions(false, opts)
	return func(ctx *Context) FormulaResult {
		return FormulaResult{Formula: "amt", Value: ctx.Amount, SplitAmongEnemies: o.split}
	}
}

// Flat ignores the event amount and always yields value.
func Flat(value float64, opts ...FormulaOption) Formula {
	o := resolveOptions(false, opts)
	label := formatNumber(value)
	return func(*Context) FormulaResult {
		return FormulaResult{Formula: label, Value: value, SplitAmongEnemies: o.split}
	}
}

// ModAmount scales the event amount by mod.
func ModAmount(mod float64, opts ...FormulaOption) Formula {
	o := resolveOptions(false, opts)
	label := "amt"
	if mod != 1 {
		label = "amt * " + formatNumber(mod)
	}
	return func(ctx *Context) FormulaResult {
		return FormulaResult{Formula: label, Value: ctx.Amount * mod, SplitAmongEnemies: o.split}
	}
}

// ModAmountFlat scales the event amount by mod and adds flatValue.
func ModAmountFlat(mod, flatValue float64, opts ...FormulaOption) Formula {
	o := resolveOptions(false, opts)
	var label string
	switch mod {
	case 1:
		label = "amt + " + formatNumber(flatValue)
	case 0:
		label = formatNumber(flatValue)
	default:
		label = fmt.Sprintf("(amt * %s) + %s", formatNumber(mod), formatNumber(flatValue))
	}
	return func(ctx *Context) FormulaResult {
		value := flatValue
		if mod != 0 {
			// conversion stops the multiply-add from fusing
			value = float64(ctx.Amount*mod) + flatValue
		}
		return FormulaResult{Formula: label, Value: value, SplitAmongEnemies: o.split}
	}
}

// TauntOptions configures TauntTarget.
type TauntOptions struct {
	// AddDamage adds the event amount on top of the bonus (Mocking Blow).
	AddDamage bool
}

// TauntTarget raises the source to the enemy's top threat plus bonus and
// fixates the enemy for fixate. The base value is headroom over the current
// leader, not an absolute threat.
func TauntTarget(bonus float64, fixate time.Duration, opts TauntOptions) Formula {
	label := "topThreat + " + formatNumber(bonus)
	if opts.AddDamage {
		label = "topThreat + amt + " + formatNumber(bonus)
	}
	return func(ctx *Context) FormulaResult {
		value := bonus
		if opts.AddDamage {
			value = ctx.Amount + bonus
		}
		return FormulaResult{
			Formula: label,
			Value:   value,
			Special: &Special{Type: SpecialTaunt, FixateDuration: fixate},
		}
	}
}

// ThreatDrop clears the source's threat on its current targets (Vanish,
// Feign Death).
func ThreatDrop() Formula {
	return func(*Context) FormulaResult {
		return FormulaResult{
			Formula: "threatDrop",
			Special: &Special{Type: SpecialThreatDrop},
		}
	}
}

// NoThreat generates nothing. A positive window asks the caller to suppress
// the source's threat for that long (Misdirection).
func NoThreat(window time.Duration) Formula {
	return func(*Context) FormulaResult {
		result := FormulaResult{Formula: "0"}
		if window > 0 {
			result.Special = &Special{Type: SpecialNoThreatWindow, Duration: window}
		}
		return result
	}
}

// ThreatOnDebuff yields value when a debuff lands (Demoralizing Shout).
func ThreatOnDebuff(value float64, opts ...FormulaOption) Formula {
	return Flat(value, opts...)
}

// ThreatOnBuff yields value when a buff is applied. It splits across enemies
// unless NoSplit is passed (Battle Shout).
func ThreatOnBuff(value float64, opts ...FormulaOption) Formula {
	o := resolveOptions(true, opts)
	label := formatNumber(value)
	return func(*Context) FormulaResult {
		return FormulaResult{Formula: label, Value: value, SplitAmongEnemies: o.split}
	}
}

// ModHeal scales effective healing and always splits.
func ModHeal(multiplier float64) Formula {
	label := "amt * " + formatNumber(multiplier)
	return func(ctx *Context) FormulaResult {
		return FormulaResult{Formula: label, Value: ctx.Amount * multiplier, SplitAmongEnemies: true}
	}
}

// CastCanMiss applies value optimistically at cast time. The caller cancels
// the contribution if a later event reports the ability missed.
func CastCanMiss(value float64) Formula {
	label := formatNumber(value) + " (cast)"
	return func(*Context) FormulaResult {
		return FormulaResult{
			Formula: label,
			Value:   value,
			Special: &Special{Type: SpecialCastCanMiss},
		}
	}
}

// ModifyThreat scales existing threat by multiplier. With ModifyTargetAll
// every actor's threat on the acting enemy is scaled (a boss wipe).
func ModifyThreat(multiplier float64, target ModifyTarget) Formula {
	if target == "" {
		target = ModifyTargetTarget
	}
	label := "threat * " + formatNumber(multiplier)
	return func(*Context) FormulaResult {
		return FormulaResult{
			Formula: label,
			Special: &Special{Type: SpecialModifyThreat, Multiplier: multiplier, Target: target},
		}
	}
}

// ApplyMultiplier scales a current threat total, never going below zero.
func ApplyMultiplier(current, multiplier float64) float64 {
	return max(0, current*multiplier)
}
