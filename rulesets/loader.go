package rulesets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tstirrat/newthreat/combatlog"
	"github.com/tstirrat/newthreat/encounters"
	"github.com/tstirrat/newthreat/threat"
)

var (
	errUnknownKind    = errors.New("unknown formula kind")
	errUnknownExtends = errors.New("unknown base ruleset")
	errUnknownClass   = errors.New("unknown class")
	errMissingBase    = errors.New("base threat formulas are required without extends")
)

// Formula kinds understood by the YAML loader.
const (
	KindDefault         = "default"
	KindFlat            = "flat"
	KindModAmount       = "modAmount"
	KindModAmountFlat   = "modAmountFlat"
	KindTaunt           = "taunt"
	KindThreatDrop      = "threatDrop"
	KindNoThreat        = "noThreat"
	KindThreatOnDebuff  = "threatOnDebuff"
	KindThreatOnBuff    = "threatOnBuff"
	KindModHeal         = "modHeal"
	KindCastCanMiss     = "castCanMiss"
	KindModifyThreat    = "modifyThreat"
	KindNearbyDefenders = "nearbyDefenders"
)

// Document is the YAML form of a ruleset. When Extends names a built-in
// ruleset its tables are the starting point and every entry here overlays
// them.
type Document struct {
	Name          string                            `yaml:"name" json:"name"`
	Extends       string                            `yaml:"extends,omitempty" json:"extends,omitempty" jsonschema:"enum=anniversary,enum=sod"`
	BaseThreat    *BaseDocument                     `yaml:"baseThreat,omitempty" json:"baseThreat,omitempty"`
	Abilities     map[int]FormulaSpec               `yaml:"abilities,omitempty" json:"abilities,omitempty"`
	AuraModifiers map[int]ModifierSpec              `yaml:"auraModifiers,omitempty" json:"auraModifiers,omitempty"`
	Classes       map[combatlog.Class]ClassDocument `yaml:"classes,omitempty" json:"classes,omitempty"`
}

// BaseDocument holds the per-event-type fallback formulas.
type BaseDocument struct {
	Damage   *FormulaSpec `yaml:"damage,omitempty" json:"damage,omitempty"`
	Heal     *FormulaSpec `yaml:"heal,omitempty" json:"heal,omitempty"`
	Energize *FormulaSpec `yaml:"energize,omitempty" json:"energize,omitempty"`
}

// ClassDocument overlays one class.
type ClassDocument struct {
	BaseThreatFactor float64              `yaml:"baseThreatFactor,omitempty" json:"baseThreatFactor,omitempty"`
	Abilities        map[int]FormulaSpec  `yaml:"abilities,omitempty" json:"abilities,omitempty"`
	AuraModifiers    map[int]ModifierSpec `yaml:"auraModifiers,omitempty" json:"auraModifiers,omitempty"`
}

// FormulaSpec describes one formula. Which fields apply depends on Kind.
type FormulaSpec struct {
	Kind  string   `yaml:"kind" json:"kind" jsonschema:"enum=default,enum=flat,enum=modAmount,enum=modAmountFlat,enum=taunt,enum=threatDrop,enum=noThreat,enum=threatOnDebuff,enum=threatOnBuff,enum=modHeal,enum=castCanMiss,enum=modifyThreat,enum=nearbyDefenders"`
	Value float64  `yaml:"value,omitempty" json:"value,omitempty" jsonschema:"description=Flat threat or taunt bonus"`
	Mod   *float64 `yaml:"mod,omitempty" json:"mod,omitempty" jsonschema:"description=Amount multiplier; defaults to 1"`
	Split *bool    `yaml:"split,omitempty" json:"split,omitempty"`

	FixateMS  int64  `yaml:"fixateMs,omitempty" json:"fixateMs,omitempty"`
	WindowMS  int64  `yaml:"windowMs,omitempty" json:"windowMs,omitempty"`
	AddDamage bool   `yaml:"addDamage,omitempty" json:"addDamage,omitempty"`
	Target    string `yaml:"target,omitempty" json:"target,omitempty" jsonschema:"enum=target,enum=all"`

	Amount              float64 `yaml:"amount,omitempty" json:"amount,omitempty"`
	TargetCount         int     `yaml:"targetCount,omitempty" json:"targetCount,omitempty"`
	Candidates          int     `yaml:"candidates,omitempty" json:"candidates,omitempty"`
	MeleeRange          float64 `yaml:"meleeRange,omitempty" json:"meleeRange,omitempty"`
	UnitsPerYard        float64 `yaml:"unitsPerYard,omitempty" json:"unitsPerYard,omitempty"`
	IncludeDirectTarget bool    `yaml:"includeDirectTarget,omitempty" json:"includeDirectTarget,omitempty"`
	Label               string  `yaml:"label,omitempty" json:"label,omitempty"`
}

// ModifierSpec describes a static aura multiplier, optionally gated on the
// source also carrying one of RequiresAura.
type ModifierSpec struct {
	Source       threat.ModifierSource `yaml:"source" json:"source" jsonschema:"enum=class,enum=aura,enum=stance,enum=talent,enum=gear"`
	Name         string                `yaml:"name" json:"name"`
	Value        float64               `yaml:"value" json:"value"`
	RequiresAura []int                 `yaml:"requiresAura,omitempty" json:"requiresAura,omitempty"`
}

// LoadFile reads a YAML ruleset from path.
func LoadFile(path string) (*threat.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ruleset: %w", err)
	}
	defer f.Close()
	cfg, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("ruleset %s: %w", path, err)
	}
	return cfg, nil
}

// LoadYAML decodes and validates a YAML ruleset. Unknown fields are errors.
func LoadYAML(r io.Reader) (*threat.Config, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var doc Document
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode ruleset: %w", err)
	}
	cfg, err := doc.Build()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Build converts the document into engine tables.
func (d Document) Build() (*threat.Config, error) {
	var cfg *threat.Config
	if d.Extends != "" {
		base, ok := ByName(d.Extends)
		if !ok {
			return nil, fmt.Errorf("extends %q: %w", d.Extends, errUnknownExtends)
		}
		cfg = base
	} else {
		if d.BaseThreat == nil {
			return nil, errMissingBase
		}
		cfg = &threat.Config{Classes: make(map[combatlog.Class]*threat.ClassConfig)}
	}
	if d.Name != "" {
		cfg.Name = d.Name
	}

	if d.BaseThreat != nil {
		if err := d.BaseThreat.apply(&cfg.BaseThreat); err != nil {
			return nil, err
		}
	}

	abilities, err := buildAbilities("global", d.Abilities)
	if err != nil {
		return nil, err
	}
	cfg.Abilities = merge(cfg.Abilities, abilities)
	cfg.AuraModifiers = merge(cfg.AuraModifiers, buildModifiers(d.AuraModifiers))

	for class, doc := range d.Classes {
		if !class.Known() {
			return nil, fmt.Errorf("class %q: %w", class, errUnknownClass)
		}
		cc := cfg.Classes[class]
		if cc == nil {
			cc = &threat.ClassConfig{}
			cfg.Classes[class] = cc
		}
		if doc.BaseThreatFactor != 0 {
			cc.BaseThreatFactor = doc.BaseThreatFactor
		}
		abilities, err := buildAbilities(string(class), doc.Abilities)
		if err != nil {
			return nil, err
		}
		cc.Abilities = merge(cc.Abilities, abilities)
		cc.AuraModifiers = merge(cc.AuraModifiers, buildModifiers(doc.AuraModifiers))
	}
	return cfg, nil
}

func (b BaseDocument) apply(dst *threat.BaseThreat) error {
	slots := []struct {
		name string
		spec *FormulaSpec
		dst  *threat.Formula
	}{
		{"damage", b.Damage, &dst.Damage},
		{"heal", b.Heal, &dst.Heal},
		{"energize", b.Energize, &dst.Energize},
	}
	for _, slot := range slots {
		if slot.spec == nil {
			continue
		}
		f, err := slot.spec.Formula()
		if err != nil {
			return fmt.Errorf("base %s: %w", slot.name, err)
		}
		*slot.dst = f
	}
	return nil
}

func buildAbilities(scope string, specs map[int]FormulaSpec) (map[int]threat.Formula, error) {
	out := make(map[int]threat.Formula, len(specs))
	for id, spec := range specs {
		f, err := spec.Formula()
		if err != nil {
			return nil, fmt.Errorf("%s ability %d: %w", scope, id, err)
		}
		out[id] = f
	}
	return out, nil
}

func buildModifiers(specs map[int]ModifierSpec) map[int]threat.ModifierFunc {
	out := make(map[int]threat.ModifierFunc, len(specs))
	for id, spec := range specs {
		if len(spec.RequiresAura) > 0 {
			out[id] = whileActive(spec.Source, spec.Name, spec.Value, spec.RequiresAura...)
			continue
		}
		out[id] = static(spec.Source, spec.Name, spec.Value)
	}
	return out
}

func (s FormulaSpec) mod() float64 {
	if s.Mod == nil {
		return 1
	}
	return *s.Mod
}

func (s FormulaSpec) options() []threat.FormulaOption {
	if s.Split == nil {
		return nil
	}
	if *s.Split {
		return []threat.FormulaOption{threat.Split()}
	}
	return []threat.FormulaOption{threat.NoSplit()}
}

// Formula builds the formula the spec describes.
func (s FormulaSpec) Formula() (threat.Formula, error) {
	opts := s.options()
	switch s.Kind {
	case KindDefault:
		return threat.Default(opts...), nil
	case KindFlat:
		return threat.Flat(s.Value, opts...), nil
	case KindModAmount:
		return threat.ModAmount(s.mod(), opts...), nil
	case KindModAmountFlat:
		return threat.ModAmountFlat(s.mod(), s.Value, opts...), nil
	case KindTaunt:
		fixate := time.Duration(s.FixateMS) * time.Millisecond
		return threat.TauntTarget(s.Value, fixate, threat.TauntOptions{AddDamage: s.AddDamage}), nil
	case KindThreatDrop:
		return threat.ThreatDrop(), nil
	case KindNoThreat:
		return threat.NoThreat(time.Duration(s.WindowMS) * time.Millisecond), nil
	case KindThreatOnDebuff:
		return threat.ThreatOnDebuff(s.Value, opts...), nil
	case KindThreatOnBuff:
		return threat.ThreatOnBuff(s.Value, opts...), nil
	case KindModHeal:
		return threat.ModHeal(s.mod()), nil
	case KindCastCanMiss:
		return threat.CastCanMiss(s.Value), nil
	case KindModifyThreat:
		return threat.ModifyThreat(s.mod(), threat.ModifyTarget(s.Target)), nil
	case KindNearbyDefenders:
		return encounters.NearbyDefenders(encounters.Cleave{
			Amount:              s.Amount,
			TargetCount:         s.TargetCount,
			Candidates:          s.Candidates,
			MeleeRange:          s.MeleeRange,
			UnitsPerYard:        s.UnitsPerYard,
			IncludeDirectTarget: s.IncludeDirectTarget,
			Label:               s.Label,
			BaseThreat:          s.Value,
		}), nil
	default:
		return nil, fmt.Errorf("%q: %w", s.Kind, errUnknownKind)
	}
}
