package threat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tstirrat/newthreat/combatlog"
	"github.com/tstirrat/newthreat/threat"
)

const (
	shieldSlam      = 23922
	taunt           = 355
	feignDeath      = 5384
	salvation       = 1038
	defensiveStance = 71
)

func testConfig() *threat.Config {
	return &threat.Config{
		Name: "test",
		BaseThreat: threat.BaseThreat{
			Damage:   threat.ModAmount(1),
			Heal:     threat.ModAmount(0.5, threat.Split()),
			Energize: threat.ModAmount(5, threat.Split()),
		},
		Abilities: map[int]threat.Formula{
			shieldSlam: threat.Flat(1),
		},
		AuraModifiers: map[int]threat.ModifierFunc{},
		Classes: map[combatlog.Class]*threat.ClassConfig{
			combatlog.ClassWarrior: {
				BaseThreatFactor: 1.5,
				Abilities: map[int]threat.Formula{
					shieldSlam: threat.ModAmountFlat(1, 150),
					taunt:      threat.TauntTarget(0, 3*time.Second, threat.TauntOptions{}),
				},
				AuraModifiers: map[int]threat.ModifierFunc{
					defensiveStance: func(*threat.Context) threat.Modifier {
						return threat.Modifier{Source: threat.ModifierSourceStance, Name: "Defensive Stance", Value: 1.3}
					},
				},
			},
			combatlog.ClassPaladin: {
				AuraModifiers: map[int]threat.ModifierFunc{
					salvation: func(*threat.Context) threat.Modifier {
						return threat.Modifier{Source: threat.ModifierSourceAura, Name: "Blessing of Salvation", Value: 0.7}
					},
				},
			},
			combatlog.ClassHunter: {
				Abilities: map[int]threat.Formula{
					feignDeath: threat.ThreatDrop(),
				},
			},
		},
	}
}

func warrior() combatlog.Actor {
	return combatlog.Actor{ID: 1, Name: "Tank", Class: combatlog.ClassWarrior}
}

func boss() combatlog.Actor {
	return combatlog.Actor{ID: 50, Name: "Boss"}
}

func TestCalculateScenarioAbilityWithClassFactor(t *testing.T) {
	event := combatlog.Event{Type: combatlog.EventDamage, SourceID: 1, TargetID: 50, AbilityGameID: shieldSlam, Amount: 300}
	calc := threat.Calculate(event, threat.Options{SourceActor: warrior(), TargetActor: boss()}, testConfig())

	assert.Equal(t, threat.ResolutionAbility, calc.Resolution)
	assert.Equal(t, "amt + 150", calc.Formula)
	assert.Equal(t, 300.0, calc.Amount)
	assert.Equal(t, 450.0, calc.BaseThreat)
	assert.Equal(t, 675.0, calc.ModifiedThreat)
	require.Len(t, calc.Modifiers, 1)
	assert.Equal(t, threat.Modifier{Source: threat.ModifierSourceClass, Name: "Warrior", Value: 1.5}, calc.Modifiers[0])
}

func TestCalculateClassOverrideShadowsGlobal(t *testing.T) {
	cfg := testConfig()
	event := combatlog.Event{Type: combatlog.EventDamage, SourceID: 1, AbilityGameID: shieldSlam, Amount: 300}
	opts := threat.Options{SourceActor: warrior()}

	before := threat.Calculate(event, opts, cfg)
	delete(cfg.Abilities, shieldSlam)
	after := threat.Calculate(event, opts, cfg)

	assert.Equal(t, before, after)
	assert.Equal(t, 450.0, after.BaseThreat)
}

func TestCalculateGlobalAbilityForOtherClasses(t *testing.T) {
	event := combatlog.Event{Type: combatlog.EventDamage, SourceID: 7, AbilityGameID: shieldSlam, Amount: 300}
	calc := threat.Calculate(event, threat.Options{SourceActor: combatlog.Actor{ID: 7, Class: combatlog.ClassMage}}, testConfig())
	assert.Equal(t, "1", calc.Formula)
	assert.Equal(t, 1.0, calc.ModifiedThreat)
}

func TestCalculateFallsBackToBaseFormula(t *testing.T) {
	event := combatlog.Event{Type: combatlog.EventDamage, SourceID: 7, AbilityGameID: 99999, Amount: 120}
	calc := threat.Calculate(event, threat.Options{SourceActor: combatlog.Actor{ID: 7, Class: combatlog.ClassMage}}, testConfig())
	assert.Equal(t, threat.ResolutionBase, calc.Resolution)
	assert.Equal(t, "amt", calc.Formula)
	assert.Equal(t, 120.0, calc.ModifiedThreat)
	assert.Empty(t, calc.Modifiers)
	assert.NotNil(t, calc.Modifiers)
}

func TestCalculateUnknownEventTypeIsZero(t *testing.T) {
	event := combatlog.Event{Type: "summon", SourceID: 1, Amount: 999}
	calc := threat.Calculate(event, threat.Options{SourceActor: combatlog.Actor{ID: 1}}, testConfig())
	assert.Equal(t, threat.ResolutionNone, calc.Resolution)
	assert.Equal(t, "0", calc.Formula)
	assert.Zero(t, calc.Amount)
	assert.Zero(t, calc.BaseThreat)
	assert.Zero(t, calc.ModifiedThreat)
	assert.False(t, calc.IsSplit)
}

func TestCalculateNilConfigDegrades(t *testing.T) {
	event := combatlog.Event{Type: combatlog.EventDamage, Amount: 10}
	calc := threat.Calculate(event, threat.Options{SourceActor: warrior()}, nil)
	assert.Equal(t, threat.ResolutionNone, calc.Resolution)
	assert.Zero(t, calc.ModifiedThreat)
}

func TestCalculateHealIgnoresOverheal(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		overheal float64
		want     float64
	}{
		{name: "partial", amount: 500, overheal: 120, want: 380},
		{name: "full overheal", amount: 500, overheal: 500, want: 0},
		{name: "overheal larger", amount: 200, overheal: 500, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := combatlog.Event{Type: combatlog.EventHeal, Amount: tt.amount, Overheal: tt.overheal}
			assert.Equal(t, tt.want, threat.EventAmount(event))
		})
	}
}

func TestCalculateScenarioFullOverhealYieldsZero(t *testing.T) {
	event := combatlog.Event{Type: combatlog.EventHeal, SourceID: 3, TargetID: 1, Amount: 500, Overheal: 500}
	calc := threat.Calculate(event, threat.Options{SourceActor: combatlog.Actor{ID: 3, Class: combatlog.ClassPriest}}, testConfig())
	assert.Zero(t, calc.Amount)
	assert.Zero(t, calc.BaseThreat)
	assert.True(t, calc.IsSplit)
}

func TestEventAmountEnergizeIgnoresWaste(t *testing.T) {
	assert.Equal(t, 15.0, threat.EventAmount(combatlog.Event{Type: combatlog.EventEnergize, ResourceChange: 20, Waste: 5}))
	assert.Zero(t, threat.EventAmount(combatlog.Event{Type: combatlog.EventEnergize, ResourceChange: 10, Waste: 30}))
	assert.Zero(t, threat.EventAmount(combatlog.Event{Type: combatlog.EventCast, Amount: 10}))
}

func TestCalculateAuraModifiersAreClassUnion(t *testing.T) {
	event := combatlog.Event{Type: combatlog.EventDamage, SourceID: 9, Amount: 100}
	opts := threat.Options{
		SourceActor: combatlog.Actor{ID: 9, Class: combatlog.ClassMage},
		SourceAuras: threat.NewAuraSet(salvation),
	}
	calc := threat.Calculate(event, opts, testConfig())
	require.Len(t, calc.Modifiers, 1)
	assert.Equal(t, "Blessing of Salvation", calc.Modifiers[0].Name)
	assert.InDelta(t, 70.0, calc.ModifiedThreat, 1e-9)
}

func TestCalculateModifierOrderClassThenAscendingAura(t *testing.T) {
	event := combatlog.Event{Type: combatlog.EventDamage, SourceID: 1, Amount: 100}
	opts := threat.Options{
		SourceActor: warrior(),
		SourceAuras: threat.NewAuraSet(salvation, defensiveStance, 424242),
	}
	calc := threat.Calculate(event, opts, testConfig())
	require.Len(t, calc.Modifiers, 3)
	assert.Equal(t, threat.ModifierSourceClass, calc.Modifiers[0].Source)
	assert.Equal(t, "Defensive Stance", calc.Modifiers[1].Name)
	assert.Equal(t, "Blessing of Salvation", calc.Modifiers[2].Name)
	assert.InDelta(t, 100*1.5*1.3*0.7, calc.ModifiedThreat, 1e-9)
}

func TestCalculateSpecialsStillMultiply(t *testing.T) {
	event := combatlog.Event{Type: combatlog.EventCast, SourceID: 1, TargetID: 50, AbilityGameID: taunt}
	opts := threat.Options{SourceActor: warrior(), SourceAuras: threat.NewAuraSet(defensiveStance)}
	calc := threat.Calculate(event, opts, testConfig())
	require.NotNil(t, calc.Special)
	assert.Equal(t, threat.SpecialTaunt, calc.Special.Type)
	assert.Zero(t, calc.BaseThreat)
	assert.Zero(t, calc.ModifiedThreat)

	hunter := combatlog.Actor{ID: 4, Class: combatlog.ClassHunter}
	drop := threat.Calculate(combatlog.Event{Type: combatlog.EventCast, SourceID: 4, AbilityGameID: feignDeath}, threat.Options{SourceActor: hunter, SourceAuras: threat.NewAuraSet(salvation)}, testConfig())
	assert.Zero(t, drop.BaseThreat)
	assert.Equal(t, threat.SpecialThreatDrop, drop.Special.Type)
	require.Len(t, drop.Modifiers, 1)
}

func TestCalculateIsPure(t *testing.T) {
	event := combatlog.Event{Type: combatlog.EventDamage, SourceID: 1, AbilityGameID: shieldSlam, Amount: 321}
	opts := threat.Options{SourceActor: warrior(), SourceAuras: threat.NewAuraSet(defensiveStance)}
	cfg := testConfig()
	assert.Equal(t, threat.Calculate(event, opts, cfg), threat.Calculate(event, opts, cfg))
}

func TestAuraModifierLastClassWins(t *testing.T) {
	cfg := testConfig()
	cfg.AuraModifiers[salvation] = func(*threat.Context) threat.Modifier {
		return threat.Modifier{Source: threat.ModifierSourceAura, Name: "global", Value: 0.5}
	}
	cfg.Classes[combatlog.ClassWarrior].AuraModifiers[salvation] = func(*threat.Context) threat.Modifier {
		return threat.Modifier{Source: threat.ModifierSourceAura, Name: "warrior", Value: 0.9}
	}
	f, ok := cfg.AuraModifier(salvation)
	require.True(t, ok)
	assert.Equal(t, "warrior", f(nil).Name)
}

func TestValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	missing := testConfig()
	missing.BaseThreat.Heal = nil
	assert.Error(t, missing.Validate())

	negative := testConfig()
	negative.Classes[combatlog.ClassRogue] = &threat.ClassConfig{BaseThreatFactor: -1}
	err := negative.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rogue")

	nilEntry := testConfig()
	nilEntry.Abilities[1] = nil
	assert.Error(t, nilEntry.Validate())

	var none *threat.Config
	assert.Error(t, none.Validate())
}

func TestValidateReportsLowestBadID(t *testing.T) {
	cfg := testConfig()
	for _, id := range []int{900, 30, 4000, 7} {
		cfg.Abilities[id] = nil
	}
	for range 5 {
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "global ability 7:")
	}
}

func TestAuraSetIDsAscending(t *testing.T) {
	set := threat.NewAuraSet(salvation, 25909, defensiveStance, 12303)
	assert.Equal(t, []int{defensiveStance, salvation, 12303, 25909}, set.IDs())

	var empty threat.AuraSet
	assert.Empty(t, empty.IDs())
}

func TestTotalMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, threat.TotalMultiplier(nil))
	assert.Equal(t, 0.75, threat.TotalMultiplier([]threat.Modifier{{Value: 1.5}, {Value: 0.5}}))
}
