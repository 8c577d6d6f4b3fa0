package rulesets_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tstirrat/newthreat/combatlog"
	"github.com/tstirrat/newthreat/rulesets"
	"github.com/tstirrat/newthreat/threat"
	"github.com/tstirrat/newthreat/threat/threattest"
)

const standalone = `
name: custom
baseThreat:
  damage: {kind: default}
  heal: {kind: modHeal, mod: 0.5}
  energize: {kind: modAmount, mod: 5, split: true}
abilities:
  28308:
    kind: nearbyDefenders
    amount: 500
    targetCount: 4
    meleeRange: 10
  29210: {kind: modifyThreat, mod: 0, target: all}
auraModifiers:
  25909: {source: aura, name: Tranquil Air Totem, value: 0.8}
classes:
  warrior:
    abilities:
      355: {kind: taunt, fixateMs: 3000}
      20560: {kind: taunt, addDamage: true, fixateMs: 6000}
      11597: {kind: castCanMiss, value: 261}
      23925: {kind: modAmountFlat, value: 254}
      25289: {kind: threatOnBuff, value: 60, split: false}
    auraModifiers:
      71: {source: stance, name: Defensive Stance, value: 1.3}
  rogue:
    baseThreatFactor: 0.71
    abilities:
      1856: {kind: threatDrop}
      1966: {kind: flat, value: -150}
  hunter:
    abilities:
      34477: {kind: noThreat, windowMs: 30000}
      14274: {kind: threatOnDebuff, value: 160}
`

func TestLoadYAMLStandalone(t *testing.T) {
	cfg, err := rulesets.LoadYAML(strings.NewReader(standalone))
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Name)

	tank := combatlog.Actor{ID: 1, Class: combatlog.ClassWarrior}
	slam := threat.Calculate(combatlog.Event{Type: combatlog.EventDamage, SourceID: 1, AbilityGameID: 23925, Amount: 746},
		threat.Options{SourceActor: tank, SourceAuras: threat.NewAuraSet(71)}, cfg)
	assert.Equal(t, "amt + 254", slam.Formula)
	assert.InDelta(t, 1300.0, slam.ModifiedThreat, 1e-9)

	mock := threat.Calculate(combatlog.Event{Type: combatlog.EventDamage, SourceID: 1, AbilityGameID: 20560, Amount: 90},
		threat.Options{SourceActor: tank}, cfg)
	require.NotNil(t, mock.Special)
	assert.Equal(t, 6*time.Second, mock.Special.FixateDuration)
	assert.Equal(t, 90.0, mock.BaseThreat)

	shout := threat.Calculate(combatlog.Event{Type: combatlog.EventApplyBuff, SourceID: 1, AbilityGameID: 25289},
		threat.Options{SourceActor: tank}, cfg)
	assert.False(t, shout.IsSplit)

	rogue := combatlog.Actor{ID: 2, Class: combatlog.ClassRogue}
	feint := threat.Calculate(combatlog.Event{Type: combatlog.EventCast, SourceID: 2, AbilityGameID: 1966},
		threat.Options{SourceActor: rogue}, cfg)
	assert.InDelta(t, -106.5, feint.ModifiedThreat, 1e-9)

	hunter := combatlog.Actor{ID: 3, Class: combatlog.ClassHunter}
	md := threat.Calculate(combatlog.Event{Type: combatlog.EventCast, SourceID: 3, AbilityGameID: 34477},
		threat.Options{SourceActor: hunter}, cfg)
	require.NotNil(t, md.Special)
	assert.Equal(t, 30*time.Second, md.Special.Duration)

	energize := threat.Calculate(combatlog.Event{Type: combatlog.EventEnergize, SourceID: 1, ResourceChange: 4},
		threat.Options{SourceActor: tank}, cfg)
	assert.Equal(t, 20.0, energize.BaseThreat)
	assert.True(t, energize.IsSplit)
}

func TestLoadYAMLBossFormulas(t *testing.T) {
	cfg, err := rulesets.LoadYAML(strings.NewReader(standalone))
	require.NoError(t, err)

	blink, ok := cfg.AbilityFormula(combatlog.ClassNone, 29210)
	require.True(t, ok)
	result := blink(threattest.Context(combatlog.Event{Type: combatlog.EventCast, SourceID: 90}, nil))
	require.NotNil(t, result.Special)
	assert.Equal(t, threat.ModifyTargetAll, result.Special.Target)
	assert.Zero(t, result.Special.Multiplier)

	actors := threattest.NewActors()
	actors.SetThreat(7, combatlog.EnemyRef{ID: 90}, 100)
	strike, ok := cfg.AbilityFormula(combatlog.ClassNone, 28308)
	require.True(t, ok)
	out := strike(threattest.Context(combatlog.Event{Type: combatlog.EventDamage, SourceID: 90, TargetID: 7}, actors))
	require.Len(t, out.Special.Changes, 1)
	assert.Equal(t, 600.0, out.Special.Changes[0].Total)
}

func TestLoadYAMLNearbyDefendersDefaultRange(t *testing.T) {
	doc := `
name: ranged
extends: anniversary
abilities:
  99001: {kind: nearbyDefenders, amount: 250, targetCount: 1}
`
	cfg, err := rulesets.LoadYAML(strings.NewReader(doc))
	require.NoError(t, err)
	strike, ok := cfg.AbilityFormula(combatlog.ClassNone, 99001)
	require.True(t, ok)

	boss := combatlog.EnemyRef{ID: 90}
	actors := threattest.NewActors()
	actors.Place(90, 0, 0)
	actors.SetThreat(7, boss, 900)
	actors.SetThreat(8, boss, 100)
	actors.Place(7, 30, 0)
	actors.Place(8, 5, 0)

	out := strike(threattest.Context(combatlog.Event{Type: combatlog.EventDamage, SourceID: 90, TargetID: 7}, actors))
	require.Len(t, out.Special.Changes, 1)
	assert.Equal(t, 8, out.Special.Changes[0].SourceID)
	assert.Equal(t, 350.0, out.Special.Changes[0].Total)
}

func TestLoadYAMLExtends(t *testing.T) {
	doc := `
name: patched
extends: sod
classes:
  rogue:
    baseThreatFactor: 0.5
`
	cfg, err := rulesets.LoadYAML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "patched", cfg.Name)
	assert.Equal(t, 0.5, cfg.Class(combatlog.ClassRogue).Factor())
	_, ok := cfg.AbilityFormula(combatlog.ClassPaladin, rulesets.HandOfReckoning)
	assert.True(t, ok)
	_, ok = cfg.AbilityFormula(combatlog.ClassRogue, rulesets.VanishR1)
	assert.True(t, ok)
}

func TestLoadYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "unknown kind", doc: "extends: anniversary\nabilities:\n  1: {kind: explode}\n", want: "unknown formula kind"},
		{name: "unknown base", doc: "extends: retail\n", want: "unknown base ruleset"},
		{name: "unknown class", doc: "extends: anniversary\nclasses:\n  bard: {}\n", want: "unknown class"},
		{name: "no base", doc: "name: empty\n", want: "base threat formulas"},
		{name: "unknown field", doc: "extends: anniversary\nbogus: 1\n", want: "bogus"},
		{name: "partial base", doc: "baseThreat:\n  damage: {kind: default}\n", want: "heal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rulesets.LoadYAML(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ruleset.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extends: anniversary\n"), 0o600))
	cfg, err := rulesets.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rulesets.NameAnniversary, cfg.Name)

	_, err = rulesets.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
