package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tstirrat/newthreat/combatlog"
	"github.com/tstirrat/newthreat/encounters"
	"github.com/tstirrat/newthreat/logging"
	"github.com/tstirrat/newthreat/logging/threatlog"
	"github.com/tstirrat/newthreat/rulesets"
	"github.com/tstirrat/newthreat/threat"
)

const (
	tank    = 1
	rogue   = 2
	hunter  = 3
	priest  = 4
	boss    = 50
	add     = 51
	noth    = 60
	unknown = 99999
)

var (
	bossRef = combatlog.EnemyRef{ID: boss}
	addRef  = combatlog.EnemyRef{ID: add}
	nothRef = combatlog.EnemyRef{ID: noth}
)

func testFight() combatlog.Fight {
	return combatlog.Fight{
		ID:          1,
		EncounterID: 1118,
		Actors: []combatlog.Actor{
			{ID: tank, Name: "Tank", Class: combatlog.ClassWarrior},
			{ID: rogue, Name: "Stab", Class: combatlog.ClassRogue},
			{ID: hunter, Name: "Shoot", Class: combatlog.ClassHunter},
			{ID: priest, Name: "Mend", Class: combatlog.ClassPriest},
			{ID: boss, Name: "Patchwerk"},
			{ID: add, Name: "Add"},
			{ID: noth, Name: "Noth"},
		},
	}
}

func newReplay(t *testing.T, fight combatlog.Fight) *Replay {
	t.Helper()
	return NewReplay(rulesets.Anniversary(), fight, Options{TraceID: "test"})
}

func hit(ts int64, source, target, ability int, amount float64) combatlog.Event {
	return combatlog.Event{
		Timestamp:        ts,
		Type:             combatlog.EventDamage,
		SourceID:         source,
		SourceIsFriendly: true,
		TargetID:         target,
		AbilityGameID:    ability,
		Amount:           amount,
		HitType:          1,
	}
}

func cast(ts int64, source, target, ability int, targetFriendly bool) combatlog.Event {
	return combatlog.Event{
		Timestamp:        ts,
		Type:             combatlog.EventCast,
		SourceID:         source,
		SourceIsFriendly: true,
		TargetID:         target,
		TargetIsFriendly: targetFriendly,
		AbilityGameID:    ability,
	}
}

func TestPlainDamageUsesStanceFromCombatant(t *testing.T) {
	fight := testFight()
	fight.Combatants = []combatlog.Combatant{{ActorID: tank, Auras: []int{rulesets.DefensiveStance}}}
	replay := newReplay(t, fight)

	out := replay.Process(context.Background(), hit(100, tank, boss, rulesets.ShieldSlam, 746))

	assert.Equal(t, "amt + 254", out.Threat.Calculation.Formula)
	require.Len(t, out.Threat.Changes, 1)
	assert.Equal(t, threat.OperatorAdd, out.Threat.Changes[0].Operator)
	assert.InDelta(t, 1300.0, replay.State().Threat(tank, bossRef), 1e-9)
}

func TestTalentsSeedSyntheticAuras(t *testing.T) {
	fight := testFight()
	fight.Combatants = []combatlog.Combatant{{
		ActorID: tank,
		Auras:   []int{rulesets.DefensiveStance},
		Talents: map[int]int{12303: 5},
	}}
	replay := newReplay(t, fight)
	replay.Process(context.Background(), hit(100, tank, boss, 0, 100))
	assert.InDelta(t, 100*1.3*1.15, replay.State().Threat(tank, bossRef), 1e-6)
}

func TestHealSplitsAcrossEngagedEnemies(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	replay.Process(ctx, hit(100, tank, boss, 0, 10))
	replay.Process(ctx, hit(200, tank, add, 0, 10))

	heal := combatlog.Event{Timestamp: 300, Type: combatlog.EventHeal, SourceID: priest, SourceIsFriendly: true, TargetID: tank, TargetIsFriendly: true, Amount: 1200, Overheal: 200}
	out := replay.Process(ctx, heal)
	require.Len(t, out.Threat.Changes, 2)
	assert.Equal(t, 250.0, replay.State().Threat(priest, bossRef))
	assert.Equal(t, 250.0, replay.State().Threat(priest, addRef))

	replay.Process(ctx, combatlog.Event{Timestamp: 400, Type: combatlog.EventDeath, TargetID: add})
	heal.Timestamp = 500
	replay.Process(ctx, heal)
	assert.Equal(t, 750.0, replay.State().Threat(priest, bossRef))
	assert.Equal(t, 250.0, replay.State().Threat(priest, addRef))
	assert.False(t, replay.State().IsActorAlive(addRef.Ref()))
}

func TestTauntSetsTopThreatAndFixates(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	replay.Process(ctx, hit(100, rogue, boss, 0, 7042)) // just under 5000 after the rogue factor
	replay.Process(ctx, hit(200, tank, boss, 0, 1000))

	out := replay.Process(ctx, cast(1000, tank, boss, rulesets.Taunt, false))

	require.Len(t, out.Threat.Changes, 1)
	assert.Equal(t, threat.OperatorSet, out.Threat.Changes[0].Operator)
	assert.InDelta(t, replay.State().Threat(rogue, bossRef), replay.State().Threat(tank, bossRef), 1e-9)
	require.NotNil(t, out.Threat.Fixate)
	assert.Equal(t, bossRef, out.Threat.Fixate.Enemy)
	assert.Equal(t, int64(4000), out.Threat.Fixate.Until)

	fixate, ok := replay.State().Fixate(bossRef, 3999)
	require.True(t, ok)
	assert.Equal(t, tank, fixate.ActorID)
	_, ok = replay.State().Fixate(bossRef, 4000)
	assert.False(t, ok)
}

func TestTauntAddsBaseOnTopOfLeader(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	replay.Process(ctx, hit(100, hunter, boss, 0, 3000))

	replay.Process(ctx, hit(200, tank, boss, rulesets.MockingBlow, 250))
	assert.Equal(t, 3250.0, replay.State().Threat(tank, bossRef))
}

func TestFeignDeathDropsEveryEnemy(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	replay.Process(ctx, hit(100, hunter, boss, 0, 500))
	replay.Process(ctx, hit(200, hunter, add, 0, 300))

	out := replay.Process(ctx, cast(300, hunter, hunter, rulesets.FeignDeath, true))
	assert.Len(t, out.Threat.Changes, 2)
	assert.Zero(t, replay.State().Threat(hunter, bossRef))
	assert.Zero(t, replay.State().Threat(hunter, addRef))
}

func TestVanishOnHostileTargetDropsThatEnemy(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	replay.Process(ctx, hit(100, rogue, boss, 0, 1000))
	replay.Process(ctx, hit(150, rogue, add, 0, 1000))
	replay.Process(ctx, cast(200, rogue, boss, rulesets.VanishR2, false))
	assert.Zero(t, replay.State().Threat(rogue, bossRef))
	assert.InDelta(t, 710.0, replay.State().Threat(rogue, addRef), 1e-9)
}

func TestNoThreatWindowSuppressesGains(t *testing.T) {
	cfg := rulesets.Anniversary()
	const misdirection = 34477
	cfg.Classes[combatlog.ClassHunter].Abilities[misdirection] = threat.NoThreat(30 * time.Second)
	replay := NewReplay(cfg, testFight(), Options{})
	ctx := context.Background()

	replay.Process(ctx, cast(1000, hunter, tank, misdirection, true))
	out := replay.Process(ctx, hit(2000, hunter, boss, 0, 800))
	assert.Empty(t, out.Threat.Changes)
	assert.Equal(t, 800.0, out.Threat.Calculation.ModifiedThreat)

	replay.Process(ctx, hit(31000, hunter, boss, 0, 100))
	assert.Equal(t, 100.0, replay.State().Threat(hunter, bossRef))
}

func TestHatefulStrikeFallsBackToThreatOrder(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	replay.Process(ctx, hit(100, tank, boss, 0, 3000))
	replay.Process(ctx, hit(110, hunter, boss, 0, 2000))
	replay.Process(ctx, hit(120, priest, boss, 0, 1000))

	strike := combatlog.Event{
		Timestamp:        200,
		Type:             combatlog.EventDamage,
		SourceID:         boss,
		TargetID:         hunter,
		TargetIsFriendly: true,
		AbilityGameID:    encounters.HatefulStrike,
		Amount:           9000,
	}
	out := replay.Process(ctx, strike)
	require.NotNil(t, out.Threat.Calculation.Special)
	require.Len(t, out.Threat.Changes, 3)
	assert.Equal(t, 4000.0, replay.State().Threat(tank, bossRef))
	assert.Equal(t, 3000.0, replay.State().Threat(hunter, bossRef))
	assert.Equal(t, 2000.0, replay.State().Threat(priest, bossRef))
}

func TestHatefulStrikeRespectsMeleeRange(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	at := func(e combatlog.Event, x, y float64) combatlog.Event {
		e.X, e.Y, e.ResourceActor = &x, &y, combatlog.ResourceActorSource
		return e
	}
	replay.Process(ctx, at(combatlog.Event{Timestamp: 1, Type: combatlog.EventCast, SourceID: boss}, 0, 0))
	replay.Process(ctx, at(hit(100, tank, boss, 0, 3000), 2, 0))
	replay.Process(ctx, at(hit(110, hunter, boss, 0, 2000), 35, 0))
	replay.Process(ctx, at(hit(120, priest, boss, 0, 1000), 0, 9))

	strike := combatlog.Event{Timestamp: 200, Type: combatlog.EventDamage, SourceID: boss, TargetID: tank, TargetIsFriendly: true, AbilityGameID: encounters.HatefulStrike}
	out := replay.Process(ctx, strike)
	require.Len(t, out.Threat.Changes, 2)
	assert.Equal(t, 2000.0, replay.State().Threat(hunter, bossRef))
	assert.Equal(t, 2000.0, replay.State().Threat(priest, bossRef))
	assert.Equal(t, []int{tank}, replay.State().ActorsInRange(bossRef.Ref(), 5))
}

func TestNothBlinkWipesThreat(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	replay.Process(ctx, hit(100, tank, noth, 0, 3000))
	replay.Process(ctx, hit(110, hunter, noth, 0, 2000))

	blink := combatlog.Event{Timestamp: 200, Type: combatlog.EventCast, SourceID: noth, AbilityGameID: encounters.NothBlink}
	out := replay.Process(ctx, blink)
	require.Len(t, out.Threat.Changes, 2)
	assert.Zero(t, replay.State().Threat(tank, nothRef))
	assert.Zero(t, replay.State().Threat(hunter, nothRef))
}

func TestSunderArmorRefundedOnMiss(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	replay.Process(ctx, hit(100, tank, boss, 0, 50))

	replay.Process(ctx, cast(200, tank, boss, rulesets.SunderArmor, false))
	assert.Equal(t, 311.0, replay.State().Threat(tank, bossRef))

	miss := hit(200, tank, boss, rulesets.SunderArmor, 0)
	miss.HitType = 7
	out := replay.Process(ctx, miss)
	require.Len(t, out.Threat.Changes, 1)
	assert.Equal(t, -261.0, out.Threat.Changes[0].Amount)
	assert.Equal(t, 50.0, replay.State().Threat(tank, bossRef))

	replay.Process(ctx, cast(300, tank, boss, rulesets.SunderArmor, false))
	landed := replay.Process(ctx, hit(300, tank, boss, rulesets.SunderArmor, 0))
	assert.Empty(t, landed.Threat.Changes)
	assert.Equal(t, 311.0, replay.State().Threat(tank, bossRef))
}

func TestFeintReportsClampedDelta(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	replay.Process(ctx, hit(100, rogue, boss, 0, 100))
	pre := replay.State().Threat(rogue, bossRef)
	require.InDelta(t, 71.0, pre, 1e-9)

	out := replay.Process(ctx, cast(200, rogue, boss, rulesets.FeintR5, false))
	assert.InDelta(t, -800*0.71, out.Threat.Calculation.ModifiedThreat, 1e-9)
	require.Len(t, out.Threat.Changes, 1)
	change := out.Threat.Changes[0]
	assert.Equal(t, threat.OperatorAdd, change.Operator)
	assert.Zero(t, change.Total)
	assert.InDelta(t, -71.0, change.Amount, 1e-9)
	assert.InDelta(t, change.Total, pre+change.Amount, 1e-9)
	assert.Zero(t, replay.State().Threat(rogue, bossRef))
}

func TestFriendlyDeathClearsThreat(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	replay.Process(ctx, hit(100, hunter, boss, 0, 500))
	out := replay.Process(ctx, combatlog.Event{Timestamp: 200, Type: combatlog.EventDeath, TargetID: hunter, TargetIsFriendly: true})
	require.Len(t, out.Threat.Changes, 1)
	assert.Zero(t, replay.State().Threat(hunter, bossRef))
	assert.False(t, replay.State().IsActorAlive(combatlog.ActorRef{ID: hunter}))

	replay.Process(ctx, hit(300, hunter, boss, 0, 10))
	assert.True(t, replay.State().IsActorAlive(combatlog.ActorRef{ID: hunter}))
}

func TestAurasFollowEvents(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	apply := combatlog.Event{Timestamp: 10, Type: combatlog.EventApplyBuff, SourceID: priest, SourceIsFriendly: true, TargetID: rogue, TargetIsFriendly: true, AbilityGameID: rulesets.BlessingOfSalvation}
	replay.Process(ctx, apply)
	assert.True(t, replay.State().Auras(rogue).Has(rulesets.BlessingOfSalvation))

	out := replay.Process(ctx, hit(20, rogue, boss, 0, 1000))
	assert.InDelta(t, 1000*0.71*0.7, out.Threat.Calculation.ModifiedThreat, 1e-9)

	remove := apply
	remove.Timestamp, remove.Type = 30, combatlog.EventRemoveBuff
	replay.Process(ctx, remove)
	assert.False(t, replay.State().Auras(rogue).Has(rulesets.BlessingOfSalvation))
}

func TestTargetsTracked(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	replay.Process(ctx, hit(10, tank, boss, 0, 1))
	replay.Process(ctx, hit(20, tank, add, 0, 1))

	current, ok := replay.State().CurrentTarget(combatlog.ActorRef{ID: tank})
	require.True(t, ok)
	assert.Equal(t, addRef, current)
	last, ok := replay.State().LastTarget(combatlog.ActorRef{ID: tank})
	require.True(t, ok)
	assert.Equal(t, bossRef, last)
	assert.Equal(t, []combatlog.EnemyRef{bossRef, addRef}, replay.State().Engaged())
}

func TestEnemiesListedInIDOrder(t *testing.T) {
	replay := newReplay(t, testFight())
	ctx := context.Background()
	replay.Process(ctx, hit(10, hunter, noth, 0, 1))
	replay.Process(ctx, hit(20, hunter, add, 0, 1))
	replay.Process(ctx, hit(30, hunter, boss, 0, 1))

	want := []combatlog.EnemyRef{bossRef, addRef, nothRef}
	assert.Equal(t, want, replay.State().Enemies())
	assert.Equal(t, want, replay.State().Engaged())
}

func TestRunPublishesAndSummarises(t *testing.T) {
	var published []logging.Event
	pub := logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		published = append(published, event)
	})
	replay := NewReplay(rulesets.Anniversary(), testFight(), Options{Publisher: pub, TraceID: "trace-9"})

	events := []combatlog.Event{
		hit(100, tank, boss, 0, 100),
		cast(200, tank, boss, unknown, false),
		hit(300, rogue, boss, 0, 100),
	}
	var emitted []AugmentedEvent
	summary, err := replay.Run(context.Background(), events, func(e AugmentedEvent) error {
		emitted = append(emitted, e)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, emitted, 3)
	assert.Equal(t, 3, summary.Events)
	assert.Equal(t, 2, summary.Changes)
	assert.Equal(t, 1, summary.Unmodeled)
	assert.Equal(t, rulesets.NameAnniversary, summary.Ruleset)
	require.Len(t, summary.Threat, 1)
	assert.Equal(t, tank, summary.Threat[0].Actors[0].ActorID)

	require.NotEmpty(t, published)
	last := published[len(published)-1]
	assert.Equal(t, threatlog.EventReplay, last.Type)
	for _, event := range published {
		assert.Equal(t, "trace-9", event.TraceID)
		assert.Equal(t, 1, event.Extra["fight"])
	}
}

func TestRunStopsOnEmitErrorAndCancel(t *testing.T) {
	replay := newReplay(t, testFight())
	boom := errors.New("boom")
	_, err := replay.Run(context.Background(), []combatlog.Event{hit(1, tank, boss, 0, 1)}, func(AugmentedEvent) error { return boom })
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newReplay(t, testFight()).Run(ctx, []combatlog.Event{hit(1, tank, boss, 0, 1)}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewReplayGeneratesTraceID(t *testing.T) {
	a := NewReplay(nil, testFight(), Options{})
	b := NewReplay(nil, testFight(), Options{})
	assert.NotEmpty(t, a.TraceID())
	assert.NotEqual(t, a.TraceID(), b.TraceID())

	out := a.Process(context.Background(), hit(1, tank, boss, 0, 100))
	assert.Equal(t, threat.ResolutionNone, out.Threat.Calculation.Resolution)
	assert.Empty(t, out.Threat.Changes)
}
