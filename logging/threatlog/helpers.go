// Package threatlog publishes the threat simulation's structured events.
package threatlog

import (
	"context"
	"strconv"

	"github.com/tstirrat/newthreat/combatlog"
	"github.com/tstirrat/newthreat/logging"
	"github.com/tstirrat/newthreat/threat"
)

const (
	// EventCalculated is emitted for every event the engine resolved.
	EventCalculated logging.EventType = "threat.calculated"
	// EventUnmodeled is emitted when an ability has no formula and no base
	// fallback applies.
	EventUnmodeled logging.EventType = "threat.unmodeled"
	// EventChange is emitted for each threat table update.
	EventChange logging.EventType = "threat.change"
	// EventFixate is emitted when a taunt forces an enemy's target.
	EventFixate logging.EventType = "threat.fixate"
	// EventReplay summarises a finished replay.
	EventReplay logging.EventType = "threat.replay"
)

// CalculatedPayload mirrors the engine's answer.
type CalculatedPayload struct {
	Ability     int                `json:"ability,omitempty"`
	Calculation threat.Calculation `json:"calculation"`
}

// UnmodeledPayload names the ability nobody modelled.
type UnmodeledPayload struct {
	Ability   int                 `json:"ability"`
	EventType combatlog.EventType `json:"eventType"`
}

// FixatePayload describes a taunt.
type FixatePayload struct {
	Ability  int   `json:"ability,omitempty"`
	UntilMS  int64 `json:"until"`
	Duration int64 `json:"duration"`
}

// ReplayPayload summarises a replay.
type ReplayPayload struct {
	Ruleset   string `json:"ruleset"`
	Events    int    `json:"events"`
	Changes   int    `json:"changes"`
	Unmodeled int    `json:"unmodeled"`
	Enemies   int    `json:"enemies"`
}

// Player returns the entity ref for a friendly unit.
func Player(id int) logging.EntityRef {
	return logging.EntityRef{ID: strconv.Itoa(id), Kind: logging.EntityKindPlayer}
}

// Enemy returns the entity ref for an enemy instance.
func Enemy(ref combatlog.EnemyRef) logging.EntityRef {
	id := strconv.Itoa(ref.ID)
	if ref.InstanceID != 0 {
		id += "." + strconv.Itoa(ref.InstanceID)
	}
	return logging.EntityRef{ID: id, Kind: logging.EntityKindEnemy}
}

// Calculated publishes an engine result at debug severity.
func Calculated(ctx context.Context, pub logging.Publisher, event combatlog.Event, calc threat.Calculation) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventCalculated,
		Timestamp: event.Timestamp,
		Actor:     Player(event.SourceID),
		Severity:  logging.SeverityDebug,
		Category:  logging.CategoryThreat,
		Payload:   CalculatedPayload{Ability: event.AbilityGameID, Calculation: calc},
	})
}

// Unmodeled publishes an ability without a formula. It is informational:
// the event simply generated no threat.
func Unmodeled(ctx context.Context, pub logging.Publisher, event combatlog.Event) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventUnmodeled,
		Timestamp: event.Timestamp,
		Actor:     Player(event.SourceID),
		Severity:  logging.SeverityDebug,
		Category:  logging.CategoryThreat,
		Payload:   UnmodeledPayload{Ability: event.AbilityGameID, EventType: event.Type},
	})
}

// Change publishes one threat table update.
func Change(ctx context.Context, pub logging.Publisher, timestamp int64, change threat.Change) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventChange,
		Timestamp: timestamp,
		Actor:     Player(change.SourceID),
		Targets:   []logging.EntityRef{Enemy(change.Enemy())},
		Severity:  logging.SeverityInfo,
		Category:  logging.CategoryThreat,
		Payload:   change,
	})
}

// Fixate publishes a taunt landing.
func Fixate(ctx context.Context, pub logging.Publisher, event combatlog.Event, enemy combatlog.EnemyRef, until int64) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventFixate,
		Timestamp: event.Timestamp,
		Actor:     Player(event.SourceID),
		Targets:   []logging.EntityRef{Enemy(enemy)},
		Severity:  logging.SeverityInfo,
		Category:  logging.CategoryThreat,
		Payload:   FixatePayload{Ability: event.AbilityGameID, UntilMS: until, Duration: until - event.Timestamp},
	})
}

// Replay publishes the end-of-replay summary.
func Replay(ctx context.Context, pub logging.Publisher, timestamp int64, payload ReplayPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventReplay,
		Timestamp: timestamp,
		Actor:     logging.EntityRef{Kind: logging.EntityKindSystem},
		Severity:  logging.SeverityInfo,
		Category:  logging.CategoryReplay,
		Payload:   payload,
	})
}
