package sim

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tstirrat/newthreat/combatlog"
	"github.com/tstirrat/newthreat/internal/telemetry"
	"github.com/tstirrat/newthreat/logging"
	"github.com/tstirrat/newthreat/logging/threatlog"
	"github.com/tstirrat/newthreat/threat"
)

// AugmentedEvent is an input event together with the threat it produced.
type AugmentedEvent struct {
	combatlog.Event
	Threat EventThreat `json:"threat"`
}

// EventThreat is the engine's calculation and what applying it changed.
type EventThreat struct {
	Calculation threat.Calculation `json:"calculation"`
	Changes     []threat.Change    `json:"changes,omitempty"`
	Fixate      *FixateChange      `json:"fixate,omitempty"`
}

// Options configures a Replay. Zero values are usable.
type Options struct {
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	// TraceID tags every published event; a random one is generated when
	// empty.
	TraceID string
}

// Summary describes a finished replay.
type Summary struct {
	TraceID   string        `json:"traceId"`
	Ruleset   string        `json:"ruleset"`
	Events    int           `json:"events"`
	Changes   int           `json:"changes"`
	Unmodeled int           `json:"unmodeled"`
	Threat    []EnemyThreat `json:"threat"`
}

// EnemyThreat is one enemy's final threat table.
type EnemyThreat struct {
	Enemy  combatlog.EnemyRef   `json:"enemy"`
	Actors []threat.ActorThreat `json:"actors"`
}

// Replay drives one fight through the engine.
type Replay struct {
	cfg         *threat.Config
	roster      combatlog.Roster
	encounterID int
	state       *State
	publisher   logging.Publisher
	metrics     telemetry.Metrics
	traceID     string

	events    int
	changes   int
	unmodeled int
	lastTS    int64
}

// NewReplay prepares a replay of fight under cfg.
func NewReplay(cfg *threat.Config, fight combatlog.Fight, opts Options) *Replay {
	traceID := opts.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	r := &Replay{
		cfg:         cfg,
		roster:      fight.Roster(),
		encounterID: fight.EncounterID,
		state:       NewState(),
		publisher:   logging.WithTrace(logging.WithFields(publisher, map[string]any{"fight": fight.ID}), traceID),
		metrics:     metrics,
		traceID:     traceID,
	}
	for _, combatant := range fight.Combatants {
		r.state.Seed(r.roster.Lookup(combatant.ActorID), combatant)
	}
	return r
}

// TraceID identifies this replay in published events.
func (r *Replay) TraceID() string {
	return r.traceID
}

// State exposes the live fight state.
func (r *Replay) State() *State {
	return r.state
}

// Process runs one event. Events must arrive in timestamp order.
func (r *Replay) Process(ctx context.Context, event combatlog.Event) AugmentedEvent {
	r.state.observe(event)

	calc := threat.Calculate(event, threat.Options{
		SourceAuras: r.state.Auras(event.SourceID).Clone(),
		TargetAuras: r.state.Auras(event.TargetID).Clone(),
		SourceActor: r.roster.Lookup(event.SourceID),
		TargetActor: r.roster.Lookup(event.TargetID),
		EncounterID: r.encounterID,
		Actors:      r.state,
	}, r.cfg)

	result := r.state.apply(event, calc)
	result.changes = append(result.changes, r.state.settle(event)...)

	r.record(ctx, event, calc, result)
	return AugmentedEvent{
		Event: event,
		Threat: EventThreat{
			Calculation: calc,
			Changes:     result.changes,
			Fixate:      result.fixate,
		},
	}
}

func (r *Replay) record(ctx context.Context, event combatlog.Event, calc threat.Calculation, result outcome) {
	r.events++
	r.lastTS = event.Timestamp
	r.metrics.Add(telemetry.KeyEventsProcessed, 1)

	if calc.Resolution == threat.ResolutionNone && event.HasAbility() && event.SourceIsFriendly {
		r.unmodeled++
		r.metrics.Add(telemetry.KeyUnmodeled, 1)
		threatlog.Unmodeled(ctx, r.publisher, event)
	} else if calc.Resolution != threat.ResolutionNone {
		threatlog.Calculated(ctx, r.publisher, event, calc)
	}

	for _, change := range result.changes {
		threatlog.Change(ctx, r.publisher, event.Timestamp, change)
	}
	if n := len(result.changes); n > 0 {
		r.changes += n
		r.metrics.Add(telemetry.KeyThreatChanges, uint64(n))
	}
	if result.fixate != nil {
		threatlog.Fixate(ctx, r.publisher, event, result.fixate.Enemy, result.fixate.Until)
	}
	r.metrics.Store(telemetry.KeyEnemiesEngaged, uint64(len(r.state.engaged)))
}

// Run processes events in order, handing each result to emit. It stops at
// the first emit error or when ctx is cancelled.
func (r *Replay) Run(ctx context.Context, events []combatlog.Event, emit func(AugmentedEvent) error) (Summary, error) {
	for i, event := range events {
		if err := ctx.Err(); err != nil {
			return r.Summary(), fmt.Errorf("replay stopped at event %d: %w", i, err)
		}
		augmented := r.Process(ctx, event)
		if emit == nil {
			continue
		}
		if err := emit(augmented); err != nil {
			return r.Summary(), fmt.Errorf("emit event %d: %w", i, err)
		}
	}
	summary := r.Summary()
	threatlog.Replay(ctx, r.publisher, r.lastTS, threatlog.ReplayPayload{
		Ruleset:   summary.Ruleset,
		Events:    summary.Events,
		Changes:   summary.Changes,
		Unmodeled: summary.Unmodeled,
		Enemies:   len(summary.Threat),
	})
	return summary, nil
}

// Summary reports counters and the current threat tables.
func (r *Replay) Summary() Summary {
	summary := Summary{
		TraceID:   r.traceID,
		Events:    r.events,
		Changes:   r.changes,
		Unmodeled: r.unmodeled,
		Threat:    make([]EnemyThreat, 0, len(r.state.threat)),
	}
	if r.cfg != nil {
		summary.Ruleset = r.cfg.Name
	}
	for _, enemy := range r.state.Enemies() {
		summary.Threat = append(summary.Threat, EnemyThreat{
			Enemy:  enemy,
			Actors: r.state.TopActorsByThreat(enemy, -1),
		})
	}
	return summary
}
