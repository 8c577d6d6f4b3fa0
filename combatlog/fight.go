package combatlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	errUnorderedEvents = errors.New("events are not in timestamp order")
	errMissingType     = errors.New("event type must not be empty")
)

// Fight is the input document for a single encounter replay: the actors that
// appear in it and the chronological event stream.
type Fight struct {
	ID          int         `json:"id" jsonschema:"description=Fight id inside the report"`
	EncounterID int         `json:"encounterId,omitempty" jsonschema:"description=Boss encounter id; zero for trash"`
	Actors      []Actor     `json:"actors"`
	Combatants  []Combatant `json:"combatants,omitempty"`
	Events      []Event     `json:"events"`
}

// Combatant is a player's snapshot at the pull: talent ranks keyed by talent
// spell id and the auras already active before the first event.
type Combatant struct {
	ActorID int         `json:"actorId"`
	Talents map[int]int `json:"talents,omitempty"`
	Auras   []int       `json:"auras,omitempty"`
}

// Roster indexes the fight's actors by id.
func (f Fight) Roster() Roster {
	roster := make(Roster, len(f.Actors))
	for _, actor := range f.Actors {
		roster[actor.ID] = actor
	}
	return roster
}

// Validate checks the shape guarantees the threat engine relies on.
func (f Fight) Validate() error {
	var last int64
	for i, event := range f.Events {
		if event.Type == "" {
			return fmt.Errorf("event %d: %w", i, errMissingType)
		}
		if i > 0 && event.Timestamp < last {
			return fmt.Errorf("event %d at %d after %d: %w", i, event.Timestamp, last, errUnorderedEvents)
		}
		last = event.Timestamp
	}
	return nil
}

// DecodeFight reads and validates a fight document.
func DecodeFight(r io.Reader) (Fight, error) {
	var fight Fight
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&fight); err != nil {
		return Fight{}, fmt.Errorf("decode fight: %w", err)
	}
	if err := fight.Validate(); err != nil {
		return Fight{}, fmt.Errorf("validate fight: %w", err)
	}
	return fight, nil
}
