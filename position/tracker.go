package position

import (
	"math"
	"sort"
)

// Point is a unit's last observed location in log coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Tracker keeps the most recent coordinates reported for each actor id.
// Positions are absent until the first update; there is no history.
type Tracker struct {
	positions map[int]Point
}

// NewTracker constructs an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{positions: make(map[int]Point)}
}

// Update overwrites the position of actorID.
func (t *Tracker) Update(actorID int, x, y float64) {
	if t.positions == nil {
		t.positions = make(map[int]Point)
	}
	t.positions[actorID] = Point{X: x, Y: y}
}

// Position returns the last known position of actorID.
func (t *Tracker) Position(actorID int) (Point, bool) {
	if t == nil {
		return Point{}, false
	}
	p, ok := t.positions[actorID]
	return p, ok
}

// Distance returns the Euclidean distance between two actors, or false when
// either position is unknown.
func (t *Tracker) Distance(a, b int) (float64, bool) {
	pa, ok := t.Position(a)
	if !ok {
		return 0, false
	}
	pb, ok := t.Position(b)
	if !ok {
		return 0, false
	}
	return distance(pa, pb), true
}

// ActorsInRange lists every other tracked actor within maxDistance of
// actorID, boundary included, in ascending id order.
func (t *Tracker) ActorsInRange(actorID int, maxDistance float64) []int {
	origin, ok := t.Position(actorID)
	if !ok {
		return nil
	}
	var ids []int
	for id, p := range t.positions {
		if id == actorID {
			continue
		}
		if distance(origin, p) <= maxDistance {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Forget drops the position of actorID.
func (t *Tracker) Forget(actorID int) {
	if t == nil {
		return
	}
	delete(t.positions, actorID)
}

// Reset clears every tracked position.
func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.positions = make(map[int]Point)
}

// Len returns the number of tracked actors.
func (t *Tracker) Len() int {
	if t == nil {
		return 0
	}
	return len(t.positions)
}

func distance(a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	// explicit conversions keep the sum from being fused into an FMA
	return math.Sqrt(float64(dx*dx) + float64(dy*dy))
}
