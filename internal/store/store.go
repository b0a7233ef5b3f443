// Package store provides append-only ingestion and indexing of debug events,
// grouped per operation key.
package store

import (
	"iter"
	"slices"

	"gqlscope/internal/model"
)

// Result reports what Append did with an event.
type Result int

const (
	// Accepted means the event was appended to its group.
	Accepted Result = iota
	// DroppedMalformed means the event lacked a key or timestamp.
	DroppedMalformed
	// DroppedAfterTeardown means the group was already torn down.
	DroppedAfterTeardown
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case DroppedMalformed:
		return "dropped: malformed"
	case DroppedAfterTeardown:
		return "dropped: after teardown"
	default:
		return "unknown"
	}
}

type group struct {
	events   []model.Event
	tornDown bool
}

// Filterables lists the values the filter toggles can offer, in first-seen order.
type Filterables struct {
	Sources []string
	Kinds   []model.OperationKind
}

// Store indexes events by operation key in arrival order. It is owned by a
// single caller and is not safe for concurrent use.
type Store struct {
	groups  map[string]*group
	order   []string
	sources []string
	kinds   []model.OperationKind
	count   int
	minTS   int64
	maxTS   int64
}

// New returns an empty store.
func New() *Store {
	return &Store{groups: make(map[string]*group)}
}

// Append inserts event into the group keyed by its operation key. Malformed
// events and events for a torn-down key are dropped, never reported as errors.
func (s *Store) Append(event model.Event) Result {
	if !event.Valid() {
		return DroppedMalformed
	}

	key := event.OperationKey()
	g, ok := s.groups[key]
	if !ok {
		g = &group{}
		s.groups[key] = g
		s.order = append(s.order, key)
	}
	if g.tornDown {
		return DroppedAfterTeardown
	}

	g.events = append(g.events, event)
	if event.IsTeardown() {
		g.tornDown = true
	}

	if s.count == 0 || event.Timestamp < s.minTS {
		s.minTS = event.Timestamp
	}
	if s.count == 0 || event.Timestamp > s.maxTS {
		s.maxTS = event.Timestamp
	}
	s.count++

	s.observe(event)
	return Accepted
}

func (s *Store) observe(event model.Event) {
	if event.Source != "" && !slices.Contains(s.sources, event.Source) {
		s.sources = append(s.sources, event.Source)
	}
	kind := event.Operation.Kind
	if kind != "" && kind != model.OperationTeardown && !slices.Contains(s.kinds, kind) {
		s.kinds = append(s.kinds, kind)
	}
}

// EventsFor returns a snapshot of the events recorded for key, in arrival
// order. The sequence can be ranged over any number of times and does not
// observe appends made after the call.
func (s *Store) EventsFor(key string) iter.Seq[model.Event] {
	var snapshot []model.Event
	if g, ok := s.groups[key]; ok {
		snapshot = g.events[:len(g.events):len(g.events)]
	}
	return func(yield func(model.Event) bool) {
		for _, event := range snapshot {
			if !yield(event) {
				return
			}
		}
	}
}

// Events returns a copy of the events recorded for key.
func (s *Store) Events(key string) []model.Event {
	return slices.Collect(s.EventsFor(key))
}

// SourceOperationFor returns the operation of the earliest event in the group
// that is not a teardown. When the group holds only teardown events (the
// originating execution was never observed) the first event's operation is
// used instead.
func (s *Store) SourceOperationFor(key string) (model.Operation, bool) {
	g, ok := s.groups[key]
	if !ok || len(g.events) == 0 {
		return model.Operation{}, false
	}
	for _, event := range g.events {
		if event.Operation.Kind != model.OperationTeardown {
			return event.Operation, true
		}
	}
	return g.events[0].Operation, true
}

// LatestOfKind returns the most recent event of kind in the group.
func (s *Store) LatestOfKind(key string, kind model.Kind) (model.Event, bool) {
	g, ok := s.groups[key]
	if !ok {
		return model.Event{}, false
	}
	for i := len(g.events) - 1; i >= 0; i-- {
		if g.events[i].Kind == kind {
			return g.events[i], true
		}
	}
	return model.Event{}, false
}

// EventOrder returns operation keys in the order they were first seen.
func (s *Store) EventOrder() []string {
	return slices.Clone(s.order)
}

// Closed reports whether key has received its teardown event.
func (s *Store) Closed(key string) bool {
	g, ok := s.groups[key]
	return ok && g.tornDown
}

// Len returns the number of accepted events.
func (s *Store) Len() int {
	return s.count
}

// Bounds returns the earliest and latest accepted timestamps.
func (s *Store) Bounds() (minTS, maxTS int64, ok bool) {
	if s.count == 0 {
		return 0, 0, false
	}
	return s.minTS, s.maxTS, true
}

// Filterables returns the sources and operation kinds seen so far.
func (s *Store) Filterables() Filterables {
	return Filterables{
		Sources: slices.Clone(s.sources),
		Kinds:   slices.Clone(s.kinds),
	}
}
