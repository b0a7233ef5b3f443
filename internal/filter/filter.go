// Package filter holds the timeline's visibility predicates. A Filter is an
// immutable value: every change returns a new Filter so consumers can compare
// states cheaply.
package filter

import (
	"fmt"
	"slices"

	"gqlscope/internal/model"
)

// Dimension names one of the two filter sets.
type Dimension string

const (
	DimensionSource      Dimension = "source"
	DimensionGraphQLType Dimension = "graphqlType"
)

// ParseDimension accepts the dimension names used by the CLI flags.
func ParseDimension(raw string) (Dimension, error) {
	switch raw {
	case "source", "sources":
		return DimensionSource, nil
	case "graphqlType", "graphql-type", "kind", "type":
		return DimensionGraphQLType, nil
	default:
		return "", fmt.Errorf("unknown filter dimension %q", raw)
	}
}

// Filter is the pair of visible sets. An empty set hides everything in that
// dimension.
type Filter struct {
	sources      []string
	kinds        []model.OperationKind
	knownSources []string
}

// New returns a filter with the given visible sources and operation kinds.
func New(sources []string, kinds []model.OperationKind) Filter {
	return Filter{
		sources:      slices.Clone(sources),
		kinds:        slices.Clone(kinds),
		knownSources: slices.Clone(sources),
	}
}

// Default shows every GraphQL operation kind. Sources are added as they are
// observed.
func Default() Filter {
	return New(nil, model.OperationKinds)
}

// Toggle flips membership of value in the named dimension.
func (f Filter) Toggle(dim Dimension, value string) Filter {
	next := f.clone()
	switch dim {
	case DimensionSource:
		next.sources = toggle(next.sources, value)
		if !slices.Contains(next.knownSources, value) {
			next.knownSources = append(next.knownSources, value)
		}
	case DimensionGraphQLType:
		next.kinds = toggle(next.kinds, model.OperationKind(value))
	}
	return next
}

// Observe registers a source seen on the stream. A source never seen before
// starts visible; a known source keeps whatever toggle state it has.
func (f Filter) Observe(source string) Filter {
	if source == "" || slices.Contains(f.knownSources, source) {
		return f
	}
	next := f.clone()
	next.knownSources = append(next.knownSources, source)
	next.sources = append(next.sources, source)
	return next
}

// IsVisible reports whether event passes both sets. origin is the group's
// source operation; teardown events are filtered by the kind of the execution
// they close, never by their own kind.
func (f Filter) IsVisible(event model.Event, origin model.Operation) bool {
	if !slices.Contains(f.sources, event.Source) {
		return false
	}
	return f.KindVisible(origin.Kind)
}

// KindVisible reports whether rows for an operation kind are shown. Operations
// known only through a teardown are displayed as queries.
func (f Filter) KindVisible(kind model.OperationKind) bool {
	if kind == model.OperationTeardown {
		kind = model.OperationQuery
	}
	return slices.Contains(f.kinds, kind)
}

// Has reports whether value is visible in the named dimension.
func (f Filter) Has(dim Dimension, value string) bool {
	switch dim {
	case DimensionSource:
		return slices.Contains(f.sources, value)
	case DimensionGraphQLType:
		return slices.Contains(f.kinds, model.OperationKind(value))
	default:
		return false
	}
}

// Sources returns the visible sources.
func (f Filter) Sources() []string { return slices.Clone(f.sources) }

// Kinds returns the visible operation kinds.
func (f Filter) Kinds() []model.OperationKind { return slices.Clone(f.kinds) }

// Equal reports whether both filters show the same sets, ignoring order.
func (f Filter) Equal(other Filter) bool {
	return sameSet(f.sources, other.sources) &&
		sameSet(f.kinds, other.kinds) &&
		sameSet(f.knownSources, other.knownSources)
}

func (f Filter) clone() Filter {
	return Filter{
		sources:      slices.Clone(f.sources),
		kinds:        slices.Clone(f.kinds),
		knownSources: slices.Clone(f.knownSources),
	}
}

func toggle[T comparable](set []T, value T) []T {
	if idx := slices.Index(set, value); idx >= 0 {
		return slices.Delete(set, idx, idx+1)
	}
	return append(set, value)
}

func sameSet[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if !slices.Contains(b, v) {
			return false
		}
	}
	return true
}
