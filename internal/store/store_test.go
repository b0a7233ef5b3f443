package store

import (
	"path/filepath"
	"slices"
	"testing"

	"gqlscope/internal/model"
	"gqlscope/internal/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(key string, kind model.Kind, opKind model.OperationKind, ts int64) model.Event {
	return model.Event{
		Timestamp: ts,
		Kind:      kind,
		Source:    "cacheExchange",
		Operation: model.Operation{Key: key, Kind: opKind},
	}
}

func TestAppendPreservesArrivalOrder(t *testing.T) {
	s := New()
	// Timestamps deliberately out of order; arrival order wins.
	input := []model.Event{
		ev("a", model.KindExecution, model.OperationQuery, 1000),
		ev("a", model.KindCacheMiss, model.OperationQuery, 900),
		ev("a", model.KindUpdate, model.OperationQuery, 1100),
	}
	for _, e := range input {
		require.Equal(t, Accepted, s.Append(e))
	}

	assert.Equal(t, input, s.Events("a"))
}

func TestTeardownScenario(t *testing.T) {
	s := New()
	s.Append(ev("a", model.KindExecution, model.OperationQuery, 1000))
	s.Append(ev("a", model.KindCacheHit, model.OperationQuery, 1050))
	s.Append(ev("a", model.KindTeardown, model.OperationTeardown, 2000))

	assert.Equal(t, []string{"a"}, s.EventOrder())
	assert.Len(t, s.Events("a"), 3)
	assert.True(t, s.Closed("a"))

	before := s.Events("a")
	res := s.Append(ev("a", model.KindExecution, model.OperationQuery, 3000))
	assert.Equal(t, DroppedAfterTeardown, res)
	assert.Equal(t, before, s.Events("a"))
	assert.Equal(t, 3, s.Len())
}

func TestAppendDropsMalformed(t *testing.T) {
	s := New()
	assert.Equal(t, DroppedMalformed, s.Append(ev("", model.KindExecution, model.OperationQuery, 1000)))
	assert.Equal(t, DroppedMalformed, s.Append(ev("a", model.KindExecution, model.OperationQuery, 0)))
	assert.Empty(t, s.EventOrder())

	// a later well-formed event simply creates the group
	assert.Equal(t, Accepted, s.Append(ev("a", model.KindExecution, model.OperationQuery, 1000)))
	assert.Equal(t, []string{"a"}, s.EventOrder())
}

func TestEventOrderUsesFirstSeenKey(t *testing.T) {
	s := New()
	s.Append(ev("b", model.KindExecution, model.OperationQuery, 10))
	s.Append(ev("a", model.KindExecution, model.OperationQuery, 5))
	s.Append(ev("b", model.KindUpdate, model.OperationQuery, 20))
	s.Append(ev("c", model.KindExecution, model.OperationMutation, 30))
	s.Append(ev("a", model.KindUpdate, model.OperationQuery, 40))

	assert.Equal(t, []string{"b", "a", "c"}, s.EventOrder())
}

func TestEventsForIsSnapshot(t *testing.T) {
	s := New()
	s.Append(ev("a", model.KindExecution, model.OperationQuery, 1))
	seq := s.EventsFor("a")

	s.Append(ev("a", model.KindUpdate, model.OperationQuery, 2))

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Len(t, first, 1)
	assert.Equal(t, first, second)
	assert.Len(t, slices.Collect(s.EventsFor("a")), 2)
	assert.Empty(t, slices.Collect(s.EventsFor("missing")))
}

func TestSourceOperationFor(t *testing.T) {
	s := New()
	teardown := ev("a", model.KindTeardown, model.OperationTeardown, 5)
	teardown.Operation.Name = "orphan"
	s.Append(teardown)

	op, ok := s.SourceOperationFor("a")
	require.True(t, ok)
	assert.Equal(t, "orphan", op.Name)
	assert.Equal(t, model.OperationTeardown, op.Kind)

	s.Append(ev("b", model.KindExecution, model.OperationMutation, 1))
	op, ok = s.SourceOperationFor("b")
	require.True(t, ok)
	assert.Equal(t, model.OperationMutation, op.Kind)

	_, ok = s.SourceOperationFor("missing")
	assert.False(t, ok)
}

func TestLatestOfKind(t *testing.T) {
	s := New()
	s.Append(ev("a", model.KindExecution, model.OperationQuery, 1))
	s.Append(ev("a", model.KindUpdate, model.OperationQuery, 2))
	s.Append(ev("a", model.KindExecution, model.OperationQuery, 3))

	latest, ok := s.LatestOfKind("a", model.KindExecution)
	require.True(t, ok)
	assert.Equal(t, int64(3), latest.Timestamp)

	_, ok = s.LatestOfKind("a", model.KindError)
	assert.False(t, ok)
}

func TestStoreFromFixture(t *testing.T) {
	s := New()
	stats, err := parser.IterateFile(filepath.Join("..", "..", "testdata", "streams", "sample.jsonl"), func(e model.Event) error {
		s.Append(e)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Dropped)

	assert.Equal(t, []string{"1", "2", "4"}, s.EventOrder())
	assert.Len(t, s.Events("1"), 5)
	assert.Equal(t, 8, s.Len())

	minTS, maxTS, ok := s.Bounds()
	require.True(t, ok)
	assert.Equal(t, int64(1000), minTS)
	assert.Equal(t, int64(3000), maxTS)

	f := s.Filterables()
	assert.Equal(t, []string{"cacheExchange", "fetchExchange"}, f.Sources)
	assert.Equal(t, []model.OperationKind{model.OperationQuery, model.OperationMutation}, f.Kinds)
}
