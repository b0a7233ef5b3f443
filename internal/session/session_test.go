package session

import (
	"path/filepath"
	"testing"
	"time"

	"gqlscope/internal/explorer"
	"gqlscope/internal/filter"
	"gqlscope/internal/model"
	"gqlscope/internal/parser"
	"gqlscope/internal/store"
	"gqlscope/internal/timescale"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replay(t *testing.T) (*Panel, []store.Result) {
	t.Helper()
	p := New(Options{
		Width: 800,
		Clock: clock.NewMock(),
		Now:   func() int64 { return 3000 },
	})
	var results []store.Result
	_, err := parser.IterateFile(filepath.Join("..", "..", "testdata", "streams", "sample.jsonl"), func(event model.Event) error {
		results = append(results, p.Ingest(event))
		return nil
	})
	require.NoError(t, err)
	return p, results
}

func rowKeys(rows []Row) []string {
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.Key)
	}
	return keys
}

func TestReplayFixture(t *testing.T) {
	p, results := replay(t)

	require.Len(t, results, 9)
	assert.Equal(t, store.DroppedAfterTeardown, results[7])
	assert.Equal(t, 8, p.Store().Len())
	assert.Equal(t, []string{"1", "2", "4"}, p.Store().EventOrder())
	assert.Equal(t, timescale.Domain{Start: 900, End: 3000}, p.Scale().Domain)
	assert.Equal(t, int64(1000), p.StartTime())
	assert.Equal(t, []string{"cacheExchange", "fetchExchange"}, p.Filter().Sources())
	assert.NotEmpty(t, p.ID)
}

func TestEmptyPanel(t *testing.T) {
	p := New(Options{Width: 400, Now: func() int64 { return 5000 }})
	assert.Empty(t, p.Rows())
	assert.Equal(t, int64(5000), p.StartTime())
	assert.Equal(t, timescale.Domain{Start: 4900, End: 5000}, p.Scale().Domain)
	assert.Len(t, p.Ticks(), 2)
}

func TestRowsFollowFilter(t *testing.T) {
	p, _ := replay(t)

	rows := p.Rows()
	assert.Equal(t, []string{"1", "2", "4"}, rowKeys(rows))
	assert.Len(t, rows[0].Markers, 5)
	assert.Equal(t, model.OperationTeardown, rows[2].Source.Kind)

	p.Toggle(filter.DimensionGraphQLType, string(model.OperationMutation))
	assert.Equal(t, []string{"1", "4"}, rowKeys(p.Rows()))

	p.Toggle(filter.DimensionSource, "fetchExchange")
	rows = p.Rows()
	require.Len(t, rows, 2)
	assert.Len(t, rows[0].Markers, 4)
	for _, m := range rows[0].Markers {
		assert.Equal(t, "cacheExchange", m.Event.Source)
	}

	// Teardown-only operations go away with queries.
	p.Toggle(filter.DimensionGraphQLType, string(model.OperationQuery))
	assert.Empty(t, p.Rows())
}

func TestMarkersAreOrderedByPosition(t *testing.T) {
	p, _ := replay(t)
	markers := p.Rows()[0].Markers
	for i := 1; i < len(markers); i++ {
		assert.LessOrEqual(t, markers[i-1].Position, markers[i].Position)
	}
	assert.InDelta(t, 0, p.Scale().Position(900), 1e-9)
	assert.InDelta(t, 800, p.Scale().Position(3000), 1e-9)
}

func TestHandleKey(t *testing.T) {
	p, _ := replay(t)
	p.Resize(1000)
	p.ZoomIn()
	p.ZoomIn()

	require.True(t, p.HandleKey("End"))
	assert.InDelta(t, 0, p.Scale().Position(3000), 1e-9)

	require.True(t, p.HandleKey("Home"))
	assert.InDelta(t, 0, p.Scale().Position(900), 1e-9)

	assert.False(t, p.HandleKey("PageUp"))
	assert.Len(t, p.Ticks(), 5)
}

func TestSelectSource(t *testing.T) {
	p, _ := replay(t)
	p.ZoomIn()

	event := p.Store().Events("2")[1]
	p.SelectEvent(&event)
	_, ok := p.SelectedEvent()
	require.True(t, ok)

	p.SelectSource("2")
	key, ok := p.SelectedSource()
	require.True(t, ok)
	assert.Equal(t, "2", key)
	_, ok = p.SelectedEvent()
	assert.False(t, ok)
	assert.InDelta(t, 0, p.Scale().Position(1200-timescale.Padding), 1e-9)

	p.SelectSource("2")
	_, ok = p.SelectedSource()
	assert.False(t, ok)

	p.SelectSource("1")
	p.SelectEvent(&event)
	_, ok = p.SelectedSource()
	assert.False(t, ok)
}

func TestExploreHighlightsChangedNodes(t *testing.T) {
	mock := clock.NewMock()
	p := New(Options{
		Width:           800,
		Clock:           mock,
		HighlightWindow: 500 * time.Millisecond,
		Now:             func() int64 { return 3000 },
	})
	_, err := parser.IterateFile(filepath.Join("..", "..", "testdata", "streams", "sample.jsonl"), func(event model.Event) error {
		p.Ingest(event)
		return nil
	})
	require.NoError(t, err)

	snapshots := p.Explore("1", nil)
	require.Len(t, snapshots, 2)
	assert.Empty(t, snapshots[0].Changed)
	assert.ElementsMatch(t, []string{"todos", "todos.content"}, snapshots[1].Changed)

	tree := p.Tree()
	require.NotNil(t, tree)
	assert.Equal(t, "Todos", tree.Name)
	todos, ok := tree.Node("todos")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": int64(1234)}, todos.Args)
	content, _ := tree.Node("todos.content")
	assert.Equal(t, explorer.Scalar{Value: "y"}, content.Value)

	h := p.Highlighter()
	assert.True(t, h.Active("todos.content"))
	assert.False(t, h.Active("todos.id"))

	mock.Add(time.Second)
	h.Expire()
	assert.False(t, h.Active("todos.content"))
}

func TestExploreUnknownKey(t *testing.T) {
	p, _ := replay(t)
	assert.Nil(t, p.Explore("missing", nil))
	assert.Empty(t, p.Explore("4", nil))
}

func TestRootOutcome(t *testing.T) {
	assert.Equal(t, explorer.OutcomeHit, rootOutcome(model.Event{Kind: model.KindCacheHit}))
	assert.Equal(t, explorer.OutcomePartial, rootOutcome(model.Event{
		Kind: model.KindUpdate,
		Operation: model.Operation{Context: map[string]any{
			"meta": map[string]any{"cacheOutcome": "partial"},
		}},
	}))
	assert.Equal(t, explorer.OutcomeUndefined, rootOutcome(model.Event{Kind: model.KindUpdate}))
}

func TestParseOutcomes(t *testing.T) {
	got, err := ParseOutcomes([]byte(`{"todos":"hit","todos.content":"miss"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]explorer.CacheOutcome{
		"todos":         explorer.OutcomeHit,
		"todos.content": explorer.OutcomeMiss,
	}, got)

	_, err = ParseOutcomes([]byte(`[`))
	assert.Error(t, err)
}
