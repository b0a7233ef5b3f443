package highlight

import (
	"encoding/json"
	"testing"
	"time"

	"gqlscope/internal/explorer"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(t *testing.T, data string) *explorer.Tree {
	t.Helper()
	doc, err := explorer.Parse(`{ todos { id content } user { name } }`)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &m))
	tree, err := explorer.Build(doc, explorer.Input{Data: m})
	require.NoError(t, err)
	return tree
}

func TestStateMachine(t *testing.T) {
	mock := clock.NewMock()
	h := New(WithClock(mock), WithWindow(time.Second))

	h.Mount("a")
	state, ok := h.State("a")
	require.True(t, ok)
	assert.Equal(t, NotReady, state)

	// no flash before the first layout pass
	assert.False(t, h.Change("a"))
	assert.False(t, h.Active("a"))

	h.LayoutPass("a")
	state, _ = h.State("a")
	assert.Equal(t, Ready, state)

	assert.True(t, h.Change("a"))
	state, _ = h.State("a")
	assert.Equal(t, Running, state)
	assert.True(t, h.Active("a"))

	h.AnimationEnd("a")
	state, _ = h.State("a")
	assert.Equal(t, Ready, state)
	assert.False(t, h.Active("a"))
}

func TestChangeWhileRunningRestartsWindow(t *testing.T) {
	mock := clock.NewMock()
	h := New(WithClock(mock), WithWindow(time.Second))
	h.Mount("a")
	h.LayoutPass("a")

	h.Change("a")
	mock.Add(800 * time.Millisecond)
	h.Change("a")
	mock.Add(800 * time.Millisecond)

	assert.Empty(t, h.Expire())
	assert.True(t, h.Active("a"))

	mock.Add(200 * time.Millisecond)
	assert.Equal(t, []string{"a"}, h.Expire())
	state, _ := h.State("a")
	assert.Equal(t, Ready, state)
}

func TestSyncSuppressesInitialFlash(t *testing.T) {
	h := New(WithClock(clock.NewMock()))

	changed := h.Sync(snapshot(t, `{"todos": {"id": 1, "content": "x"}, "user": {"name": "a"}}`))
	assert.Empty(t, changed)
	assert.Equal(t, 5, h.Len())
	for _, id := range []string{"todos", "todos.id", "todos.content", "user", "user.name"} {
		state, ok := h.State(id)
		require.True(t, ok, id)
		assert.Equal(t, Ready, state, id)
	}
}

func TestSyncFlagsChangedSubtrees(t *testing.T) {
	h := New(WithClock(clock.NewMock()))
	h.Sync(snapshot(t, `{"todos": {"id": 1, "content": "x"}, "user": {"name": "a"}}`))

	changed := h.Sync(snapshot(t, `{"todos": {"id": 1, "content": "y"}, "user": {"name": "a"}}`))
	assert.ElementsMatch(t, []string{"todos", "todos.content"}, changed)
	assert.True(t, h.Active("todos"))
	assert.False(t, h.Active("user"))

	// identical snapshot: nothing new flashes
	assert.Empty(t, h.Sync(snapshot(t, `{"todos": {"id": 1, "content": "y"}, "user": {"name": "a"}}`)))
}

func TestSyncDiscardsRemovedIDs(t *testing.T) {
	h := New(WithClock(clock.NewMock()))
	h.Sync(snapshot(t, `{"todos": {"id": 1, "content": "x"}, "user": {"name": "a"}}`))
	h.Sync(snapshot(t, `{"todos": {"id": 1, "content": "x"}}`))

	_, ok := h.State("user")
	assert.False(t, ok)
	_, ok = h.State("user.name")
	assert.False(t, ok)
	assert.Equal(t, 3, h.Len())

	// a returning id is mounted fresh and does not flash
	assert.Empty(t, h.Sync(snapshot(t, `{"todos": {"id": 1, "content": "x"}, "user": {"name": "b"}}`)))
}

func TestFingerprintIgnoresMapOrder(t *testing.T) {
	a := explorer.Scalar{Value: map[string]any{"a": 1, "b": 2}}
	b := explorer.Scalar{Value: map[string]any{"b": 2, "a": 1}}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(explorer.Scalar{Value: "x"}))
}
