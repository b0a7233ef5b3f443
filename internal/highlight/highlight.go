// Package highlight tracks which explorer nodes changed between snapshots
// and should flash for a bounded window.
package highlight

import (
	"encoding/json"
	"fmt"
	"time"

	"gqlscope/internal/explorer"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"
)

// DefaultWindow is how long a node stays highlighted after a change.
const DefaultWindow = time.Second

// State is the per-node highlight state.
type State int

const (
	NotReady State = iota
	Ready
	Running
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "NOT_READY"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type entry struct {
	state       State
	fingerprint uint64
	deadline    time.Time
}

// Highlighter holds one state machine per node id:
//
//	NOT_READY --layout pass--> READY --change--> RUNNING --animation end--> READY
//
// A change while RUNNING restarts the window.
type Highlighter struct {
	clock   clock.Clock
	window  time.Duration
	entries map[string]*entry
}

// Option configures a Highlighter.
type Option func(*Highlighter)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(h *Highlighter) { h.clock = c }
}

// WithWindow sets the highlight duration.
func WithWindow(d time.Duration) Option {
	return func(h *Highlighter) {
		if d > 0 {
			h.window = d
		}
	}
}

// New returns an empty highlighter.
func New(opts ...Option) *Highlighter {
	h := &Highlighter{
		clock:   clock.New(),
		window:  DefaultWindow,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Mount registers id in NOT_READY if it is not tracked yet.
func (h *Highlighter) Mount(id string) {
	if _, ok := h.entries[id]; !ok {
		h.entries[id] = &entry{state: NotReady}
	}
}

// LayoutPass moves a freshly mounted id to READY.
func (h *Highlighter) LayoutPass(id string) {
	if e, ok := h.entries[id]; ok && e.state == NotReady {
		e.state = Ready
	}
}

// Change signals that id's value changed. It reports whether the node is now
// flashing; a NOT_READY node never flashes.
func (h *Highlighter) Change(id string) bool {
	e, ok := h.entries[id]
	if !ok || e.state == NotReady {
		return false
	}
	e.state = Running
	e.deadline = h.clock.Now().Add(h.window)
	return true
}

// AnimationEnd returns a RUNNING id to READY.
func (h *Highlighter) AnimationEnd(id string) {
	if e, ok := h.entries[id]; ok && e.state == Running {
		e.state = Ready
		e.deadline = time.Time{}
	}
}

// Expire ends every window that has elapsed and returns the affected ids.
func (h *Highlighter) Expire() []string {
	now := h.clock.Now()
	var ended []string
	for id, e := range h.entries {
		if e.state == Running && !now.Before(e.deadline) {
			e.state = Ready
			e.deadline = time.Time{}
			ended = append(ended, id)
		}
	}
	return ended
}

// Discard forgets id.
func (h *Highlighter) Discard(id string) {
	delete(h.entries, id)
}

// State returns the current state of id.
func (h *Highlighter) State(id string) (State, bool) {
	e, ok := h.entries[id]
	if !ok {
		return NotReady, false
	}
	return e.state, true
}

// Active reports whether id is currently flashing.
func (h *Highlighter) Active(id string) bool {
	e, ok := h.entries[id]
	return ok && e.state == Running && h.clock.Now().Before(e.deadline)
}

// Len returns the number of tracked ids.
func (h *Highlighter) Len() int {
	return len(h.entries)
}

// Sync reconciles the tracked ids with a new snapshot. New ids are mounted
// and laid out without flashing, ids whose value fingerprint changed are
// signalled, and ids missing from the snapshot are discarded. It returns the
// ids that started (or restarted) flashing.
func (h *Highlighter) Sync(tree *explorer.Tree) []string {
	h.Expire()

	var changed []string
	seen := make(map[string]struct{}, len(tree.Index))
	tree.Walk(func(node *explorer.Node, _ int) bool {
		seen[node.ID] = struct{}{}
		sum := Fingerprint(node.Value)

		e, ok := h.entries[node.ID]
		if !ok {
			h.Mount(node.ID)
			h.LayoutPass(node.ID)
			h.entries[node.ID].fingerprint = sum
			return true
		}
		if e.fingerprint != sum {
			e.fingerprint = sum
			if h.Change(node.ID) {
				changed = append(changed, node.ID)
			}
		}
		return true
	})

	for id := range h.entries {
		if _, ok := seen[id]; !ok {
			h.Discard(id)
		}
	}
	return changed
}

// Fingerprint hashes the gathered value of a node. Map keys are encoded in
// sorted order so equal values always hash alike.
func Fingerprint(v explorer.FieldValue) uint64 {
	raw, err := json.Marshal(explorer.Gather(v))
	if err != nil {
		return xxhash.Sum64String(fmt.Sprintf("%#v", v))
	}
	return xxhash.Sum64(raw)
}
