// Package session holds the view-model for one inspection panel: the event
// store, filter, time scale, selection and explorer highlight state, owned by
// a single caller for the lifetime of the panel.
package session

import (
	"encoding/json"
	"log/slog"
	"time"

	"gqlscope/internal/explorer"
	"gqlscope/internal/filter"
	"gqlscope/internal/highlight"
	"gqlscope/internal/logging"
	"gqlscope/internal/model"
	"gqlscope/internal/parser"
	"gqlscope/internal/store"
	"gqlscope/internal/timescale"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Options configures a Panel.
type Options struct {
	Width           float64
	AnchorRatio     float64
	HighlightWindow time.Duration
	Clock           clock.Clock
	Logger          *slog.Logger
	// Now overrides the clock for the right edge of the time domain, in ms.
	// Replayed streams pin it to the last event so the layout is stable.
	Now func() int64
}

// Marker is one event placed on the timeline.
type Marker struct {
	Event    model.Event
	Position float64
}

// Row is one operation lane of the timeline.
type Row struct {
	Key     string
	Source  model.Operation
	Markers []Marker
}

// Panel is not safe for concurrent use.
type Panel struct {
	ID string

	store       *store.Store
	filter      filter.Filter
	scale       timescale.Scale
	highlighter *highlight.Highlighter
	now         func() int64
	logger      *slog.Logger

	selectedSource string
	selectedEvent  *model.Event
	tree           *explorer.Tree
}

// New creates a panel session.
func New(opts Options) *Panel {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	now := opts.Now
	if now == nil {
		c := opts.Clock
		now = func() int64 { return c.Now().UnixMilli() }
	}

	id := uuid.NewString()
	p := &Panel{
		ID:     id,
		store:  store.New(),
		filter: filter.Default(),
		highlighter: highlight.New(
			highlight.WithClock(opts.Clock),
			highlight.WithWindow(opts.HighlightWindow),
		),
		now:    now,
		logger: opts.Logger.With("panel", id),
	}
	p.scale = timescale.New(timescale.ComputeDomain(nil, now()), opts.Width)
	p.scale.AnchorRatio = opts.AnchorRatio
	return p
}

// Ingest appends one event in delivery order. Dropped events are logged,
// never returned as errors.
func (p *Panel) Ingest(event model.Event) store.Result {
	res := p.store.Append(event)
	if res != store.Accepted {
		p.logger.Debug("event dropped",
			"key", event.OperationKey(),
			"kind", event.Kind,
			"reason", res.String(),
		)
		return res
	}
	p.filter = p.filter.Observe(event.Source)
	p.refreshDomain()
	return res
}

func (p *Panel) refreshDomain() {
	now := p.now()
	start, _, ok := p.store.Bounds()
	if !ok {
		p.scale.SetDomain(timescale.ComputeDomain(nil, now))
		return
	}
	p.scale.SetDomain(timescale.Domain{Start: start - timescale.Padding, End: max(now, start)})
}

// Store exposes the underlying event store for read access.
func (p *Panel) Store() *store.Store { return p.store }

// Filter returns the current filter state.
func (p *Panel) Filter() filter.Filter { return p.filter }

// Scale returns a copy of the current scale.
func (p *Panel) Scale() timescale.Scale { return p.scale }

// StartTime is the timestamp of the earliest event, or now when empty.
func (p *Panel) StartTime() int64 {
	if start, _, ok := p.store.Bounds(); ok {
		return start
	}
	return p.now()
}

// Toggle flips a filter value.
func (p *Panel) Toggle(dim filter.Dimension, value string) {
	p.filter = p.filter.Toggle(dim, value)
}

// Resize sets the viewport width in pixels (or columns).
func (p *Panel) Resize(width float64) {
	p.scale.Width = width
}

// ZoomIn zooms the timeline in one step.
func (p *Panel) ZoomIn() { p.scale.ZoomIn() }

// ZoomOut zooms the timeline out one step.
func (p *Panel) ZoomOut() { p.scale.ZoomOut() }

// SetPosition pans so t lands on the anchor.
func (p *Panel) SetPosition(t int64) { p.scale.SetPosition(t) }

// HandleKey applies the timeline keyboard shortcuts: Home jumps to the
// start, End to the current time. It reports whether the key was handled.
func (p *Panel) HandleKey(key string) bool {
	switch key {
	case "Home":
		p.SetPosition(p.StartTime() - timescale.Padding)
	case "End":
		p.SetPosition(p.now())
	default:
		return false
	}
	return true
}

// Rows returns the visible operation lanes in first-seen order.
func (p *Panel) Rows() []Row {
	var rows []Row
	for _, key := range p.store.EventOrder() {
		source, _ := p.store.SourceOperationFor(key)
		if !p.filter.KindVisible(source.Kind) {
			continue
		}
		row := Row{Key: key, Source: source}
		for event := range p.store.EventsFor(key) {
			if !p.filter.IsVisible(event, source) {
				continue
			}
			row.Markers = append(row.Markers, Marker{
				Event:    event,
				Position: p.scale.Position(event.Timestamp),
			})
		}
		rows = append(rows, row)
	}
	return rows
}

// Ticks returns the axis ticks for the current viewport.
func (p *Panel) Ticks() []timescale.Tick {
	var ticks []timescale.Tick
	for tick := range p.scale.Ticks(p.scale.Width, p.StartTime()) {
		ticks = append(ticks, tick)
	}
	return ticks
}

// SelectSource toggles the selected source operation and jumps the timeline
// to its latest execution. Selecting a source clears the event selection.
func (p *Panel) SelectSource(key string) {
	if p.selectedSource == key {
		p.selectedSource = ""
	} else {
		p.selectedSource = key
		p.selectedEvent = nil
	}
	if latest, ok := p.store.LatestOfKind(key, model.KindExecution); ok {
		p.SetPosition(latest.Timestamp - timescale.Padding)
	}
	p.logger.Debug("source selected", "key", p.selectedSource)
}

// SelectEvent selects a single event and clears the source selection.
func (p *Panel) SelectEvent(event *model.Event) {
	p.selectedEvent = event
	if event != nil {
		p.selectedSource = ""
	}
}

// SelectedSource returns the selected operation key, if any.
func (p *Panel) SelectedSource() (string, bool) {
	return p.selectedSource, p.selectedSource != ""
}

// SelectedEvent returns the selected event, if any.
func (p *Panel) SelectedEvent() (*model.Event, bool) {
	return p.selectedEvent, p.selectedEvent != nil
}

// Snapshot is one explorer build with the node IDs that started flashing.
type Snapshot struct {
	Event   model.Event
	Tree    *explorer.Tree
	Changed []string
}

// Explore builds an explorer tree for each event of key that carries
// response data, syncing the highlighter after each. Events whose payload
// or query cannot be used are skipped.
func (p *Panel) Explore(key string, outcomes map[string]explorer.CacheOutcome) []Snapshot {
	source, ok := p.store.SourceOperationFor(key)
	if !ok {
		return nil
	}

	var snapshots []Snapshot
	for event := range p.store.EventsFor(key) {
		data, ok := parser.ResponseData(event)
		if !ok {
			continue
		}
		op := event.Operation
		if op.Query == "" {
			op = source
		}
		doc, err := explorer.Parse(op.Query)
		if err != nil {
			p.logger.Debug("query not parsed", "key", key, "err", err)
			continue
		}
		tree, err := explorer.Build(doc, explorer.Input{
			OperationName: op.Name,
			Data:          data,
			Variables:     mergeVariables(source.Variables, op.Variables),
			Outcomes:      outcomes,
			RootOutcome:   rootOutcome(event),
		})
		if err != nil {
			p.logger.Debug("explorer build failed", "key", key, "err", err)
			continue
		}
		if bad := explorer.CheckPartial(tree); len(bad) > 0 {
			p.logger.Debug("partial outcome without mixed descendants", "key", key, "ids", bad)
		}

		changed := p.highlighter.Sync(tree)
		p.tree = tree
		snapshots = append(snapshots, Snapshot{Event: event, Tree: tree, Changed: changed})
	}
	return snapshots
}

// Tree returns the most recently built explorer tree.
func (p *Panel) Tree() *explorer.Tree { return p.tree }

// Highlighter exposes the explorer highlight state.
func (p *Panel) Highlighter() *highlight.Highlighter { return p.highlighter }

func mergeVariables(base, override map[string]any) map[string]any {
	if len(override) == 0 {
		return base
	}
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// rootOutcome derives a cache outcome for top-level fields from the event
// kind or the operation context.
func rootOutcome(event model.Event) explorer.CacheOutcome {
	switch event.Kind {
	case model.KindCacheHit:
		return explorer.OutcomeHit
	case model.KindCacheMiss:
		return explorer.OutcomeMiss
	case model.KindCachePartial:
		return explorer.OutcomePartial
	}
	meta, ok := event.Operation.Context["meta"].(map[string]any)
	if !ok {
		return explorer.OutcomeUndefined
	}
	raw, _ := meta["cacheOutcome"].(string)
	return explorer.ParseOutcome(raw)
}

// ParseOutcomes decodes a JSON object of node ID to outcome.
func ParseOutcomes(raw []byte) (map[string]explorer.CacheOutcome, error) {
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	out := make(map[string]explorer.CacheOutcome, len(m))
	for k, v := range m {
		out[k] = explorer.ParseOutcome(v)
	}
	return out, nil
}
