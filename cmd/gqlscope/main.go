package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gqlscope/internal/config"
	"gqlscope/internal/explorer"
	"gqlscope/internal/filter"
	"gqlscope/internal/format"
	"gqlscope/internal/logging"
	"gqlscope/internal/model"
	"gqlscope/internal/parser"
	"gqlscope/internal/session"
	"gqlscope/internal/store"
	"gqlscope/internal/view"

	"github.com/spf13/cobra"
)

// app carries what every command needs once the root has loaded config.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "gqlscope",
		Short:         "Inspect GraphQL client debug event streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			a.cfg = cfg
			a.logger = logging.NewLogger(cfg.Env, cfg.LogLevel, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, or error (default from GQLSCOPE_LOG_LEVEL)")

	root.AddCommand(newTimelineCmd(a))
	root.AddCommand(newEventsCmd(a))
	root.AddCommand(newExploreCmd(a))
	root.AddCommand(newInfoCmd(a))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gqlscope: %v\n", err)
		os.Exit(1)
	}
}

// replay is one stream loaded into a panel.
type replay struct {
	panel    *session.Panel
	accepted []model.Event
	late     int
	stats    parser.Stats
}

// loadStream replays path into a new panel. The panel's "now" is pinned to
// the latest event unless now is positive.
func (a *app) loadStream(path string, width int, now int64) (*replay, error) {
	var latest int64
	clockNow := func() int64 {
		if now > 0 {
			return now
		}
		return latest
	}
	r := &replay{
		panel: session.New(session.Options{
			Width:           float64(width),
			AnchorRatio:     a.cfg.AnchorRatio,
			HighlightWindow: a.cfg.HighlightWindow,
			Logger:          a.logger,
			Now:             clockNow,
		}),
	}

	stats, err := parser.IterateFile(path, func(event model.Event) error {
		latest = max(latest, event.Timestamp)
		switch r.panel.Ingest(event) {
		case store.Accepted:
			r.accepted = append(r.accepted, event)
		case store.DroppedAfterTeardown:
			r.late++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.stats = stats
	a.logger.Info("stream loaded",
		"path", path,
		"lines", stats.Lines,
		"events", stats.Events,
		"dropped", stats.Dropped,
		"late", r.late,
	)
	return r, nil
}

func warnDropped(w io.Writer, r *replay) {
	if r.stats.Dropped > 0 {
		fmt.Fprintf(w, "warning: skipped %d malformed line(s)\n", r.stats.Dropped)
	}
	if r.late > 0 {
		fmt.Fprintf(w, "warning: dropped %d event(s) received after teardown\n", r.late)
	}
}

type outputFlags struct {
	width        int
	forceColor   bool
	forceNoColor bool
	noPager      bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVar(&o.width, "width", 0, "output width in columns (default: terminal width, GQLSCOPE_WIDTH, or $COLUMNS)")
	flags.BoolVar(&o.forceColor, "color", false, "force-enable ANSI colors even when stdout is not a TTY")
	flags.BoolVar(&o.forceNoColor, "no-color", false, "disable ANSI colors regardless of terminal detection")
	flags.BoolVar(&o.noPager, "no-pager", false, "never pipe output through a pager")
}

func (o *outputFlags) options(cmd *cobra.Command, cfg config.Config) (view.Options, error) {
	if o.forceColor && o.forceNoColor {
		return view.Options{}, errors.New("--color and --no-color cannot be used together")
	}
	width := o.width
	if width <= 0 {
		width = cfg.Width
	}
	out := cmd.OutOrStdout()
	outFile, _ := out.(*os.File)
	return view.Options{
		Width:        width,
		ForceColor:   o.forceColor,
		ForceNoColor: o.forceNoColor,
		Pager:        cfg.Pager,
		NoPager:      o.noPager,
		Out:          out,
		OutFile:      outFile,
	}, nil
}

func newTimelineCmd(a *app) *cobra.Command {
	var (
		output      outputFlags
		zoom        int
		jump        string
		selectKey   string
		hideSources []string
		hideTypes   []string
		anchor      float64
		now         int64
	)

	cmd := &cobra.Command{
		Use:   "timeline <stream.jsonl>",
		Short: "Draw one lane per operation with its events on a shared time axis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := output.options(cmd, a.cfg)
			if err != nil {
				return err
			}
			for _, t := range hideTypes {
				if !slices.Contains(model.OperationKinds, model.OperationKind(t)) {
					return fmt.Errorf("unknown operation type %q", t)
				}
			}
			if cmd.Flags().Changed("anchor") {
				if anchor < 0 || anchor > 1 {
					return fmt.Errorf("--anchor must be within [0,1], got %v", anchor)
				}
				a.cfg.AnchorRatio = anchor
			}

			r, err := a.loadStream(args[0], view.LaneWidth(view.Width(opts)), now)
			if err != nil {
				return err
			}
			warnDropped(cmd.ErrOrStderr(), r)

			p := r.panel
			for _, source := range hideSources {
				p.Toggle(filter.DimensionSource, source)
			}
			for _, t := range hideTypes {
				p.Toggle(filter.DimensionGraphQLType, t)
			}
			for ; zoom > 0; zoom-- {
				p.ZoomIn()
			}
			for ; zoom < 0; zoom++ {
				p.ZoomOut()
			}
			if selectKey != "" {
				p.SelectSource(selectKey)
			}
			switch strings.ToLower(jump) {
			case "":
			case "home":
				p.HandleKey("Home")
			case "end":
				p.HandleKey("End")
			default:
				return fmt.Errorf("invalid --jump value: %s", jump)
			}

			return view.Timeline(p, opts)
		},
	}

	output.register(cmd)
	flags := cmd.Flags()
	flags.IntVar(&zoom, "zoom", 0, "zoom steps to apply: positive zooms in, negative zooms out")
	flags.StringVar(&jump, "jump", "", "move the viewport: home (stream start) or end (now)")
	flags.StringVar(&selectKey, "select", "", "select an operation key and jump to its latest execution")
	flags.StringSliceVar(&hideSources, "hide-source", nil, "hide events from the given sources (repeatable)")
	flags.StringSliceVar(&hideTypes, "hide-type", nil, "hide operations of the given types: query, mutation, subscription")
	flags.Float64Var(&anchor, "anchor", 0, "viewport fraction where jump targets land, 0 (left) to 1 (right)")
	flags.Int64Var(&now, "now", 0, "right edge of the time domain in epoch ms (default: latest event)")

	return cmd
}

func newEventsCmd(a *app) *cobra.Command {
	var (
		output     outputFlags
		key        string
		maxEvents  int
		formatFlag string
		noHeader   bool
		detail     bool
	)

	cmd := &cobra.Command{
		Use:   "events <stream.jsonl>",
		Short: "List accepted events in arrival order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.loadStream(args[0], 0, 0)
			if err != nil {
				return err
			}
			warnDropped(cmd.ErrOrStderr(), r)

			events := r.accepted
			if key != "" {
				events = r.panel.Store().Events(key)
			}
			events = view.Tail(slices.Values(events), maxEvents)
			start := r.panel.StartTime()

			if !detail {
				return format.WriteEvents(cmd.OutOrStdout(), events, start, !noHeader, formatFlag)
			}

			opts, err := output.options(cmd, a.cfg)
			if err != nil {
				return err
			}
			width := view.Width(opts)
			var lines []string
			for idx, event := range events {
				if idx > 0 {
					lines = append(lines, "")
				}
				lines = append(lines, format.RenderEventLines(event, start, width)...)
			}
			return view.Block(lines, opts)
		},
	}

	output.register(cmd)
	flags := cmd.Flags()
	flags.StringVar(&key, "key", "", "only show events of this operation key")
	flags.IntVar(&maxEvents, "max", 0, "show only the most recent N events (0 means no limit)")
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit the header row")
	flags.BoolVar(&detail, "detail", false, "print a detail block per event instead of a table")

	return cmd
}

func newExploreCmd(a *app) *cobra.Command {
	var (
		output        outputFlags
		stream        string
		key           string
		queryPath     string
		dataPath      string
		variablesPath string
		cachePath     string
		operationName string
		nodeID        string
		all           bool
	)

	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Render a response as a field tree keyed by stable node IDs",
		Long: "Render a response as a field tree. Either replay an operation from a stream " +
			"(--stream and --key) or combine a query document with a response (--query and --data).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := output.options(cmd, a.cfg)
			if err != nil {
				return err
			}

			var outcomes map[string]explorer.CacheOutcome
			if cachePath != "" {
				raw, err := os.ReadFile(cachePath)
				if err != nil {
					return fmt.Errorf("read cache outcomes: %w", err)
				}
				if outcomes, err = session.ParseOutcomes(raw); err != nil {
					return fmt.Errorf("decode cache outcomes: %w", err)
				}
			}

			var trees []*explorer.Tree
			var panel *session.Panel
			switch {
			case stream != "" && queryPath != "":
				return errors.New("--stream cannot be used with --query")
			case stream != "":
				if key == "" {
					return errors.New("--key is required with --stream")
				}
				r, err := a.loadStream(stream, 0, 0)
				if err != nil {
					return err
				}
				warnDropped(cmd.ErrOrStderr(), r)
				panel = r.panel
				for _, snap := range panel.Explore(key, outcomes) {
					trees = append(trees, snap.Tree)
				}
				if len(trees) == 0 {
					return fmt.Errorf("operation %s has no response data", key)
				}
			case queryPath != "":
				tree, err := buildFromFiles(queryPath, dataPath, variablesPath, operationName, outcomes)
				if err != nil {
					return err
				}
				trees = append(trees, tree)
			default:
				return errors.New("either --stream or --query is required")
			}

			tree := trees[len(trees)-1]
			if nodeID != "" {
				node, ok := tree.Node(nodeID)
				if !ok {
					return fmt.Errorf("node %q not found", nodeID)
				}
				return view.Block(format.RenderNodeLines(node, view.Width(opts)), opts)
			}

			if !all {
				trees = trees[len(trees)-1:]
			}
			for idx, t := range trees {
				if idx > 0 {
					fmt.Fprintln(opts.Out)
				}
				// Highlights only mean something for the latest snapshot.
				if panel != nil && idx == len(trees)-1 {
					err = view.Explorer(t, panel.Highlighter(), opts)
				} else {
					err = view.Explorer(t, nil, opts)
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	output.register(cmd)
	flags := cmd.Flags()
	flags.StringVar(&stream, "stream", "", "JSONL event stream to replay")
	flags.StringVar(&key, "key", "", "operation key to explore (with --stream)")
	flags.StringVar(&queryPath, "query", "", "GraphQL document file")
	flags.StringVar(&dataPath, "data", "", "JSON response file ({\"data\": ...} or a bare data object)")
	flags.StringVar(&variablesPath, "variables", "", "JSON variables file")
	flags.StringVar(&operationName, "operation", "", "operation name, required when the document holds several")
	flags.StringVar(&cachePath, "cache", "", "JSON file mapping node IDs to hit, partial, or miss")
	flags.StringVar(&nodeID, "node", "", "print the detail view of one node ID instead of the tree")
	flags.BoolVar(&all, "all", false, "render every snapshot of the operation, oldest first")

	return cmd
}

func buildFromFiles(queryPath, dataPath, variablesPath, operationName string, outcomes map[string]explorer.CacheOutcome) (*explorer.Tree, error) {
	if dataPath == "" {
		return nil, errors.New("--data is required with --query")
	}
	query, err := os.ReadFile(queryPath)
	if err != nil {
		return nil, fmt.Errorf("read query: %w", err)
	}
	doc, err := explorer.Parse(string(query))
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := readJSON(dataPath, &data); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	if inner, ok := data["data"].(map[string]any); ok {
		data = inner
	}

	var variables map[string]any
	if variablesPath != "" {
		if err := readJSON(variablesPath, &variables); err != nil {
			return nil, fmt.Errorf("read variables: %w", err)
		}
	}

	return explorer.Build(doc, explorer.Input{
		OperationName: operationName,
		Data:          data,
		Variables:     variables,
		Outcomes:      outcomes,
	})
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

type infoPayload struct {
	PanelID    string                    `json:"panel_id"`
	Path       string                    `json:"path"`
	Lines      int                       `json:"lines"`
	Decoded    int                       `json:"decoded"`
	Malformed  int                       `json:"malformed"`
	Accepted   int                       `json:"accepted"`
	Late       int                       `json:"late"`
	Start      int64                     `json:"start"`
	End        int64                     `json:"end"`
	Sources    []string                  `json:"sources"`
	Types      []model.OperationKind     `json:"types"`
	Operations []format.OperationSummary `json:"operations"`
}

func newInfoCmd(a *app) *cobra.Command {
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "info <stream.jsonl>",
		Short: "Show stream statistics and a per-operation summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.loadStream(args[0], 0, 0)
			if err != nil {
				return err
			}
			st := r.panel.Store()
			start, end, _ := st.Bounds()
			filterables := st.Filterables()
			payload := infoPayload{
				PanelID:    r.panel.ID,
				Path:       args[0],
				Lines:      r.stats.Lines,
				Decoded:    r.stats.Events,
				Malformed:  r.stats.Dropped,
				Accepted:   st.Len(),
				Late:       r.late,
				Start:      start,
				End:        end,
				Sources:    filterables.Sources,
				Types:      filterables.Kinds,
				Operations: format.Summarize(st),
			}

			out := cmd.OutOrStdout()
			switch strings.ToLower(formatFlag) {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(payload)
			case "", "text":
				renderInfoText(out, payload)
				fmt.Fprintln(out)
				return format.WriteOperations(out, payload.Operations, true, "table")
			default:
				return fmt.Errorf("unsupported format: %s", formatFlag)
			}
		},
	}

	cmd.Flags().StringVar(&formatFlag, "format", "text", "output format: text or json")
	return cmd
}

func renderInfoText(out io.Writer, payload infoPayload) {
	const labelWidth = 10
	types := make([]string, len(payload.Types))
	for i, t := range payload.Types {
		types[i] = string(t)
	}
	writeKV(out, labelWidth, "Path", payload.Path)
	writeKV(out, labelWidth, "Lines", fmt.Sprintf("%d (%d malformed)", payload.Lines, payload.Malformed))
	writeKV(out, labelWidth, "Events", fmt.Sprintf("%d accepted, %d after teardown", payload.Accepted, payload.Late))
	writeKV(out, labelWidth, "Span", format.FormatOffset(payload.End-payload.Start))
	writeKV(out, labelWidth, "Sources", strings.Join(payload.Sources, ", "))
	writeKV(out, labelWidth, "Types", strings.Join(types, ", "))
}

func writeKV(out io.Writer, width int, label string, value string) {
	fmt.Fprintf(out, "%-*s: %s\n", width, label, value)
}
