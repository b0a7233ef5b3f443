// Package format renders events, operations and explorer nodes as tables and
// text blocks.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gqlscope/internal/model"
	"gqlscope/internal/store"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OperationSummary is one row of the operations table.
type OperationSummary struct {
	Key    string              `json:"key"`
	Kind   model.OperationKind `json:"kind"`
	Name   string              `json:"name,omitempty"`
	Source string              `json:"source,omitempty"`
	Events int                 `json:"events"`
	First  int64               `json:"first"`
	Last   int64               `json:"last"`
	Closed bool                `json:"closed"`
}

// Summarize returns one summary per operation in first-seen order.
func Summarize(st *store.Store) []OperationSummary {
	keys := st.EventOrder()
	out := make([]OperationSummary, 0, len(keys))
	for _, key := range keys {
		events := st.Events(key)
		if len(events) == 0 {
			continue
		}
		op, _ := st.SourceOperationFor(key)
		out = append(out, OperationSummary{
			Key:    key,
			Kind:   op.Kind,
			Name:   op.Name,
			Source: events[0].Source,
			Events: len(events),
			First:  events[0].Timestamp,
			Last:   events[len(events)-1].Timestamp,
			Closed: st.Closed(key),
		})
	}
	return out
}

// WriteEvents writes events to w in the requested format. Offsets in the
// table and plain formats are relative to start.
func WriteEvents(w io.Writer, events []model.Event, start int64, includeHeader bool, format string) error {
	switch strings.ToLower(format) {
	case "", "table":
		return writeEventsTable(w, events, start, includeHeader)
	case "plain":
		return writeEventsPlain(w, events, start, includeHeader)
	case "json":
		return writeJSON(w, events)
	case "jsonl":
		return writeJSONL(w, events)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteOperations writes operation summaries to w in the requested format.
func WriteOperations(w io.Writer, items []OperationSummary, includeHeader bool, format string) error {
	switch strings.ToLower(format) {
	case "", "table":
		return writeOperationsTable(w, items, includeHeader)
	case "plain":
		return writeOperationsPlain(w, items, includeHeader)
	case "json":
		return writeJSON(w, items)
	case "jsonl":
		return writeJSONL(w, items)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeEventsPlain(w io.Writer, events []model.Event, start int64, includeHeader bool) error {
	if includeHeader {
		if _, err := fmt.Fprintln(w, "offset\tkey\tkind\toperation\tname\tsource\tmessage"); err != nil {
			return err
		}
	}
	for _, event := range events {
		line := fmt.Sprintf(
			"%s\t%s\t%s\t%s\t%s\t%s\t%s",
			FormatOffset(event.Timestamp-start),
			event.OperationKey(),
			event.Kind,
			event.Operation.Kind,
			event.Operation.Name,
			event.Source,
			escapeNewlines(event.Message),
		)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeOperationsPlain(w io.Writer, items []OperationSummary, includeHeader bool) error {
	if includeHeader {
		if _, err := fmt.Fprintln(w, "key\tkind\tname\tsource\tevents\tduration\tclosed"); err != nil {
			return err
		}
	}
	for _, item := range items {
		line := fmt.Sprintf(
			"%s\t%s\t%s\t%s\t%d\t%s\t%t",
			item.Key,
			item.Kind,
			item.Name,
			item.Source,
			item.Events,
			FormatOffset(item.Last-item.First),
			item.Closed,
		)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON[T any](w io.Writer, items []T) error {
	if items == nil {
		items = []T{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

func writeJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func escapeNewlines(text string) string {
	return strings.ReplaceAll(text, "\n", "\\n")
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true
	return tw
}

func writeEventsTable(w io.Writer, events []model.Event, start int64, includeHeader bool) error {
	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 6, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 7, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 60},
	})

	if includeHeader {
		tw.AppendHeader(table.Row{"Offset", "Key", "Event", "Operation", "Name", "Source", "Message"})
	}

	for _, event := range events {
		tw.AppendRow(table.Row{
			FormatOffset(event.Timestamp - start),
			event.OperationKey(),
			KindLabel(event.Kind),
			string(event.Operation.Kind),
			orDash(event.Operation.Name),
			orDash(event.Source),
			escapeNewlines(event.Message),
		})
	}

	if len(events) == 0 {
		tw.AppendRow(table.Row{"-", "-", "(no events)", "-", "-", "-", "-"})
	}

	_ = tw.Render()
	return nil
}

func writeOperationsTable(w io.Writer, items []OperationSummary, includeHeader bool) error {
	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 7, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
	})

	if includeHeader {
		tw.AppendHeader(table.Row{"Key", "Kind", "Name", "Source", "Events", "Duration", "Closed"})
	}

	for _, item := range items {
		closed := ""
		if item.Closed {
			closed = "yes"
		}
		tw.AppendRow(table.Row{
			item.Key,
			string(item.Kind),
			orDash(item.Name),
			orDash(item.Source),
			item.Events,
			FormatOffset(item.Last - item.First),
			closed,
		})
	}

	if len(items) == 0 {
		tw.AppendRow(table.Row{"-", "-", "(no operations)", "-", 0, "-", ""})
	}

	_ = tw.Render()
	return nil
}

// FormatOffset renders a millisecond offset as "+1.250s" style text.
func FormatOffset(ms int64) string {
	sign := "+"
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	return fmt.Sprintf("%s%d.%03ds", sign, ms/1000, ms%1000)
}

// KindLabel turns an event kind into a display label, e.g. "Cache Miss".
func KindLabel(kind model.Kind) string {
	if kind == "" {
		return "Event"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(kind), "-", " "))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
