// Package parser decodes JSONL debug event streams emitted by an instrumented
// GraphQL client.
package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gqlscope/internal/model"
)

// Stats describes a completed pass over a stream.
type Stats struct {
	Lines   int
	Events  int
	Dropped int
}

type rawOperation struct {
	Key           json.RawMessage `json:"key"`
	Kind          string          `json:"kind"`
	OperationName string          `json:"operationName"`
	Query         json.RawMessage `json:"query"`
	Variables     map[string]any  `json:"variables"`
	Context       map[string]any  `json:"context"`
}

type rawEntry struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Message   string          `json:"message"`
	Operation *rawOperation   `json:"operation"`
	Data      json.RawMessage `json:"data"`
}

// Decode parses a single stream item. Items without a timestamp or operation
// key are reported with model.ErrMalformed.
func Decode(raw []byte) (model.Event, error) {
	var entry rawEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return model.Event{}, fmt.Errorf("unmarshal entry: %w", err)
	}
	if entry.Operation == nil {
		return model.Event{}, fmt.Errorf("%w: missing operation", model.ErrMalformed)
	}

	ts, err := parseTimestamp(entry.Timestamp)
	if err != nil {
		return model.Event{}, err
	}
	key := parseKey(entry.Operation.Key)
	if key == "" {
		return model.Event{}, fmt.Errorf("%w: missing operation key", model.ErrMalformed)
	}

	event := model.Event{
		Timestamp: ts,
		Kind:      model.ParseKind(entry.Type),
		Source:    entry.Source,
		Message:   entry.Message,
		Operation: model.Operation{
			Key:       key,
			Kind:      model.OperationKind(entry.Operation.Kind),
			Name:      entry.Operation.OperationName,
			Query:     parseQuery(entry.Operation.Query),
			Variables: entry.Operation.Variables,
			Context:   entry.Operation.Context,
		},
		Payload: entry.Data,
		Raw:     string(raw),
	}
	if event.Source == "" {
		event.Source = contextSource(entry.Operation.Context)
	}
	return event, nil
}

// Iterate reads stream items from r in arrival order and calls fn for each
// decoded event. Malformed lines are skipped and counted, never fatal.
func Iterate(r io.Reader, fn func(model.Event) error) (Stats, error) {
	var stats Stats
	scanner := newScanner(r)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		event, err := Decode(line)
		if err != nil {
			stats.Dropped++
			continue
		}
		stats.Events++

		if err := fn(event); err != nil {
			return stats, err
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan stream: %w", err)
	}
	return stats, nil
}

// IterateFile opens path and passes it to Iterate.
func IterateFile(path string, fn func(model.Event) error) (Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open stream file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	return Iterate(file, fn)
}

// ReadAll collects every well-formed event in the file.
func ReadAll(path string) ([]model.Event, Stats, error) {
	var events []model.Event
	stats, err := IterateFile(path, func(event model.Event) error {
		events = append(events, event)
		return nil
	})
	return events, stats, err
}

// ResponseData extracts the GraphQL "data" object carried by an event payload.
// Payloads are either the result itself ({"data": ...}), a wrapped result
// ({"value": {"data": ...}}), or a bare data object.
func ResponseData(event model.Event) (map[string]any, bool) {
	if !event.HasPayload() {
		return nil, false
	}
	var payload map[string]any
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, false
	}
	if value, ok := payload["value"].(map[string]any); ok {
		payload = value
	}
	if data, ok := payload["data"]; ok {
		m, ok := data.(map[string]any)
		return m, ok
	}
	return payload, true
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	// Allow large payloads
	const maxCapacity = 8 * 1024 * 1024
	buf := make([]byte, 1024)
	scanner.Buffer(buf, maxCapacity)
	return scanner
}

func parseTimestamp(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("%w: missing timestamp", model.ErrMalformed)
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		if v, err := num.Int64(); err == nil {
			return v, nil
		}
		if f, err := num.Float64(); err == nil {
			return int64(f), nil
		}
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, fmt.Errorf("%w: timestamp %s", model.ErrMalformed, raw)
	}
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return v, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported timestamp %q", model.ErrMalformed, text)
}

func parseKey(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

// parseQuery accepts either GraphQL source text or a {"loc":{"source":{"body":...}}}
// document as serialized by graphql-js.
func parseQuery(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var doc struct {
		Loc struct {
			Source struct {
				Body string `json:"body"`
			} `json:"source"`
		} `json:"loc"`
	}
	if err := json.Unmarshal(raw, &doc); err == nil {
		return strings.TrimSpace(doc.Loc.Source.Body)
	}
	return ""
}

func contextSource(ctx map[string]any) string {
	devtools, ok := ctx["meta"].(map[string]any)
	if !ok {
		devtools, ok = ctx["devtools"].(map[string]any)
	}
	if !ok {
		return ""
	}
	source, _ := devtools["source"].(string)
	return source
}
