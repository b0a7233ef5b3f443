package format

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"gqlscope/internal/model"
	"gqlscope/internal/parser"
	"gqlscope/internal/store"
)

func sampleEvents() []model.Event {
	return []model.Event{
		{
			Timestamp: 1000,
			Kind:      model.KindExecution,
			Source:    "cacheExchange",
			Message:   "operation execution",
			Operation: model.Operation{Key: "1", Kind: model.OperationQuery, Name: "Todos"},
		},
		{
			Timestamp: 2250,
			Kind:      model.KindCacheMiss,
			Source:    "cacheExchange",
			Operation: model.Operation{Key: "1", Kind: model.OperationQuery},
		},
	}
}

func TestWriteEventsPlain(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEvents(&buf, sampleEvents(), 1000, true, "plain"); err != nil {
		t.Fatalf("WriteEvents plain returned error: %v", err)
	}

	expected := strings.Join([]string{
		"offset\tkey\tkind\toperation\tname\tsource\tmessage",
		"+0.000s\t1\texecution\tquery\tTodos\tcacheExchange\toperation execution",
		"+1.250s\t1\tcache-miss\tquery\t\tcacheExchange\t",
	}, "\n") + "\n"

	if got := buf.String(); got != expected {
		t.Fatalf("plain output mismatch:\nexpected: %q\nactual:   %q", expected, got)
	}
}

func TestWriteEventsTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEvents(&buf, sampleEvents(), 1000, true, "table"); err != nil {
		t.Fatalf("WriteEvents table returned error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "OFFSET") || !strings.Contains(out, "SOURCE") {
		t.Fatalf("table header missing expected columns:\n%s", out)
	}
	if !strings.Contains(out, "Cache Miss") || !strings.Contains(out, "+1.250s") {
		t.Fatalf("table row missing label or offset:\n%s", out)
	}
	if strings.Index(out, "Execution") > strings.Index(out, "Cache Miss") {
		t.Fatalf("table rows out of order:\n%s", out)
	}
}

func TestWriteEventsTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEvents(&buf, nil, 0, true, ""); err != nil {
		t.Fatalf("WriteEvents returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "(no events)") {
		t.Fatalf("expected placeholder row, got:\n%s", buf.String())
	}
}

func TestWriteEventsInvalidFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEvents(&buf, sampleEvents(), 0, true, "xml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWriteEventsJSONL(t *testing.T) {
	var buf bytes.Buffer
	events := sampleEvents()
	if err := WriteEvents(&buf, events, 0, false, "jsonl"); err != nil {
		t.Fatalf("WriteEvents jsonl returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(events) {
		t.Fatalf("expected %d lines, got %d", len(events), len(lines))
	}
	if !strings.Contains(lines[0], `"type":"execution"`) || !strings.Contains(lines[0], `"operationName":"Todos"`) {
		t.Fatalf("first jsonl line unexpected: %s", lines[0])
	}
}

func TestWriteOperationsFromFixture(t *testing.T) {
	st := store.New()
	_, err := parser.IterateFile(filepath.Join("..", "..", "testdata", "streams", "sample.jsonl"), func(event model.Event) error {
		st.Append(event)
		return nil
	})
	if err != nil {
		t.Fatalf("IterateFile returned error: %v", err)
	}

	items := Summarize(st)
	if len(items) != 3 {
		t.Fatalf("expected 3 operations, got %d", len(items))
	}
	first := items[0]
	if first.Key != "1" || first.Name != "Todos" || first.Events != 5 || !first.Closed {
		t.Fatalf("unexpected first summary: %+v", first)
	}
	if first.Last-first.First != 1500 {
		t.Fatalf("unexpected duration: %+v", first)
	}
	if items[2].Kind != model.OperationTeardown || items[2].Events != 1 {
		t.Fatalf("unexpected teardown-only summary: %+v", items[2])
	}

	var buf bytes.Buffer
	if err := WriteOperations(&buf, items, false, "json"); err != nil {
		t.Fatalf("WriteOperations json returned error: %v", err)
	}
	var decoded []OperationSummary
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json output not decodable: %v", err)
	}
	if len(decoded) != 3 || decoded[1].Kind != model.OperationMutation {
		t.Fatalf("unexpected decoded summaries: %+v", decoded)
	}

	buf.Reset()
	if err := WriteOperations(&buf, items, true, "plain"); err != nil {
		t.Fatalf("WriteOperations plain returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "2\tmutation\tAddTodo\tfetchExchange\t2\t+0.100s\tfalse") {
		t.Fatalf("unexpected plain output:\n%s", buf.String())
	}
}

func TestFormatOffset(t *testing.T) {
	cases := map[int64]string{
		0:     "+0.000s",
		1250:  "+1.250s",
		-100:  "-0.100s",
		61005: "+61.005s",
	}
	for in, want := range cases {
		if got := FormatOffset(in); got != want {
			t.Fatalf("FormatOffset(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestKindLabel(t *testing.T) {
	if got := KindLabel(model.KindCachePartial); got != "Cache Partial" {
		t.Fatalf("KindLabel = %q", got)
	}
	if got := KindLabel(""); got != "Event" {
		t.Fatalf("KindLabel empty = %q", got)
	}
}
