package parser

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gqlscope/internal/model"
)

func fixturePath(parts ...string) string {
	elems := append([]string{"..", "..", "testdata", "streams"}, parts...)
	return filepath.Join(elems...)
}

func TestDecode(t *testing.T) {
	line := `{"timestamp":1000,"type":"cacheHit","source":"cacheExchange","operation":{"key":42,"kind":"query","query":"{ todos { id } }","variables":{"x":1}},"data":{"value":{"data":{"todos":[]}}}}`

	event, err := Decode([]byte(line))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if event.Timestamp != 1000 {
		t.Fatalf("unexpected timestamp: %d", event.Timestamp)
	}
	if event.Kind != model.KindCacheHit {
		t.Fatalf("unexpected kind: %s", event.Kind)
	}
	if event.OperationKey() != "42" {
		t.Fatalf("numeric key should be stringified, got %q", event.OperationKey())
	}
	if event.Operation.Query != "{ todos { id } }" {
		t.Fatalf("unexpected query: %q", event.Operation.Query)
	}
	if event.Raw != line {
		t.Fatalf("raw line not preserved")
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		`{"type":"execution","operation":{"key":1}}`,
		`{"timestamp":1000,"type":"execution","operation":{"kind":"query"}}`,
		`{"timestamp":1000,"type":"execution"}`,
	}
	for _, line := range cases {
		if _, err := Decode([]byte(line)); !errors.Is(err, model.ErrMalformed) {
			t.Fatalf("expected ErrMalformed for %s, got %v", line, err)
		}
	}
}

func TestDecodeTimestampFormats(t *testing.T) {
	event, err := Decode([]byte(`{"timestamp":"2025-10-01T12:00:00.250Z","type":"update","operation":{"key":"k"}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if event.Timestamp != 1759320000250 {
		t.Fatalf("unexpected timestamp: %d", event.Timestamp)
	}
}

func TestDecodeSourceFromContext(t *testing.T) {
	event, err := Decode([]byte(`{"timestamp":5,"type":"execution","operation":{"key":"k","context":{"meta":{"source":"TodoList"}}}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if event.Source != "TodoList" {
		t.Fatalf("expected source from context, got %q", event.Source)
	}
}

func TestIterateFile(t *testing.T) {
	var keys []string
	stats, err := IterateFile(fixturePath("sample.jsonl"), func(event model.Event) error {
		keys = append(keys, event.OperationKey())
		return nil
	})
	if err != nil {
		t.Fatalf("IterateFile returned error: %v", err)
	}
	if stats.Lines != 11 || stats.Events != 9 || stats.Dropped != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got := strings.Join(keys, ","); got != "1,1,2,2,1,1,1,1,4" {
		t.Fatalf("arrival order not preserved: %s", got)
	}
}

func TestIterateStopsOnError(t *testing.T) {
	stop := errors.New("stop")
	count := 0
	_, err := IterateFile(fixturePath("sample.jsonl"), func(model.Event) error {
		count++
		return stop
	})
	if !errors.Is(err, stop) || count != 1 {
		t.Fatalf("expected iteration to stop after first event, err=%v count=%d", err, count)
	}
}

func TestResponseData(t *testing.T) {
	wrapped := model.Event{Payload: []byte(`{"value":{"data":{"a":1}}}`)}
	data, ok := ResponseData(wrapped)
	if !ok || data["a"] != float64(1) {
		t.Fatalf("wrapped payload not unwrapped: %v", data)
	}

	direct := model.Event{Payload: []byte(`{"data":{"b":2}}`)}
	data, ok = ResponseData(direct)
	if !ok || data["b"] != float64(2) {
		t.Fatalf("direct payload not unwrapped: %v", data)
	}

	if _, ok := ResponseData(model.Event{}); ok {
		t.Fatalf("empty payload should not yield data")
	}
}
