// Package model provides the event and operation types shared by the
// timeline and explorer packages.
package model

import (
	"encoding/json"
	"errors"
)

// ErrMalformed is returned when a stream item lacks an operation key or a timestamp.
var ErrMalformed = errors.New("malformed event")

// Kind represents the lifecycle "type" of a debug event.
type Kind string

const (
	KindExecution    Kind = "execution"
	KindCacheHit     Kind = "cache-hit"
	KindCacheMiss    Kind = "cache-miss"
	KindCachePartial Kind = "cache-partial"
	KindUpdate       Kind = "update"
	KindError        Kind = "error"
	KindTeardown     Kind = "teardown"
)

// Kinds lists every known event kind in display order.
var Kinds = []Kind{
	KindExecution,
	KindCacheHit,
	KindCacheMiss,
	KindCachePartial,
	KindUpdate,
	KindError,
	KindTeardown,
}

// ParseKind normalizes the spellings emitted by instrumentation layers.
func ParseKind(raw string) Kind {
	switch raw {
	case "cacheHit", "cache_hit":
		return KindCacheHit
	case "cacheMiss", "cache_miss":
		return KindCacheMiss
	case "cachePartial", "cache_partial":
		return KindCachePartial
	default:
		return Kind(raw)
	}
}

// OperationKind captures the GraphQL operation type of a request.
type OperationKind string

const (
	OperationQuery        OperationKind = "query"
	OperationMutation     OperationKind = "mutation"
	OperationSubscription OperationKind = "subscription"
	OperationTeardown     OperationKind = "teardown"
)

// OperationKinds are the filterable GraphQL operation types.
var OperationKinds = []OperationKind{
	OperationQuery,
	OperationMutation,
	OperationSubscription,
}

// Operation is the logical request an event belongs to.
type Operation struct {
	Key       string         `json:"key"`
	Kind      OperationKind  `json:"kind"`
	Name      string         `json:"operationName,omitempty"`
	Query     string         `json:"query,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Event is a single lifecycle occurrence. Events are immutable once ingested.
type Event struct {
	Timestamp int64           `json:"timestamp"`
	Kind      Kind            `json:"type"`
	Source    string          `json:"source"`
	Message   string          `json:"message,omitempty"`
	Operation Operation       `json:"operation"`
	Payload   json.RawMessage `json:"data,omitempty"`
	Raw       string          `json:"-"`
}

// OperationKey returns the key shared by all events of one request lifecycle.
func (e Event) OperationKey() string { return e.Operation.Key }

// IsTeardown reports whether the event closes its operation.
func (e Event) IsTeardown() bool {
	return e.Kind == KindTeardown || e.Operation.Kind == OperationTeardown
}

// Valid reports whether the event carries the fields the store indexes on.
func (e Event) Valid() bool {
	return e.Operation.Key != "" && e.Timestamp != 0
}

// HasPayload reports whether the event carries response data.
func (e Event) HasPayload() bool {
	return len(e.Payload) > 0 && string(e.Payload) != "null"
}
