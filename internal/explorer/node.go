// Package explorer turns a GraphQL response plus its query document into a
// tree of field nodes with stable, content-independent identities.
package explorer

import (
	"slices"
	"strings"
)

// CacheOutcome classifies whether a field's value came from cache.
type CacheOutcome string

const (
	OutcomeUndefined CacheOutcome = ""
	OutcomeHit       CacheOutcome = "hit"
	OutcomePartial   CacheOutcome = "partial"
	OutcomeMiss      CacheOutcome = "miss"
)

// ParseOutcome maps "hit", "partial" and "miss"; anything else is undefined.
func ParseOutcome(raw string) CacheOutcome {
	switch CacheOutcome(strings.ToLower(raw)) {
	case OutcomeHit:
		return OutcomeHit
	case OutcomePartial:
		return OutcomePartial
	case OutcomeMiss:
		return OutcomeMiss
	default:
		return OutcomeUndefined
	}
}

// Describe returns the human readable explanation shown in the detail view.
func (o CacheOutcome) Describe() string {
	switch o {
	case OutcomeHit:
		return "This result was served from cache."
	case OutcomePartial:
		return "Some values for this result were served from cache."
	case OutcomeMiss:
		return "This result wasn't served from cache."
	default:
		return ""
	}
}

type undefined struct{}

// Undefined stands in for argument values whose variable could not be resolved.
var Undefined any = undefined{}

func (undefined) String() string { return "unknown" }

func (undefined) MarshalText() ([]byte, error) { return []byte("unknown"), nil }

// FieldValue is the resolved content of a field: a Scalar leaf, a List of
// values for list fields with a selection set, or a Composite object.
type FieldValue interface {
	fieldValue()
}

// Scalar is a leaf value, including null and lists of scalars.
type Scalar struct {
	Value any
}

// List holds the items of a list field that has a selection set.
type List struct {
	Items []FieldValue
}

// Composite holds the selected children of an object field.
type Composite struct {
	Children NodeMap
}

func (Scalar) fieldValue()    {}
func (List) fieldValue()      {}
func (Composite) fieldValue() {}

// Node is one field occurrence in a response.
type Node struct {
	// ID is the dotted response-key path from the root, with list indexes
	// (e.g. "todos.0.id"). It never depends on the value.
	ID           string
	Key          string
	Name         string
	Args         map[string]any
	Value        FieldValue
	CacheOutcome CacheOutcome
}

// HasChildren reports whether the node holds children rather than a value.
func (n *Node) HasChildren() bool {
	switch n.Value.(type) {
	case Composite, List:
		return true
	default:
		return false
	}
}

// Expandable reports whether there is anything to show under the node.
func (n *Node) Expandable() bool {
	switch v := n.Value.(type) {
	case Composite:
		return len(v.Children) > 0
	case List:
		return len(v.Items) > 0
	default:
		return false
	}
}

// IsLeaf reports whether the node holds a scalar value.
func (n *Node) IsLeaf() bool {
	_, ok := n.Value.(Scalar)
	return ok
}

// NodeMap is one level of the tree keyed by response key.
type NodeMap map[string]*Node

// Order splits a level into its __typename node and the remaining fields in
// display order: "id" first, then scalars before composites, then by name.
func Order(m NodeMap) (typename *Node, fields []*Node) {
	for _, node := range m {
		if node.Name == "__typename" {
			typename = node
			continue
		}
		fields = append(fields, node)
	}
	slices.SortFunc(fields, compareFields)
	return typename, fields
}

func compareFields(a, b *Node) int {
	aID, bID := a.Name == "id", b.Name == "id"
	if aID != bID {
		if aID {
			return -1
		}
		return 1
	}
	aKids, bKids := a.HasChildren(), b.HasChildren()
	if aKids != bKids {
		if !aKids {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.Key, b.Key)
}

// Gather converts a value back into plain Go values, the shape shown in the
// detail view.
func Gather(v FieldValue) any {
	switch v := v.(type) {
	case Scalar:
		return v.Value
	case List:
		items := make([]any, len(v.Items))
		for i, item := range v.Items {
			items[i] = Gather(item)
		}
		return items
	case Composite:
		out := make(map[string]any, len(v.Children))
		for key, child := range v.Children {
			out[key] = Gather(child.Value)
		}
		return out
	default:
		return nil
	}
}

// Children returns the node maps nested under v, one per list item for lists.
func Children(v FieldValue) []NodeMap {
	switch v := v.(type) {
	case Composite:
		return []NodeMap{v.Children}
	case List:
		var maps []NodeMap
		for _, item := range v.Items {
			maps = append(maps, Children(item)...)
		}
		return maps
	default:
		return nil
	}
}
