package explorer

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ErrNoOperation is returned when a document has no operation to walk.
var ErrNoOperation = errors.New("no operation in query document")

// Parse parses GraphQL source into a query document.
func Parse(query string) (*ast.QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "operation", Input: query})
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	return doc, nil
}

// Input is everything Build walks alongside the query document.
type Input struct {
	OperationName string
	Data          map[string]any
	Variables     map[string]any
	// Outcomes maps node IDs to their cache outcome.
	Outcomes map[string]CacheOutcome
	// RootOutcome applies to top-level fields without an entry in Outcomes.
	RootOutcome CacheOutcome
}

// Tree is the result of one Build.
type Tree struct {
	Operation string
	Name      string
	Root      NodeMap
	Index     map[string]*Node
}

// Node returns the node with the given ID.
func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.Index[id]
	return n, ok
}

// IDs returns every node ID in lexical order.
func (t *Tree) IDs() []string {
	ids := make([]string, 0, len(t.Index))
	for id := range t.Index {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Walk visits nodes depth first in display order until fn returns false.
func (t *Tree) Walk(fn func(node *Node, depth int) bool) {
	walkMap(t.Root, 0, fn)
}

func walkMap(m NodeMap, depth int, fn func(*Node, int) bool) bool {
	typename, fields := Order(m)
	if typename != nil {
		fields = append([]*Node{typename}, fields...)
	}
	for _, node := range fields {
		if !fn(node, depth) {
			return false
		}
		for _, child := range Children(node.Value) {
			if !walkMap(child, depth+1, fn) {
				return false
			}
		}
	}
	return true
}

type builder struct {
	doc   *ast.QueryDocument
	op    *ast.OperationDefinition
	input Input
	index map[string]*Node
}

// Build walks the operation's selection set in lockstep with the response
// data. Selected fields absent from the data are left out of the tree.
func Build(doc *ast.QueryDocument, input Input) (*Tree, error) {
	if doc == nil || len(doc.Operations) == 0 {
		return nil, ErrNoOperation
	}
	// An unnamed lookup only succeeds for single-operation documents.
	op := doc.Operations.ForName(input.OperationName)
	if op == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoOperation, input.OperationName)
	}

	b := &builder{doc: doc, op: op, input: input, index: make(map[string]*Node)}
	root := b.selections(op.SelectionSet, input.Data, "")
	if input.RootOutcome != OutcomeUndefined {
		for _, node := range root {
			if node.CacheOutcome == OutcomeUndefined {
				node.CacheOutcome = input.RootOutcome
			}
		}
	}

	return &Tree{
		Operation: string(op.Operation),
		Name:      op.Name,
		Root:      root,
		Index:     b.index,
	}, nil
}

type collectedField struct {
	key        string
	field      *ast.Field
	selections ast.SelectionSet
}

// collect flattens fragments and merges selections sharing a response key,
// keeping first-seen order.
func (b *builder) collect(set ast.SelectionSet, into []*collectedField, visited map[string]bool) []*collectedField {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *ast.Field:
			if b.skipped(sel.Directives) {
				continue
			}
			key := sel.Alias
			if key == "" {
				key = sel.Name
			}
			idx := slices.IndexFunc(into, func(c *collectedField) bool { return c.key == key })
			if idx >= 0 {
				into[idx].selections = append(slices.Clip(into[idx].selections), sel.SelectionSet...)
				continue
			}
			into = append(into, &collectedField{key: key, field: sel, selections: sel.SelectionSet})
		case *ast.InlineFragment:
			if b.skipped(sel.Directives) {
				continue
			}
			into = b.collect(sel.SelectionSet, into, visited)
		case *ast.FragmentSpread:
			if b.skipped(sel.Directives) || visited[sel.Name] {
				continue
			}
			def := sel.Definition
			if def == nil {
				def = b.doc.Fragments.ForName(sel.Name)
			}
			if def == nil {
				continue
			}
			visited[sel.Name] = true
			into = b.collect(def.SelectionSet, into, visited)
			delete(visited, sel.Name)
		}
	}
	return into
}

func (b *builder) selections(set ast.SelectionSet, data map[string]any, path string) NodeMap {
	nodes := make(NodeMap)
	for _, cf := range b.collect(set, nil, map[string]bool{}) {
		raw, ok := data[cf.key]
		if !ok {
			continue
		}
		id := joinPath(path, cf.key)
		node := &Node{
			ID:           id,
			Key:          cf.key,
			Name:         cf.field.Name,
			Args:         b.arguments(cf.field.Arguments),
			CacheOutcome: b.input.Outcomes[id],
		}
		node.Value = b.value(raw, cf.selections, id)
		nodes[cf.key] = node
		b.index[id] = node
	}
	return nodes
}

func (b *builder) value(raw any, set ast.SelectionSet, path string) FieldValue {
	if len(set) == 0 {
		return Scalar{Value: raw}
	}
	switch v := raw.(type) {
	case map[string]any:
		return Composite{Children: b.selections(set, v, path)}
	case []any:
		items := make([]FieldValue, len(v))
		for i, item := range v {
			items[i] = b.value(item, set, joinPath(path, strconv.Itoa(i)))
		}
		return List{Items: items}
	default:
		return Scalar{Value: raw}
	}
}

func (b *builder) arguments(args ast.ArgumentList) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args))
	for _, arg := range args {
		out[arg.Name] = b.literal(arg.Value)
	}
	return out
}

// literal resolves an argument value. Variables missing from the operation's
// variables and without a default resolve to Undefined.
func (b *builder) literal(v *ast.Value) any {
	if v == nil {
		return Undefined
	}
	switch v.Kind {
	case ast.Variable:
		if val, ok := b.input.Variables[v.Raw]; ok {
			return val
		}
		if def := b.op.VariableDefinitions.ForName(v.Raw); def != nil && def.DefaultValue != nil {
			return b.literal(def.DefaultValue)
		}
		return Undefined
	case ast.IntValue:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return n
		}
		return v.Raw
	case ast.FloatValue:
		if f, err := strconv.ParseFloat(v.Raw, 64); err == nil {
			return f
		}
		return v.Raw
	case ast.BooleanValue:
		return v.Raw == "true"
	case ast.NullValue:
		return nil
	case ast.ListValue:
		items := make([]any, len(v.Children))
		for i, child := range v.Children {
			items[i] = b.literal(child.Value)
		}
		return items
	case ast.ObjectValue:
		obj := make(map[string]any, len(v.Children))
		for _, child := range v.Children {
			obj[child.Name] = b.literal(child.Value)
		}
		return obj
	default:
		return v.Raw
	}
}

func (b *builder) skipped(directives ast.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil && b.condition(d) {
		return true
	}
	if d := directives.ForName("include"); d != nil && !b.condition(d) {
		return true
	}
	return false
}

func (b *builder) condition(d *ast.Directive) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	val, ok := b.literal(arg.Value).(bool)
	return ok && val
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// CheckPartial lists partial nodes whose subtree lacks either a cache hit or
// a miss. The annotation source is external, so this is advisory only.
func CheckPartial(t *Tree) []string {
	var offenders []string
	for _, id := range t.IDs() {
		node := t.Index[id]
		if node.CacheOutcome != OutcomePartial {
			continue
		}
		var hit, miss bool
		for _, child := range Children(node.Value) {
			walkMap(child, 0, func(n *Node, _ int) bool {
				switch n.CacheOutcome {
				case OutcomeHit:
					hit = true
				case OutcomeMiss, OutcomeUndefined:
					miss = true
				}
				return !(hit && miss)
			})
		}
		if !hit || !miss {
			offenders = append(offenders, id)
		}
	}
	return offenders
}

// FormatValue renders a literal or scalar for display.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case undefined:
		return v.String()
	case string:
		return strconv.Quote(v)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = FormatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + FormatValue(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}
