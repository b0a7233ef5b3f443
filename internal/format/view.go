package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"gqlscope/internal/explorer"
	"gqlscope/internal/model"

	"github.com/mattn/go-runewidth"
)

// RenderEventLines returns the detail lines for a selected timeline event.
func RenderEventLines(event model.Event, start int64, wrapWidth int) []string {
	lines := []string{
		fmt.Sprintf("%s %s at %s", KindLabel(event.Kind), event.OperationKey(), FormatOffset(event.Timestamp-start)),
	}
	if event.Operation.Name != "" {
		lines = append(lines, "Operation: "+event.Operation.Name)
	}
	if event.Source != "" {
		lines = append(lines, "Source: "+event.Source)
	}
	if msg := strings.TrimSpace(event.Message); msg != "" {
		lines = append(lines, strings.Split(wrapBody(msg, wrapWidth), "\n")...)
	}
	if len(event.Operation.Variables) > 0 {
		lines = append(lines, "Variables:")
		lines = append(lines, strings.Split(formatJSON(mustJSON(event.Operation.Variables)), "\n")...)
	}
	if event.HasPayload() {
		lines = append(lines, "Data:")
		lines = append(lines, strings.Split(formatJSON(string(event.Payload)), "\n")...)
	}
	return lines
}

// RenderNodeLines returns the detail lines for a selected explorer node: its
// name, cache outcome, arguments and gathered value.
func RenderNodeLines(node *explorer.Node, wrapWidth int) []string {
	if node == nil {
		return nil
	}
	lines := []string{node.Name}
	if desc := node.CacheOutcome.Describe(); desc != "" {
		lines = append(lines, strings.Split(wrapBody(desc, wrapWidth), "\n")...)
	}
	if len(node.Args) > 0 {
		lines = append(lines, "Arguments:")
		lines = append(lines, strings.Split(formatJSON(mustJSON(node.Args)), "\n")...)
	}
	lines = append(lines, "Value:")
	lines = append(lines, strings.Split(formatJSON(mustJSON(explorer.Gather(node.Value))), "\n")...)
	return lines
}

// NodeLabel is the one-line tree label of a node, e.g. `todos(id: 1234)`.
func NodeLabel(node *explorer.Node) string {
	if len(node.Args) == 0 {
		return node.Name
	}
	names := make([]string, 0, len(node.Args))
	for name := range node.Args {
		names = append(names, name)
	}
	slices.Sort(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+explorer.FormatValue(node.Args[name]))
	}
	return fmt.Sprintf("%s(%s)", node.Name, strings.Join(parts, ", "))
}

// NodeSummary is the inline value shown after a node label.
func NodeSummary(node *explorer.Node) string {
	switch v := node.Value.(type) {
	case explorer.Scalar:
		return explorer.FormatValue(v.Value)
	case explorer.List:
		return fmt.Sprintf("[%d]", len(v.Items))
	case explorer.Composite:
		return "{…}"
	default:
		return ""
	}
}

func wrapBody(text string, width int) string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return text
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if runewidth.StringWidth(current)+1+runewidth.StringWidth(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)

	return strings.Join(lines, "\n")
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func formatJSON(raw string) string {
	if raw == "" {
		return raw
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err == nil {
		return buf.String()
	}
	return raw
}
