package view

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"gqlscope/internal/explorer"
	"gqlscope/internal/format"
	"gqlscope/internal/highlight"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const indentUnit = "  "

type treeRenderer struct {
	h        *highlight.Highlighter
	width    int
	useColor bool
	lines    []string
}

func renderTree(tree *explorer.Tree, h *highlight.Highlighter, width int, useColor bool) []string {
	if width <= 0 {
		width = 80
	}
	r := &treeRenderer{h: h, width: width, useColor: useColor}

	title := cases.Title(language.English).String(tree.Operation)
	if tree.Name != "" {
		title += " " + tree.Name
	}
	r.add(colorize(useColor, ansiBoldWhite, title))
	r.level(tree.Root, 1)
	if len(tree.Root) == 0 {
		r.add(indentUnit + "(no data)")
	}
	return r.lines
}

func (r *treeRenderer) add(line string) {
	r.lines = append(r.lines, truncateToWidth(line, r.width))
}

// level draws one node map. __typename never gets its own line; the parent
// shows it as a badge instead.
func (r *treeRenderer) level(m explorer.NodeMap, depth int) {
	_, fields := explorer.Order(m)
	for _, node := range fields {
		r.node(node, depth)
	}
}

func (r *treeRenderer) node(node *explorer.Node, depth int) {
	indent := strings.Repeat(indentUnit, depth)
	active := r.h != nil && r.h.Active(node.ID)

	label := format.NodeLabel(node)
	if active {
		label = colorize(r.useColor, ansiHighlight, label)
		if !r.useColor {
			label = "*" + label
		}
	}

	line := indent + label
	switch v := node.Value.(type) {
	case explorer.Composite:
		line += typeBadge(v.Children, r.useColor)
	case explorer.List:
		line += " " + format.NodeSummary(node)
	default:
		line += ": " + format.NodeSummary(node)
	}
	if node.CacheOutcome != explorer.OutcomeUndefined {
		line += " " + colorize(r.useColor, ansiCache, "["+string(node.CacheOutcome)+"]")
	}
	r.add(line)

	switch v := node.Value.(type) {
	case explorer.Composite:
		r.level(v.Children, depth+1)
	case explorer.List:
		r.items(v, depth+1)
	}
}

func (r *treeRenderer) items(list explorer.List, depth int) {
	indent := strings.Repeat(indentUnit, depth)
	for i, item := range list.Items {
		switch v := item.(type) {
		case explorer.Composite:
			r.add(fmt.Sprintf("%s[%d]%s", indent, i, typeBadge(v.Children, r.useColor)))
			r.level(v.Children, depth+1)
		case explorer.List:
			r.add(fmt.Sprintf("%s[%d] [%d]", indent, i, len(v.Items)))
			r.items(v, depth+1)
		case explorer.Scalar:
			r.add(fmt.Sprintf("%s[%d]: %s", indent, i, explorer.FormatValue(v.Value)))
		}
	}
}

func typeBadge(children explorer.NodeMap, useColor bool) string {
	typename, _ := explorer.Order(children)
	if typename == nil {
		return ""
	}
	scalar, ok := typename.Value.(explorer.Scalar)
	if !ok {
		return ""
	}
	name, ok := scalar.Value.(string)
	if !ok || name == "" {
		return ""
	}
	return " " + colorize(useColor, ansiTimestamp, "<"+name+">")
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	text = strings.TrimRight(text, " ")
	if text == "" {
		return []string{""}
	}
	var out []string
	var current strings.Builder
	currentWidth := 0

	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if currentWidth+rw > width && current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
			currentWidth = 0
		}
		current.WriteRune(r)
		currentWidth += rw
	}
	if currentWidth > 0 || current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

func truncateToWidth(text string, width int) string {
	if visibleWidth(text) <= width {
		return text
	}
	var colored strings.Builder
	current := 0

	for i := 0; i < len(text); {
		if m := ansiPattern.FindStringIndex(text[i:]); m != nil && m[0] == 0 {
			colored.WriteString(text[i : i+m[1]])
			i += m[1]
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		rw := runewidth.RuneWidth(r)
		if current+rw > width {
			break
		}
		colored.WriteRune(r)
		current += rw
		i += size
	}
	if strings.Contains(colored.String(), "\x1b[") {
		colored.WriteString(ansiReset)
	}
	return colored.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func visibleWidth(text string) int {
	clean := ansiPattern.ReplaceAllString(text, "")
	return runewidth.StringWidth(clean)
}
