package view

import (
	"fmt"
	"strings"

	"gqlscope/internal/filter"
	"gqlscope/internal/model"
	"gqlscope/internal/session"

	"github.com/mattn/go-runewidth"
)

const (
	labelWidth   = 28
	minLaneWidth = 10
	laneFill     = "·"
)

// LaneWidth returns the columns left for lanes once the row labels are drawn.
func LaneWidth(total int) int {
	return max(minLaneWidth, total-labelWidth-1)
}

// Glyphs maps event kinds to their lane marker.
var Glyphs = map[model.Kind]string{
	model.KindExecution:    "o",
	model.KindCacheHit:     "H",
	model.KindCacheMiss:    "M",
	model.KindCachePartial: "P",
	model.KindUpdate:       "*",
	model.KindError:        "x",
	model.KindTeardown:     "|",
}

func glyph(kind model.Kind) string {
	if g, ok := Glyphs[kind]; ok {
		return g
	}
	return "?"
}

func kindColor(kind model.Kind) string {
	switch kind {
	case model.KindExecution:
		return ansiExecution
	case model.KindUpdate:
		return ansiUpdate
	case model.KindCacheHit, model.KindCacheMiss, model.KindCachePartial:
		return ansiCache
	case model.KindError:
		return ansiError
	case model.KindTeardown:
		return ansiTeardown
	default:
		return ansiSeparator
	}
}

func renderTimeline(p *session.Panel, lane int, useColor bool) []string {
	if lane <= 0 {
		lane = minLaneWidth
	}
	lines := []string{renderFilterLine(p, useColor)}
	lines = append(lines, renderAxis(p, lane, useColor)...)

	rows := p.Rows()
	selected, _ := p.SelectedSource()
	for _, row := range rows {
		lines = append(lines, renderRow(row, lane, row.Key == selected, useColor))
	}
	if len(rows) == 0 {
		lines = append(lines, padLabel("(no operations)"))
	}
	lines = append(lines, renderLegend(useColor))
	return lines
}

func renderFilterLine(p *session.Panel, useColor bool) string {
	f := p.Filter()
	filterables := p.Store().Filterables()

	var b strings.Builder
	b.WriteString(colorize(useColor, ansiBoldWhite, "sources"))
	for _, source := range filterables.Sources {
		b.WriteString(" " + checkbox(f.Has(filter.DimensionSource, source)) + source)
	}
	b.WriteString("  " + colorize(useColor, ansiBoldWhite, "types"))
	for _, kind := range model.OperationKinds {
		b.WriteString(" " + checkbox(f.Has(filter.DimensionGraphQLType, string(kind))) + string(kind))
	}
	return b.String()
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

// renderAxis draws tick labels above a ruler with a mark at every tick.
func renderAxis(p *session.Panel, lane int, useColor bool) []string {
	labels := []rune(strings.Repeat(" ", lane))
	ruler := []rune(strings.Repeat("─", lane))
	nextFree := 0
	for _, tick := range p.Ticks() {
		col, ok := column(tick.Position, lane)
		if !ok {
			continue
		}
		ruler[col] = '┬'
		if col < nextFree || col+len(tick.Label) > lane {
			continue
		}
		copy(labels[col:], []rune(tick.Label))
		nextFree = col + len(tick.Label) + 1
	}
	return []string{
		padLabel("") + colorize(useColor, ansiTimestamp, string(labels)),
		padLabel("") + colorize(useColor, ansiSeparator, string(ruler)),
	}
}

func renderRow(row session.Row, lane int, selected bool, useColor bool) string {
	cells := make([]string, lane)
	for i := range cells {
		cells[i] = colorize(useColor, ansiSeparator, laneFill)
	}
	for _, marker := range row.Markers {
		col, ok := column(marker.Position, lane)
		if !ok {
			continue
		}
		cells[col] = colorize(useColor, kindColor(marker.Event.Kind), glyph(marker.Event.Kind))
	}

	label := rowLabel(row)
	if selected {
		label = "> " + label
	} else {
		label = "  " + label
	}
	label = padLabel(label)
	if selected {
		label = colorize(useColor, ansiBoldWhite, label)
	}
	return label + strings.Join(cells, "")
}

// column maps a scale position to a lane cell. The right edge of the domain
// lands exactly on lane, which is drawn in the last cell.
func column(pos float64, lane int) (int, bool) {
	if pos < 0 || pos > float64(lane) {
		return 0, false
	}
	return min(int(pos), lane-1), true
}

func rowLabel(row session.Row) string {
	kind := row.Source.Kind
	if kind == model.OperationTeardown {
		kind = model.OperationQuery
	}
	label := fmt.Sprintf("#%s %s", row.Key, kind)
	if row.Source.Name != "" {
		label += " " + row.Source.Name
	}
	return label
}

// padLabel clips or pads s to the label column, including its separator.
func padLabel(s string) string {
	s = runewidth.Truncate(s, labelWidth, "…")
	return runewidth.FillRight(s, labelWidth) + " "
}

func renderLegend(useColor bool) string {
	parts := make([]string, 0, len(model.Kinds))
	for _, kind := range model.Kinds {
		parts = append(parts, colorize(useColor, kindColor(kind), glyph(kind))+" "+string(kind))
	}
	return colorize(useColor, ansiTimestamp, "legend:") + " " + strings.Join(parts, "  ")
}
