// Package view renders panel state (timeline lanes, explorer tree, detail
// blocks) to a terminal, handling color, width and paging.
package view

import (
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"gqlscope/internal/explorer"
	"gqlscope/internal/highlight"
	"gqlscope/internal/session"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Options defines the output parameters shared by every view.
type Options struct {
	// Width overrides terminal width detection when positive.
	Width        int
	ForceColor   bool
	ForceNoColor bool
	// Pager is the pager command; empty falls back to $PAGER, then less.
	Pager   string
	NoPager bool
	Out     io.Writer
	OutFile *os.File
}

func (opts Options) out() io.Writer {
	if opts.Out == nil {
		return os.Stdout
	}
	return opts.Out
}

// Timeline renders the panel's visible rows. The panel must already be sized
// with LaneWidth(Width(opts)) so marker positions map to columns.
func Timeline(p *session.Panel, opts Options) error {
	useColor := resolveColorChoice(opts)
	lines := renderTimeline(p, int(p.Scale().Width), useColor)
	return emit(opts, lines, useColor)
}

// Explorer renders a tree, flagging nodes the highlighter reports as active.
// h may be nil.
func Explorer(tree *explorer.Tree, h *highlight.Highlighter, opts Options) error {
	if tree == nil {
		return nil
	}
	useColor := resolveColorChoice(opts)
	lines := renderTree(tree, h, Width(opts), useColor)
	return emit(opts, lines, useColor)
}

// Block writes pre-rendered lines, such as a detail view, clipped to width.
func Block(lines []string, opts Options) error {
	width := Width(opts)
	clipped := make([]string, 0, len(lines))
	for _, line := range lines {
		clipped = append(clipped, wrapText(line, width)...)
	}
	return emit(opts, clipped, resolveColorChoice(opts))
}

// Width returns the output width: the explicit override, the terminal size,
// $COLUMNS, or 80.
func Width(opts Options) int {
	return determineWidth(opts.OutFile, opts.Width)
}

// Tail returns the last n values of seq in order. n <= 0 keeps everything.
func Tail[T any](seq iter.Seq[T], n int) []T {
	if n <= 0 {
		var all []T
		for v := range seq {
			all = append(all, v)
		}
		return all
	}
	r := newRing[T](n)
	for v := range seq {
		r.push(v)
	}
	return r.slice()
}

func emit(opts Options, lines []string, colorEnabled bool) error {
	if len(lines) == 0 {
		return nil
	}
	if !opts.NoPager && opts.OutFile != nil && isatty.IsTerminal(opts.OutFile.Fd()) {
		if _, height, err := term.GetSize(int(opts.OutFile.Fd())); err == nil && len(lines) >= height {
			return pipeThroughPager(opts.Pager, lines, colorEnabled)
		}
	}
	return writeLines(opts.out(), lines)
}

type ring[T any] struct {
	data   []T
	start  int
	length int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		return &ring[T]{}
	}
	return &ring[T]{data: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if len(r.data) == 0 {
		return
	}
	idx := (r.start + r.length) % len(r.data)
	r.data[idx] = v
	if r.length < len(r.data) {
		r.length++
		return
	}
	r.start = (r.start + 1) % len(r.data)
}

func (r *ring[T]) slice() []T {
	if r.length == 0 {
		return nil
	}
	result := make([]T, r.length)
	for i := range r.length {
		result[i] = r.data[(r.start+i)%len(r.data)]
	}
	return result
}

func determineWidth(out *os.File, wrap int) int {
	if wrap > 0 {
		return wrap
	}
	if out != nil {
		if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 0 {
			return w
		}
	}
	if colsStr := os.Getenv("COLUMNS"); colsStr != "" {
		if v, err := strconv.Atoi(colsStr); err == nil && v > 0 {
			return v
		}
	}
	return 80
}

func pipeThroughPager(pagerCmd string, lines []string, colorEnabled bool) error {
	text := strings.Join(lines, "\n")
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	if pagerCmd == "" {
		pagerCmd = os.Getenv("PAGER")
	}
	var cmd *exec.Cmd
	if pagerCmd == "" {
		args := []string{"less"}
		if colorEnabled {
			args = append(args, "-R")
		}
		cmd = exec.Command(args[0], args[1:]...) // #nosec G204
	} else {
		cmd = exec.Command("sh", "-c", pagerCmd) // #nosec G204
	}

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create pager pipe: %w", err)
	}
	go func() {
		defer stdin.Close()
		io.WriteString(stdin, text) //nolint:errcheck
	}()

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run pager: %w", err)
	}

	return nil
}

func writeLines(out io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

const (
	ansiReset     = "\x1b[0m"
	ansiBoldWhite = "\x1b[1;97m"
	ansiTimestamp = "\x1b[38;5;245m"
	ansiSeparator = "\x1b[38;5;240m"
	ansiExecution = "\x1b[38;5;44m"
	ansiUpdate    = "\x1b[38;5;220m"
	ansiCache     = "\x1b[38;5;78m"
	ansiError     = "\x1b[38;5;203m"
	ansiTeardown  = "\x1b[38;5;207m"
	ansiHighlight = "\x1b[1;30;103m"
)

func colorize(enabled bool, code string, text string) string {
	if !enabled {
		return text
	}
	return code + text + ansiReset
}

func resolveColorChoice(opts Options) bool {
	if opts.ForceColor {
		return true
	}
	if opts.ForceNoColor {
		return false
	}
	return shouldUseColorAuto(opts.out())
}

func shouldUseColorAuto(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
