// Package ui renders operator-facing output for the CLI: section headers,
// per-node status lines, and stage summaries.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f9fafb"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3b82f6"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

// Printer writes styled output. The zero value is unusable; use New.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to w. Pass nil to write to stdout.
func New(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w}
}

// Title prints the stage banner.
func (p *Printer) Title(text string) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, titleStyle.Render("  "+text))
	fmt.Fprintln(p.w, dimStyle.Render("  "+strings.Repeat("=", 30)))
}

// Section prints a section header within a stage.
func (p *Printer) Section(text string) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, sectionStyle.Render("  "+text))
}

// Step prints a progress line.
func (p *Printer) Step(format string, args ...any) {
	fmt.Fprintf(p.w, "  %s\n", fmt.Sprintf(format, args...))
}

// StatusLine prints a single per-node status line with an indicator.
func (p *Printer) StatusLine(name string, ok bool, extra string) {
	var indicator string
	switch {
	case ok:
		indicator = okStyle.Render("✓")
	case extra != "":
		indicator = warnStyle.Render("◐")
	default:
		indicator = failStyle.Render("○")
	}

	if extra != "" {
		fmt.Fprintf(p.w, "  %s %s %s\n", indicator, name, dimStyle.Render(extra))
	} else {
		fmt.Fprintf(p.w, "  %s %s\n", indicator, name)
	}
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.w, "  %s %s\n", warnStyle.Render("!"), fmt.Sprintf(format, args...))
}

// Fail prints a failure line.
func (p *Printer) Fail(format string, args ...any) {
	fmt.Fprintf(p.w, "  %s %s\n", failStyle.Render("✗"), fmt.Sprintf(format, args...))
}

// Summary prints the closing pass/fail count for a stage.
func (p *Printer) Summary(stage string, passed, failed int) {
	fmt.Fprintln(p.w)
	line := fmt.Sprintf("%s: %d passed, %d failed", stage, passed, failed)
	if failed == 0 {
		fmt.Fprintln(p.w, "  "+okStyle.Render(line))
	} else {
		fmt.Fprintln(p.w, "  "+failStyle.Render(line))
	}
	fmt.Fprintln(p.w)
}
