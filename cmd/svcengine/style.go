package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/svcengine/internal/doctor"
)

// palette keeps CLI colours in one place. lipgloss drops the colours when
// output is not a terminal.
type palette struct {
	OK     lipgloss.Style
	Error  lipgloss.Style
	Warn   lipgloss.Style
	Header lipgloss.Style
	Dim    lipgloss.Style
}

func newPalette() palette {
	return palette{
		OK:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF00")),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000")),
		Warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

// renderReport is the styled counterpart of doctor.FormatHuman.
func renderReport(p palette, r *doctor.Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString(p.OK.Render("Configuration valid.") + "\n")
		return b.String()
	case r.Valid:
		b.WriteString(p.OK.Render(fmt.Sprintf("Configuration valid (%d warning(s))", len(r.Warnings))) + "\n")
	default:
		b.WriteString(p.Error.Render(fmt.Sprintf("Configuration invalid (%d error(s), %d warning(s))", len(r.Errors), len(r.Warnings))) + "\n")
	}

	for _, e := range r.Errors {
		b.WriteString("  " + p.Error.Render("ERROR") + " " + issueLine(p, e) + "\n")
	}
	for _, w := range r.Warnings {
		b.WriteString("  " + p.Warn.Render("WARN ") + " " + issueLine(p, w) + "\n")
	}
	return b.String()
}

func issueLine(p palette, i doctor.Issue) string {
	line := p.Dim.Render("["+i.Category+"]") + " "
	if i.Field != "" {
		line += i.Field + ": "
	}
	return line + i.Message
}
