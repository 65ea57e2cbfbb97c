package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/rules"
)

// nameWidth caps the rule name column; longer names are truncated.
const nameWidth = 36

type renderOptions struct {
	Details bool
	Color   bool
}

type styles struct {
	box    lipgloss.Style
	header lipgloss.Style
	pass   lipgloss.Style
	fail   lipgloss.Style
	muted  lipgloss.Style
}

func newStyles(color bool) styles {
	s := styles{
		box:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		header: lipgloss.NewStyle(),
		pass:   lipgloss.NewStyle(),
		fail:   lipgloss.NewStyle(),
		muted:  lipgloss.NewStyle(),
	}
	if !color {
		return s
	}
	s.box = s.box.BorderForeground(lipgloss.Color("240"))
	s.header = s.header.Bold(true)
	s.pass = s.pass.Foreground(lipgloss.Color("42"))
	s.fail = s.fail.Foreground(lipgloss.Color("196")).Bold(true)
	s.muted = s.muted.Foreground(lipgloss.Color("245"))
	return s
}

// renderReport formats a check as a summary box followed by one line per rule.
// Rule names are padded by display width so double-width names line up.
func renderReport(r Report, opts renderOptions) string {
	st := newStyles(opts.Color)
	var b strings.Builder

	title := r.Name
	if title == "" {
		title = r.Program
	}
	verdict := st.pass.Render("SATISFIED")
	if !r.Satisfied {
		verdict = st.fail.Render("NOT SATISFIED")
	}
	summary := fmt.Sprintf("%s\n%d/%d requirements satisfied  %s",
		st.header.Render(title), r.Passed, r.Total, verdict)
	b.WriteString(st.box.Render(summary))
	b.WriteString("\n")

	width := 0
	for _, res := range r.Results {
		if w := runewidth.StringWidth(res.Name); w > width {
			width = w
		}
	}
	width = min(width, nameWidth)

	for _, res := range r.Results {
		mark := st.pass.Render("✓")
		if !res.Satisfied {
			mark = st.fail.Render("✗")
		}
		name := runewidth.FillRight(runewidth.Truncate(res.Name, width, "…"), width)
		fmt.Fprintf(&b, " %s %s  %s\n", mark, name, res.Message)

		if opts.Details && res.Details != nil {
			writeDetails(&b, st, res.Details)
		}
	}

	if len(r.Failed) > 0 {
		fmt.Fprintf(&b, "%s %s\n", st.fail.Render("failed:"), strings.Join(r.Failed, ", "))
	}
	return b.String()
}

func writeDetails(b *strings.Builder, st styles, d *rules.Details) {
	line := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(b, "     %s %s\n", st.muted.Render(label+":"), strings.Join(items, ", "))
	}
	line("counted", courseNames(d.CompletedItems))
	line("not counted", courseNames(d.IncompleteItems))
	line("not offered", d.MissingCourses)
}

// courseNames returns "name (code)" labels in input order.
func courseNames(courses []catalog.CourseRecord) []string {
	out := make([]string, 0, len(courses))
	for _, c := range courses {
		out = append(out, fmt.Sprintf("%s (%s)", c.Name, c.Code))
	}
	return out
}
