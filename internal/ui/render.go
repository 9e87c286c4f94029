package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/two-pack/redmine-importer/internal/importer"
)

// MaxCellWidth bounds how much of a cell is echoed back in tables.
const MaxCellWidth = 40

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", "⏎")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// RenderPreview prints the staged table's header and sample rows, followed
// by the field names the columns can be mapped to.
func RenderPreview(w io.Writer, t Theme, p *importer.Preview) {
	fmt.Fprintf(w, "%s %s\n", t.Category("staged"), t.Accent(p.Filename))
	fmt.Fprintf(w, "%s %s\n", t.Muted("token:"), p.Token)
	fmt.Fprintln(w, t.Separator())
	renderTable(w, t, p.Headers, func(emit func(label string, values []string)) {
		for _, row := range p.Samples {
			emit(fmt.Sprintf("%d", row.Index), row.Values)
		}
	})
	if len(p.Fields) > 0 {
		fmt.Fprintln(w)
		RenderFields(w, t, p.Fields)
	}
}

// RenderFields prints the mappable field vocabulary.
func RenderFields(w io.Writer, t Theme, fields []string) {
	fmt.Fprintln(w, t.Category("fields"))
	for _, f := range fields {
		fmt.Fprintf(w, "  %s\n", f)
	}
}

// RenderResult prints an import summary: counts, affected projects,
// diagnostics in row order, then the failed rows for correction.
func RenderResult(w io.Writer, t Theme, r *importer.Result) {
	fmt.Fprintln(w, t.Category("import result"))
	handled := plural(r.Handled, "issue") + " handled"
	if r.Updated > 0 {
		handled += fmt.Sprintf(" (%d updated)", r.Updated)
	}
	fmt.Fprintf(w, "%s %s\n", t.Pass(IconPass), handled)
	if r.Skipped > 0 {
		fmt.Fprintf(w, "%s %s skipped\n", t.Muted(IconSkip), plural(r.Skipped, "row"))
	}
	if r.Failed > 0 {
		fmt.Fprintf(w, "%s %s failed\n", t.Fail(IconFail), plural(r.Failed, "row"))
	}

	if len(r.Projects) > 0 {
		names := make([]string, 0, len(r.Projects))
		for name := range r.Projects {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(w)
		fmt.Fprintln(w, t.Category("projects"))
		for _, name := range names {
			fmt.Fprintf(w, "  %s %s\n", name, t.Muted(fmt.Sprintf("(%d)", r.Projects[name])))
		}
	}

	if len(r.Messages) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, t.Category("messages"))
		for _, m := range r.Messages {
			msg := t.Warn(m)
			if strings.Contains(m, " failed") {
				msg = t.Fail(m)
			} else if strings.Contains(m, " skipped") {
				msg = t.Muted(m)
			}
			fmt.Fprintf(w, "  %s%s\n", t.Muted(TreeChild), msg)
		}
	}

	if positions := r.FailedPositions(); len(positions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, t.Category("failed rows"))
		renderTable(w, t, r.Headers, func(emit func(label string, values []string)) {
			for _, pos := range positions {
				row := r.FailedRows[pos]
				emit(fmt.Sprintf("%d", row.Index), row.Values)
			}
		})
	}

	if r.Aborted != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s %s\n", t.Fail(IconWarn), t.Fail("aborted:"), r.Aborted)
	}
}

// renderTable prints headers and rows as aligned columns, prefixed by a
// row label column.
func renderTable(w io.Writer, t Theme, headers []string, rows func(emit func(label string, values []string))) {
	type line struct {
		label string
		cells []string
	}
	var lines []line
	rows(func(label string, values []string) {
		cells := make([]string, len(headers))
		for i := range cells {
			if i < len(values) {
				cells[i] = truncate(values[i], MaxCellWidth)
			}
		}
		lines = append(lines, line{label, cells})
	})

	widths := make([]int, len(headers))
	labelWidth := 1
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(truncate(h, MaxCellWidth))
	}
	for _, l := range lines {
		labelWidth = max(labelWidth, len(l.label))
		for i, c := range l.cells {
			widths[i] = max(widths[i], utf8.RuneCountInString(c))
		}
	}

	pad := func(s string, n int) string {
		return s + strings.Repeat(" ", n-utf8.RuneCountInString(s))
	}
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", labelWidth))
	for i, h := range headers {
		b.WriteString("  ")
		b.WriteString(t.Accent(pad(truncate(h, MaxCellWidth), widths[i])))
	}
	fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	for _, l := range lines {
		b.Reset()
		b.WriteString(t.Muted(fmt.Sprintf("%*s", labelWidth, l.label)))
		for i, c := range l.cells {
			b.WriteString("  ")
			b.WriteString(pad(c, widths[i]))
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}
