// Package report renders result tables as markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gol50/domain/threshold"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown renders the run header and one table row per result row.
func Markdown(table *threshold.ResultTable) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# L50 run %s\n\n", table.RunID)
	fmt.Fprintf(&b, "- **model:** %s\n", table.Model)
	fmt.Fprintf(&b, "- **target:** %s\n", table.Target)
	fmt.Fprintf(&b, "- **threshold (link scale):** %s\n", num(table.Threshold))
	fmt.Fprintf(&b, "- **mode:** %s\n", table.Mode)
	fmt.Fprintf(&b, "- **created:** %s\n\n", table.CreatedAt.Time().Format("2006-01-02 15:04:05 MST"))

	aux := table.AuxiliaryNames()
	header := append(append([]string{}, aux...), table.Target, "converged", "interval", "replicates", "note")
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")

	for _, row := range table.Rows {
		cells := make([]string, 0, len(header))
		for _, name := range aux {
			if v, ok := row.Auxiliary[name]; ok {
				cells = append(cells, num(v))
			} else {
				cells = append(cells, "")
			}
		}
		if !row.OK() {
			cells = append(cells, "", "", "", "", escape(row.Err))
			b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
			continue
		}
		cells = append(cells, num(row.Solve.TargetValue), yesNo(row.Solve.Converged))
		if iv := row.Interval; iv != nil {
			cells = append(cells,
				fmt.Sprintf("[%s, %s] %s %.0f%%", num(iv.Lower), num(iv.Upper), iv.Method, iv.Level*100),
				fmt.Sprintf("%d (%d dropped)", iv.ReplicateCount, iv.Dropped))
		} else {
			cells = append(cells, "", "")
		}
		var notes []string
		if row.Solve.Extrapolated {
			notes = append(notes, "extrapolated")
		}
		if row.Solve.Diagnostic != "" {
			notes = append(notes, escape(row.Solve.Diagnostic))
		}
		if row.Interval != nil {
			notes = append(notes, string(row.Interval.Semantics))
			if row.Interval.Censored > 0 {
				notes = append(notes, fmt.Sprintf("%d censored at bound", row.Interval.Censored))
			}
		}
		cells = append(cells, strings.Join(notes, "; "))
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.Bytes()
}

// HTML renders the markdown report as a complete HTML page.
func HTML(table *threshold.ResultTable) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse(Markdown(table))
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: fmt.Sprintf("L50 run %s", table.RunID),
	})
	return markdown.Render(doc, renderer)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// escape keeps free text from breaking the table
func escape(s string) string {
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}
