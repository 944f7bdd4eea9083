package latex

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Token patterns run over already-escaped text. Escaping never produces
// '[', ']' or ':', so the token delimiters survive it untouched.
var (
	figurePattern   = regexp.MustCompile(`\[FIGURE:([^:\]]*):([^\]\s]+)\]`)
	tablePattern    = regexp.MustCompile(`\[TABLE:([^:\]]*):([^\]]*)\]`)
	citationPattern = regexp.MustCompile(`\[CITE:([^\]]+)\]`)
)

// escapedDollarAfterBackslash is what Escape produces for a raw `\$`.
const escapedDollarAfterBackslash = `\textbackslash{}\$`

// FigureWidth is the image width used for expanded figures.
const FigureWidth = `0.8\textwidth`

// Expand replaces rich-markup tokens in escaped text with LaTeX blocks:
//
//	[FIGURE:caption:url]  -> figure with a centered \includegraphics
//	[TABLE:caption:rows]  -> table float with a tabular grid
//	[CITE:key]            -> \cite{key}
//
// Bracket text that matches none of the patterns is left as is.
func Expand(escaped string) string {
	out := figurePattern.ReplaceAllStringFunc(escaped, func(m string) string {
		g := figurePattern.FindStringSubmatch(m)
		return figureBlock(g[1], Unescape(g[2]))
	})
	out = tablePattern.ReplaceAllStringFunc(out, func(m string) string {
		g := tablePattern.FindStringSubmatch(m)
		return tableBlock(g[1], parseRows(g[2]))
	})
	out = citationPattern.ReplaceAllStringFunc(out, func(m string) string {
		g := citationPattern.FindStringSubmatch(m)
		return `\cite{` + Unescape(g[1]) + `}`
	})
	return revertEscapedDollar(out)
}

// revertEscapedDollar turns the escaped form of a raw `\$` back into a
// literal dollar sign. Authors who already wrote `\$` expect a dollar, and
// the escaped form would print a stray backslash.
// TODO: fold this into Escape as a tokenizing rule so `\$` is recognized
// before backslashes are escaped.
func revertEscapedDollar(s string) string {
	return strings.ReplaceAll(s, escapedDollarAfterBackslash, `\$`)
}

func figureBlock(caption, url string) string {
	var b strings.Builder
	b.WriteString("\n\\begin{figure}[htbp]\n")
	b.WriteString("\\centering\n")
	fmt.Fprintf(&b, "\\includegraphics[width=%s]{%s}\n", FigureWidth, url)
	fmt.Fprintf(&b, "\\caption{%s}\n", strings.TrimSpace(caption))
	b.WriteString("\\end{figure}\n")
	return b.String()
}

func tableBlock(caption string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("\n\\begin{table}[htbp]\n")
	b.WriteString("\\centering\n")
	fmt.Fprintf(&b, "\\caption{%s}\n", strings.TrimSpace(caption))
	if len(rows) > 0 {
		cols := len(rows[0])
		fmt.Fprintf(&b, "\\begin{tabular}{|%s}\n", strings.Repeat("l|", cols))
		b.WriteString("\\hline\n")
		for _, row := range rows {
			b.WriteString(strings.Join(row, " & "))
			b.WriteString(" \\\\\n\\hline\n")
		}
		b.WriteString("\\end{tabular}\n")
	}
	b.WriteString("\\end{table}\n")
	return b.String()
}

// parseRows reads html-like row markup (<tr>, <td>, <th>) into trimmed cells.
// Text is taken from the raw token bytes so escape sequences such as `\&`
// are never decoded as HTML entities. Rows without any non-empty cell are
// dropped.
func parseRows(markup string) [][]string {
	z := html.NewTokenizer(strings.NewReader(markup))

	var (
		rows   [][]string
		row    []string
		cell   strings.Builder
		inCell bool
	)

	endCell := func() {
		if inCell {
			row = append(row, strings.TrimSpace(cell.String()))
			cell.Reset()
			inCell = false
		}
	}
	endRow := func() {
		endCell()
		if hasContent(row) {
			rows = append(rows, row)
		}
		row = nil
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			endRow()
			return rows
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "tr":
				endRow()
			case "td", "th":
				endCell()
				inCell = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "tr":
				endRow()
			case "td", "th":
				endCell()
			}
		case html.TextToken:
			raw := z.Raw()
			if !inCell {
				if strings.TrimSpace(string(raw)) == "" {
					continue
				}
				inCell = true
			}
			cell.Write(raw)
		}
	}
}

func hasContent(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return true
		}
	}
	return false
}
