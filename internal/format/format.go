// Package format renders a SELECT result as the ASCII-bordered table §6
// requires, or as YAML for piping into other tooling.
//
// Renders against duskdb's own Columns/Rows shape, measuring column width
// in a way that accounts for CJK content correctly, since a hint line
// carrying 智能提示： text can appear inside a table cell.
package format

import (
	"fmt"
	"strings"

	"golang.org/x/text/width"
	"gopkg.in/yaml.v3"
)

// cellWidth measures the terminal column width of s, counting each
// East-Asian wide or fullwidth rune as 2 cells instead of 1.
func cellWidth(s string) int {
	w := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += 2
		default:
			w++
		}
	}
	return w
}

func padRight(s string, w int) string {
	pad := w - cellWidth(s)
	if pad <= 0 {
		return s
	}
	return s + strings.Repeat(" ", pad)
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// Table renders rows (each keyed by the entries in cols) as the
// `+---+---+` / `| col | col |` ASCII table §6 specifies, with a trailing
// "N row(s) returned" line.
func Table(rows []map[string]any, cols []string) string {
	colWidth := make([]int, len(cols))
	for i, c := range cols {
		colWidth[i] = cellWidth(c)
	}
	rendered := make([][]string, len(rows))
	for ri, r := range rows {
		rendered[ri] = make([]string, len(cols))
		for ci, c := range cols {
			s := cell(r[c])
			rendered[ri][ci] = s
			if w := cellWidth(s); w > colWidth[ci] {
				colWidth[ci] = w
			}
		}
	}

	var sb strings.Builder
	border := func() {
		sb.WriteByte('+')
		for _, w := range colWidth {
			sb.WriteString(strings.Repeat("-", w+2))
			sb.WriteByte('+')
		}
		sb.WriteByte('\n')
	}
	writeRow := func(cells []string) {
		sb.WriteByte('|')
		for i, s := range cells {
			sb.WriteByte(' ')
			sb.WriteString(padRight(s, colWidth[i]))
			sb.WriteString(" |")
		}
		sb.WriteByte('\n')
	}

	border()
	writeRow(cols)
	border()
	for _, r := range rendered {
		writeRow(r)
	}
	border()
	fmt.Fprintf(&sb, "%d row(s) returned\n", len(rows))
	return sb.String()
}

// YAML renders rows as a YAML sequence of column-ordered mappings, via
// gopkg.in/yaml.v3, for a "yaml" output format alongside the ASCII table.
func YAML(rows []map[string]any, cols []string) (string, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, r := range rows {
		mapping := &yaml.Node{Kind: yaml.MappingNode}
		for _, c := range cols {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: c}
			valNode := &yaml.Node{}
			if err := valNode.Encode(r[c]); err != nil {
				return "", fmt.Errorf("format: encode column %q: %w", c, err)
			}
			mapping.Content = append(mapping.Content, keyNode, valNode)
		}
		seq.Content = append(seq.Content, mapping)
	}
	out, err := yaml.Marshal(seq)
	if err != nil {
		return "", fmt.Errorf("format: marshal yaml: %w", err)
	}
	return string(out), nil
}
