package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Table renders aligned columns, used by describe for member listings
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// TableOptions configures table behavior
type TableOptions struct {
	NoColor bool
}

// NewTable creates a table with the given column headers
func NewTable(w io.Writer, headers []string, opts *TableOptions) *Table {
	noColor := false
	if opts != nil {
		noColor = opts.NoColor
	}
	return &Table{
		writer:  w,
		headers: headers,
		noColor: noColor,
	}
}

// AddRow appends one row of cells
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// columnWidths sizes each column to its widest header or cell
func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	return widths
}

// Render writes the header, a rule, and every row
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}
	widths := t.columnWidths()

	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if t.noColor {
		bold.DisableColor()
		gray.DisableColor()
	}

	for i, h := range t.headers {
		if i > 0 {
			fmt.Fprint(t.writer, "  ")
		}
		bold.Fprint(t.writer, padRight(h, widths[i]))
	}
	fmt.Fprintln(t.writer)

	for i, width := range widths {
		if i > 0 {
			gray.Fprint(t.writer, "  ")
		}
		gray.Fprint(t.writer, strings.Repeat("─", width))
	}
	fmt.Fprintln(t.writer)

	for _, row := range t.rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if i > 0 {
				fmt.Fprint(t.writer, "  ")
			}
			fmt.Fprint(t.writer, padRight(cell, widths[i]))
		}
		fmt.Fprintln(t.writer)
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// KeyValueTable renders aligned key: value pairs, used by describe for the
// type summary (kind, base, metaclasses, table)
type KeyValueTable struct {
	writer  io.Writer
	keys    []string
	values  []string
	noColor bool
}

// NewKeyValueTable creates an empty key-value table
func NewKeyValueTable(w io.Writer, noColor bool) *KeyValueTable {
	return &KeyValueTable{writer: w, noColor: noColor}
}

// AddRow appends one key-value pair
func (t *KeyValueTable) AddRow(key, value string) {
	t.keys = append(t.keys, key)
	t.values = append(t.values, value)
}

// Render writes the pairs with keys right-padded to a common width
func (t *KeyValueTable) Render() {
	if len(t.keys) == 0 {
		return
	}
	keyWidth := 0
	for _, k := range t.keys {
		if len(k) > keyWidth {
			keyWidth = len(k)
		}
	}

	cyan := color.New(color.FgCyan)
	if t.noColor {
		cyan.DisableColor()
	}
	for i, k := range t.keys {
		cyan.Fprint(t.writer, padRight(k+":", keyWidth+1))
		fmt.Fprintf(t.writer, " %s\n", t.values[i])
	}
}

// List renders a bulleted or numbered list, used by describe for the
// synthesized operations of a type
type List struct {
	writer   io.Writer
	items    []string
	numbered bool
	noColor  bool
}

// ListOptions configures list behavior
type ListOptions struct {
	Numbered bool
	NoColor  bool
}

// NewList creates an empty list
func NewList(w io.Writer, opts ListOptions) *List {
	return &List{
		writer:   w,
		numbered: opts.Numbered,
		noColor:  opts.NoColor,
	}
}

// AddItem appends one item
func (l *List) AddItem(item string) {
	l.items = append(l.items, item)
}

// Render writes the items with their bullet or number prefix
func (l *List) Render() {
	if len(l.items) == 0 {
		return
	}
	cyan := color.New(color.FgCyan)
	if l.noColor {
		cyan.DisableColor()
	}
	for i, item := range l.items {
		if l.numbered {
			cyan.Fprintf(l.writer, "%d. ", i+1)
		} else {
			cyan.Fprint(l.writer, "• ")
		}
		fmt.Fprintln(l.writer, item)
	}
}

// Header writes a styled title underlined by a rule of the same width
func Header(w io.Writer, title string, noColor bool) {
	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if noColor {
		bold.DisableColor()
		gray.DisableColor()
	}
	bold.Fprintln(w, title)
	gray.Fprintln(w, strings.Repeat("─", len(title)))
}
