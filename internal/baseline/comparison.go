package baseline

import (
	"fmt"
	"strings"

	"github.com/roach88/pinsync/internal/ir"
)

// Op marks how a row differs between baseline and snapshot, in the style of
// "diff --side-by-side".
type Op byte

const (
	OpEqual   Op = ' '
	OpChanged Op = '|'
	OpRemoved Op = '<'
	OpAdded   Op = '>'
)

// Column width bounds for the old side.
const (
	minColumnWidth = 10
	maxColumnWidth = 60
)

// Row is one line of a side-by-side comparison.
type Row struct {
	Old string
	Op  Op
	New string
}

// Comparison is the rendered-on-demand baseline diff of one cell.
type Comparison struct {
	CellID          string
	OldLabel        string
	NewLabel        string
	BaselineMissing bool
	Rows            []Row
}

// ChangedRows counts rows that are not equal on both sides.
func (c Comparison) ChangedRows() int {
	n := 0
	for _, r := range c.Rows {
		if r.Op != OpEqual {
			n++
		}
	}
	return n
}

// Header returns the title line of a rendered comparison.
func (c Comparison) Header() string {
	title := ir.SnapshotFileName(c.CellID)
	if c.OldLabel == "" && c.NewLabel == "" {
		return fmt.Sprintf("=== %s ===", title)
	}
	return fmt.Sprintf("=== %s: %s vs %s ===", title, c.OldLabel, c.NewLabel)
}

// String renders the header followed by one line per row.
func (c Comparison) String() string {
	var b strings.Builder
	if c.CellID != "" {
		b.WriteString(c.Header())
		b.WriteByte('\n')
	}
	if c.BaselineMissing {
		b.WriteString("(no published baseline)\n")
	}

	width := minColumnWidth
	for _, r := range c.Rows {
		width = max(width, len(r.Old))
	}
	width = min(width, maxColumnWidth)

	for _, r := range c.Rows {
		line := fmt.Sprintf("%-*s %c %s", width, r.Old, byte(r.Op), r.New)
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteByte('\n')
	}
	return b.String()
}
