// Package frame provides a small column-ordered table used to accumulate
// observation rows and descriptor metadata with dynamic column sets.
//
// Cells are dynamically typed (string, float64, or time.Time in practice).
// A missing cell is an absent map key, never a typed zero value, so sparse
// columns produced by outer joins stay distinguishable from real data.
package frame

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row holds one row's cells keyed by column name.
type Row map[string]any

// Table is an ordered-column, row-oriented table.
type Table struct {
	cols []string
	rows []Row
}

// New creates an empty table with the given column order.
func New(cols ...string) Table {
	return Table{cols: append([]string(nil), cols...)}
}

// FromRow creates a single-row table. Columns absent from the row stay missing.
func FromRow(cols []string, r Row) Table {
	t := New(cols...)
	t.Append(r)
	return t
}

// Columns returns a copy of the column names in order.
func (t Table) Columns() []string {
	return append([]string(nil), t.cols...)
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.rows) }

// Row returns the i-th row. The returned map is the table's own storage.
func (t Table) Row(i int) Row { return t.rows[i] }

// HasColumn reports whether the table declares the named column.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.cols {
		if c == name {
			return true
		}
	}
	return false
}

// Append adds a row. Keys not yet declared as columns are appended to the
// column order in sorted order so repeated builds stay deterministic.
func (t *Table) Append(r Row) {
	var extra []string
	for k := range r {
		if !t.HasColumn(k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	t.cols = append(t.cols, extra...)
	t.rows = append(t.rows, r)
}

// Value returns the cell at (row i, column name) and whether it is present.
func (t Table) Value(i int, name string) (any, bool) {
	v, ok := t.rows[i][name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ColumnAllMissing reports whether every row lacks a value for the column.
// NaN counts as present; only absent or nil cells are missing.
func (t Table) ColumnAllMissing(name string) bool {
	for i := range t.rows {
		if _, ok := t.Value(i, name); ok {
			return false
		}
	}
	return true
}

// DropColumn removes the column and its cells. Unknown names are a no-op.
func (t *Table) DropColumn(name string) {
	for i, c := range t.cols {
		if c == name {
			t.cols = append(t.cols[:i], t.cols[i+1:]...)
			break
		}
	}
	for _, r := range t.rows {
		delete(r, name)
	}
}

// Partition splits the rows into (match, rest) by the predicate. Both halves
// keep the full column order; row order is preserved within each half.
func (t Table) Partition(pred func(Row) bool) (Table, Table) {
	match := New(t.cols...)
	rest := New(t.cols...)
	for _, r := range t.rows {
		if pred(r) {
			match.rows = append(match.rows, r)
		} else {
			rest.rows = append(rest.rows, r)
		}
	}
	return match, rest
}

// Concat appends b's rows after a's. Columns are the union, a's order first.
func Concat(a, b Table) Table {
	out := Table{cols: unionCols(a.cols, b.cols)}
	out.rows = append(out.rows, a.rows...)
	out.rows = append(out.rows, b.rows...)
	return out
}

// SortBy stable-sorts rows by the named column. Missing cells sort first;
// otherwise time.Time by instant, strings lexically, floats numerically.
func (t *Table) SortBy(col string) {
	sort.SliceStable(t.rows, func(i, j int) bool {
		return lessCell(t.rows[i][col], t.rows[j][col])
	})
}

// Intersection returns a's column names that b also declares, in a's order.
func Intersection(a, b Table) []string {
	var shared []string
	for _, c := range a.cols {
		if b.HasColumn(c) {
			shared = append(shared, c)
		}
	}
	return shared
}

// OuterJoin performs a full outer join of left and right on the given key
// columns. Rows whose key tuples are equal merge into one row (left cells win
// on overlap); unmatched rows from either side pass through with the other
// side's columns left missing. Key columns must all exist on the left side;
// the right side may lack some, in which case its key cells are treated as
// missing and only match rows that are also missing there.
func OuterJoin(left, right Table, on []string) (Table, error) {
	if len(on) == 0 {
		return Table{}, errors.New("outer join requires at least one key column")
	}
	for _, c := range on {
		if !left.HasColumn(c) {
			return Table{}, fmt.Errorf("outer join key column %q not in left table", c)
		}
	}

	out := Table{cols: unionCols(left.cols, right.cols)}

	index := make(map[string][]int, len(right.rows))
	for i, r := range right.rows {
		k := joinKey(r, on)
		index[k] = append(index[k], i)
	}
	used := make([]bool, len(right.rows))

	for _, lr := range left.rows {
		matches := index[joinKey(lr, on)]
		if len(matches) == 0 {
			out.rows = append(out.rows, cloneRow(lr))
			continue
		}
		for _, ri := range matches {
			used[ri] = true
			merged := cloneRow(lr)
			for c, v := range right.rows[ri] {
				if _, exists := merged[c]; !exists {
					merged[c] = v
				}
			}
			out.rows = append(out.rows, merged)
		}
	}
	for i, r := range right.rows {
		if !used[i] {
			out.rows = append(out.rows, cloneRow(r))
		}
	}
	return out, nil
}

func unionCols(a, b []string) []string {
	out := append([]string(nil), a...)
	seen := make(map[string]struct{}, len(a))
	for _, c := range a {
		seen[c] = struct{}{}
	}
	for _, c := range b {
		if _, ok := seen[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// joinKey encodes the key tuple as a single string. Cell values are prefixed
// by type so "1" (string) and 1.0 (float) never collide.
func joinKey(r Row, on []string) string {
	var b strings.Builder
	for i, c := range on {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		v, ok := r[c]
		if !ok || v == nil {
			b.WriteByte(0x00)
			continue
		}
		switch t := v.(type) {
		case string:
			b.WriteString("s:")
			b.WriteString(t)
		case float64:
			b.WriteString("f:")
			b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
		case time.Time:
			b.WriteString("t:")
			b.WriteString(t.Format(time.RFC3339Nano))
		default:
			fmt.Fprintf(&b, "v:%v", t)
		}
	}
	return b.String()
}

func lessCell(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Before(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
