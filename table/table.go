// Package table holds experiment data in memory as an ordered set of named
// float64 columns. Rows are stored row-major and exposed as gonum matrices.
//
// Tables are immutable: every operation returns a new Table, which keeps
// preprocessing pipelines replayable on other tables.
package table

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/pkg/errors"
)

// Table is an in-memory table of float64 values. Missing values are NaN.
type Table struct {
	columns []string
	index   map[string]int
	data    []float64
	rows    int
}

// New creates a table from column names and row-major rows.
func New(columns []string, rows [][]float64) (*Table, error) {
	data := make([]float64, 0, len(rows)*len(columns))
	for _, row := range rows {
		if len(row) != len(columns) {
			return nil, errors.NewDimensionError("table.New", len(columns), len(row), 1)
		}
		data = append(data, row...)
	}
	return newTable(columns, data, len(rows))
}

// FromDense creates a table from a matrix whose columns are named by columns.
func FromDense(columns []string, m mat.Matrix) (*Table, error) {
	r, c := m.Dims()
	if c != len(columns) {
		return nil, errors.NewDimensionError("table.FromDense", len(columns), c, 1)
	}
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data = append(data, m.At(i, j))
		}
	}
	return newTable(columns, data, r)
}

func newTable(columns []string, data []float64, rows int) (*Table, error) {
	index := make(map[string]int, len(columns))
	for j, name := range columns {
		if _, dup := index[name]; dup {
			return nil, errors.NewValueError("table.New", "duplicate column "+name)
		}
		index[name] = j
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{columns: cols, index: index, data: data, rows: rows}, nil
}

// mustTable is used where the column set is derived from an existing valid table.
func mustTable(columns []string, data []float64, rows int) *Table {
	t, err := newTable(columns, data, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// Columns returns a copy of the column names in table order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// At returns the value at row i and column j.
func (t *Table) At(i, j int) float64 {
	return t.data[i*len(t.columns)+j]
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []float64 {
	c := len(t.columns)
	out := make([]float64, c)
	copy(out, t.data[i*c:(i+1)*c])
	return out
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, errors.NewValueError("Table.Column", "no column "+name)
	}
	out := make([]float64, t.rows)
	for i := range out {
		out[i] = t.At(i, j)
	}
	return out, nil
}

// Select returns the named columns in the given order. Every name must exist.
func (t *Table) Select(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	for k, name := range names {
		j, ok := t.index[name]
		if !ok {
			return nil, errors.NewValueError("Table.Select", "no column "+name)
		}
		idx[k] = j
	}
	return t.project(names, idx)
}

// SelectPrefix returns, in table order, every column whose name starts with
// any of the prefixes.
func (t *Table) SelectPrefix(prefixes ...string) *Table {
	var names []string
	var idx []int
	for j, name := range t.columns {
		for _, p := range prefixes {
			if strings.HasPrefix(name, p) {
				names = append(names, name)
				idx = append(idx, j)
				break
			}
		}
	}
	out, err := t.project(names, idx)
	if err != nil {
		panic(err)
	}
	return out
}

// Drop returns the table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var keep []string
	var idx []int
	for j, name := range t.columns {
		if !drop[name] {
			keep = append(keep, name)
			idx = append(idx, j)
		}
	}
	out, _ := t.project(keep, idx)
	return out
}

func (t *Table) project(names []string, idx []int) (*Table, error) {
	c := len(t.columns)
	data := make([]float64, 0, t.rows*len(idx))
	for i := 0; i < t.rows; i++ {
		base := i * c
		for _, j := range idx {
			data = append(data, t.data[base+j])
		}
	}
	return newTable(names, data, t.rows)
}

// Rows returns rows [from, to).
func (t *Table) Rows(from, to int) (*Table, error) {
	if from < 0 || to > t.rows || from > to {
		return nil, errors.NewIndexOutOfRangeError("Table.Rows", from, t.rows)
	}
	c := len(t.columns)
	data := make([]float64, (to-from)*c)
	copy(data, t.data[from*c:to*c])
	return mustTable(t.columns, data, to-from), nil
}

// Filter returns the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	c := len(t.columns)
	data := make([]float64, 0, len(t.data))
	rows := 0
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			data = append(data, t.data[i*c:(i+1)*c]...)
			rows++
		}
	}
	return mustTable(t.columns, data, rows)
}

// FillNaN returns a copy with every NaN replaced by v.
func (t *Table) FillNaN(v float64) *Table {
	data := make([]float64, len(t.data))
	for i, x := range t.data {
		if math.IsNaN(x) {
			x = v
		}
		data[i] = x
	}
	return mustTable(t.columns, data, t.rows)
}

// With returns a copy where column name holds values. An existing column is
// replaced in place, a new one is appended.
func (t *Table) With(name string, values []float64) (*Table, error) {
	if len(values) != t.rows {
		return nil, errors.NewDimensionError("Table.With", t.rows, len(values), 0)
	}
	if j, ok := t.index[name]; ok {
		out := t.Clone()
		c := len(t.columns)
		for i, v := range values {
			out.data[i*c+j] = v
		}
		return out, nil
	}
	c := len(t.columns)
	data := make([]float64, 0, t.rows*(c+1))
	for i := 0; i < t.rows; i++ {
		data = append(data, t.data[i*c:(i+1)*c]...)
		data = append(data, values[i])
	}
	return newTable(append(t.Columns(), name), data, t.rows)
}

// Map returns a copy with fn applied to every value of the named column.
func (t *Table) Map(name string, fn func(float64) float64) (*Table, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, errors.NewValueError("Table.Map", "no column "+name)
	}
	out := t.Clone()
	c := len(t.columns)
	for i := 0; i < t.rows; i++ {
		out.data[i*c+j] = fn(out.data[i*c+j])
	}
	return out, nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return mustTable(t.columns, data, t.rows)
}

// Matrix returns the table as a rows×columns matrix. An empty table yields an
// empty (zero value) matrix.
func (t *Table) Matrix() *mat.Dense {
	if t.rows == 0 || len(t.columns) == 0 {
		return &mat.Dense{}
	}
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return mat.NewDense(t.rows, len(t.columns), data)
}

// Concat stacks tables vertically. All tables must have the same columns in
// the same order.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, errors.NewValueError("table.Concat", "no tables")
	}
	first := tables[0]
	var data []float64
	rows := 0
	for k, t := range tables {
		if len(t.columns) != len(first.columns) {
			return nil, errors.NewDimensionError("table.Concat", len(first.columns), len(t.columns), 1)
		}
		for j := range t.columns {
			if t.columns[j] != first.columns[j] {
				return nil, errors.NewValueError("table.Concat",
					"column mismatch in table "+strconv.Itoa(k)+": "+t.columns[j]+" != "+first.columns[j])
			}
		}
		data = append(data, t.data...)
		rows += t.rows
	}
	return newTable(first.columns, data, rows)
}
