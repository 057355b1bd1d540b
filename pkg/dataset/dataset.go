// Package dataset provides the in-memory table passed between pipeline stages.
//
// A Dataset is an ordered list of named columns. Every column holds the same
// number of values, so a row index addresses one value in each column.
package dataset

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
)

var (
	ErrRowAlignment    = errors.New("columns must have the same length")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrDuplicateColumn = errors.New("duplicate column")
)

// Column is a named sequence of values.
type Column struct {
	Name   string `yaml:"name"`
	Values []any  `yaml:"values"`
}

// NewColumn creates a column.
func NewColumn(name string, values ...any) *Column {
	return &Column{Name: name, Values: values}
}

// NewStringColumn creates a column of string values.
func NewStringColumn(name string, values ...string) *Column {
	col := &Column{Name: name, Values: make([]any, len(values))}
	for i, v := range values {
		col.Values[i] = v
	}

	return col
}

// Len returns the number of values in the column.
func (c *Column) Len() int {
	return len(c.Values)
}

// Strings returns the column values formatted as strings.
func (c *Column) Strings() []string {
	res := make([]string, len(c.Values))
	for i, v := range c.Values {
		res[i] = Format(v)
	}

	return res
}

// Dataset is a table of equally sized named columns.
type Dataset struct {
	Name    string    `yaml:"name,omitempty"`
	Columns []*Column `yaml:"columns"`
}

// New creates a dataset and checks the row alignment of its columns.
func New(name string, cols ...*Column) (*Dataset, error) {
	ds := &Dataset{Name: name}
	for _, col := range cols {
		err := ds.AddColumn(col)
		if err != nil {
			return nil, err
		}
	}

	return ds, nil
}

// Validate checks that column names are unique and every column has the same length.
func (d *Dataset) Validate() error {
	seen := make(map[string]struct{}, len(d.Columns))
	for _, col := range d.Columns {
		if _, ok := seen[col.Name]; ok {
			return errors.Wrap(ErrDuplicateColumn, col.Name)
		}
		seen[col.Name] = struct{}{}
		if col.Len() != d.RowCount() {
			return errors.Wrapf(ErrRowAlignment, "column %q has %d rows, expected %d", col.Name, col.Len(), d.RowCount())
		}
	}

	return nil
}

// RowCount returns the number of rows.
func (d *Dataset) RowCount() int {
	if d == nil || len(d.Columns) == 0 {
		return 0
	}

	return d.Columns[0].Len()
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		names[i] = col.Name
	}

	return names
}

// Column returns the column with the given name.
func (d *Dataset) Column(name string) (*Column, error) {
	idx := d.columnIndex(name)
	if idx < 0 {
		return nil, errors.Wrap(ErrUnknownColumn, name)
	}

	return d.Columns[idx], nil
}

func (d *Dataset) columnIndex(name string) int {
	return slices.IndexFunc(d.Columns, func(c *Column) bool { return c.Name == name })
}

// AddColumn appends a column. The first column of an empty dataset sets the row count.
func (d *Dataset) AddColumn(col *Column) error {
	if d.columnIndex(col.Name) >= 0 {
		return errors.Wrap(ErrDuplicateColumn, col.Name)
	}
	if len(d.Columns) > 0 && col.Len() != d.RowCount() {
		return errors.Wrapf(ErrRowAlignment, "column %q has %d rows, expected %d", col.Name, col.Len(), d.RowCount())
	}
	d.Columns = append(d.Columns, col)

	return nil
}

// RemoveColumn drops a column.
func (d *Dataset) RemoveColumn(name string) error {
	idx := d.columnIndex(name)
	if idx < 0 {
		return errors.Wrap(ErrUnknownColumn, name)
	}
	d.Columns = slices.Delete(d.Columns, idx, idx+1)

	return nil
}

// AppendRow appends one value per column.
func (d *Dataset) AppendRow(values ...any) error {
	if len(values) != len(d.Columns) {
		return errors.Wrapf(ErrRowAlignment, "row has %d values, expected %d", len(values), len(d.Columns))
	}
	for i, col := range d.Columns {
		col.Values = append(col.Values, values[i])
	}

	return nil
}

// Row returns the values of row i.
func (d *Dataset) Row(i int) []any {
	row := make([]any, len(d.Columns))
	for j, col := range d.Columns {
		row[j] = col.Values[i]
	}

	return row
}

// Clone returns a deep copy of the dataset structure. Values are copied by assignment.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	res := &Dataset{Name: d.Name, Columns: make([]*Column, len(d.Columns))}
	for i, col := range d.Columns {
		res.Columns[i] = &Column{Name: col.Name, Values: slices.Clone(col.Values)}
	}

	return res
}

// Equal reports whether two datasets have the same columns and values.
func (d *Dataset) Equal(other *Dataset) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.Columns) != len(other.Columns) {
		return false
	}
	for i, col := range d.Columns {
		o := other.Columns[i]
		if col.Name != o.Name || col.Len() != o.Len() {
			return false
		}
		for j := range col.Values {
			if Format(col.Values[j]) != Format(o.Values[j]) {
				return false
			}
		}
	}

	return true
}

// Distinct returns the distinct string values of a column in order of first occurrence.
func (d *Dataset) Distinct(name string) ([]string, error) {
	col, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	res := []string{}
	for _, v := range col.Strings() {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		res = append(res, v)
	}

	return res, nil
}

// ReplaceValues replaces, in one column, every value equal to a key of
// replacements with the mapped value. It returns the number of replaced cells.
func (d *Dataset) ReplaceValues(name string, replacements map[string]string) (int, error) {
	col, err := d.Column(name)
	if err != nil {
		return 0, err
	}
	count := 0
	for i, v := range col.Values {
		if to, ok := replacements[Format(v)]; ok {
			col.Values[i] = to
			count++
		}
	}

	return count, nil
}

// Format renders a cell value as a string. Nil renders as the empty string.
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
