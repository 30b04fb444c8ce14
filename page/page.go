// Package page describes the columnar record surface the column writers load into:
// a typed Schema of Columns and a PageBuilder that accepts one value per column and
// commits rows with AddRecord. MemoryPageBuilder is an in-process implementation.
package page

import (
	"fmt"
	"strings"
	"time"
)

// Type is the value type of a column.
type Type int

const (
	Boolean Type = iota + 1
	Long
	Double
	String
	Timestamp
	JSON
)

func (t Type) String() string {
	switch t {
	case Boolean:
		return "boolean"
	case Long:
		return "long"
	case Double:
		return "double"
	case String:
		return "string"
	case Timestamp:
		return "timestamp"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// ParseType maps a type name, case-insensitively, to its Type.
func ParseType(name string) (Type, error) {
	for _, t := range []Type{Boolean, Long, Double, String, Timestamp, JSON} {
		if strings.EqualFold(name, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("page: unknown column type %q", name)
}

// Column is one typed slot of a row.
type Column struct {
	Index int
	Name  string
	Type  Type
}

func (c Column) String() string {
	return fmt.Sprintf("%s:%s", c.Name, c.Type)
}

// Schema is an ordered list of columns. Column indexes match their position.
type Schema struct {
	columns []Column
}

// ColumnSpec names a column and its type when building a Schema.
type ColumnSpec struct {
	Name string
	Type Type
}

// NewSchema assigns indexes in order. Names must be unique and non-empty.
func NewSchema(specs ...ColumnSpec) (*Schema, error) {
	seen := make(map[string]struct{}, len(specs))
	columns := make([]Column, 0, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("page: column %d has no name", i)
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("page: duplicate column %q", spec.Name)
		}
		if _, err := ParseType(spec.Type.String()); err != nil {
			return nil, fmt.Errorf("page: column %q: %w", spec.Name, err)
		}
		seen[spec.Name] = struct{}{}
		columns = append(columns, Column{Index: i, Name: spec.Name, Type: spec.Type})
	}
	return &Schema{columns: columns}, nil
}

// Columns returns a copy of the columns in index order.
func (s *Schema) Columns() []Column {
	return append([]Column(nil), s.columns...)
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.columns) }

// Column returns the column at index i.
func (s *Schema) Column(i int) Column { return s.columns[i] }

// Lookup finds a column by name.
func (s *Schema) Lookup(name string) (Column, bool) {
	for _, c := range s.columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// PageBuilder receives the values of the current row column by column. AddRecord
// commits the row and starts the next one.
type PageBuilder interface {
	SetNull(col Column)
	SetBoolean(col Column, v bool)
	SetLong(col Column, v int64)
	SetDouble(col Column, v float64)
	SetString(col Column, v string)
	SetTimestamp(col Column, v time.Time)
	SetJSON(col Column, v any)
	AddRecord()
}
