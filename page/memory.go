package page

import (
	"sync"
	"time"
)

// Row holds the committed values of one record by column index. A nil entry is a
// null. Values are bool, int64, float64, string, time.Time or the decoded JSON value.
type Row []any

// MemoryPageBuilder accumulates rows in memory. Setting a column that is not part of
// the schema panics, as writing past the row is a programming error.
type MemoryPageBuilder struct {
	schema *Schema

	mu      sync.Mutex
	current Row
	rows    []Row
}

// NewMemoryPageBuilder returns a builder for rows of schema.
func NewMemoryPageBuilder(schema *Schema) *MemoryPageBuilder {
	return &MemoryPageBuilder{
		schema:  schema,
		current: make(Row, schema.Len()),
	}
}

func (b *MemoryPageBuilder) set(col Column, v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current[col.Index] = v
}

func (b *MemoryPageBuilder) SetNull(col Column)                   { b.set(col, nil) }
func (b *MemoryPageBuilder) SetBoolean(col Column, v bool)        { b.set(col, v) }
func (b *MemoryPageBuilder) SetLong(col Column, v int64)          { b.set(col, v) }
func (b *MemoryPageBuilder) SetDouble(col Column, v float64)      { b.set(col, v) }
func (b *MemoryPageBuilder) SetString(col Column, v string)       { b.set(col, v) }
func (b *MemoryPageBuilder) SetTimestamp(col Column, v time.Time) { b.set(col, v) }
func (b *MemoryPageBuilder) SetJSON(col Column, v any)            { b.set(col, v) }

// AddRecord commits the current row. Columns not set since the last commit are null.
func (b *MemoryPageBuilder) AddRecord() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = append(b.rows, b.current)
	b.current = make(Row, b.schema.Len())
}

// Rows returns the committed rows.
func (b *MemoryPageBuilder) Rows() []Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Row(nil), b.rows...)
}

// Schema returns the schema rows are built for.
func (b *MemoryPageBuilder) Schema() *Schema { return b.schema }
