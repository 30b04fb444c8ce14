// Package writer copies typed values from service records into a page builder. Each
// ColumnWriter owns one column: it locates its value in the record and calls the
// builder's setter for the column type, or SetNull when the value is missing or null.
package writer

import (
	"fmt"

	"github.com/gaborage/go-restclient/page"
	"github.com/gaborage/go-restclient/record"
)

// ColumnWriter loads the column it is responsible for.
type ColumnWriter interface {
	Column() page.Column
	WriteColumnResponsible(rec record.ServiceRecord, builder page.PageBuilder) error
}

// ColumnError reports a failure to load one column.
type ColumnError struct {
	Column  page.Column
	Locator string
	Err     error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("writer: column %q (%s at %s): %v", e.Column.Name, e.Column.Type, e.Locator, e.Err)
}

func (e *ColumnError) Unwrap() error { return e.Err }

type base struct {
	column  page.Column
	locator record.ValueLocator
}

func (b base) Column() page.Column { return b.column }

// pickup returns the value to write, or nil when the column should be null.
func (b base) pickup(rec record.ServiceRecord) (record.ServiceValue, error) {
	v, err := rec.Value(b.locator)
	if err != nil {
		return nil, b.fail(err)
	}
	if v == nil || v.IsNull() {
		return nil, nil
	}
	return v, nil
}

func (b base) fail(err error) error {
	return &ColumnError{Column: b.column, Locator: b.locator.String(), Err: err}
}

// write runs the shared null handling around a typed setter.
func write(b base, rec record.ServiceRecord, builder page.PageBuilder, set func(record.ServiceValue) error) error {
	v, err := b.pickup(rec)
	if err != nil {
		return err
	}
	if v == nil {
		builder.SetNull(b.column)
		return nil
	}
	if err := set(v); err != nil {
		return b.fail(err)
	}
	return nil
}

// LongColumnWriter writes long columns.
type LongColumnWriter struct{ base }

func NewLongColumnWriter(column page.Column, locator record.ValueLocator) *LongColumnWriter {
	return &LongColumnWriter{base{column: column, locator: locator}}
}

func (w *LongColumnWriter) WriteColumnResponsible(rec record.ServiceRecord, builder page.PageBuilder) error {
	return write(w.base, rec, builder, func(v record.ServiceValue) error {
		n, err := v.LongValue()
		if err != nil {
			return err
		}
		builder.SetLong(w.column, n)
		return nil
	})
}

// DoubleColumnWriter writes double columns.
type DoubleColumnWriter struct{ base }

func NewDoubleColumnWriter(column page.Column, locator record.ValueLocator) *DoubleColumnWriter {
	return &DoubleColumnWriter{base{column: column, locator: locator}}
}

func (w *DoubleColumnWriter) WriteColumnResponsible(rec record.ServiceRecord, builder page.PageBuilder) error {
	return write(w.base, rec, builder, func(v record.ServiceValue) error {
		f, err := v.DoubleValue()
		if err != nil {
			return err
		}
		builder.SetDouble(w.column, f)
		return nil
	})
}

// TimestampColumnWriter writes timestamp columns, parsing text with its parser.
type TimestampColumnWriter struct {
	base
	parser *record.TimestampParser
}

func NewTimestampColumnWriter(column page.Column, locator record.ValueLocator, parser *record.TimestampParser) *TimestampColumnWriter {
	return &TimestampColumnWriter{base: base{column: column, locator: locator}, parser: parser}
}

func (w *TimestampColumnWriter) WriteColumnResponsible(rec record.ServiceRecord, builder page.PageBuilder) error {
	return write(w.base, rec, builder, func(v record.ServiceValue) error {
		ts, err := v.TimestampValue(w.parser)
		if err != nil {
			return err
		}
		builder.SetTimestamp(w.column, ts)
		return nil
	})
}

// BooleanColumnWriter writes boolean columns.
type BooleanColumnWriter struct{ base }

func NewBooleanColumnWriter(column page.Column, locator record.ValueLocator) *BooleanColumnWriter {
	return &BooleanColumnWriter{base{column: column, locator: locator}}
}

func (w *BooleanColumnWriter) WriteColumnResponsible(rec record.ServiceRecord, builder page.PageBuilder) error {
	return write(w.base, rec, builder, func(v record.ServiceValue) error {
		b, err := v.BooleanValue()
		if err != nil {
			return err
		}
		builder.SetBoolean(w.column, b)
		return nil
	})
}

// StringColumnWriter writes string columns.
type StringColumnWriter struct{ base }

func NewStringColumnWriter(column page.Column, locator record.ValueLocator) *StringColumnWriter {
	return &StringColumnWriter{base{column: column, locator: locator}}
}

func (w *StringColumnWriter) WriteColumnResponsible(rec record.ServiceRecord, builder page.PageBuilder) error {
	return write(w.base, rec, builder, func(v record.ServiceValue) error {
		s, err := v.StringValue()
		if err != nil {
			return err
		}
		builder.SetString(w.column, s)
		return nil
	})
}

// JSONColumnWriter writes json columns.
type JSONColumnWriter struct{ base }

func NewJSONColumnWriter(column page.Column, locator record.ValueLocator) *JSONColumnWriter {
	return &JSONColumnWriter{base{column: column, locator: locator}}
}

func (w *JSONColumnWriter) WriteColumnResponsible(rec record.ServiceRecord, builder page.PageBuilder) error {
	return write(w.base, rec, builder, func(v record.ServiceValue) error {
		doc, err := v.JSONValue()
		if err != nil {
			return err
		}
		builder.SetJSON(w.column, doc)
		return nil
	})
}
