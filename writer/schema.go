package writer

import (
	"fmt"

	"github.com/gaborage/go-restclient/page"
	"github.com/gaborage/go-restclient/record"
)

// SchemaWriter loads whole rows with one ColumnWriter per column.
type SchemaWriter struct {
	writers []ColumnWriter
}

// NewSchemaWriter returns a writer with the given column writers.
func NewSchemaWriter(writers ...ColumnWriter) *SchemaWriter {
	return &SchemaWriter{writers: writers}
}

// Add appends a column writer.
func (s *SchemaWriter) Add(w ColumnWriter) *SchemaWriter {
	s.writers = append(s.writers, w)
	return s
}

// Write runs every column writer on rec and commits the row. On the first column
// error AddRecord is not called, but the values set for earlier columns stay staged
// in builder. The next successful Write overwrites them; callers that commit rows
// themselves must not call AddRecord after a failed Write.
func (s *SchemaWriter) Write(rec record.ServiceRecord, builder page.PageBuilder) error {
	for _, w := range s.writers {
		if err := w.WriteColumnResponsible(rec, builder); err != nil {
			return err
		}
	}
	builder.AddRecord()
	return nil
}

// Options configures writers built by FromSchema.
type Options struct {
	// Locators overrides the locator of a column by name. Other columns are
	// located by their name as a top-level field.
	Locators map[string]record.ValueLocator
	// TimestampParsers overrides the parser of a timestamp column by name.
	TimestampParsers map[string]*record.TimestampParser
	// DefaultTimestampParser is used by timestamp columns without an override.
	DefaultTimestampParser *record.TimestampParser
}

// FromSchema builds a SchemaWriter with the writer matching each column's type.
func FromSchema(schema *page.Schema, opts Options) (*SchemaWriter, error) {
	defaultParser := opts.DefaultTimestampParser
	if defaultParser == nil {
		p, err := record.NewTimestampParser(record.DefaultTimestampFormat, nil)
		if err != nil {
			return nil, err
		}
		defaultParser = p
	}

	s := NewSchemaWriter()
	for _, col := range schema.Columns() {
		locator, ok := opts.Locators[col.Name]
		if !ok {
			locator = record.NewFieldLocator(col.Name)
		}
		switch col.Type {
		case page.Boolean:
			s.Add(NewBooleanColumnWriter(col, locator))
		case page.Long:
			s.Add(NewLongColumnWriter(col, locator))
		case page.Double:
			s.Add(NewDoubleColumnWriter(col, locator))
		case page.String:
			s.Add(NewStringColumnWriter(col, locator))
		case page.Timestamp:
			parser, ok := opts.TimestampParsers[col.Name]
			if !ok {
				parser = defaultParser
			}
			s.Add(NewTimestampColumnWriter(col, locator, parser))
		case page.JSON:
			s.Add(NewJSONColumnWriter(col, locator))
		default:
			return nil, fmt.Errorf("writer: column %q has unsupported type %s", col.Name, col.Type)
		}
	}
	return s, nil
}
