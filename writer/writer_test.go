package writer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-restclient/page"
	"github.com/gaborage/go-restclient/record"
)

func testSchema(t *testing.T) *page.Schema {
	t.Helper()
	schema, err := page.NewSchema(
		page.ColumnSpec{Name: "id", Type: page.Long},
		page.ColumnSpec{Name: "score", Type: page.Double},
		page.ColumnSpec{Name: "created", Type: page.Timestamp},
		page.ColumnSpec{Name: "active", Type: page.Boolean},
		page.ColumnSpec{Name: "name", Type: page.String},
		page.ColumnSpec{Name: "meta", Type: page.JSON},
	)
	require.NoError(t, err)
	return schema
}

func jsonRecord(t *testing.T, data string) *record.JSONRecord {
	t.Helper()
	rec, err := record.NewJSONRecord([]byte(data))
	require.NoError(t, err)
	return rec
}

func TestSchemaWriterTypedValues(t *testing.T) {
	schema := testSchema(t)
	parser, err := record.NewTimestampParser("%Y-%m-%d %H:%M:%S", nil)
	require.NoError(t, err)

	w, err := FromSchema(schema, Options{DefaultTimestampParser: parser})
	require.NoError(t, err)
	b := page.NewMemoryPageBuilder(schema)

	rec := jsonRecord(t, `{"id": 7, "score": 1.5, "created": "2024-05-01 08:00:00",
		"active": true, "name": "gear", "meta": {"k": "v"}}`)
	require.NoError(t, w.Write(rec, b))

	rows := b.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, page.Row{
		int64(7),
		1.5,
		time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		true,
		"gear",
		map[string]any{"k": "v"},
	}, rows[0])
}

func TestSchemaWriterNulls(t *testing.T) {
	schema := testSchema(t)
	w, err := FromSchema(schema, Options{})
	require.NoError(t, err)
	b := page.NewMemoryPageBuilder(schema)

	// Explicit nulls and absent fields both end up null.
	rec := jsonRecord(t, `{"id": null, "score": null, "name": null}`)
	require.NoError(t, w.Write(rec, b))

	rows := b.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, page.Row{nil, nil, nil, nil, nil, nil}, rows[0])
}

// recordingBuilder records which setters were called.
type recordingBuilder struct {
	calls []string
}

func (r *recordingBuilder) SetNull(page.Column)                 { r.calls = append(r.calls, "null") }
func (r *recordingBuilder) SetBoolean(page.Column, bool)        { r.calls = append(r.calls, "boolean") }
func (r *recordingBuilder) SetLong(page.Column, int64)          { r.calls = append(r.calls, "long") }
func (r *recordingBuilder) SetDouble(page.Column, float64)      { r.calls = append(r.calls, "double") }
func (r *recordingBuilder) SetString(page.Column, string)       { r.calls = append(r.calls, "string") }
func (r *recordingBuilder) SetTimestamp(page.Column, time.Time) { r.calls = append(r.calls, "timestamp") }
func (r *recordingBuilder) SetJSON(page.Column, any)            { r.calls = append(r.calls, "json") }
func (r *recordingBuilder) AddRecord()                          { r.calls = append(r.calls, "add") }

func TestColumnWritersDispatch(t *testing.T) {
	rec := jsonRecord(t, `{"v": "2024-05-01 00:00:00 +0000", "n": 3, "nothing": null}`)
	col := page.Column{Index: 0, Name: "c"}
	parser, err := record.NewTimestampParser(record.DefaultTimestampFormat, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		writer ColumnWriter
		want   string
	}{
		{name: "long", writer: NewLongColumnWriter(col, record.NewFieldLocator("n")), want: "long"},
		{name: "double", writer: NewDoubleColumnWriter(col, record.NewFieldLocator("n")), want: "double"},
		{name: "timestamp", writer: NewTimestampColumnWriter(col, record.NewFieldLocator("v"), parser), want: "timestamp"},
		{name: "string", writer: NewStringColumnWriter(col, record.NewFieldLocator("n")), want: "string"},
		{name: "json", writer: NewJSONColumnWriter(col, record.NewFieldLocator("n")), want: "json"},
		{name: "boolean from null", writer: NewBooleanColumnWriter(col, record.NewFieldLocator("nothing")), want: "null"},
		{name: "long from missing", writer: NewLongColumnWriter(col, record.NewFieldLocator("absent")), want: "null"},
		{name: "timestamp from missing", writer: NewTimestampColumnWriter(col, record.NewFieldLocator("absent"), parser), want: "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &recordingBuilder{}
			require.NoError(t, tt.writer.WriteColumnResponsible(rec, b))
			assert.Equal(t, []string{tt.want}, b.calls)
			assert.Equal(t, col, tt.writer.Column())
		})
	}
}

func TestColumnWriterConversionError(t *testing.T) {
	schema := testSchema(t)
	w, err := FromSchema(schema, Options{})
	require.NoError(t, err)
	b := page.NewMemoryPageBuilder(schema)

	err = w.Write(jsonRecord(t, `{"id": "seven"}`), b)
	require.Error(t, err)

	var colErr *ColumnError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, "id", colErr.Column.Name)
	assert.Equal(t, "/id", colErr.Locator)
	assert.ErrorIs(t, err, record.ErrConversion)
	assert.Contains(t, err.Error(), `column "id"`)
	assert.Empty(t, b.Rows())

	// A row failing after some columns were set does not leak into the next one.
	require.Error(t, w.Write(jsonRecord(t, `{"id": 7, "score": "high", "name": "x"}`), b))
	assert.Empty(t, b.Rows())
	require.NoError(t, w.Write(jsonRecord(t, `{"id": 8}`), b))
	require.Len(t, b.Rows(), 1)
	assert.Equal(t, page.Row{int64(8), nil, nil, nil, nil, nil}, b.Rows()[0])
}

type failingRecord struct{}

func (failingRecord) Value(record.ValueLocator) (record.ServiceValue, error) {
	return nil, errors.New("record unavailable")
}

func TestSchemaWriterAdd(t *testing.T) {
	schema, err := page.NewSchema(page.ColumnSpec{Name: "n", Type: page.Long})
	require.NoError(t, err)
	b := &recordingBuilder{}

	w := NewSchemaWriter().Add(NewLongColumnWriter(schema.Column(0), record.NewFieldLocator("n")))
	require.NoError(t, w.Write(jsonRecord(t, `{"n": 1}`), b))
	assert.Equal(t, []string{"long", "add"}, b.calls)
}

func TestColumnWriterRecordError(t *testing.T) {
	col := page.Column{Name: "n", Type: page.Long}
	err := NewLongColumnWriter(col, record.NewFieldLocator("n")).WriteColumnResponsible(failingRecord{}, &recordingBuilder{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record unavailable")
}

func TestFromSchemaOverrides(t *testing.T) {
	schema, err := page.NewSchema(
		page.ColumnSpec{Name: "user", Type: page.String},
		page.ColumnSpec{Name: "seen", Type: page.Timestamp},
	)
	require.NoError(t, err)

	userLocator, err := record.NewJSONPointerLocator("/profile/name")
	require.NoError(t, err)
	seenParser, err := record.NewTimestampParser("%d/%m/%Y", nil)
	require.NoError(t, err)

	w, err := FromSchema(schema, Options{
		Locators:         map[string]record.ValueLocator{"user": userLocator},
		TimestampParsers: map[string]*record.TimestampParser{"seen": seenParser},
	})
	require.NoError(t, err)

	b := page.NewMemoryPageBuilder(schema)
	require.NoError(t, w.Write(jsonRecord(t, `{"profile": {"name": "ada"}, "seen": "10/12/2023"}`), b))
	assert.Equal(t, page.Row{"ada", time.Date(2023, 12, 10, 0, 0, 0, 0, time.UTC)}, b.Rows()[0])
}
