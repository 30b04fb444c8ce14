package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/jsonpointer"
)

// JSONRecord is a record decoded from a JSON object. Numbers keep their textual
// form so long columns are not rounded through float64.
type JSONRecord struct {
	doc any
}

// NewJSONRecord decodes data as a single JSON document.
func NewJSONRecord(data []byte) (*JSONRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("record: decode json: %w", err)
	}
	return &JSONRecord{doc: doc}, nil
}

// NewJSONRecordFromValue wraps an already decoded document.
func NewJSONRecordFromValue(doc any) *JSONRecord {
	return &JSONRecord{doc: doc}
}

// NewJSONRecords decodes a JSON array into one record per element.
func NewJSONRecords(data []byte) ([]*JSONRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var docs []any
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("record: decode json array: %w", err)
	}
	records := make([]*JSONRecord, len(docs))
	for i, doc := range docs {
		records[i] = &JSONRecord{doc: doc}
	}
	return records, nil
}

func (r *JSONRecord) Value(locator ValueLocator) (ServiceValue, error) {
	v, found := locator.Locate(r.doc)
	if !found {
		return nil, nil
	}
	return JSONValue{v: v}, nil
}

// JSONPointerLocator locates values with an RFC 6901 JSON pointer.
type JSONPointerLocator struct {
	ptr jsonpointer.Pointer
}

// NewJSONPointerLocator parses pointer, e.g. "/user/name".
func NewJSONPointerLocator(pointer string) (*JSONPointerLocator, error) {
	ptr, err := jsonpointer.New(pointer)
	if err != nil {
		return nil, fmt.Errorf("record: invalid json pointer %q: %w", pointer, err)
	}
	return &JSONPointerLocator{ptr: ptr}, nil
}

// NewFieldLocator locates the top-level field name.
func NewFieldLocator(name string) *JSONPointerLocator {
	escaped := strings.NewReplacer("~", "~0", "/", "~1").Replace(name)
	// A leading "/" with escaped tokens is always a valid pointer.
	l, _ := NewJSONPointerLocator("/" + escaped)
	return l
}

func (l *JSONPointerLocator) Locate(document any) (any, bool) {
	v, _, err := l.ptr.Get(document)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (l *JSONPointerLocator) String() string {
	return l.ptr.String()
}

// JSONValue is a value decoded from JSON: nil, bool, json.Number, string, []any or
// map[string]any.
type JSONValue struct {
	v any
}

func (j JSONValue) IsNull() bool { return j.v == nil }

func (j JSONValue) BooleanValue() (bool, error) {
	switch v := j.v.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, conversionError(v, "boolean")
		}
		return b, nil
	}
	return false, conversionError(j.v, "boolean")
}

func (j JSONValue) LongValue() (int64, error) {
	switch v := j.v.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, conversionError(v, "long")
		}
		return int64(f), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, conversionError(v, "long")
		}
		return n, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, conversionError(j.v, "long")
}

func (j JSONValue) DoubleValue() (float64, error) {
	switch v := j.v.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, conversionError(v, "double")
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, conversionError(v, "double")
		}
		return f, nil
	}
	return 0, conversionError(j.v, "double")
}

// StringValue returns strings as is and any other value as its JSON text.
func (j JSONValue) StringValue() (string, error) {
	switch v := j.v.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	b, err := json.Marshal(j.v)
	if err != nil {
		return "", conversionError(j.v, "string")
	}
	return string(b), nil
}

// TimestampValue parses strings with parser. Numbers are seconds since the Unix
// epoch, fractions included.
func (j JSONValue) TimestampValue(parser *TimestampParser) (time.Time, error) {
	switch v := j.v.(type) {
	case string:
		if parser == nil {
			return time.Time{}, fmt.Errorf("%w: no timestamp parser for %q", ErrConversion, v)
		}
		return parser.Parse(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, conversionError(v, "timestamp")
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
	}
	return time.Time{}, conversionError(j.v, "timestamp")
}

func (j JSONValue) JSONValue() (any, error) {
	return j.v, nil
}
