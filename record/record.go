// Package record abstracts the records a REST service returns. A ServiceRecord hands
// out ServiceValues found by a ValueLocator, and a ServiceValue converts itself to
// the column types of package page.
package record

import (
	"errors"
	"fmt"
	"time"
)

// ErrConversion is wrapped by every failed value conversion.
var ErrConversion = errors.New("record: value conversion failed")

// ServiceRecord is one record of a service response.
type ServiceRecord interface {
	// Value returns the value found by locator, or nil when there is none.
	Value(locator ValueLocator) (ServiceValue, error)
}

// ServiceValue is a single value of a record. Conversions fail with an error
// wrapping ErrConversion when the value cannot represent the requested type.
type ServiceValue interface {
	IsNull() bool
	BooleanValue() (bool, error)
	LongValue() (int64, error)
	DoubleValue() (float64, error)
	StringValue() (string, error)
	TimestampValue(parser *TimestampParser) (time.Time, error)
	JSONValue() (any, error)
}

// ValueLocator finds a value inside a decoded document.
type ValueLocator interface {
	Locate(document any) (value any, found bool)
	String() string
}

func conversionError(v any, target string) error {
	return fmt.Errorf("%w: cannot convert %T %v to %s", ErrConversion, v, v, target)
}
