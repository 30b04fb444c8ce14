package record

import (
	"fmt"
	"time"

	"github.com/ncruces/go-strftime"
)

// DefaultTimestampFormat matches "2006-01-02 15:04:05 +0000".
const DefaultTimestampFormat = "%Y-%m-%d %H:%M:%S %z"

// TimestampParser parses timestamps written in a strftime format. Values without a
// zone are read in the parser's location.
type TimestampParser struct {
	format   string
	layout   string
	location *time.Location
}

// NewTimestampParser compiles format. A nil location means UTC.
func NewTimestampParser(format string, location *time.Location) (*TimestampParser, error) {
	layout, err := strftime.Layout(format)
	if err != nil {
		return nil, fmt.Errorf("record: invalid timestamp format %q: %w", format, err)
	}
	if location == nil {
		location = time.UTC
	}
	return &TimestampParser{format: format, layout: layout, location: location}, nil
}

// Parse reads value in the parser's format.
func (p *TimestampParser) Parse(value string) (time.Time, error) {
	t, err := time.ParseInLocation(p.layout, value, p.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q does not match %q: %v", ErrConversion, value, p.format, err)
	}
	return t, nil
}

// Format returns the strftime format the parser was built with.
func (p *TimestampParser) Format() string { return p.format }
