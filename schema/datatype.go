package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DataType is the type of the value held by a property.
type DataType string

const (
	String DataType = "string"
	Text   DataType = "text"
	Number DataType = "number"
	Float  DataType = "float"
	Bool   DataType = "bool"
	Date   DataType = "date"
)

// DateLayouts are the layouts accepted when parsing Date values, tried in
// order.
var DateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func ParseDataType(s string) (DataType, error) {
	dt := DataType(strings.ToLower(strings.TrimSpace(s)))
	if !dt.Valid() {
		return "", fmt.Errorf("unknown data type %q", s)
	}
	return dt, nil
}

func (dt DataType) Valid() bool {
	switch dt {
	case String, Text, Number, Float, Bool, Date:
		return true
	}
	return false
}

// ParseNative parses text into the Go representation of dt:
// string, int64, float64, bool or time.Time.
func (dt DataType) ParseNative(text string) (any, error) {
	switch dt {
	case String, Text:
		return text, nil
	case Number:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", dt, text)
		}
		return n, nil
	case Float:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", dt, text)
		}
		return f, nil
	case Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", dt, text)
		}
		return b, nil
	case Date:
		for _, layout := range DateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(text)); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("invalid %s %q", dt, text)
	}
	return nil, fmt.Errorf("unknown data type %q", string(dt))
}
