package content

import (
	"strconv"
	"time"

	"github.com/signadot/tony-format/contentstore/schema"
)

// Value is the value of a property node. A nil *Value is empty.
//
// A NoAccess value stands in for a value the caller may not read: its
// content fields are zero and it compares equal only to other NoAccess
// values.
type Value struct {
	Type  schema.DataType
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Time  time.Time

	NoAccess bool
}

func String(s string) *Value           { return &Value{Type: schema.String, Str: s} }
func Text(s string) *Value             { return &Value{Type: schema.Text, Str: s} }
func Int(i int64) *Value               { return &Value{Type: schema.Number, Int: i} }
func Float(f float64) *Value           { return &Value{Type: schema.Float, Float: f} }
func Bool(b bool) *Value               { return &Value{Type: schema.Bool, Bool: b} }
func Time(t time.Time) *Value          { return &Value{Type: schema.Date, Time: t} }
func hidden(dt schema.DataType) *Value { return &Value{Type: dt, NoAccess: true} }

// ParseValue parses text as a value of the given data type.
func ParseValue(dt schema.DataType, text string) (*Value, error) {
	native, err := dt.ParseNative(text)
	if err != nil {
		return nil, err
	}
	v := FromNative(native)
	v.Type = dt
	return v, nil
}

// FromNative wraps a string, int64, int, float64, bool or time.Time.
// It returns nil for other types.
func FromNative(x any) *Value {
	switch x := x.(type) {
	case string:
		return String(x)
	case int64:
		return Int(x)
	case int:
		return Int(int64(x))
	case float64:
		return Float(x)
	case bool:
		return Bool(x)
	case time.Time:
		return Time(x)
	}
	return nil
}

func (v *Value) IsEmpty() bool {
	if v == nil {
		return true
	}
	if v.NoAccess {
		return false
	}
	switch v.Type {
	case schema.String, schema.Text, "":
		return v.Str == ""
	}
	return false
}

// Native returns the Go representation of v, nil if empty or hidden.
func (v *Value) Native() any {
	if v.IsEmpty() || v.NoAccess {
		return nil
	}
	switch v.Type {
	case schema.Number:
		return v.Int
	case schema.Float:
		return v.Float
	case schema.Bool:
		return v.Bool
	case schema.Date:
		return v.Time
	}
	return v.Str
}

// Text returns the textual form accepted by ParseValue.
func (v *Value) Text() string {
	if v.IsEmpty() || v.NoAccess {
		return ""
	}
	switch v.Type {
	case schema.Number:
		return strconv.FormatInt(v.Int, 10)
	case schema.Float:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case schema.Bool:
		return strconv.FormatBool(v.Bool)
	case schema.Date:
		return v.Time.Format(time.RFC3339Nano)
	}
	return v.Str
}

func (v *Value) String() string {
	switch {
	case v == nil:
		return "<empty>"
	case v.NoAccess:
		return "<no access>"
	case v.IsEmpty():
		return "<empty>"
	case v.Type == schema.String || v.Type == schema.Text:
		return strconv.Quote(v.Str)
	}
	return v.Text()
}

func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	res := *v
	return &res
}

// Equal compares values. Empty values are equal to each other and hidden
// values are compared by their wrapped state only.
func (v *Value) Equal(o *Value) bool {
	ve, oe := v.IsEmpty(), o.IsEmpty()
	if ve || oe {
		return ve == oe
	}
	if v.NoAccess || o.NoAccess {
		return v.NoAccess == o.NoAccess
	}
	if !compatible(v.Type, o.Type) {
		return false
	}
	switch v.Type {
	case schema.Number:
		return v.Int == o.Int
	case schema.Float:
		return v.Float == o.Float
	case schema.Bool:
		return v.Bool == o.Bool
	case schema.Date:
		return v.Time.Equal(o.Time)
	}
	return v.Str == o.Str
}

func compatible(a, b schema.DataType) bool {
	if a == b {
		return true
	}
	return isText(a) && isText(b)
}

func isText(dt schema.DataType) bool {
	return dt == schema.String || dt == schema.Text || dt == ""
}
