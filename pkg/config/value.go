package config

import (
	"fmt"
	"strconv"

	"github.com/tidelinelabs/tideline/pkg/errors"
)

// Kind enumerates the scalar kinds a configuration value may hold.
// Pipeline and collection configurations are flat string-to-scalar records;
// nesting is rejected at construction.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	}
	return "unknown"
}

// Value is a tagged scalar: exactly one of the typed fields is meaningful,
// selected by Kind.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
}

func String(v string) Value { return Value{kind: KindString, s: v} }
func Int(v int64) Value     { return Value{kind: KindInt, i: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func Bool(v bool) Value     { return Value{kind: KindBool, b: v} }

// FromAny converts a decoded scalar into a Value. Maps, slices and other
// non-scalar types are rejected, which is what enforces the flatness
// invariant when reading config files.
func FromAny(v interface{}) (Value, error) {
	switch t := v.(type) {
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float64:
		return Float(t), nil
	case bool:
		return Bool(t), nil
	default:
		return Value{}, errors.Newf(errors.ErrConfigValid,
			"config values must be flat scalars, got %T", v)
	}
}

// Kind returns the scalar kind of the value.
func (v Value) Kind() Kind { return v.kind }

// StringVal returns the string content; zero value for other kinds.
func (v Value) StringVal() string { return v.s }

// IntVal returns the integer content; zero value for other kinds.
func (v Value) IntVal() int64 { return v.i }

// FloatVal returns the float content; zero value for other kinds.
func (v Value) FloatVal() float64 { return v.f }

// BoolVal returns the boolean content; zero value for other kinds.
func (v Value) BoolVal() bool { return v.b }

// Interface returns the underlying scalar as an interface value, suitable
// for YAML encoding.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	default:
		return v.s
	}
}

// Equal reports whether two values hold the same kind and content.
func (v Value) Equal(other Value) bool {
	return v == other
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// Parse converts raw text into a value of the same kind as the receiver.
// Used when resolving schema defaults against user-supplied strings.
func (v Value) Parse(raw string) (Value, error) {
	switch v.kind {
	case KindString:
		return String(raw), nil
	case KindInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, errors.Wrapf(err, errors.ErrConfigValid, "%q is not an integer", raw)
		}
		return Int(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, errors.Wrapf(err, errors.ErrConfigValid, "%q is not a float", raw)
		}
		return Float(f), nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, errors.Wrapf(err, errors.ErrConfigValid, "%q is not a boolean", raw)
		}
		return Bool(b), nil
	}
	return Value{}, fmt.Errorf("unknown kind %d", v.kind)
}
