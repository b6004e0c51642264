package ir

import (
	"fmt"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the element kinds a pipeline can carry.
// Only String, Int, Bool, List and Record implement it.
type Value interface {
	irValue()
}

// String is a text element.
type String string

func (String) irValue() {}

// Int is an integer element. Always int64, never float.
type Int int64

func (Int) irValue() {}

// Bool is a boolean element.
type Bool bool

func (Bool) irValue() {}

// List is an ordered sequence of values.
type List []Value

func (List) irValue() {}

// Record maps string keys to values.
// Use SortedKeys for deterministic iteration.
type Record map[string]Value

func (Record) irValue() {}

// Values converts native Go values to a slice of Value, panicking on
// unsupported kinds. Intended for pipeline construction in code and tests
// where the inputs are literals.
func Values(vals ...any) []Value {
	out := make([]Value, len(vals))
	for i, v := range vals {
		iv, err := FromAny(v)
		if err != nil {
			panic(fmt.Sprintf("ir.Values[%d]: %v", i, err))
		}
		out[i] = iv
	}
	return out
}

// FromAny converts a decoded YAML/JSON or native Go value into a Value.
// Nulls and non-integral floats are rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null values are not valid pipeline elements")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return Int(val), nil
	case float64:
		// YAML decoders may hand back integral numbers as float64.
		if val == float64(int64(val)) {
			return Int(int64(val)), nil
		}
		return nil, fmt.Errorf("floats are not valid pipeline elements: %v", val)
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			iv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = iv
		}
		return list, nil
	case map[string]any:
		rec := make(Record, len(val))
		for k, elem := range val {
			iv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			rec[k] = iv
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unsupported element type %T", v)
	}
}

// ToAny converts a Value back to plain Go values (string, int64, bool,
// []any, map[string]any), e.g. for YAML or JSON output.
func ToAny(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Record:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}

// SortedKeys returns keys ordered by UTF-16 code units, the same order
// used by the canonical encoding.
func (r Record) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// compareUTF16 compares strings by UTF-16 code units.
// Byte-wise comparison of UTF-8 gives a different order for
// supplementary-plane characters.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
