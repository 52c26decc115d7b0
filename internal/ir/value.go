package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the value types a canonical document may
// hold. Only String, Int, Bool, Array and Object implement it. There is no
// float and no null.
type Value interface {
	value()
}

// String is a string value.
type String string

func (String) value() {}

// Int is an integer value. Always int64.
type Int int64

func (Int) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Array is an ordered list of values.
type Array []Value

func (Array) value() {}

// Object maps keys to values. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) value() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's string comparison orders by UTF-8 bytes, which differs above U+FFFF.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// FromJSON decodes a JSON document into a Value. Floats are rejected. Null
// object members and empty arrays or objects are dropped; a null anywhere
// else is an error.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after document")
	}
	v, ok, err := convert(raw)
	if err != nil {
		return nil, err
	}
	if ok {
		return v, nil
	}
	switch raw.(type) {
	case []any:
		return Array{}, nil
	case map[string]any:
		return Object{}, nil
	}
	return nil, fmt.Errorf("document is null")
}

// FromGo encodes v with encoding/json and decodes the result with FromJSON.
// Types with MarshalJSON or MarshalText methods keep their encoding.
func FromGo(v any) (Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return FromJSON(data)
}

// convert reports ok=false for values an enclosing object omits.
func convert(v any) (Value, bool, error) {
	switch val := v.(type) {
	case nil:
		return nil, false, nil
	case bool:
		return Bool(val), true, nil
	case string:
		return String(val), true, nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, false, fmt.Errorf("floats are forbidden: %s", val)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, false, fmt.Errorf("number out of int64 range: %s", val)
		}
		return Int(n), true, nil
	case []any:
		if len(val) == 0 {
			return nil, false, nil
		}
		arr := make(Array, len(val))
		for i, elem := range val {
			v, ok, err := convert(elem)
			if err != nil {
				return nil, false, fmt.Errorf("array[%d]: %w", i, err)
			}
			if !ok {
				// positions matter in arrays; keep the slot as an empty object
				v = Object{}
			}
			arr[i] = v
		}
		return arr, true, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			v, ok, err := convert(elem)
			if err != nil {
				return nil, false, fmt.Errorf("object[%q]: %w", k, err)
			}
			if ok {
				obj[k] = v
			}
		}
		if len(obj) == 0 {
			return nil, false, nil
		}
		return obj, true, nil
	default:
		return nil, false, fmt.Errorf("unsupported type: %T", v)
	}
}
