package protocol

import (
	"bytes"
	"encoding/json"

	"golang.org/x/exp/constraints"
)

// Value is a node of the wire tree. The tree is JSON-shaped: a Value
// is nil, bool, a number, string, Array or Object. Numbers produced
// by this package are float64; numbers read back are accepted in any
// Go numeric type or as json.Number.
type Value = any

type Object = map[string]any

type Array = []any

func String(v Value) (str string, ok bool) {
	str, ok = v.(string)
	return
}

func Bool(v Value) (b bool, ok bool) {
	b, ok = v.(bool)
	return
}

// Number converts a numeric wire value into N. Integer targets reject
// fractional values.
func Number[N constraints.Integer | constraints.Float](v Value) (N, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		return N(n), true
	case int64:
		return N(n), true
	case int32:
		return N(n), true
	case uint32:
		return N(n), true
	case uint64:
		return N(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return N(i), true
		}
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	var zero N
	if isInteger(zero) && f != float64(int64(f)) {
		return 0, false
	}
	return N(f), true
}

func isInteger[N constraints.Integer | constraints.Float](n N) bool {
	n = 1
	n /= 2
	return n == 0
}

func AsArray(v Value) (arr Array, ok bool) {
	arr, ok = v.(Array)
	return
}

func AsObject(v Value) (obj Object, ok bool) {
	obj, ok = v.(Object)
	return
}

// Field looks a key up in an object value.
func Field(v Value, name string) (Value, bool) {
	obj, ok := v.(Object)
	if !ok {
		return nil, false
	}
	field, ok := obj[name]
	return field, ok
}

func StringField(v Value, name string) (string, bool) {
	f, ok := Field(v, name)
	if !ok {
		return "", false
	}
	return String(f)
}

func NumberField[N constraints.Integer | constraints.Float](v Value, name string) (N, bool) {
	f, ok := Field(v, name)
	if !ok {
		return 0, false
	}
	return Number[N](f)
}

func BoolField(v Value, name string) (bool, bool) {
	f, ok := Field(v, name)
	if !ok {
		return false, false
	}
	return Bool(f)
}

// Float3 reads a fixed three-element numeric array.
func Float3(v Value) (ret [3]float64, ok bool) {
	arr, ok := AsArray(v)
	if !ok || len(arr) != 3 {
		return ret, false
	}
	for i := range ret {
		if ret[i], ok = Number[float64](arr[i]); !ok {
			return ret, false
		}
	}
	return ret, true
}

func PackFloat3(v [3]float64) Value {
	return Array{v[0], v[1], v[2]}
}

// Encode serializes a wire tree.
func Encode(v Value) ([]byte, error) {
	return json.Marshal(v)
}

// Decode parses a wire tree. Numbers come back as float64.
func Decode(data []byte) (Value, error) {
	var v Value
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
