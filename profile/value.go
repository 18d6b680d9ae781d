// Copyright 2023 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package profile

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind discriminates the variants of a [Value].
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is one profile property value. The zero value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	obj  map[string]Value
	arr  []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

func NewString(s string) Value { return Value{kind: KindString, str: s} }

func NewNumber(f float64) Value { return Value{kind: KindNumber, num: f} }

func NewBool(b bool) Value { return Value{kind: KindBool, b: b} }

// NewObject returns an object value. A nil map produces an empty object.
func NewObject(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindObject, obj: m}
}

// NewArray returns an array value.
func NewArray(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{kind: KindArray, arr: vs}
}

// ValueOf converts a decoded YAML or JSON value, or a Go scalar, slice or map
// of those, into a Value.
func ValueOf(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return NewString(t), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return NewNumber(f), nil
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := ValueOf(e)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = ev
		}
		return NewObject(out), nil
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			ev, err := ValueOf(e)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = ev
		}
		return NewArray(out...), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() { //nolint:exhaustive // Everything else is unsupported
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewNumber(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewNumber(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return NewNumber(rv.Float()), nil
	case reflect.String:
		return NewString(rv.String()), nil
	case reflect.Bool:
		return NewBool(rv.Bool()), nil
	case reflect.Slice, reflect.Array:
		out := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = ev
		}
		return NewArray(out...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ev, err := ValueOf(iter.Value().Interface())
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", iter.Key().String(), err)
			}
			out[iter.Key().String()] = ev
		}
		return NewObject(out), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		return ValueOf(rv.Elem().Interface())
	}
	return Value{}, fmt.Errorf("unsupported profile value type %T", v)
}

// MustValueOf is like [ValueOf], but panics on error.
func MustValueOf(v any) Value {
	out, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return out
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsObject returns the object's entries. The map is shared with v.
func (v Value) AsObject() (map[string]Value, bool) { return v.obj, v.kind == KindObject }

// AsArray returns the array's elements. The slice is shared with v.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// Interface returns the value as plain Go data: nil, string, float64 (int
// when integral), bool, map[string]any or []any.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1<<53 {
			return int(v.num)
		}
		return v.num
	case KindBool:
		return v.b
	case KindObject:
		m := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			m[k] = e.Interface()
		}
		return m
	case KindArray:
		s := make([]any, len(v.arr))
		for i, e := range v.arr {
			s[i] = e.Interface()
		}
		return s
	default:
		return nil
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindObject:
		m := make(map[string]Value, len(v.obj))
		for k, e := range v.obj {
			m[k] = e.Clone()
		}
		return NewObject(m)
	case KindArray:
		s := make([]Value, len(v.arr))
		for i, e := range v.arr {
			s[i] = e.Clone()
		}
		return NewArray(s...)
	default:
		return v
	}
}

// Equal reports whether v and o hold the same data.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, e := range v.obj {
			oe, ok := o.obj[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders the value as compact JSON.
func (v Value) String() string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return string(b)
}

// MarshalJSON implements [json.Marshaler].
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface()) //nolint:wrapcheck // Want passthrough
}

// UnmarshalJSON implements [json.Unmarshaler].
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err //nolint:wrapcheck // Want passthrough
	}
	out, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// MarshalYAML implements [yaml.Marshaler].
func (v Value) MarshalYAML() (any, error) {
	return v.Interface(), nil
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err //nolint:wrapcheck // Want passthrough
	}
	out, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// lookupPath returns the value at a dot-separated path in values.
func lookupPath(values map[string]Value, path string) (Value, bool) {
	parts := strings.Split(path, ".")
	cur, ok := values[parts[0]]
	if !ok {
		return Value{}, false
	}
	for _, p := range parts[1:] {
		obj, isObj := cur.AsObject()
		if !isObj {
			return Value{}, false
		}
		if cur, ok = obj[p]; !ok {
			return Value{}, false
		}
	}
	return cur, true
}

// setPath stores val at a dot-separated path, creating intermediate objects.
// An intermediate value that is not an object is replaced.
func setPath(values map[string]Value, path string, val Value) {
	parts := strings.Split(path, ".")
	m := values
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].AsObject()
		if !ok {
			next = map[string]Value{}
			m[p] = NewObject(next)
		}
		m = next
	}
	m[parts[len(parts)-1]] = val
}

// deletePath removes the value at a dot-separated path, if present.
func deletePath(values map[string]Value, path string) {
	parts := strings.Split(path, ".")
	m := values
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].AsObject()
		if !ok {
			return
		}
		m = next
	}
	delete(m, parts[len(parts)-1])
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
