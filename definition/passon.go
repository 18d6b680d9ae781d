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

package definition

import (
	"fmt"
	"reflect"
	"strings"

	"dario.cat/mergo"
	"github.com/mitchellh/mapstructure"

	"github.com/abcxyz/cmdkit/cmderror"
)

// traitFields maps the JSON property names of [Definition] to field indexes.
// Properties outside this map are stored in Definition.Extra.
var traitFields = func() map[string]int {
	t := reflect.TypeOf(Definition{})
	m := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		m[name] = i
	}
	return m
}()

// PopulateTraitValues resolves every trait declared without a value by
// copying the declaring node's own property. It must run once, before
// [PassOn]. A trait whose property is also unset is a
// [cmderror.TraitPropagation] error.
func PopulateTraitValues(root *Definition) error {
	return Walk(root, func(d *Definition, _ []*Definition) error {
		for i := range d.PassOn {
			t := &d.PassOn[i]
			if t.Value != nil {
				continue
			}

			v, ok := propertyValue(d, t.Property)
			if !ok {
				return cmderror.Newf(cmderror.TraitPropagation,
					"cannot pass on a trait (%s) with a value of undefined "+
						"(current command definition name: %s of type %s)",
					t.Property, d.Name, d.Type)
			}

			cv, err := cloneValue(v)
			if err != nil {
				return cmderror.Newf(cmderror.TraitPropagation,
					"failed to copy trait (%s) of %s: %s", t.Property, d.Name, err)
			}
			t.Value = cv
		}
		return nil
	})
}

// PassOn applies the inherited traits to d, then recurses into the children
// with d's own traits placed ahead of the inherited ones. Traits are applied in
// list order, so a farther ancestor's overwrite wins and its merged array
// values land after those of nearer ancestors.
func PassOn(d *Definition, inherited []Trait) error {
	for i := range inherited {
		t := &inherited[i]
		if ignored(d, t) {
			continue
		}
		if err := applyTrait(d, t); err != nil {
			return err
		}
	}

	next := make([]Trait, 0, len(d.PassOn)+len(inherited))
	next = append(next, d.PassOn...)
	next = append(next, inherited...)
	for _, c := range d.Children {
		if c == nil {
			continue
		}
		if err := PassOn(c, next); err != nil {
			return err
		}
	}
	return nil
}

func ignored(d *Definition, t *Trait) bool {
	for i := range t.IgnoreNodes {
		if t.IgnoreNodes[i].Matches(d) {
			return true
		}
	}
	return false
}

// applyTrait writes a copy of the trait's value into d. With Merge, arrays are
// appended to and objects are deep merged with the incoming value winning on
// conflicting leaves.
func applyTrait(d *Definition, t *Trait) error {
	if t.Value == nil {
		return cmderror.Newf(cmderror.TraitPropagation,
			"the trait (%s) to pass on cannot have a value of undefined "+
				"(current definition name: %s of type: %s)", t.Property, d.Name, d.Type)
	}

	value, err := cloneValue(t.Value)
	if err != nil {
		return traitError(d, t, err)
	}

	idx, ok := traitFields[t.Property]
	if !ok {
		if err := applyExtra(d, t, value); err != nil {
			return traitError(d, t, err)
		}
		return nil
	}

	fv := reflect.ValueOf(d).Elem().Field(idx)
	switch {
	case t.Merge && fv.Kind() == reflect.Slice:
		add, err := convertAppend(value, fv.Type())
		if err != nil {
			return traitError(d, t, err)
		}
		fv.Set(reflect.AppendSlice(fv, add))

	case t.Merge && fv.Kind() == reflect.Pointer && !fv.IsNil():
		incoming, err := convert(value, fv.Type())
		if err != nil {
			return traitError(d, t, err)
		}
		if err := mergo.Merge(fv.Interface(), incoming.Interface(),
			mergo.WithOverride, mergo.WithAppendSlice); err != nil {
			return traitError(d, t, err)
		}

	default:
		v, err := convert(value, fv.Type())
		if err != nil {
			return traitError(d, t, err)
		}
		fv.Set(v)
	}
	return nil
}

func applyExtra(d *Definition, t *Trait, value any) error {
	if d.Extra == nil {
		d.Extra = make(map[string]any)
	}

	existing := d.Extra[t.Property]
	if t.Merge && existing != nil {
		ev := reflect.ValueOf(existing)
		switch ev.Kind() { //nolint:exhaustive // Everything else is overwritten
		case reflect.Slice:
			add, err := convertAppend(value, ev.Type())
			if err != nil {
				return err
			}
			d.Extra[t.Property] = reflect.AppendSlice(ev, add).Interface()
			return nil
		case reflect.Map:
			cur, curOK := existing.(map[string]any)
			add, addOK := value.(map[string]any)
			if curOK && addOK {
				d.Extra[t.Property] = mergeMaps(cur, add)
				return nil
			}
		}
	}

	d.Extra[t.Property] = value
	return nil
}

// mergeMaps deep merges src into dst. Nested maps merge recursively, arrays are
// concatenated, and src wins for everything else.
func mergeMaps(dst, src map[string]any) map[string]any {
	for k, sv := range src {
		switch s := sv.(type) {
		case map[string]any:
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = mergeMaps(dm, s)
				continue
			}
		case []any:
			if da, ok := dst[k].([]any); ok {
				dst[k] = append(da, s...)
				continue
			}
		}
		dst[k] = sv
	}
	return dst
}

// propertyValue returns the value of the named property on d and whether it
// is set.
func propertyValue(d *Definition, property string) (any, bool) {
	if idx, ok := traitFields[property]; ok {
		fv := reflect.ValueOf(d).Elem().Field(idx)
		if fv.IsZero() {
			return nil, false
		}
		return fv.Interface(), true
	}

	v, ok := d.Extra[property]
	return v, ok && v != nil
}

// convert returns value as typ, assigning directly when the types are
// compatible and decoding otherwise, e.g. a map[string]any from a document
// into an [Option].
func convert(value any, typ reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(typ) {
		return rv, nil
	}
	if typ.Kind() == reflect.Pointer && rv.Type().AssignableTo(typ.Elem()) {
		ptr := reflect.New(typ.Elem())
		ptr.Elem().Set(rv)
		return ptr, nil
	}

	out := reflect.New(typ)
	if err := decode(value, out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot use %T as %s: %w", value, typ, err)
	}
	return out.Elem(), nil
}

// convertAppend returns value as a slice of typ. Arrays convert element-wise;
// any other value becomes a single element.
func convertAppend(value any, typ reflect.Type) (reflect.Value, error) {
	switch reflect.ValueOf(value).Kind() { //nolint:exhaustive // Only lists are special
	case reflect.Slice, reflect.Array:
		return convert(value, typ)
	}

	elem, err := convert(value, typ.Elem())
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.Append(reflect.MakeSlice(typ, 0, 1), elem), nil
}

// decode decodes generic document values into typed targets using the JSON
// property names.
func decode(in, out any) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := d.Decode(in); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}
	return nil
}

func cloneValue(v any) (any, error) {
	c := &cloner{
		nodes: make(map[*Definition]struct{}),
		refs:  make(map[uintptr]struct{}),
	}
	return c.value(v, "value")
}

func traitError(d *Definition, t *Trait, err error) error {
	return cmderror.Newf(cmderror.TraitPropagation,
		"failed to pass on trait (%s) to %s of type %s: %s", t.Property, d.Name, d.Type, err)
}
