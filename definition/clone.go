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

	"github.com/abcxyz/cmdkit/cmderror"
)

// Clone returns a deep copy of the tree rooted at d. Nodes reachable more than
// once are copied once per reference. It fails if a node is its own ancestor
// or if a value anywhere in the tree cannot be copied, such as a function or a
// channel stored in an option default or a trait value.
func Clone(d *Definition) (*Definition, error) {
	if d == nil {
		return nil, nil
	}

	c := &cloner{
		nodes: make(map[*Definition]struct{}),
		refs:  make(map[uintptr]struct{}),
	}
	out, err := c.definition(d, []string{nodeLabel(d)})
	if err != nil {
		return nil, cmderror.Newf(cmderror.StructuralDefinition,
			"failed to copy the command definition tree: %s", err)
	}
	return out, nil
}

// cloner tracks the nodes and reference values on the current copy path. A
// revisit while still on the path is a cycle.
type cloner struct {
	nodes map[*Definition]struct{}
	refs  map[uintptr]struct{}
}

func (c *cloner) definition(d *Definition, path []string) (*Definition, error) {
	if _, ok := c.nodes[d]; ok {
		return nil, fmt.Errorf("circular reference at %s: a node is its own ancestor",
			strings.Join(path, " > "))
	}
	c.nodes[d] = struct{}{}
	defer delete(c.nodes, d)

	out := *d
	out.Aliases = cloneSlice(d.Aliases)
	out.Examples = cloneSlice(d.Examples)

	if d.Options != nil {
		out.Options = make([]Option, len(d.Options))
		for i := range d.Options {
			opt, err := c.option(&d.Options[i], path)
			if err != nil {
				return nil, err
			}
			out.Options[i] = opt
		}
	}

	out.Positionals = cloneSlice(d.Positionals)

	if d.ChainedHandlers != nil {
		out.ChainedHandlers = make([]ChainedHandler, len(d.ChainedHandlers))
		for i, h := range d.ChainedHandlers {
			h.ArgumentMapping = cloneSlice(h.ArgumentMapping)
			for j := range h.ArgumentMapping {
				m := &h.ArgumentMapping[j]
				m.ApplyToHandlers = cloneSlice(m.ApplyToHandlers)
				v, err := c.value(m.Value, pathString(path, "chainedHandlers", h.Handler, m.To))
				if err != nil {
					return nil, err
				}
				m.Value = v
			}
			out.ChainedHandlers[i] = h
		}
	}

	if d.Profile != nil {
		out.Profile = &ProfileSpec{
			Required:        cloneSlice(d.Profile.Required),
			Optional:        cloneSlice(d.Profile.Optional),
			SuppressOptions: cloneSlice(d.Profile.SuppressOptions),
		}
	}

	if d.PassOn != nil {
		out.PassOn = make([]Trait, len(d.PassOn))
		for i, t := range d.PassOn {
			t.IgnoreNodes = cloneSlice(t.IgnoreNodes)
			v, err := c.value(t.Value, pathString(path, "passOn", t.Property))
			if err != nil {
				return nil, err
			}
			t.Value = v
			out.PassOn[i] = t
		}
	}

	if d.Extra != nil {
		out.Extra = make(map[string]any, len(d.Extra))
		for k, v := range d.Extra {
			cv, err := c.value(v, pathString(path, k))
			if err != nil {
				return nil, err
			}
			out.Extra[k] = cv
		}
	}

	if d.Children != nil {
		out.Children = make([]*Definition, len(d.Children))
		for i, child := range d.Children {
			if child == nil {
				continue
			}
			cc, err := c.definition(child, append(path[:len(path):len(path)], nodeLabel(child)))
			if err != nil {
				return nil, err
			}
			out.Children[i] = cc
		}
	}

	return &out, nil
}

func (c *cloner) option(o *Option, path []string) (Option, error) {
	out := *o
	out.Aliases = cloneSlice(o.Aliases)
	out.ConflictsWith = cloneSlice(o.ConflictsWith)
	out.Implies = cloneSlice(o.Implies)
	if o.AllowableValues != nil {
		out.AllowableValues = &AllowableValues{
			Values:        cloneSlice(o.AllowableValues.Values),
			CaseSensitive: o.AllowableValues.CaseSensitive,
		}
	}

	v, err := c.value(o.DefaultValue, pathString(path, "options", o.Name, "defaultValue"))
	if err != nil {
		return Option{}, err
	}
	out.DefaultValue = v
	return out, nil
}

// value deep copies an arbitrary value.
func (c *cloner) value(v any, path string) (any, error) {
	if v == nil {
		return nil, nil
	}
	out, err := c.reflectValue(reflect.ValueOf(v), path)
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

var definitionPtrType = reflect.TypeOf((*Definition)(nil))

func (c *cloner) reflectValue(v reflect.Value, path string) (reflect.Value, error) {
	switch v.Kind() { //nolint:exhaustive // Scalars share the default case
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return reflect.Value{}, fmt.Errorf("value at %s of type %s cannot be copied", path, v.Type())

	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type()), nil
		}
		inner, err := c.reflectValue(v.Elem(), path)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(inner)
		return out, nil

	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type()), nil
		}
		if v.Type() == definitionPtrType {
			d := v.Interface().(*Definition) //nolint:forcetypeassert // Checked above
			out, err := c.definition(d, []string{path, nodeLabel(d)})
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(out), nil
		}
		done, err := c.enter(v.Pointer(), path)
		if err != nil {
			return reflect.Value{}, err
		}
		defer done()

		elem, err := c.reflectValue(v.Elem(), path)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(elem)
		return out, nil

	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type()), nil
		}
		done, err := c.enter(v.Pointer(), path)
		if err != nil {
			return reflect.Value{}, err
		}
		defer done()

		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			val, err := c.reflectValue(iter.Value(), fmt.Sprintf("%s.%v", path, iter.Key()))
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(iter.Key(), val)
		}
		return out, nil

	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type()), nil
		}
		if v.Len() > 0 {
			done, err := c.enter(v.Pointer(), path)
			if err != nil {
				return reflect.Value{}, err
			}
			defer done()
		}

		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := c.reflectValue(v.Index(i), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil

	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			elem, err := c.reflectValue(v.Index(i), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil

	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if !out.Field(i).CanSet() {
				continue
			}
			f, err := c.reflectValue(v.Field(i), path+"."+v.Type().Field(i).Name)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Field(i).Set(f)
		}
		return out, nil

	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out, nil
	}
}

// enter marks a reference as being on the copy path. The returned function
// removes the mark.
func (c *cloner) enter(ptr uintptr, path string) (func(), error) {
	if _, ok := c.refs[ptr]; ok {
		return nil, fmt.Errorf("circular reference at %s: a value contains itself", path)
	}
	c.refs[ptr] = struct{}{}
	return func() { delete(c.refs, ptr) }, nil
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func nodeLabel(d *Definition) string {
	if d.Name == "" {
		return "(root)"
	}
	return d.Name
}

func pathString(path []string, parts ...string) string {
	return strings.Join(append(path[:len(path):len(path)], parts...), " > ")
}
