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

// Package profile manages named, schema-validated configuration bundles
// ("profiles") persisted as YAML files, one directory per profile type.
package profile

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Dependency names another profile this profile depends on.
type Dependency struct {
	Type string `json:"type" yaml:"type"`
	Name string `json:"name" yaml:"name"`
}

func (d Dependency) String() string {
	return fmt.Sprintf("Type: %q Name: %q", d.Type, d.Name)
}

// Profile is one profile instance. Name and Type are not written to the
// profile file; they come from its location.
type Profile struct {
	Name         string
	Type         string
	Dependencies []Dependency
	Values       map[string]Value
}

// New builds a profile from plain Go values, such as those decoded from YAML.
func New(typ, name string, values map[string]any, deps ...Dependency) (*Profile, error) {
	p := &Profile{
		Name:         name,
		Type:         typ,
		Dependencies: deps,
		Values:       make(map[string]Value, len(values)),
	}
	for k, v := range values {
		val, err := ValueOf(v)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", k, err)
		}
		p.Values[k] = val
	}
	return p, nil
}

// Get returns the value at a dot-separated property path.
func (p *Profile) Get(path string) (Value, bool) {
	return lookupPath(p.Values, path)
}

// Set stores a value at a dot-separated property path.
func (p *Profile) Set(path string, v Value) {
	if p.Values == nil {
		p.Values = make(map[string]Value)
	}
	setPath(p.Values, path, v)
}

// Unset removes the value at a dot-separated property path.
func (p *Profile) Unset(path string) {
	deletePath(p.Values, path)
}

// Empty reports whether the profile has no properties and no dependency list.
func (p *Profile) Empty() bool {
	return len(p.Values) == 0 && p.Dependencies == nil
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := &Profile{
		Name: p.Name,
		Type: p.Type,
	}
	if p.Dependencies != nil {
		out.Dependencies = append(make([]Dependency, 0, len(p.Dependencies)), p.Dependencies...)
	}
	if p.Values != nil {
		out.Values = make(map[string]Value, len(p.Values))
		for k, v := range p.Values {
			out.Values[k] = v.Clone()
		}
	}
	return out
}

// Document returns the profile as plain data in its on-disk shape: every
// property plus "dependencies" when the list is set.
func (p *Profile) Document() map[string]any {
	doc := make(map[string]any, len(p.Values)+1)
	for k, v := range p.Values {
		doc[k] = v.Interface()
	}
	if p.Dependencies != nil {
		deps := make([]any, len(p.Dependencies))
		for i, d := range p.Dependencies {
			deps[i] = map[string]any{"type": d.Type, "name": d.Name}
		}
		doc[dependenciesProperty] = deps
	}
	return doc
}

// Decode copies the profile's properties into target, which is usually a
// pointer to a struct whose fields carry json tags.
func (p *Profile) Decode(target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  target,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(p.Document()); err != nil {
		return fmt.Errorf("failed to decode profile %q of type %q: %w", p.Name, p.Type, err)
	}
	return nil
}

// fromDocument is the inverse of [Profile.Document]. The reserved "name" and
// "type" keys are dropped.
func fromDocument(typ, name string, doc map[string]any) (*Profile, error) {
	p := &Profile{
		Name:   name,
		Type:   typ,
		Values: make(map[string]Value, len(doc)),
	}
	for k, v := range doc {
		switch k {
		case "name", "type":
			continue
		case dependenciesProperty:
			if v == nil {
				continue
			}
			if _, ok := v.([]any); !ok {
				return nil, fmt.Errorf("the profile (name %q of type %q) has dependencies as a property, "+
					"but it is NOT an array (ill-formed)", name, typ)
			}
			var deps []Dependency
			if err := mapstructure.Decode(v, &deps); err != nil {
				return nil, fmt.Errorf("the profile (name %q of type %q) has ill-formed dependencies: %w",
					name, typ, err)
			}
			if deps == nil {
				deps = []Dependency{}
			}
			p.Dependencies = deps
		default:
			val, err := ValueOf(v)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", k, err)
			}
			p.Values[k] = val
		}
	}
	return p, nil
}
