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
	"context"
	"fmt"

	"github.com/abcxyz/cmdkit/cmderror"
	"github.com/abcxyz/cmdkit/definition"
)

// Args are parsed command arguments keyed by option name.
type Args map[string]any

// ArgsRequest is passed to an [ArgsHandler]. Existing is set for updates.
type ArgsRequest struct {
	Type     string
	Name     string
	Args     Args
	Existing *Profile
}

// ArgsHandler builds a profile from command arguments. Type configurations
// name handlers, which are resolved through the store's handler registry.
type ArgsHandler func(ctx context.Context, req *ArgsRequest) (*Profile, error)

// BuildFromArgs creates a profile named name from command arguments. When the
// type configuration names a create handler, the handler builds the values.
// Otherwise every schema property with an option definition takes the argument
// of that option. Either way, each "--<type>-profile" argument becomes a
// dependency.
func (m *Manager) BuildFromArgs(ctx context.Context, name string, args Args) (*Profile, error) {
	if m.config.CreateHandler != "" {
		return m.runHandler(ctx, m.config.CreateHandler, &ArgsRequest{
			Type: m.typ,
			Name: name,
			Args: args,
		})
	}
	return m.mapArgs(name, args)
}

// mapArgs builds a profile from args without consulting any handler.
func (m *Manager) mapArgs(name string, args Args) (*Profile, error) {
	p := &Profile{
		Name:   name,
		Type:   m.typ,
		Values: make(map[string]Value),
	}
	if err := m.valuesFromArgs(p, args); err != nil {
		return nil, err
	}
	p.Dependencies = m.dependenciesFromArgs(args)
	return p, nil
}

func (m *Manager) runHandler(ctx context.Context, id string, req *ArgsRequest) (*Profile, error) {
	h, err := m.store.handlers.Lookup(id)
	if err != nil {
		return nil, err
	}
	p, err := h(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("handler %q failed for profile %q of type %q: %w", id, req.Name, req.Type, err)
	}
	if p == nil {
		return nil, cmderror.Newf(cmderror.ProfileConfiguration,
			"handler %q returned no profile for %q of type %q", id, req.Name, req.Type)
	}
	p.Name = req.Name
	p.Type = req.Type
	if deps := m.dependenciesFromArgs(req.Args); deps != nil {
		p.Dependencies = deps
	}
	return p, nil
}

func (m *Manager) valuesFromArgs(p *Profile, args Args) error {
	var err error
	m.config.Schema.walkProperties(func(path string, prop *Property) bool {
		if err != nil {
			return false
		}
		opts := prop.OptionDefinitions
		if prop.OptionDefinition != nil {
			opts = append([]definition.Option{*prop.OptionDefinition}, opts...)
		}
		for _, o := range opts {
			raw, ok := args[o.Name]
			if !ok || raw == nil {
				continue
			}
			v, verr := ValueOf(raw)
			if verr != nil {
				err = cmderror.Newf(cmderror.ProfileValidation,
					"The value of option %q cannot be stored in property %q: %s", o.Name, path, verr)
				return false
			}
			p.Set(path, v)
			break
		}
		return true
	})
	return err
}

// dependenciesFromArgs returns nil when the type declares no dependencies.
func (m *Manager) dependenciesFromArgs(args Args) []Dependency {
	if len(m.config.Dependencies) == 0 {
		return nil
	}
	deps := make([]Dependency, 0, len(m.config.Dependencies))
	for _, spec := range m.config.Dependencies {
		opt, _ := definition.ProfileOptionName(spec.Type)
		name, ok := args[opt].(string)
		if !ok || name == "" {
			continue
		}
		deps = append(deps, Dependency{Type: spec.Type, Name: name})
	}
	return deps
}

// ArgsSaveOptions controls [Manager.SaveFromArgs].
type ArgsSaveOptions struct {
	Name          string
	Args          Args
	Overwrite     bool
	UpdateDefault bool
}

// SaveFromArgs builds a profile with [Manager.BuildFromArgs] and saves it.
func (m *Manager) SaveFromArgs(ctx context.Context, opts ArgsSaveOptions) (*Saved, error) {
	p, err := m.BuildFromArgs(ctx, opts.Name, opts.Args)
	if err != nil {
		return nil, err
	}
	return m.Save(ctx, SaveOptions{
		Profile:       p,
		Overwrite:     opts.Overwrite,
		UpdateDefault: opts.UpdateDefault,
	})
}

// ArgsUpdateOptions controls [Manager.UpdateFromArgs].
type ArgsUpdateOptions struct {
	Name  string
	Args  Args
	Merge bool
}

// UpdateFromArgs updates a stored profile from command arguments. An update
// handler receives the stored profile and returns its replacement. Otherwise
// the arguments are mapped onto the schema properties, ignoring any create
// handler, and merged when requested.
func (m *Manager) UpdateFromArgs(ctx context.Context, opts ArgsUpdateOptions) (*Updated, error) {
	var (
		p     *Profile
		merge = opts.Merge
	)
	if m.config.UpdateHandler != "" {
		old, err := m.Load(ctx, LoadOptions{
			Name:             opts.Name,
			SkipDependencies: true,
		})
		if err != nil {
			return nil, err
		}
		if p, err = m.runHandler(ctx, m.config.UpdateHandler, &ArgsRequest{
			Type:     m.typ,
			Name:     opts.Name,
			Args:     opts.Args,
			Existing: old.Profile,
		}); err != nil {
			return nil, err
		}
		merge = false
	} else {
		var err error
		if p, err = m.mapArgs(opts.Name, opts.Args); err != nil {
			return nil, err
		}
	}

	updated, err := m.Update(ctx, UpdateOptions{
		Profile: p,
		Merge:   merge,
	})
	if err != nil {
		kind, ok := cmderror.KindOf(err)
		if !ok {
			kind = cmderror.ProfileIO
		}
		return nil, cmderror.Newf(kind,
			"An error occurred while saving the modified profile (%q of type %q): %s",
			opts.Name, m.typ, err).WithCauses(err)
	}
	return updated, nil
}
