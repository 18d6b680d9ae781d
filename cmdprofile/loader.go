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

// Package cmdprofile loads the profiles a command declares before its handler
// runs.
package cmdprofile

import (
	"context"
	"fmt"
	"sync"

	"github.com/abcxyz/cmdkit/cmderror"
	"github.com/abcxyz/cmdkit/definition"
	"github.com/abcxyz/cmdkit/logging"
	"github.com/abcxyz/cmdkit/profile"
)

// TypeLoader loads one profile of a type. [profile.Store] implements it.
type TypeLoader interface {
	Load(ctx context.Context, typ string, opts profile.LoadOptions) (*profile.Loaded, error)
}

var _ TypeLoader = (*profile.Store)(nil)

// Loader loads the required and optional profiles of a prepared command
// definition.
type Loader struct {
	def    *definition.Definition
	loader TypeLoader
}

// NewLoader creates a loader for the command def.
func NewLoader(def *definition.Definition, loader TypeLoader) (*Loader, error) {
	if def == nil {
		return nil, cmderror.New(cmderror.ProfileConfiguration,
			"a command definition is required to load profiles")
	}
	if loader == nil {
		return nil, cmderror.Newf(cmderror.ProfileConfiguration,
			"a profile loader is required for command %q", def.Name)
	}
	return &Loader{
		def:    def,
		loader: loader,
	}, nil
}

type result struct {
	typ      string
	required bool
	loaded   *profile.Loaded
	err      error
}

// Load loads one profile per declared type, in parallel. The name comes from
// the "--<type>-profile" argument, falling back to the type's default.
//
// The first failing required type, in declaration order, fails the whole load
// with the loader's error returned as is. Optional types that fail or do not
// exist are left out.
func (l *Loader) Load(ctx context.Context, args map[string]any) (*Profiles, error) {
	logger := logging.FromContext(ctx)

	spec := l.def.Profile
	out := NewProfiles()
	if spec == nil {
		return out, nil
	}

	results := make([]*result, 0, len(spec.Required)+len(spec.Optional))
	for _, typ := range spec.Required {
		results = append(results, &result{typ: typ, required: true})
	}
	for _, typ := range spec.Optional {
		results = append(results, &result{typ: typ})
	}

	var wg sync.WaitGroup
	for _, r := range results {
		opts := loadOptions(r.typ, args)
		opts.AllowNotFound = !r.required

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.DebugContext(ctx, "loading command profile",
				"command", l.def.Name,
				"type", r.typ,
				"name", opts.Name,
				"required", r.required)
			r.loaded, r.err = l.loader.Load(ctx, r.typ, opts)
		}()
	}
	wg.Wait()

	loaded := make([]*profile.Loaded, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			if r.required {
				return nil, r.err
			}
			logger.DebugContext(ctx, "omitting optional profile",
				"command", l.def.Name,
				"type", r.typ,
				"error", r.err)
			continue
		}
		if r.loaded == nil || r.loaded.NotFound || r.loaded.Profile == nil {
			continue
		}
		loaded = append(loaded, r.loaded)
	}

	// Requested profiles precede any instance of their type loaded as a
	// dependency.
	for _, ld := range loaded {
		out.Add(ld.Profile)
	}
	for _, ld := range loaded {
		out.addDependencies(ld)
	}
	return out, nil
}

func loadOptions(typ string, args map[string]any) profile.LoadOptions {
	opt, _ := definition.ProfileOptionName(typ)
	if v, ok := args[opt]; ok && v != nil {
		if name := fmt.Sprint(v); name != "" {
			return profile.LoadOptions{Name: name}
		}
	}
	return profile.LoadOptions{LoadDefault: true}
}
