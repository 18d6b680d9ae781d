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

package cmdprofile

import (
	"slices"

	"github.com/abcxyz/cmdkit/cmderror"
	"github.com/abcxyz/cmdkit/profile"
)

// Profiles are the profiles loaded for one command invocation. A type may
// have several instances: the profile loaded for the type itself comes first,
// followed by instances loaded as dependencies of other profiles.
type Profiles struct {
	byType map[string][]*profile.Profile
	order  []string
}

// NewProfiles returns an empty set.
func NewProfiles() *Profiles {
	return &Profiles{byType: make(map[string][]*profile.Profile)}
}

// Add appends p to the instances of its type.
func (p *Profiles) Add(prof *profile.Profile) {
	if _, ok := p.byType[prof.Type]; !ok {
		p.order = append(p.order, prof.Type)
	}
	p.byType[prof.Type] = append(p.byType[prof.Type], prof)
}

// addDependencies adds the dependencies of l depth first.
func (p *Profiles) addDependencies(l *profile.Loaded) {
	for _, d := range l.DependencyLoadResponses {
		if d == nil || d.Profile == nil {
			continue
		}
		p.Add(d.Profile)
		p.addDependencies(d)
	}
}

// Get returns the most specific profile of typ: the first one loaded.
func (p *Profiles) Get(typ string) (*profile.Profile, bool) {
	all := p.byType[typ]
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

// Require is like [Profiles.Get], but a missing type is an error.
func (p *Profiles) Require(typ string) (*profile.Profile, error) {
	prof, ok := p.Get(typ)
	if !ok {
		return nil, cmderror.Newf(cmderror.NotFound,
			"Internal Error: No profiles of type %q were loaded for this command.", typ)
	}
	return prof, nil
}

// GetAll returns every loaded instance of typ.
func (p *Profiles) GetAll(typ string) []*profile.Profile {
	return slices.Clone(p.byType[typ])
}

// Types returns the loaded types in the order they were first added.
func (p *Profiles) Types() []string {
	return slices.Clone(p.order)
}
