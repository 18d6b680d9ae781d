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

import "slices"

// Merge returns base with update layered on top. Objects are merged key by
// key; arrays and scalars from update replace those in base. When update
// lists dependencies, they replace the base dependencies of the same types.
// Neither argument is modified.
func Merge(base, update *Profile) *Profile {
	if base == nil {
		return update.Clone()
	}
	out := base.Clone()
	if update == nil {
		return out
	}

	if update.Name != "" {
		out.Name = update.Name
	}
	if update.Type != "" {
		out.Type = update.Type
	}
	if out.Values == nil {
		out.Values = make(map[string]Value, len(update.Values))
	}
	mergeValues(out.Values, update.Values)

	if update.Dependencies != nil {
		types := make([]string, 0, len(update.Dependencies))
		for _, d := range update.Dependencies {
			types = append(types, d.Type)
		}
		deps := make([]Dependency, 0, len(out.Dependencies)+len(update.Dependencies))
		for _, d := range out.Dependencies {
			if !slices.Contains(types, d.Type) {
				deps = append(deps, d)
			}
		}
		out.Dependencies = append(deps, update.Dependencies...)
	}
	return out
}

func mergeValues(dst, src map[string]Value) {
	for k, v := range src {
		existing, ok := dst[k].AsObject()
		incoming, isObj := v.AsObject()
		if ok && isObj {
			merged := make(map[string]Value, len(existing)+len(incoming))
			for ek, ev := range existing {
				merged[ek] = ev
			}
			mergeValues(merged, incoming)
			dst[k] = NewObject(merged)
			continue
		}
		dst[k] = v.Clone()
	}
}
