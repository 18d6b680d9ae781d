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
	"sort"
	"strings"

	"github.com/abcxyz/cmdkit/cmderror"
)

// Validate walks the tree depth first and returns a
// [cmderror.StructuralDefinition] error for the first malformed node. The
// error's additional details hold the node as JSON. Validate never modifies the
// tree.
func Validate(root *Definition) error {
	if root == nil {
		return cmderror.New(cmderror.StructuralDefinition,
			"the command definition tree must not be nil")
	}
	return validateNode(root, true)
}

func validateNode(d *Definition, isRoot bool) error {
	if d.Name == "" && d.Description == "" && d.Type == "" {
		props := definedProperties(d)
		return structuralError(d, "command definition node does not contain any of the "+
			"required fields (name, description, type); either the definition is "+
			"incorrect or it was not registered with the tree (properties present: %s)",
			strings.Join(props, ","))
	}

	if !isRoot && strings.TrimSpace(d.Name) == "" {
		return structuralError(d, "command definition node contains an undefined or empty name")
	}

	if d.Handler != "" && len(d.ChainedHandlers) > 0 {
		return structuralError(d, "command definition node (%s) contains both a handler and "+
			"chained handler configuration, the two are mutually exclusive", d.Name)
	}

	for i, h := range d.ChainedHandlers {
		for _, m := range h.ArgumentMapping {
			if err := validateMapping(h, &m, i, len(d.ChainedHandlers)); err != nil {
				return err
			}
		}
	}

	if strings.TrimSpace(string(d.Type)) == "" {
		return structuralError(d, "command definition node (%s) contains an undefined or empty type", d.Name)
	}

	if !isRoot && strings.TrimSpace(d.Description) == "" {
		return structuralError(d, "command definition node (%s of type %s) contains an "+
			"undefined or empty description", d.Name, d.Type)
	}

	for i := range d.Options {
		if err := validateOption(d, &d.Options[i]); err != nil {
			return err
		}
	}

	for i := range d.Positionals {
		if err := validatePositional(d, &d.Positionals[i]); err != nil {
			return err
		}
	}

	for _, c := range d.Children {
		if c == nil {
			return structuralError(d, "command definition node (%s of type %s) contains "+
				"ill-formed children", d.Name, d.Type)
		}
	}

	if d.IsGroup() && len(d.Children) == 0 {
		return structuralError(d, "group command definition node (%s) contains no children, "+
			"a group implies children", d.Name)
	}

	for _, c := range d.Children {
		if err := validateNode(c, false); err != nil {
			return err
		}
	}
	return nil
}

func validateMapping(h ChainedHandler, m *ArgumentMapping, index, total int) error {
	msg := fmt.Sprintf("property to argument mapping is invalid for chained handler: %s", h.Handler)

	if m.To == "" {
		return cmderror.New(cmderror.StructuralDefinition, msg).
			WithDetails("argument mapping does not have a 'to' field, unable to " +
				"determine where to place the arguments for this chained handler")
	}

	if m.From != "" && m.Value != nil {
		return cmderror.New(cmderror.StructuralDefinition, msg).
			WithDetails("argument mapping has both a 'from' field and a 'value' field, " +
				"these two fields are mutually exclusive")
	}

	for _, ahead := range m.Targets() {
		if index+ahead >= total {
			return cmderror.New(cmderror.StructuralDefinition, msg).
				WithDetails(fmt.Sprintf("the mapping refers to a relative index %d that when "+
					"added to its absolute index (%d) is greater than the total number of "+
					"handlers (%d)", ahead, index, total))
		}
	}
	return nil
}

func validateOption(d *Definition, o *Option) error {
	details := func() string {
		return "OPTION_DEFINITION:\n" + mustJSON(o) + "\nCOMMAND_DEFINITION:\n" + detailsJSON(d)
	}

	if strings.TrimSpace(o.Name) == "" {
		return cmderror.New(cmderror.StructuralDefinition,
			"option definition contains an undefined or empty name").WithDetails(details())
	}
	if strings.TrimSpace(string(o.Type)) == "" {
		return cmderror.Newf(cmderror.StructuralDefinition,
			"option definition (%s) contains an undefined or empty type", o.Name).WithDetails(details())
	}
	if strings.TrimSpace(o.Description) == "" {
		return cmderror.Newf(cmderror.StructuralDefinition,
			"option definition (%s of type %s) contains an undefined or empty description",
			o.Name, o.Type).WithDetails(details())
	}
	return nil
}

func validatePositional(d *Definition, p *Positional) error {
	details := func() string {
		return "POSITIONAL_DEFINITION:\n" + mustJSON(p) + "\nCOMMAND_DEFINITION:\n" + detailsJSON(d)
	}

	if strings.TrimSpace(p.Name) == "" {
		return cmderror.New(cmderror.StructuralDefinition,
			"positional definition contains an undefined or empty name").WithDetails(details())
	}
	if strings.TrimSpace(string(p.Type)) == "" {
		return cmderror.Newf(cmderror.StructuralDefinition,
			"positional definition (%s) contains an undefined or empty type", p.Name).WithDetails(details())
	}
	if strings.TrimSpace(p.Description) == "" {
		return cmderror.Newf(cmderror.StructuralDefinition,
			"positional definition (%s of type %s) contains an undefined or empty description",
			p.Name, p.Type).WithDetails(details())
	}
	return nil
}

func structuralError(d *Definition, format string, args ...any) error {
	return cmderror.Newf(cmderror.StructuralDefinition, format, args...).WithDetails(detailsJSON(d))
}

// definedProperties lists the JSON names of the properties set on d.
func definedProperties(d *Definition) []string {
	var props []string
	add := func(name string, set bool) {
		if set {
			props = append(props, name)
		}
	}
	add("aliases", len(d.Aliases) > 0)
	add("options", len(d.Options) > 0)
	add("positionals", len(d.Positionals) > 0)
	add("children", len(d.Children) > 0)
	add("handler", d.Handler != "")
	add("chainedHandlers", len(d.ChainedHandlers) > 0)
	add("profile", d.Profile != nil)
	add("passOn", len(d.PassOn) > 0)
	extra := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	return append(props, extra...)
}
