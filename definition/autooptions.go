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
	"slices"
)

// Option names and groups appended to every prepared node.
const (
	GlobalGroup          = "Global Options"
	ProfileGroup         = "Profile Options"
	RequiredOptionsGroup = "Required Options"
	OptionsGroup         = "Options"

	JSONOption           = "response-format-json"
	JSONOptionAlias      = "rfj"
	HelpOption           = "help"
	HelpOptionAlias      = "h"
	HelpWebOption        = "help-web"
	HelpWebOptionAlias   = "hw"
	HelpExamplesOption   = "help-examples"
	ShowInputsOnlyOption = "show-inputs-only"
	StdinOption          = "stdin"
	StdinOptionAlias     = "pipe"

	ResponseFormatFilterOption = "response-format-filter"
	ResponseFormatTypeOption   = "response-format-type"
	ResponseFormatHeaderOption = "response-format-header"

	// DefaultStdinDescription describes the stdin option when the node does
	// not supply its own description.
	DefaultStdinDescription = "Pipe data into this command via stdin"
)

// ProfileOptionName returns the option that selects a profile of the given
// type and its alias, e.g. "zosmf-profile" and "zosmf-p".
func ProfileOptionName(profileType string) (name, alias string) {
	return profileType + "-profile", profileType + "-p"
}

// ResponseFormatOptions returns the options appended to nodes that set
// OutputFormatOptions.
func ResponseFormatOptions() []Option {
	return []Option{
		{
			Name:    ResponseFormatFilterOption,
			Aliases: []string{"rff"},
			Group:   "Response Format Options",
			Type:    OptionArray,
			Description: "Filter (include) fields in the response. Accepts an array of " +
				"field or property names to include in the output response. Nested " +
				"properties are separated by dots.",
		},
		{
			Name:    ResponseFormatTypeOption,
			Aliases: []string{"rft"},
			Group:   "Response Format Options",
			Type:    OptionString,
			Description: "The command response output format type. Must be one of " +
				"table, list, object, or string.",
			AllowableValues: &AllowableValues{
				Values: []string{"table", "list", "object", "string"},
			},
		},
		{
			Name:        ResponseFormatHeaderOption,
			Aliases:     []string{"rfh"},
			Group:       "Response Format Options",
			Type:        OptionBoolean,
			Description: "If \"--response-format-type table\" is specified, include the column headers in the output.",
		},
	}
}

// globalOptions are appended to every node.
func globalOptions() []Option {
	return []Option{
		{
			Name:        JSONOption,
			Aliases:     []string{JSONOptionAlias},
			Group:       GlobalGroup,
			Description: "Produce JSON formatted data from a command",
			Type:        OptionBoolean,
		},
		{
			Name:        HelpOption,
			Aliases:     []string{HelpOptionAlias},
			Group:       GlobalGroup,
			Description: "Display help text",
			Type:        OptionBoolean,
		},
		{
			Name:        HelpWebOption,
			Aliases:     []string{HelpWebOptionAlias},
			Group:       GlobalGroup,
			Description: "Display HTML help in browser",
			Type:        OptionBoolean,
		},
	}
}

// builtinTraits are attached to the root before propagation.
func builtinTraits() []Trait {
	return []Trait{
		{
			Property: "options",
			Value: Option{
				Name:        HelpExamplesOption,
				Group:       GlobalGroup,
				Description: "Display examples for all the commands in a group",
				Type:        OptionBoolean,
			},
			IgnoreNodes: []NodeFilter{{Type: TypeCommand}},
			Merge:       true,
		},
		{
			Property: "options",
			Value: Option{
				Name:        ShowInputsOnlyOption,
				Group:       GlobalGroup,
				Description: "Show command inputs and do not run the command",
				Type:        OptionBoolean,
			},
			IgnoreNodes: []NodeFilter{{Type: TypeGroup}},
			Merge:       true,
		},
	}
}

// AppendAutoOptions appends the global, profile, stdin, and response format
// options to d and its descendants, and derives the experimental flag: a node
// whose children are all experimental becomes experimental, and an
// experimental node marks all of its descendants experimental.
//
// Each call appends again; preparing an already prepared tree duplicates the
// appended options.
func AppendAutoOptions(d *Definition, baseProfileOptions []Option) {
	d.Options = append(d.Options, globalOptions()...)

	if d.Profile != nil {
		types := d.Profile.Types()
		for _, typ := range types {
			if slices.Contains(d.Profile.SuppressOptions, typ) {
				continue
			}
			name, alias := ProfileOptionName(typ)
			d.Options = append(d.Options, Option{
				Name:        name,
				Aliases:     []string{alias},
				Group:       ProfileGroup,
				Description: fmt.Sprintf("The name of a (%s) profile to load for this command execution.", typ),
				Type:        OptionString,
			})
		}

		// A base profile's options surface on commands that combine it with
		// another profile type.
		if len(baseProfileOptions) > 0 && len(types) > 1 {
			for _, opt := range baseProfileOptions {
				if _, ok := d.Option(opt.Name); !ok {
					d.Options = append(d.Options, copyOption(opt))
				}
			}
		}
	}

	if len(d.Children) > 0 {
		all := true
		for _, c := range d.Children {
			if !c.Experimental {
				all = false
				break
			}
		}
		if all {
			d.Experimental = true
		}
	}

	for _, c := range d.Children {
		if d.Experimental {
			c.Experimental = true
		}
		AppendAutoOptions(c, baseProfileOptions)
	}
	if d.Children == nil {
		d.Children = []*Definition{}
	}

	if d.EnableStdin {
		desc := d.StdinOptionDescription
		if desc == "" {
			desc = DefaultStdinDescription
		}
		d.Options = append(d.Options, Option{
			Name:        StdinOption,
			Aliases:     []string{StdinOptionAlias},
			Type:        OptionBoolean,
			Description: desc,
		})
	}

	for i := range d.Options {
		o := &d.Options[i]
		if o.Group == "" {
			if o.Required {
				o.Group = RequiredOptionsGroup
			} else {
				o.Group = OptionsGroup
			}
		}
		if o.Aliases == nil {
			o.Aliases = []string{}
		}
	}

	if d.OutputFormatOptions {
		d.Options = append(d.Options, ResponseFormatOptions()...)
	}
}

// copyOption copies the option's lists so nodes never share them.
func copyOption(o Option) Option {
	o.Aliases = cloneSlice(o.Aliases)
	o.ConflictsWith = cloneSlice(o.ConflictsWith)
	o.Implies = cloneSlice(o.Implies)
	if o.AllowableValues != nil {
		av := *o.AllowableValues
		av.Values = cloneSlice(av.Values)
		o.AllowableValues = &av
	}
	return o
}
