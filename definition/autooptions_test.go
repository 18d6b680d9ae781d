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
	"testing"

	"github.com/google/go-cmp/cmp"
)

type optionList []Option

func (o optionList) OptionDefinitions() []Option { return o }

func optionNames(opts []Option) []string {
	names := make([]string, 0, len(opts))
	for _, o := range opts {
		names = append(names, o.Name)
	}
	return names
}

func TestAppendAutoOptions(t *testing.T) {
	t.Parallel()

	base := []Option{
		{Name: "host", Type: OptionString, Description: "host", Aliases: []string{"H"}},
		{Name: "port", Type: OptionNumber, Description: "port"},
	}

	cases := []struct {
		name string
		def  *Definition
		base []Option
		exp  []string
	}{
		{
			name: "globals",
			def:  &Definition{Name: "c", Type: TypeCommand},
			exp:  []string{"response-format-json", "help", "help-web"},
		},
		{
			name: "profile_options",
			def: &Definition{
				Name:    "c",
				Type:    TypeCommand,
				Profile: &ProfileSpec{Required: []string{"zosmf"}, Optional: []string{"tso"}},
			},
			exp: []string{"response-format-json", "help", "help-web", "zosmf-profile", "tso-profile"},
		},
		{
			name: "suppressed_profile_options",
			def: &Definition{
				Name: "c",
				Type: TypeCommand,
				Profile: &ProfileSpec{
					Required:        []string{"zosmf", "tso"},
					SuppressOptions: []string{"tso"},
				},
			},
			exp: []string{"response-format-json", "help", "help-web", "zosmf-profile"},
		},
		{
			name: "base_options_with_multiple_types",
			def: &Definition{
				Name:    "c",
				Type:    TypeCommand,
				Options: []Option{{Name: "port", Type: OptionNumber, Description: "own port"}},
				Profile: &ProfileSpec{Required: []string{"zosmf"}, Optional: []string{"base"}},
			},
			base: base,
			exp:  []string{"port", "response-format-json", "help", "help-web", "zosmf-profile", "base-profile", "host"},
		},
		{
			name: "base_options_with_single_type",
			def: &Definition{
				Name:    "c",
				Type:    TypeCommand,
				Profile: &ProfileSpec{Required: []string{"zosmf"}},
			},
			base: base,
			exp:  []string{"response-format-json", "help", "help-web", "zosmf-profile"},
		},
		{
			name: "base_options_without_profile",
			def:  &Definition{Name: "c", Type: TypeCommand},
			base: base,
			exp:  []string{"response-format-json", "help", "help-web"},
		},
		{
			name: "stdin",
			def:  &Definition{Name: "c", Type: TypeCommand, EnableStdin: true},
			exp:  []string{"response-format-json", "help", "help-web", "stdin"},
		},
		{
			name: "output_format",
			def:  &Definition{Name: "c", Type: TypeCommand, OutputFormatOptions: true},
			exp: []string{
				"response-format-json", "help", "help-web",
				"response-format-filter", "response-format-type", "response-format-header",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			AppendAutoOptions(tc.def, tc.base)
			if diff := cmp.Diff(tc.exp, optionNames(tc.def.Options)); diff != "" {
				t.Errorf("options mismatch (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestAppendAutoOptions_profileOption(t *testing.T) {
	t.Parallel()

	d := &Definition{Name: "c", Type: TypeCommand, Profile: &ProfileSpec{Required: []string{"banana"}}}
	AppendAutoOptions(d, nil)

	got, ok := d.Option("banana-profile")
	if !ok {
		t.Fatal("expected banana-profile option")
	}
	exp := &Option{
		Name:        "banana-profile",
		Aliases:     []string{"banana-p"},
		Group:       ProfileGroup,
		Description: "The name of a (banana) profile to load for this command execution.",
		Type:        OptionString,
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Errorf("option mismatch (-want, +got):\n%s", diff)
	}
}

func TestAppendAutoOptions_normalize(t *testing.T) {
	t.Parallel()

	d := &Definition{
		Name:                   "c",
		Type:                   TypeCommand,
		EnableStdin:            true,
		StdinOptionDescription: "Read the payload from stdin",
		Options: []Option{
			{Name: "req", Type: OptionString, Description: "d", Required: true},
			{Name: "opt", Type: OptionString, Description: "d"},
			{Name: "grouped", Type: OptionString, Description: "d", Group: "Custom", Aliases: []string{"g"}},
		},
	}
	AppendAutoOptions(d, nil)

	req, _ := d.Option("req")
	opt, _ := d.Option("opt")
	grouped, _ := d.Option("grouped")
	stdin, _ := d.Option("stdin")

	checks := []struct {
		got, want any
	}{
		{req.Group, RequiredOptionsGroup},
		{opt.Group, OptionsGroup},
		{grouped.Group, "Custom"},
		{req.Aliases, []string{}},
		{grouped.Aliases, []string{"g"}},
		{stdin.Group, OptionsGroup},
		{stdin.Description, "Read the payload from stdin"},
		{stdin.Aliases, []string{StdinOptionAlias}},
	}
	for i, c := range checks {
		if diff := cmp.Diff(c.want, c.got); diff != "" {
			t.Errorf("check %d mismatch (-want, +got):\n%s", i, diff)
		}
	}
}

func TestAppendAutoOptions_experimental(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		def  *Definition
		exp  map[string]bool
	}{
		{
			name: "all_children_experimental",
			def: &Definition{
				Name: "g",
				Type: TypeGroup,
				Children: []*Definition{
					{Name: "a", Type: TypeCommand, Experimental: true},
					{Name: "b", Type: TypeCommand, Experimental: true},
				},
			},
			exp: map[string]bool{"g": true, "a": true, "b": true},
		},
		{
			name: "some_children_experimental",
			def: &Definition{
				Name: "g",
				Type: TypeGroup,
				Children: []*Definition{
					{Name: "a", Type: TypeCommand, Experimental: true},
					{Name: "b", Type: TypeCommand},
				},
			},
			exp: map[string]bool{"g": false, "a": true, "b": false},
		},
		{
			name: "parent_cascades",
			def: &Definition{
				Name:         "g",
				Type:         TypeGroup,
				Experimental: true,
				Children: []*Definition{
					{
						Name: "inner",
						Type: TypeGroup,
						Children: []*Definition{
							{Name: "leaf", Type: TypeCommand},
						},
					},
				},
			},
			exp: map[string]bool{"g": true, "inner": true, "leaf": true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			AppendAutoOptions(tc.def, nil)

			got := make(map[string]bool)
			_ = Walk(tc.def, func(d *Definition, _ []*Definition) error {
				got[d.Name] = d.Experimental
				return nil
			})
			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Errorf("experimental mismatch (-want, +got):\n%s", diff)
			}
		})
	}
}
