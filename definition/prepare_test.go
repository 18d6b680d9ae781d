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
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/abcxyz/cmdkit/cmderror"
	"github.com/abcxyz/cmdkit/logging"
	"github.com/abcxyz/cmdkit/testutil"
)

func sampleTree() *Definition {
	return &Definition{
		Type:        TypeGroup,
		Description: "sample cli",
		Children: []*Definition{
			{
				Name:        "files",
				Type:        TypeGroup,
				Description: "file commands",
				PassOn: []Trait{
					{Property: "profile", Value: &ProfileSpec{Required: []string{"zosmf"}}},
				},
				Children: []*Definition{
					{
						Name:        "list",
						Type:        TypeCommand,
						Description: "list files",
						Handler:     "files.list",
						Options: []Option{
							{Name: "path", Type: OptionString, Description: "path to list", Required: true},
						},
					},
				},
			},
		},
	}
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	ctx := logging.WithLogger(context.Background(), logging.TestLogger(t))

	original := sampleTree()
	got, err := Prepare(ctx, original, nil)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(sampleTree(), original); diff != "" {
		t.Errorf("original was modified (-want, +got):\n%s", diff)
	}

	files, _ := got.Child("files")
	list, _ := files.Child("list")

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"root options", optionNames(got.Options), []string{"response-format-json", "help", "help-web"}},
		{"group options", optionNames(files.Options), []string{"help-examples", "response-format-json", "help", "help-web"}},
		{"command options", optionNames(list.Options), []string{
			"path", "show-inputs-only", "response-format-json", "help", "help-web", "zosmf-profile",
		}},
		{"command profile", list.Profile, &ProfileSpec{Required: []string{"zosmf"}}},
		{"group profile", files.Profile, (*ProfileSpec)(nil)},
		{"path group", list.Options[0].Group, RequiredOptionsGroup},
		{"root traits", len(got.PassOn), 2},
		{"command aliases", list.Aliases, []string{}},
	}
	for _, c := range checks {
		if diff := cmp.Diff(c.want, c.got); diff != "" {
			t.Errorf("%s mismatch (-want, +got):\n%s", c.name, diff)
		}
	}
}

func TestPrepare_twice(t *testing.T) {
	t.Parallel()

	ctx := logging.WithLogger(context.Background(), logging.TestLogger(t))

	once, err := Prepare(ctx, sampleTree(), nil)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Prepare(ctx, once, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Preparation is not idempotent: the built-in traits are attached again and
	// every automatic option is appended again.
	files, _ := twice.Child("files")
	list, _ := files.Child("list")

	checks := []struct {
		name string
		got  []string
		want []string
	}{
		{
			name: "root",
			got:  optionNames(twice.Options),
			want: []string{
				"response-format-json", "help", "help-web",
				"response-format-json", "help", "help-web",
			},
		},
		{
			name: "group",
			got:  optionNames(files.Options),
			want: []string{
				"help-examples", "response-format-json", "help", "help-web",
				"help-examples", "help-examples",
				"response-format-json", "help", "help-web",
			},
		},
		{
			name: "command",
			got:  optionNames(list.Options),
			want: []string{
				"path", "show-inputs-only", "response-format-json", "help", "help-web", "zosmf-profile",
				"show-inputs-only", "show-inputs-only",
				"response-format-json", "help", "help-web", "zosmf-profile",
			},
		},
	}
	for _, c := range checks {
		if diff := cmp.Diff(c.want, c.got); diff != "" {
			t.Errorf("%s options mismatch (-want, +got):\n%s", c.name, diff)
		}
	}

	// Everything other than the appended lists is unchanged.
	if got, want := len(twice.PassOn), 4; got != want {
		t.Errorf("expected %d root traits to be %d", got, want)
	}
	if diff := cmp.Diff(once.Children[0].Profile, files.Profile); diff != "" {
		t.Errorf("group profile mismatch (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(once.Children[0].Children[0].Profile, list.Profile); diff != "" {
		t.Errorf("command profile mismatch (-want, +got):\n%s", diff)
	}
}

func TestPrepare_errors(t *testing.T) {
	t.Parallel()

	ctx := logging.WithLogger(context.Background(), logging.TestLogger(t))

	cases := []struct {
		name    string
		def     func() *Definition
		kind    cmderror.Kind
		wantErr string
	}{
		{
			name:    "nil",
			def:     func() *Definition { return nil },
			kind:    cmderror.StructuralDefinition,
			wantErr: "must not be nil",
		},
		{
			name: "circular",
			def: func() *Definition {
				d := sampleTree()
				d.Children[0].Children = append(d.Children[0].Children, d)
				return d
			},
			kind:    cmderror.StructuralDefinition,
			wantErr: "circular reference at (root) > files > (root)",
		},
		{
			name: "uncopyable_value",
			def: func() *Definition {
				d := sampleTree()
				d.Children[0].Children[0].Options[0].DefaultValue = func() {}
				return d
			},
			kind:    cmderror.StructuralDefinition,
			wantErr: "of type func() cannot be copied",
		},
		{
			name: "empty_group",
			def: func() *Definition {
				d := sampleTree()
				d.Children = append(d.Children, &Definition{Name: "g", Type: TypeGroup, Description: "d"})
				return d
			},
			kind:    cmderror.StructuralDefinition,
			wantErr: "contains no children",
		},
		{
			name: "undefined_trait",
			def: func() *Definition {
				d := sampleTree()
				d.Children[0].PassOn = append(d.Children[0].PassOn, Trait{Property: "summary"})
				return d
			},
			kind:    cmderror.TraitPropagation,
			wantErr: "cannot pass on a trait (summary)",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Prepare(ctx, tc.def(), nil)
			if diff := testutil.DiffErrString(err, tc.wantErr); diff != "" {
				t.Fatal(diff)
			}
			if !errors.Is(err, tc.kind) {
				t.Errorf("expected %v to be %v", err, tc.kind)
			}
			if got != nil {
				t.Errorf("expected no tree, got %v", got)
			}
		})
	}
}

func TestPrepare_baseProfileOptions(t *testing.T) {
	t.Parallel()

	ctx := logging.WithLogger(context.Background(), logging.TestLogger(t))

	base := optionList{
		{Name: "host", Type: OptionString, Description: "The host name"},
		{Name: "path", Type: OptionString, Description: "Never added, the command has its own"},
	}

	d := sampleTree()
	d.Children[0].PassOn[0].Value = &ProfileSpec{Required: []string{"zosmf"}, Optional: []string{"base"}}

	got, err := Prepare(ctx, d, base)
	if err != nil {
		t.Fatal(err)
	}

	files, _ := got.Child("files")
	list, _ := files.Child("list")
	exp := []string{
		"path", "show-inputs-only", "response-format-json", "help", "help-web",
		"zosmf-profile", "base-profile", "host",
	}
	if diff := cmp.Diff(exp, optionNames(list.Options)); diff != "" {
		t.Errorf("options mismatch (-want, +got):\n%s", diff)
	}

	host, _ := list.Option("host")
	if got, want := host.Group, OptionsGroup; got != want {
		t.Errorf("expected %q to be %q", got, want)
	}
}

func TestPrepare_experimentalCascade(t *testing.T) {
	t.Parallel()

	ctx := logging.WithLogger(context.Background(), logging.TestLogger(t))

	d := &Definition{
		Type:        TypeGroup,
		Description: "root",
		Children: []*Definition{
			{
				Name:        "preview",
				Type:        TypeGroup,
				Description: "preview commands",
				Children: []*Definition{
					{Name: "one", Type: TypeCommand, Description: "one", Experimental: true},
					{
						Name:         "two",
						Type:         TypeGroup,
						Description:  "two",
						Experimental: true,
						Children: []*Definition{
							{Name: "three", Type: TypeCommand, Description: "three"},
						},
					},
				},
			},
			{Name: "stable", Type: TypeCommand, Description: "stable"},
		},
	}

	got, err := Prepare(ctx, d, nil)
	if err != nil {
		t.Fatal(err)
	}

	flags := make(map[string]bool)
	_ = Walk(got, func(n *Definition, _ []*Definition) error {
		flags[n.Name] = n.Experimental
		return nil
	})

	exp := map[string]bool{
		"":        false,
		"preview": true,
		"one":     true,
		"two":     true,
		"three":   true,
		"stable":  false,
	}
	if diff := cmp.Diff(exp, flags); diff != "" {
		t.Errorf("experimental mismatch (-want, +got):\n%s", diff)
	}
}
