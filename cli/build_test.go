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

package cli

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/abcxyz/cmdkit/cmderror"
	"github.com/abcxyz/cmdkit/definition"
	"github.com/abcxyz/cmdkit/handler"
	"github.com/abcxyz/cmdkit/logging"
	"github.com/abcxyz/cmdkit/profile"
	"github.com/abcxyz/cmdkit/testutil"
)

func fruitTree() *definition.Definition {
	return &definition.Definition{
		Name:        "fruitctl",
		Type:        definition.TypeGroup,
		Description: "Manage fruit.",
		Children: []*definition.Definition{
			{
				Name:        "eat",
				Aliases:     []string{"e"},
				Type:        definition.TypeCommand,
				Description: "Eat a fruit.",
				Handler:     "eat",
				EnableStdin: true,

				OutputFormatOptions: true,
				Positionals: []definition.Positional{
					{
						Name:        "fruit",
						Type:        definition.OptionString,
						Description: "The fruit to eat.",
						Required:    true,
						Regex:       "^[a-z]+$",
					},
				},
				Options: []definition.Option{
					{
						Name:         "bites",
						Aliases:      []string{"b"},
						Type:         definition.OptionNumber,
						Description:  "Number of bites.",
						DefaultValue: 3,
					},
					{
						Name:          "peel",
						Type:          definition.OptionBoolean,
						Description:   "Peel the fruit first.",
						ConflictsWith: []string{"whole"},
					},
					{
						Name:        "whole",
						Type:        definition.OptionBoolean,
						Description: "Eat the fruit whole.",
					},
					{
						Name:        "color",
						Type:        definition.OptionString,
						Description: "The color of the fruit.",
						AllowableValues: &definition.AllowableValues{
							Values: []string{"red", "green"},
						},
					},
				},
				Examples: []definition.Example{
					{Description: "Eat an apple in two bites", Options: "apple --bites 2"},
				},
			},
			{
				Name:        "basket",
				Type:        definition.TypeGroup,
				Description: "Manage baskets.",
				Children: []*definition.Definition{
					{
						Name:        "fill",
						Type:        definition.TypeCommand,
						Description: "Fill a basket with picked fruit.",
						Options: []definition.Option{
							{
								Name:        "size",
								Type:        definition.OptionString,
								Description: "The basket size.",
								Required:    true,
							},
						},
						ChainedHandlers: []definition.ChainedHandler{
							{
								Handler: "pick",
								Silent:  true,
								ArgumentMapping: []definition.ArgumentMapping{
									{From: "picked", To: "fruits"},
									{To: "source", Value: "orchard"},
								},
							},
							{Handler: "fill"},
						},
					},
				},
			},
			{
				Name:        "smoothie",
				Type:        definition.TypeCommand,
				Description: "Blend a smoothie.",
				Handler:     "smoothie",
				Profile: &definition.ProfileSpec{
					Required: []string{"banana"},
					Optional: []string{"apple"},
				},
			},
		},
	}
}

func fruitHandlers() *handler.Registry[Handler] {
	r := handler.NewRegistry[Handler]()
	r.MustRegister("eat", func(ctx context.Context, p *Params) error {
		fruit := p.String("fruit")
		fmt.Fprintf(p.Stdout, "eating %s with %v bites\n", fruit, p.Arguments["bites"])
		if len(p.StdinData) > 0 {
			fmt.Fprintf(p.Stdout, "stdin: %s\n", p.StdinData)
		}
		p.Response.SetMessage("Ate %s.", fruit)
		p.Response.SetData(map[string]any{"fruit": fruit})
		return nil
	})
	r.MustRegister("pick", func(ctx context.Context, p *Params) error {
		fmt.Fprintln(p.Stdout, "picking")
		p.Response.SetData(map[string]any{"picked": []string{"apple", "pear"}})
		return nil
	})
	r.MustRegister("fill", func(ctx context.Context, p *Params) error {
		fmt.Fprintf(p.Stdout, "filling %s basket from %v with %v\n",
			p.String("size"), p.Arguments["source"], p.Arguments["fruits"])
		return nil
	})
	r.MustRegister("smoothie", func(ctx context.Context, p *Params) error {
		banana, err := p.Profiles.Require("banana")
		if err != nil {
			return err //nolint:wrapcheck // Want passthrough
		}
		if apple, ok := p.Profiles.Get("apple"); ok {
			fmt.Fprintf(p.Stdout, "blending %s with apple %s\n", banana.Name, apple.Name)
		} else {
			fmt.Fprintf(p.Stdout, "blending %s without apple\n", banana.Name)
		}
		return nil
	})
	return r
}

// fakeLoader answers loads from fixed profiles.
type fakeLoader struct {
	profiles map[string]map[string]*profile.Profile
	defaults map[string]string
}

func (f *fakeLoader) Load(_ context.Context, typ string, opts profile.LoadOptions) (*profile.Loaded, error) {
	name := opts.Name
	if name == "" && opts.LoadDefault {
		name = f.defaults[typ]
	}
	if p, ok := f.profiles[typ][name]; ok {
		return &profile.Loaded{Type: typ, Name: name, Profile: p}, nil
	}
	if opts.AllowNotFound {
		return &profile.Loaded{Type: typ, Name: name, NotFound: true}, nil
	}
	return nil, cmderror.Newf(cmderror.NotFound, "Profile %q of type %q does not exist.", name, typ)
}

func newFakeLoader(tb testing.TB) *fakeLoader {
	tb.Helper()

	mustProfile := func(typ, name string) *profile.Profile {
		p, err := profile.New(typ, name, nil)
		if err != nil {
			tb.Fatal(err)
		}
		return p
	}

	return &fakeLoader{
		profiles: map[string]map[string]*profile.Profile{
			"banana": {
				"tasty": mustProfile("banana", "tasty"),
				"ripe":  mustProfile("banana", "ripe"),
			},
			"apple": {
				"gala": mustProfile("apple", "gala"),
			},
		},
		defaults: map[string]string{
			"banana": "tasty",
		},
	}
}

func TestBuild_Run(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		args      []string
		env       map[string]string
		stdin     string
		err       string
		expStdout []string
		expStderr []string
		notStdout []string
	}{
		{
			name:      "runs_handler",
			args:      []string{"eat", "apple"},
			expStdout: []string{"eating apple with 3 bites", "Ate apple."},
		},
		{
			name:      "alias",
			args:      []string{"e", "--bites", "2", "apple"},
			expStdout: []string{"eating apple with 2 bites"},
		},
		{
			name:      "interspersed_positionals",
			args:      []string{"eat", "--peel", "apple", "-b", "5"},
			expStdout: []string{"eating apple with 5 bites"},
		},
		{
			name:      "option_from_env",
			args:      []string{"eat", "apple"},
			env:       map[string]string{"FRUITCTL_OPT_BITES": "7"},
			expStdout: []string{"eating apple with 7 bites"},
		},
		{
			name:      "flag_wins_over_env",
			args:      []string{"eat", "apple", "--bites", "1"},
			env:       map[string]string{"FRUITCTL_OPT_BITES": "7"},
			expStdout: []string{"eating apple with 1 bites"},
		},
		{
			name: "invalid_env",
			args: []string{"eat", "apple"},
			env:  map[string]string{"FRUITCTL_OPT_BITES": "many"},
			err:  `invalid value "many" for FRUITCTL_OPT_BITES`,
		},
		{
			name: "missing_positional",
			args: []string{"eat"},
			err:  `missing required positional argument "fruit"`,
		},
		{
			name: "positional_pattern",
			args: []string{"eat", "Apple"},
			err:  `positional "fruit" value "Apple" does not match "^[a-z]+$"`,
		},
		{
			name: "extra_positional",
			args: []string{"eat", "apple", "pear"},
			err:  `unexpected positional arguments: ["pear"]`,
		},
		{
			name: "conflicting_options",
			args: []string{"eat", "apple", "--peel", "--whole"},
			err:  "option --peel cannot be specified with --whole",
		},
		{
			name: "allowable_values",
			args: []string{"eat", "apple", "--color", "blue"},
			err:  `must be one of ["red" "green"]`,
		},
		{
			name:      "stdin",
			args:      []string{"eat", "apple", "--stdin"},
			stdin:     "juice",
			expStdout: []string{"stdin: juice"},
		},
		{
			name:      "show_inputs_only",
			args:      []string{"eat", "apple", "--show-inputs-only"},
			expStdout: []string{"commandValues:", "fruit: apple", "bites: 3"},
			notStdout: []string{"eating"},
		},
		{
			name: "command_help",
			args: []string{"eat", "--help"},
			expStderr: []string{
				"Usage: fruitctl eat <fruit> [options]",
				"POSITIONAL ARGUMENTS",
				"--bites | -b (number)",
				"GLOBAL OPTIONS",
				"$ fruitctl eat apple --bites 2",
			},
			notStdout: []string{"eating"},
		},
		{
			name:      "command_web_help",
			args:      []string{"eat", "--help-web"},
			expStdout: []string{"<h1>fruitctl eat</h1>", "<code>--bites | -b</code>"},
		},
		{
			name:      "group_examples",
			args:      []string{"--help-examples"},
			expStdout: []string{"FRUITCTL EAT", "$ fruitctl eat apple --bites 2"},
		},
		{
			name:      "group_help",
			args:      []string{"-h"},
			expStderr: []string{"basket", "eat", "smoothie"},
		},
		{
			name: "json_response",
			args: []string{"eat", "apple", "--rfj"},
			expStdout: []string{
				`"success": true`,
				`"message": "Ate apple."`,
				`"stdout": "eating apple with 3 bites\n"`,
				`"fruit": "apple"`,
			},
		},
		{
			name:      "format_object",
			args:      []string{"eat", "apple", "--rft", "object"},
			expStdout: []string{"eating apple with 3 bites", "fruit: apple"},
			notStdout: []string{"Ate apple."},
		},
		{
			name:      "format_table_filtered",
			args:      []string{"eat", "apple", "--rff", "fruit", "--rft", "table", "--rfh"},
			expStdout: []string{"fruit", "apple"},
			notStdout: []string{"Ate apple."},
		},
		{
			name: "format_unknown_type",
			args: []string{"eat", "apple", "--rft", "tree"},
			err:  `must be one of ["table" "list" "object" "string"]`,
		},
		{
			name:      "chained_handlers",
			args:      []string{"basket", "fill", "--size", "large"},
			expStdout: []string{"filling large basket from orchard with [apple pear]"},
			notStdout: []string{"picking"},
		},
		{
			name: "missing_required_option",
			args: []string{"basket", "fill"},
			err:  "missing required options: --size",
		},
		{
			name:      "default_profile",
			args:      []string{"smoothie"},
			expStdout: []string{"blending tasty without apple"},
		},
		{
			name:      "named_profiles",
			args:      []string{"smoothie", "--banana-profile", "ripe", "--apple-p", "gala"},
			expStdout: []string{"blending ripe with apple gala"},
		},
		{
			name: "missing_required_profile",
			args: []string{"smoothie", "--banana-p", "nope"},
			err:  `Profile "nope" of type "banana" does not exist.`,
		},
		{
			name:      "json_error",
			args:      []string{"smoothie", "--banana-p", "nope", "--rfj"},
			err:       `Profile "nope" of type "banana" does not exist.`,
			expStdout: []string{`"success": false`, `"msg": "Profile \"nope\" of type \"banana\" does not exist."`},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := logging.TestContext(t)

			def, err := definition.Prepare(ctx, fruitTree(), nil)
			if err != nil {
				t.Fatal(err)
			}

			cmd, err := Build(def, &BuildOptions{
				Handlers:  fruitHandlers(),
				Profiles:  newFakeLoader(t),
				EnvPrefix: "FRUITCTL_OPT_",
				LookupEnv: MapLookuper(tc.env),
			})
			if err != nil {
				t.Fatal(err)
			}

			stdin, stdout, stderr := cmd.Pipe()
			stdin.WriteString(tc.stdin)

			err = cmd.Run(ctx, tc.args)
			if diff := testutil.DiffErrString(err, tc.err); diff != "" {
				t.Errorf("Unexpected err: %s", diff)
			}

			for _, want := range tc.expStdout {
				if got := stdout.String(); !strings.Contains(got, want) {
					t.Errorf("expected stdout\n\n%s\n\nto contain\n\n%s\n\n", got, want)
				}
			}
			for _, want := range tc.notStdout {
				if got := stdout.String(); strings.Contains(got, want) {
					t.Errorf("expected stdout\n\n%s\n\nto not contain\n\n%s\n\n", got, want)
				}
			}
			for _, want := range tc.expStderr {
				if got := stderr.String(); !strings.Contains(got, want) {
					t.Errorf("expected stderr\n\n%s\n\nto contain\n\n%s\n\n", got, want)
				}
			}
		})
	}
}

func TestBuild_errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		def      *definition.Definition
		opts     *BuildOptions
		err      string
		wantKind cmderror.Kind
	}{
		{
			name: "nil_definition",
			err:  "definition must not be nil",
		},
		{
			name:     "unregistered_handler",
			def:      fruitTree(),
			opts:     &BuildOptions{Handlers: handler.NewRegistry[Handler]()},
			err:      `command "eat": no handler registered for "eat"`,
			wantKind: cmderror.HandlerNotFound,
		},
		{
			name: "profiles_without_loader",
			def:  fruitTree(),
			opts: &BuildOptions{Handlers: fruitHandlers()},
			err:  `command "smoothie" loads profiles but no profile loader was given`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Build(tc.def, tc.opts)
			if diff := testutil.DiffErrString(err, tc.err); diff != "" {
				t.Errorf("Unexpected err: %s", diff)
			}
			if tc.wantKind != "" {
				if got, _ := cmderror.KindOf(err); got != tc.wantKind {
					t.Errorf("expected kind %q to be %q", got, tc.wantKind)
				}
			}
		})
	}
}

func TestDataPath(t *testing.T) {
	t.Parallel()

	data := struct {
		Origin map[string]any `json:"origin"`
	}{
		Origin: map[string]any{"country": "Ecuador"},
	}

	if got, ok := dataPath(data, "origin.country"); !ok || got != "Ecuador" {
		t.Errorf("expected Ecuador, got %v (%t)", got, ok)
	}
	if _, ok := dataPath(data, "origin.farm"); ok {
		t.Errorf("expected origin.farm to be missing")
	}
	if _, ok := dataPath(data, "origin.country.city"); ok {
		t.Errorf("expected path through a string to be missing")
	}
}
