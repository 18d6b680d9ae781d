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
	"path/filepath"
	"testing"

	"github.com/abcxyz/cmdkit/definition"
	"github.com/abcxyz/cmdkit/logging"
)

func boolPtr(b bool) *bool { return &b }

// fruitConfigs registers three types: apple, banana (may depend on apple,
// holds a secure property) and strawberry (must depend on banana).
func fruitConfigs() []*TypeConfiguration {
	return []*TypeConfiguration{
		{
			Type: "apple",
			Schema: &Schema{
				Title:       "Apple",
				Description: "An apple profile",
				Type:        "object",
				Properties: map[string]*Property{
					"description": {
						Type:             "string",
						OptionDefinition: &definition.Option{Name: "description", Type: definition.OptionString},
					},
					"rotten": {
						Type:             "boolean",
						OptionDefinition: &definition.Option{Name: "rotten", Type: definition.OptionBoolean},
					},
					"age": {
						Type:             "number",
						OptionDefinition: &definition.Option{Name: "age", Type: definition.OptionNumber},
					},
					"tags": {
						Type:  "array",
						Items: &Property{Type: "string"},
					},
				},
				Required: []string{"age"},
			},
		},
		{
			Type: "banana",
			Schema: &Schema{
				Type: "object",
				Properties: map[string]*Property{
					"color": {
						Type:             "string",
						OptionDefinition: &definition.Option{Name: "color", Type: definition.OptionString},
					},
					"secret": {
						Type:             "string",
						Secure:           true,
						OptionDefinition: &definition.Option{Name: "secret", Type: definition.OptionString},
					},
					"origin": {
						Type: "object",
						Properties: map[string]*Property{
							"country": {
								Type:             "string",
								OptionDefinition: &definition.Option{Name: "country", Type: definition.OptionString},
							},
							"farm": {
								Type:             "string",
								OptionDefinition: &definition.Option{Name: "farm", Type: definition.OptionString},
							},
						},
					},
				},
			},
			Dependencies: []DependencySpec{
				{Type: "apple", Description: "The apple next to the banana"},
			},
		},
		{
			Type: "strawberry",
			Schema: &Schema{
				Type: "object",
				Properties: map[string]*Property{
					"amount": {Type: "number"},
				},
				AdditionalProperties: boolPtr(false),
			},
			Dependencies: []DependencySpec{
				{Type: "banana", Required: true},
			},
		},
	}
}

func newTestStore(tb testing.TB, opts ...Option) *Store {
	tb.Helper()

	ctx := logging.TestContext(tb)
	registry, err := NewRegistry(ctx, fruitConfigs()...)
	if err != nil {
		tb.Fatal(err)
	}
	opts = append([]Option{WithCLIName("fruitctl")}, opts...)
	s, err := NewStore(filepath.Join(tb.TempDir(), "profiles"), registry, opts...)
	if err != nil {
		tb.Fatal(err)
	}
	if err := s.Initialize(ctx, false); err != nil {
		tb.Fatal(err)
	}
	return s
}

func testManager(tb testing.TB, s *Store, typ string) *Manager {
	tb.Helper()

	m, err := s.Manager(typ)
	if err != nil {
		tb.Fatal(err)
	}
	return m
}

func mustProfile(tb testing.TB, typ, name string, values map[string]any, deps ...Dependency) *Profile {
	tb.Helper()

	p, err := New(typ, name, values, deps...)
	if err != nil {
		tb.Fatal(err)
	}
	return p
}

func mustSave(tb testing.TB, m *Manager, p *Profile) {
	tb.Helper()

	if _, err := m.Save(logging.TestContext(tb), SaveOptions{Profile: p, Overwrite: true}); err != nil {
		tb.Fatal(err)
	}
}
