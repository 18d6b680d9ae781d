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
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/abcxyz/cmdkit/cmderror"
	"github.com/abcxyz/cmdkit/definition"
	"github.com/abcxyz/cmdkit/logging"
	"github.com/abcxyz/cmdkit/profile"
	"github.com/abcxyz/cmdkit/testutil"
)

type request struct {
	Type string
	Opts profile.LoadOptions
}

// fakeLoader records every request and answers from fixed responses.
type fakeLoader struct {
	mu       sync.Mutex
	requests []request

	responses map[string]*profile.Loaded
	errs      map[string]error
}

func (f *fakeLoader) Load(_ context.Context, typ string, opts profile.LoadOptions) (*profile.Loaded, error) {
	f.mu.Lock()
	f.requests = append(f.requests, request{Type: typ, Opts: opts})
	f.mu.Unlock()

	if err := f.errs[typ]; err != nil {
		return nil, err
	}
	if l, ok := f.responses[typ]; ok {
		return l, nil
	}
	return &profile.Loaded{Type: typ, NotFound: true}, nil
}

func (f *fakeLoader) sortedRequests() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]request(nil), f.requests...)
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func mustProfile(tb testing.TB, typ, name string, values map[string]any, deps ...profile.Dependency) *profile.Profile {
	tb.Helper()

	p, err := profile.New(typ, name, values, deps...)
	if err != nil {
		tb.Fatal(err)
	}
	return p
}

func command(spec *definition.ProfileSpec) *definition.Definition {
	return &definition.Definition{
		Name:        "peel",
		Type:        definition.TypeCommand,
		Description: "Peel a fruit",
		Handler:     "fruit.peel",
		Profile:     spec,
	}
}

func TestLoader_Load_requests(t *testing.T) {
	t.Parallel()

	tasty := mustProfile(t, "banana", "tasty", map[string]any{"color": "yellow"})
	fake := &fakeLoader{
		responses: map[string]*profile.Loaded{
			"banana": {Type: "banana", Name: "tasty", Profile: tasty},
		},
	}

	l, err := NewLoader(command(&definition.ProfileSpec{
		Required: []string{"banana"},
		Optional: []string{"apple"},
	}), fake)
	if err != nil {
		t.Fatal(err)
	}

	got, err := l.Load(logging.TestContext(t), map[string]any{"banana-profile": "tasty"})
	if err != nil {
		t.Fatal(err)
	}

	want := []request{
		{Type: "apple", Opts: profile.LoadOptions{LoadDefault: true, AllowNotFound: true}},
		{Type: "banana", Opts: profile.LoadOptions{Name: "tasty"}},
	}
	if diff := cmp.Diff(want, fake.sortedRequests()); diff != "" {
		t.Errorf("requests (-want, +got):\n%s", diff)
	}

	if p, ok := got.Get("banana"); !ok || p != tasty {
		t.Errorf("expected the loaded banana profile, got %v", p)
	}
	if _, ok := got.Get("apple"); ok {
		t.Errorf("expected the missing optional profile to be omitted")
	}
	if diff := cmp.Diff([]string{"banana"}, got.Types()); diff != "" {
		t.Errorf("types (-want, +got):\n%s", diff)
	}
}

func TestLoader_Load_requiredErrorUnchanged(t *testing.T) {
	t.Parallel()

	loadErr := cmderror.Newf(cmderror.NotFound, `Profile "tasty" of type "banana" does not exist.`)
	fake := &fakeLoader{
		errs: map[string]error{"banana": loadErr},
	}

	l, err := NewLoader(command(&definition.ProfileSpec{Required: []string{"banana"}}), fake)
	if err != nil {
		t.Fatal(err)
	}

	_, err = l.Load(logging.TestContext(t), map[string]any{"banana-profile": "tasty"})
	if err != loadErr { //nolint:errorlint // The identical instance is expected.
		t.Errorf("expected the loader's error instance %p, got %v", loadErr, err)
	}
}

func TestLoader_Load_optionalErrorOmitted(t *testing.T) {
	t.Parallel()

	fake := &fakeLoader{
		responses: map[string]*profile.Loaded{
			"banana": {Type: "banana", Name: "b", Profile: mustProfile(t, "banana", "b", map[string]any{"color": "green"})},
		},
		errs: map[string]error{
			"apple": cmderror.New(cmderror.ProfileDependency, "broken dependency"),
		},
	}

	l, err := NewLoader(command(&definition.ProfileSpec{
		Required: []string{"banana"},
		Optional: []string{"apple"},
	}), fake)
	if err != nil {
		t.Fatal(err)
	}

	got, err := l.Load(logging.TestContext(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"banana"}, got.Types()); diff != "" {
		t.Errorf("types (-want, +got):\n%s", diff)
	}

	_, err = got.Require("apple")
	if diff := testutil.DiffErrString(err, `No profiles of type "apple" were loaded for this command.`); diff != "" {
		t.Error(diff)
	}
}

func TestLoader_Load_noProfiles(t *testing.T) {
	t.Parallel()

	fake := &fakeLoader{}
	l, err := NewLoader(command(nil), fake)
	if err != nil {
		t.Fatal(err)
	}

	got, err := l.Load(logging.TestContext(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Types()) > 0 || len(fake.sortedRequests()) > 0 {
		t.Errorf("expected nothing to be loaded")
	}
}

func TestNewLoader_errors(t *testing.T) {
	t.Parallel()

	if _, err := NewLoader(nil, &fakeLoader{}); err == nil {
		t.Errorf("expected a nil definition to fail")
	}
	if _, err := NewLoader(command(nil), nil); err == nil {
		t.Errorf("expected a nil loader to fail")
	}
}

func TestLoader_Load_store(t *testing.T) {
	t.Parallel()

	ctx := logging.TestContext(t)

	schema := func(prop string) *profile.Schema {
		return &profile.Schema{
			Type:       "object",
			Properties: map[string]*profile.Property{prop: {Type: "string"}},
		}
	}
	registry, err := profile.NewRegistry(ctx,
		&profile.TypeConfiguration{Type: "base", Schema: schema("host")},
		&profile.TypeConfiguration{
			Type:         "zosmf",
			Schema:       schema("port"),
			Dependencies: []profile.DependencySpec{{Type: "base"}},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	store, err := profile.NewStore(filepath.Join(t.TempDir(), "profiles"), registry)
	if err != nil {
		t.Fatal(err)
	}

	bases, err := store.Manager("base")
	if err != nil {
		t.Fatal(err)
	}
	zosmfs, err := store.Manager("zosmf")
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range []*profile.Profile{
		mustProfile(t, "base", "default", map[string]any{"host": "default.example.com"}),
		mustProfile(t, "base", "shared", map[string]any{"host": "shared.example.com"}),
	} {
		if _, err := bases.Save(ctx, profile.SaveOptions{Profile: p}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := zosmfs.Save(ctx, profile.SaveOptions{
		Profile: mustProfile(t, "zosmf", "dev", map[string]any{"port": "443"},
			profile.Dependency{Type: "base", Name: "shared"}),
	}); err != nil {
		t.Fatal(err)
	}

	l, err := NewLoader(command(&definition.ProfileSpec{
		Required: []string{"zosmf"},
		Optional: []string{"base"},
	}), store)
	if err != nil {
		t.Fatal(err)
	}

	got, err := l.Load(ctx, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}

	names := func(ps []*profile.Profile) []string {
		out := make([]string, 0, len(ps))
		for _, p := range ps {
			out = append(out, p.Name)
		}
		return out
	}

	// The explicitly loaded default comes first; the dependency follows.
	if diff := cmp.Diff([]string{"default", "shared"}, names(got.GetAll("base"))); diff != "" {
		t.Errorf("base profiles (-want, +got):\n%s", diff)
	}
	if p, ok := got.Get("base"); !ok || p.Name != "default" {
		t.Errorf("expected the default base profile first")
	}
	if p, ok := got.Get("zosmf"); !ok || p.Name != "dev" {
		t.Errorf("expected the default zosmf profile")
	}
}
