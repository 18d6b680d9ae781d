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
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/abcxyz/cmdkit/testutil"
)

func TestValueOf(t *testing.T) {
	t.Parallel()

	port := 443

	cases := []struct {
		name string
		in   any
		want Value
		err  string
	}{
		{
			name: "nil",
			in:   nil,
			want: Null(),
		},
		{
			name: "int",
			in:   8080,
			want: NewNumber(8080),
		},
		{
			name: "json_number",
			in:   json.Number("1.5"),
			want: NewNumber(1.5),
		},
		{
			name: "pointer",
			in:   &port,
			want: NewNumber(443),
		},
		{
			name: "string_slice",
			in:   []string{"a", "b"},
			want: NewArray(NewString("a"), NewString("b")),
		},
		{
			name: "nested",
			in: map[string]any{
				"host": "example.com",
				"tls":  map[string]bool{"enabled": true},
			},
			want: NewObject(map[string]Value{
				"host": NewString("example.com"),
				"tls":  NewObject(map[string]Value{"enabled": NewBool(true)}),
			}),
		},
		{
			name: "unsupported",
			in:   map[string]any{"fn": func() {}},
			err:  "fn: unsupported profile value type func()",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ValueOf(tc.in)
			if diff := testutil.DiffErrString(err, tc.err); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("value (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestValue_Interface(t *testing.T) {
	t.Parallel()

	v := MustValueOf(map[string]any{
		"port":  8080,
		"ratio": 0.25,
		"hosts": []any{"a", nil},
	})
	want := map[string]any{
		"port":  8080,
		"ratio": 0.25,
		"hosts": []any{"a", nil},
	}
	if diff := cmp.Diff(want, v.Interface()); diff != "" {
		t.Errorf("interface (-want, +got):\n%s", diff)
	}

	if got, want := v.String(), `{"hosts":["a",null],"port":8080,"ratio":0.25}`; got != want {
		t.Errorf("expected %s to be %s", got, want)
	}
}

func TestValue_YAML(t *testing.T) {
	t.Parallel()

	var got map[string]Value
	if err := yaml.Unmarshal([]byte("port: 8080\nhosts:\n  - a\n  - b\n"), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]Value{
		"port":  NewNumber(8080),
		"hosts": NewArray(NewString("a"), NewString("b")),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded (-want, +got):\n%s", diff)
	}
}

func TestProfile_paths(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, "zosmf", "dev", map[string]any{
		"host": "example.com",
		"tls":  map[string]any{"enabled": true},
	})

	if v, ok := p.Get("tls.enabled"); !ok || !v.Equal(NewBool(true)) {
		t.Errorf("expected tls.enabled to be true, got %s (ok=%t)", v, ok)
	}
	if _, ok := p.Get("host.name"); ok {
		t.Errorf("expected a path through a scalar to be missing")
	}

	p.Set("auth.user", NewString("admin"))
	p.Set("host.name", NewString("replaced"))
	p.Unset("tls.enabled")
	p.Unset("missing.path")

	want := mustProfile(t, "zosmf", "dev", map[string]any{
		"host": map[string]any{"name": "replaced"},
		"tls":  map[string]any{},
		"auth": map[string]any{"user": "admin"},
	})
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("profile (-want, +got):\n%s", diff)
	}
}

func TestProfile_Decode(t *testing.T) {
	t.Parallel()

	type connection struct {
		Host string `json:"host"`
		Port int    `json:"port"`
		TLS  struct {
			Enabled bool `json:"enabled"`
		} `json:"tls"`
	}

	p := mustProfile(t, "zosmf", "dev", map[string]any{
		"host": "example.com",
		"port": 443,
		"tls":  map[string]any{"enabled": true},
	})

	var got connection
	if err := p.Decode(&got); err != nil {
		t.Fatal(err)
	}
	want := connection{Host: "example.com", Port: 443}
	want.TLS.Enabled = true
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded (-want, +got):\n%s", diff)
	}
}

func TestFromDocument(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		doc  map[string]any
		want *Profile
		err  string
	}{
		{
			name: "reserved_keys",
			doc: map[string]any{
				"name": "ignored",
				"type": "ignored",
				"host": "example.com",
				"dependencies": []any{
					map[string]any{"type": "base", "name": "shared"},
				},
			},
			want: mustProfile(t, "zosmf", "dev", map[string]any{"host": "example.com"},
				Dependency{Type: "base", Name: "shared"}),
		},
		{
			name: "empty_dependencies",
			doc:  map[string]any{"dependencies": []any{}},
			want: &Profile{
				Name:         "dev",
				Type:         "zosmf",
				Dependencies: []Dependency{},
				Values:       map[string]Value{},
			},
		},
		{
			name: "ill_formed_dependencies",
			doc:  map[string]any{"dependencies": "base"},
			err:  "has dependencies as a property, but it is NOT an array (ill-formed)",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := fromDocument("zosmf", "dev", tc.doc)
			if diff := testutil.DiffErrString(err, tc.err); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("profile (-want, +got):\n%s", diff)
			}
		})
	}
}
