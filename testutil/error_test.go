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

package testutil

import (
	"fmt"
	"testing"

	"github.com/abcxyz/cmdkit/cmderror"
)

func TestDiffErrString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		msg      string
		err      error
		wantDiff string
	}{
		{
			name: "empty_string_nil_err",
		},
		{
			name:     "empty_string_err",
			err:      fmt.Errorf("some err"),
			wantDiff: `got error "some err" but want <nil>`,
		},
		{
			name:     "non_empty_string_nil_err",
			msg:      "some err",
			wantDiff: `got error <nil> but want an error containing "some err"`,
		},
		{
			name:     "err_mismatch",
			msg:      "some err",
			err:      fmt.Errorf("other err"),
			wantDiff: `got error "other err" but want an error containing "some err"`,
		},
		{
			name: "err_match",
			msg:  "some err",
			err:  fmt.Errorf("xyz some err"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := DiffErrString(tc.err, tc.msg); got != tc.wantDiff {
				t.Errorf("DiffErrString(%v, %q) got %q, want %q", tc.err, tc.msg, got, tc.wantDiff)
			}
		})
	}
}

func TestDiffErrKind(t *testing.T) {
	t.Parallel()

	notFound := cmderror.New(cmderror.NotFound, "no banana")

	cases := []struct {
		name     string
		err      error
		kind     cmderror.Kind
		wantDiff string
	}{
		{
			name: "nil_nil",
		},
		{
			name: "match",
			err:  fmt.Errorf("loading: %w", notFound),
			kind: cmderror.NotFound,
		},
		{
			name:     "unexpected_error",
			err:      notFound,
			wantDiff: `got error "no banana" but want <nil>`,
		},
		{
			name:     "missing_error",
			kind:     cmderror.NotFound,
			wantDiff: "got error <nil> but want a not found",
		},
		{
			name:     "no_kind",
			err:      fmt.Errorf("plain"),
			kind:     cmderror.NotFound,
			wantDiff: `got error "plain" without a kind but want a not found`,
		},
		{
			name:     "other_kind",
			err:      notFound,
			kind:     cmderror.ProfileIO,
			wantDiff: `got a not found ("no banana") but want a profile io error`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := DiffErrKind(tc.err, tc.kind); got != tc.wantDiff {
				t.Errorf("DiffErrKind(%v, %q) got %q, want %q", tc.err, tc.kind, got, tc.wantDiff)
			}
		})
	}
}
