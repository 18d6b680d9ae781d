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

// Package testutil holds assertions shared by the tests in this module.
package testutil

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/abcxyz/cmdkit/cmderror"
)

// diffLen is the message length above which a failed match includes a diff.
const diffLen = 20

// DiffErrString returns an empty string when got contains want, or when both
// are empty. Otherwise it describes the mismatch.
func DiffErrString(got error, want string) string {
	if want == "" {
		if got == nil {
			return ""
		}
		return fmt.Sprintf("got error %q but want <nil>", got.Error())
	}
	if got == nil {
		return fmt.Sprintf("got error <nil> but want an error containing %q", want)
	}

	msg := got.Error()
	if strings.Contains(msg, want) {
		return ""
	}
	out := fmt.Sprintf("got error %q but want an error containing %q", msg, want)
	if len(want) >= diffLen && len(msg) >= diffLen || strings.Contains(want, "\n") && strings.Contains(msg, "\n") {
		out += fmt.Sprintf("; diff was (-got,+want):\n%s", cmp.Diff(msg, want))
	}
	return out
}

// DiffErrKind returns an empty string when got carries the want kind, or when
// want is empty and got is nil. Otherwise it describes the mismatch.
func DiffErrKind(got error, want cmderror.Kind) string {
	kind, ok := cmderror.KindOf(got)
	switch {
	case want == "" && got == nil:
		return ""
	case want == "":
		return fmt.Sprintf("got error %q but want <nil>", got.Error())
	case got == nil:
		return fmt.Sprintf("got error <nil> but want a %s", want)
	case !ok:
		return fmt.Sprintf("got error %q without a kind but want a %s", got.Error(), want)
	case kind != want:
		return fmt.Sprintf("got a %s (%q) but want a %s", kind, got.Error(), want)
	}
	return ""
}
