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

// Package cmderror defines the structured error returned by command definition
// preparation and profile management. Every failure carries a [Kind] so
// callers can branch with [errors.Is]:
//
//	if errors.Is(err, cmderror.ProfileDependency) {
//	  // ...
//	}
package cmderror

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kr/text"
)

// Kind classifies an [Error]. Kind implements error so it can be used as the
// target of [errors.Is].
type Kind string

const (
	// StructuralDefinition is a malformed command definition node.
	StructuralDefinition Kind = "structural definition error"

	// TraitPropagation is a pass-on trait with no resolvable value.
	TraitPropagation Kind = "trait propagation error"

	// ProfileConfiguration is an unknown profile type, a reserved name
	// collision, or a malformed dependency declaration.
	ProfileConfiguration Kind = "profile configuration error"

	// ProfileValidation is a schema violation in profile content.
	ProfileValidation Kind = "profile validation error"

	// ProfileDependency is a dependency that failed to load or a circular
	// dependency chain.
	ProfileDependency Kind = "profile dependency error"

	// ProfileIO is a failure reading or writing the profile store.
	ProfileIO Kind = "profile io error"

	// NotFound is a profile, default profile, or secure value that does not
	// exist.
	NotFound Kind = "not found"

	// HandlerNotFound is a handler key with no registration.
	HandlerNotFound Kind = "handler not found"
)

// Error implements error.
func (k Kind) Error() string {
	return string(k)
}

// Error is the structured error kind surfaced by this module.
type Error struct {
	// Kind is the error classification.
	Kind Kind

	// Msg is the user-facing message. It is returned unchanged by Error.
	Msg string

	// AdditionalDetails carries supplementary diagnostics, such as the JSON
	// representation of an offending definition node.
	AdditionalDetails string

	// Causes are the underlying errors, if any.
	Causes []error

	// Code is an optional machine-readable error code.
	Code string
}

// New creates a new error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a new error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WithDetails sets the additional details and returns the error.
func (e *Error) WithDetails(details string) *Error {
	e.AdditionalDetails = details
	return e
}

// WithCauses appends the non-nil errors as causes and returns the error.
func (e *Error) WithCauses(errs ...error) *Error {
	for _, err := range errs {
		if err != nil {
			e.Causes = append(e.Causes, err)
		}
	}
	return e
}

// WithCode sets the error code and returns the error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// Error implements error.
func (e *Error) Error() string {
	return e.Msg
}

// Unwrap returns the causes so [errors.Is] and [errors.As] traverse them.
func (e *Error) Unwrap() []error {
	return e.Causes
}

// Is reports whether target is this error's [Kind].
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the kind of the first [Error] in err's tree.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ExitCode returns the process exit code for err: 0 for nil, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Render formats err for display. Structured errors include their additional
// details, indented beneath the message.
func Render(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !errors.As(err, &e) || e.AdditionalDetails == "" {
		return err.Error()
	}

	var b strings.Builder
	b.WriteString(err.Error())
	b.WriteString("\n\nDetails:\n")
	b.WriteString(text.Indent(strings.TrimRight(e.AdditionalDetails, "\n"), "  "))
	return b.String()
}
