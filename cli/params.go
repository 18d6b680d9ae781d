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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/abcxyz/cmdkit/cmderror"
	"github.com/abcxyz/cmdkit/cmdprofile"
	"github.com/abcxyz/cmdkit/definition"
)

// Handler runs a command. Handlers write plain output to Params.Stdout and
// report structured results on Params.Response.
type Handler func(ctx context.Context, p *Params) error

// Params is the input of a [Handler].
type Params struct {
	Definition *definition.Definition

	// Arguments holds the supplied options and positionals by name, plus the
	// options with default values. Strings, booleans, float64 numbers,
	// string slices, and decoded JSON documents are the possible types.
	Arguments map[string]any

	Positionals []string

	// Profiles is empty when the command declares no profile types.
	Profiles *cmdprofile.Profiles

	// StdinData is the piped input when "--stdin" was given.
	StdinData []byte

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Response *Response
}

// String returns the named argument when it is a string.
func (p *Params) String(name string) string {
	s, _ := p.Arguments[name].(string)
	return s
}

// Bool returns the named argument when it is a boolean.
func (p *Params) Bool(name string) bool {
	b, _ := p.Arguments[name].(bool)
	return b
}

// Response is the result of a handler. In JSON response mode it is written
// as the command output, along with whatever the handler printed.
type Response struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Stdout  string         `json:"stdout"`
	Stderr  string         `json:"stderr"`
	Data    any            `json:"data"`
	Error   *ResponseError `json:"error,omitempty"`
}

// ResponseError is the error part of a JSON response.
type ResponseError struct {
	Msg               string `json:"msg"`
	AdditionalDetails string `json:"additionalDetails,omitempty"`
}

// SetMessage sets the response message.
func (r *Response) SetMessage(format string, args ...any) {
	r.Message = fmt.Sprintf(format, args...)
}

// SetData sets the structured response data.
func (r *Response) SetData(v any) {
	r.Data = v
}

func (r *Response) fail(err error) {
	r.Success = false
	re := &ResponseError{Msg: err.Error()}
	var cerr *cmderror.Error
	if errors.As(err, &cerr) {
		re.AdditionalDetails = cerr.AdditionalDetails
	}
	r.Error = re
}

// ReportedError is returned when the command already reported the failure
// on stdout, as in JSON response mode. Callers should exit non-zero without
// printing it again.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string {
	return e.Err.Error()
}

func (e *ReportedError) Unwrap() error {
	return e.Err
}

// dataPath returns the value at the dot separated path of v, after
// converting v to its JSON form.
func dataPath(v any, path string) (any, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var cur any
	if err := json.Unmarshal(b, &cur); err != nil {
		return nil, false
	}

	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}
