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

package logging

import (
	"fmt"
	"strings"
)

// Format is the output format of a logger.
type Format string

const (
	FormatJSON Format = "JSON"
	FormatText Format = "TEXT"
)

// FormatNames returns the accepted format names.
func FormatNames() []string {
	return []string{"json", "text"}
}

// LookupFormat parses a format name, case-insensitively.
func LookupFormat(name string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatText):
		return FormatText, nil
	default:
		return "", fmt.Errorf("no such format %q, valid formats are %q", name, FormatNames())
	}
}
