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
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/abcxyz/cmdkit/definition"
)

// Response format types accepted by "--response-format-type".
const (
	FormatTable  = "table"
	FormatList   = "list"
	FormatObject = "object"
	FormatString = "string"
)

// FormatRequested reports whether the caller asked for the response data to
// be formatted. Handlers skip their own plain output when it is set.
func (p *Params) FormatRequested() bool {
	if p.String(definition.ResponseFormatTypeOption) != "" {
		return true
	}
	fields, _ := p.Arguments[definition.ResponseFormatFilterOption].([]string)
	return len(fields) > 0
}

// formatResponse writes data in the requested format type, keeping only the
// named fields when any are given. Fields are dot separated paths into each
// object. An empty type is "object".
func formatResponse(w io.Writer, data any, typ string, fields []string, header bool) error {
	if data == nil {
		return nil
	}

	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to format response data: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("failed to format response data: %w", err)
	}

	if len(fields) > 0 {
		v = filterFields(v, fields)
	}

	switch typ {
	case "", FormatObject:
		return writeYAML(w, v)
	case FormatString:
		if s, ok := scalarString(v); ok {
			_, err := fmt.Fprintln(w, s)
			return err
		}
		return writeYAML(w, v)
	case FormatList:
		items, ok := v.([]any)
		if !ok {
			items = []any{v}
		}
		for i, item := range items {
			if s, ok := scalarString(item); ok {
				fmt.Fprintln(w, s)
				continue
			}
			if i > 0 {
				fmt.Fprintln(w)
			}
			if err := writeYAML(w, item); err != nil {
				return err
			}
		}
		return nil
	case FormatTable:
		return writeTable(w, v, fields, header)
	default:
		return fmt.Errorf("unknown response format type %q", typ)
	}
}

// filterFields keeps the named paths of an object, or of each object in an
// array. Other values are returned unchanged.
func filterFields(v any, fields []string) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = filterFields(item, fields)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			if fv, ok := dataPath(t, f); ok {
				out[f] = fv
			}
		}
		return out
	default:
		return v
	}
}

func writeTable(w io.Writer, v any, fields []string, header bool) error {
	var rows []map[string]any
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("table output requires a list of objects, got %T", item)
			}
			rows = append(rows, m)
		}
	case map[string]any:
		rows = []map[string]any{t}
	default:
		return fmt.Errorf("table output requires objects, got %T", v)
	}

	columns := fields
	if len(columns) == 0 {
		seen := make(map[string]struct{})
		for _, r := range rows {
			for k := range r {
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					columns = append(columns, k)
				}
			}
		}
		sort.Strings(columns)
	}

	table := tablewriter.NewWriter(w)
	if header {
		table.SetHeader(columns)
	}
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, r := range rows {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = cellString(r[c])
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := scalarString(v); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool, float64:
		return fmt.Sprint(t), true
	case nil:
		return "", true
	default:
		return "", false
	}
}

func writeYAML(w io.Writer, v any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to format response data: %w", err)
	}
	_, err = io.WriteString(w, strings.TrimRight(string(b), "\n")+"\n")
	return err
}
