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
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/abcxyz/cmdkit/definition"
)

const dependenciesProperty = "dependencies"

// reservedProperties are managed by the profile manager itself.
var reservedProperties = []string{"type", "name", dependenciesProperty}

// Schema is the JSON-schema-like description of one profile type. Only the
// subset of JSON schema that profiles use is modeled.
type Schema struct {
	Title                string               `json:"title,omitempty"`
	Description          string               `json:"description,omitempty"`
	Type                 string               `json:"type,omitempty"`
	Properties           map[string]*Property `json:"properties" validate:"required"`
	Required             []string             `json:"required,omitempty"`
	AdditionalProperties *bool                `json:"additionalProperties,omitempty"`
}

// Property describes one profile property. OptionDefinition maps the property
// to a command-line option; Secure stores the value in the credential vault.
type Property struct {
	Type                 string               `json:"type,omitempty"`
	Description          string               `json:"description,omitempty"`
	Properties           map[string]*Property `json:"properties,omitempty"`
	Items                *Property            `json:"items,omitempty"`
	Required             []string             `json:"required,omitempty"`
	Enum                 []any                `json:"enum,omitempty"`
	Default              any                  `json:"default,omitempty"`
	AdditionalProperties *bool                `json:"additionalProperties,omitempty"`

	Secure            bool                `json:"secure,omitempty"`
	OptionDefinition  *definition.Option  `json:"optionDefinition,omitempty"`
	OptionDefinitions []definition.Option `json:"optionDefinitions,omitempty"`
}

// document renders the schema as plain JSON schema, without the cmdkit
// extensions. strict forbids properties the schema does not declare.
func (s *Schema) document(strict bool) map[string]any {
	doc := map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
	}
	typ := s.Type
	if typ == "" {
		typ = "object"
	}
	doc["type"] = typ

	props := make(map[string]any, len(s.Properties)+1)
	for k, p := range s.Properties {
		props[k] = p.document()
	}
	if len(s.Required) > 0 {
		doc["required"] = s.Required
	}

	if strict || (s.AdditionalProperties != nil && !*s.AdditionalProperties) {
		doc["additionalProperties"] = false
		// The manager writes dependencies itself, so strict mode must still
		// accept them.
		props[dependenciesProperty] = map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type": map[string]any{"type": "string"},
					"name": map[string]any{"type": "string"},
				},
			},
		}
	}
	doc["properties"] = props
	return doc
}

func (p *Property) document() map[string]any {
	doc := make(map[string]any)
	if p.Type != "" {
		doc["type"] = p.Type
	}
	if p.Description != "" {
		doc["description"] = p.Description
	}
	if len(p.Properties) > 0 {
		props := make(map[string]any, len(p.Properties))
		for k, c := range p.Properties {
			props[k] = c.document()
		}
		doc["properties"] = props
	}
	if p.Items != nil {
		doc["items"] = p.Items.document()
	}
	if len(p.Required) > 0 {
		doc["required"] = p.Required
	}
	if len(p.Enum) > 0 {
		doc["enum"] = p.Enum
	}
	if p.AdditionalProperties != nil {
		doc["additionalProperties"] = *p.AdditionalProperties
	}
	return doc
}

// validateAgainst checks doc against the schema. Every violation is listed in
// the returned error, one per line.
func (s *Schema) validateAgainst(doc map[string]any, strict bool) ([]string, error) {
	b, err := json.Marshal(s.document(strict))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(b), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to validate against schema: %w", err)
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		field := e.Field()
		if field == "(root)" {
			field = "profile"
		}
		problems = append(problems, field+" "+e.Description())
	}
	sort.Strings(problems)
	return problems, nil
}

// optionDefinitions walks the properties in name order, collecting every
// option definition.
func (s *Schema) optionDefinitions() []definition.Option {
	var out []definition.Option
	var walk func(props map[string]*Property)
	walk = func(props map[string]*Property) {
		for _, k := range sortedKeys(props) {
			p := props[k]
			if p == nil {
				continue
			}
			if p.OptionDefinition != nil {
				out = append(out, *p.OptionDefinition)
			}
			out = append(out, p.OptionDefinitions...)
			walk(p.Properties)
		}
	}
	walk(s.Properties)
	return out
}

// walkProperties calls fn for every property with its dot-separated path.
// Returning false from fn skips the property's children.
func (s *Schema) walkProperties(fn func(path string, p *Property) bool) {
	var walk func(prefix string, props map[string]*Property)
	walk = func(prefix string, props map[string]*Property) {
		for _, k := range sortedKeys(props) {
			p := props[k]
			if p == nil {
				continue
			}
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			if fn(path, p) {
				walk(path, p.Properties)
			}
		}
	}
	walk("", s.Properties)
}

// overloadedProperties returns the reserved names the schema declares.
func (s *Schema) overloadedProperties() []string {
	var out []string
	for _, r := range reservedProperties {
		if _, ok := s.Properties[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

func formatProblems(header string, problems []string) string {
	var b strings.Builder
	b.WriteString(header)
	for _, p := range problems {
		b.WriteString("\n")
		b.WriteString(p)
	}
	return b.String()
}
