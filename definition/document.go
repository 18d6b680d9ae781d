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

package definition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/jsonc"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/abcxyz/cmdkit/cmderror"
)

// Format is the encoding of a definition document.
type Format string

const (
	FormatYAML Format = "yaml"

	// FormatJSON accepts JSON with comments and trailing commas.
	FormatJSON Format = "json"
)

// FormatFromPath returns the document format for the file extension of path.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown definition document extension %q", filepath.Ext(path))
	}
}

// DocumentSchema returns the JSON schema that definition documents are
// checked against. It is reflected from [Definition] and permits additional
// properties, which become [Definition.Extra].
func DocumentSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		Anonymous:                 true,
	}
	s := r.Reflect(&Definition{})
	s.Version = "http://json-schema.org/draft-07/schema#"
	s.ID = ""
	return s
}

var compiledDocumentSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	b, err := json.Marshal(DocumentSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document schema: %w", err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to compile document schema: %w", err)
	}
	return s, nil
})

// Decode reads one definition document.
func Decode(r io.Reader, format Format) (*Definition, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition document: %w", err)
	}

	var raw any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, cmderror.Newf(cmderror.StructuralDefinition,
				"failed to parse definition document: %s", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(b)))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, cmderror.Newf(cmderror.StructuralDefinition,
				"failed to parse definition document: %s", err)
		}
		raw = normalizeNumbers(raw)
	default:
		return nil, fmt.Errorf("unknown definition document format %q", format)
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return nil, cmderror.Newf(cmderror.StructuralDefinition,
			"definition document must be an object, got %T", raw)
	}

	if err := validateDocument(m); err != nil {
		return nil, err
	}
	return decodeNode(m, "(root)")
}

// DecodeFile reads the definition document at path. The format is chosen by
// file extension.
func DecodeFile(path string) (*Definition, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open definition document: %w", err)
	}
	defer f.Close()

	d, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// DecodeGlob reads every document matching pattern, in lexical order. The
// results are typically appended as children of a root node.
func DecodeGlob(pattern string) ([]*Definition, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid definition glob %q: %w", pattern, err)
	}
	sort.Strings(paths)

	defs := make([]*Definition, 0, len(paths))
	for _, p := range paths {
		d, err := DecodeFile(p)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, nil
}

func validateDocument(m map[string]any) error {
	schema, err := compiledDocumentSchema()
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(m))
	if err != nil {
		return fmt.Errorf("failed to validate definition document: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var b strings.Builder
	for _, e := range result.Errors() {
		fmt.Fprintf(&b, "%s: %s\n", e.Field(), e.Description())
	}
	return cmderror.New(cmderror.StructuralDefinition,
		"definition document does not match the definition schema").
		WithDetails(b.String())
}

// decodeNode decodes one document node. Children are decoded recursively so
// each node collects its own unknown properties into Extra.
func decodeNode(m map[string]any, label string) (*Definition, error) {
	rest := make(map[string]any, len(m))
	for k, v := range m {
		if k != "children" {
			rest[k] = v
		}
	}

	var d Definition
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "json",
		Result:   &d,
		Metadata: &md,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(rest); err != nil {
		return nil, cmderror.Newf(cmderror.StructuralDefinition,
			"failed to decode definition node %s: %s", label, err)
	}

	for _, k := range md.Unused {
		if strings.ContainsAny(k, ".[") {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]any)
		}
		d.Extra[k] = rest[k]
	}

	raw, ok := m["children"]
	if !ok || raw == nil {
		return &d, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, cmderror.Newf(cmderror.StructuralDefinition,
			"command definition node (%s) contains ill-formed children", label)
	}

	d.Children = make([]*Definition, 0, len(list))
	for i, item := range list {
		cm, ok := item.(map[string]any)
		if !ok {
			return nil, cmderror.Newf(cmderror.StructuralDefinition,
				"command definition node (%s) contains ill-formed children", label)
		}
		child, err := decodeNode(cm, fmt.Sprintf("%s > children[%d]", label, i))
		if err != nil {
			return nil, err
		}
		d.Children = append(d.Children, child)
	}
	return &d, nil
}

// normalizeNumbers converts JSON numbers to int when they are integral and to
// float64 otherwise, matching the YAML decoder.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}
