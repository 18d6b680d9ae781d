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

// Package definition turns a declarative tree of command definitions into a
// prepared tree: validated, with pass-on traits propagated to descendants and
// the cross-cutting options (help, JSON output, profile selection, stdin,
// response formatting) appended to every node.
//
// A tree is authored once, either as Go literals or as a YAML or JSON document
// (see [Decode]), and passed to [Prepare]:
//
//	prepared, err := definition.Prepare(ctx, root, baseProfile)
//	if err != nil {
//	  return err
//	}
//
// The original tree is never modified. The prepared tree is a new value and is
// treated as immutable by the rest of the runtime.
package definition

import (
	"encoding/json"
	"fmt"
)

// NodeType discriminates the two kinds of definition nodes.
type NodeType string

const (
	// TypeGroup is a node whose only purpose is to hold children.
	TypeGroup NodeType = "group"

	// TypeCommand is an executable leaf.
	TypeCommand NodeType = "command"
)

// OptionType is the type of an option or positional value.
type OptionType string

const (
	OptionString            OptionType = "string"
	OptionStringOrEmpty     OptionType = "stringOrEmpty"
	OptionBoolean           OptionType = "boolean"
	OptionNumber            OptionType = "number"
	OptionArray             OptionType = "array"
	OptionJSON              OptionType = "json"
	OptionExistingLocalFile OptionType = "existingLocalFile"
)

// Definition is a node in a command definition tree. The root node describes
// the CLI itself; every other node is a group or a command.
type Definition struct {
	Name        string   `json:"name,omitempty"`
	Type        NodeType `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`

	// Summary is a short description shown in listings. It defaults to the
	// description when empty.
	Summary string `json:"summary,omitempty"`

	Aliases     []string      `json:"aliases,omitempty"`
	Options     []Option      `json:"options,omitempty"`
	Positionals []Positional  `json:"positionals,omitempty"`
	Children    []*Definition `json:"children,omitempty"`
	Examples    []Example     `json:"examples,omitempty"`

	// Handler is the registry key of the handler that runs the command. It is
	// mutually exclusive with ChainedHandlers.
	Handler string `json:"handler,omitempty"`

	// ChainedHandlers run in order, each receiving arguments mapped from the
	// original arguments and from the responses of earlier handlers.
	ChainedHandlers []ChainedHandler `json:"chainedHandlers,omitempty"`

	// Profile declares the profile types loaded for the command.
	Profile *ProfileSpec `json:"profile,omitempty"`

	// PassOn lists traits applied to every descendant of this node.
	PassOn []Trait `json:"passOn,omitempty"`

	Experimental           bool   `json:"experimental,omitempty"`
	EnableStdin            bool   `json:"enableStdin,omitempty"`
	StdinOptionDescription string `json:"stdinOptionDescription,omitempty"`
	OutputFormatOptions    bool   `json:"outputFormatOptions,omitempty"`

	// Extra holds properties that have no dedicated field. Traits may target
	// them and documents may declare them.
	Extra map[string]any `json:"-"`
}

// Option is a named command line option.
type Option struct {
	Name            string           `json:"name,omitempty"`
	Aliases         []string         `json:"aliases,omitempty"`
	Description     string           `json:"description,omitempty"`
	Type            OptionType       `json:"type,omitempty"`
	Group           string           `json:"group,omitempty"`
	Required        bool             `json:"required,omitempty"`
	DefaultValue    any              `json:"defaultValue,omitempty"`
	AllowableValues *AllowableValues `json:"allowableValues,omitempty"`
	ConflictsWith   []string         `json:"conflictsWith,omitempty"`
	Implies         []string         `json:"implies,omitempty"`
	Hidden          bool             `json:"hidden,omitempty"`
}

// AllowableValues restricts an option to a fixed set of values.
type AllowableValues struct {
	Values        []string `json:"values,omitempty"`
	CaseSensitive bool     `json:"caseSensitive,omitempty"`
}

// Positional is a positional argument.
type Positional struct {
	Name        string     `json:"name,omitempty"`
	Type        OptionType `json:"type,omitempty"`
	Description string     `json:"description,omitempty"`
	Required    bool       `json:"required,omitempty"`

	// Regex, when set, must match the supplied value.
	Regex string `json:"regex,omitempty"`
}

// Example documents a sample invocation.
type Example struct {
	Description string `json:"description,omitempty"`
	Options     string `json:"options,omitempty"`
}

// ChainedHandler is one link of a handler chain.
type ChainedHandler struct {
	Handler         string            `json:"handler,omitempty"`
	Silent          bool              `json:"silent,omitempty"`
	ArgumentMapping []ArgumentMapping `json:"argumentMapping,omitempty"`
}

// ArgumentMapping copies a value into the arguments of later handlers in a
// chain. From is a dotted path into the current handler's response; Value is a
// literal. They are mutually exclusive.
type ArgumentMapping struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Value any    `json:"value,omitempty"`

	// ApplyToHandlers are indexes relative to the current handler. The default
	// is the next handler only.
	ApplyToHandlers []int `json:"applyToHandlers,omitempty"`
}

// Targets returns the relative handler indexes the mapping applies to.
func (m *ArgumentMapping) Targets() []int {
	if len(m.ApplyToHandlers) == 0 {
		return []int{1}
	}
	return m.ApplyToHandlers
}

// ProfileSpec declares the profile types a command loads.
type ProfileSpec struct {
	Required []string `json:"required,omitempty"`
	Optional []string `json:"optional,omitempty"`

	// SuppressOptions lists types for which no "<type>-profile" option is
	// generated.
	SuppressOptions []string `json:"suppressOptions,omitempty"`
}

// Types returns the required types followed by the optional types.
func (p *ProfileSpec) Types() []string {
	if p == nil {
		return nil
	}
	types := make([]string, 0, len(p.Required)+len(p.Optional))
	types = append(types, p.Required...)
	types = append(types, p.Optional...)
	return types
}

// Trait is a property a node passes on to its descendants.
type Trait struct {
	// Property is the JSON name of the target property, e.g. "options" or
	// "experimental". Unknown names are stored in Extra.
	Property string `json:"property,omitempty"`

	// Value is applied to descendants. When nil, it is captured from the
	// declaring node's own Property during preparation.
	Value any `json:"value,omitempty"`

	// Merge appends to array properties and deep merges object properties
	// instead of overwriting them.
	Merge bool `json:"merge,omitempty"`

	// IgnoreNodes excludes matching descendants.
	IgnoreNodes []NodeFilter `json:"ignoreNodes,omitempty"`
}

// NodeFilter matches nodes by name, type, or both.
type NodeFilter struct {
	Name string   `json:"name,omitempty"`
	Type NodeType `json:"type,omitempty"`
}

// Matches reports whether the filter excludes the node. Both fields must match
// when both are set; a single set field must match on its own.
func (f *NodeFilter) Matches(d *Definition) bool {
	switch {
	case f.Name != "" && f.Type != "":
		return f.Name == d.Name && f.Type == d.Type
	case f.Name != "":
		return f.Name == d.Name
	case f.Type != "":
		return f.Type == d.Type
	default:
		return false
	}
}

// IsGroup reports whether the node is a group.
func (d *Definition) IsGroup() bool {
	return d.Type == TypeGroup
}

// IsCommand reports whether the node is a command.
func (d *Definition) IsCommand() bool {
	return d.Type == TypeCommand
}

// Child returns the immediate child with the given name or alias.
func (d *Definition) Child(name string) (*Definition, bool) {
	for _, c := range d.Children {
		if c.Name == name {
			return c, true
		}
		for _, a := range c.Aliases {
			if a == name {
				return c, true
			}
		}
	}
	return nil, false
}

// Option returns the option with the given name.
func (d *Definition) Option(name string) (*Option, bool) {
	for i := range d.Options {
		if d.Options[i].Name == name {
			return &d.Options[i], true
		}
	}
	return nil, false
}

// Walk calls fn for d and every descendant, depth first, parents before
// children. The ancestors slice is the path from the root to the node's
// parent. Nil children are skipped. Walking stops at the first error.
func Walk(d *Definition, fn func(node *Definition, ancestors []*Definition) error) error {
	return walk(d, nil, fn)
}

func walk(d *Definition, ancestors []*Definition, fn func(*Definition, []*Definition) error) error {
	if err := fn(d, ancestors); err != nil {
		return err
	}

	path := append(ancestors[:len(ancestors):len(ancestors)], d)
	for _, c := range d.Children {
		if c == nil {
			continue
		}
		if err := walk(c, path, fn); err != nil {
			return err
		}
	}
	return nil
}

// definitionJSON breaks the MarshalJSON recursion.
type definitionJSON Definition

// MarshalJSON includes Extra properties alongside the named fields.
func (d *Definition) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal((*definitionJSON)(d))
	if err != nil {
		return nil, err //nolint:wrapcheck // Want passthrough
	}
	if len(d.Extra) == 0 {
		return b, nil
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}
	for k, v := range d.Extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return json.Marshal(m) //nolint:wrapcheck // Want passthrough
}

// detailsJSON renders the node for error details. Children are elided so the
// details stay focused on the offending node.
func detailsJSON(d *Definition) string {
	shallow := *d
	shallow.Children = nil
	return mustJSON(&shallow)
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
