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
	"context"

	"github.com/abcxyz/cmdkit/cmderror"
	"github.com/abcxyz/cmdkit/logging"
)

// OptionSource supplies option definitions. The base profile type
// configuration implements it so its options can surface on commands that
// load more than one profile type.
type OptionSource interface {
	OptionDefinitions() []Option
}

// Prepare returns the prepared copy of original. The steps run in a fixed
// order and the first failure aborts preparation:
//
//  1. copy the tree (cycles and values that cannot be copied fail)
//  2. default the options, aliases, positionals, and passOn lists
//  3. resolve trait values from their declaring nodes
//  4. attach the built-in help-examples and show-inputs-only traits
//  5. propagate traits
//  6. validate the tree
//  7. append the automatic options, including the base profile's options
//
// The base source may be nil.
func Prepare(ctx context.Context, original *Definition, base OptionSource) (*Definition, error) {
	logger := logging.FromContext(ctx)

	if original == nil {
		return nil, cmderror.New(cmderror.StructuralDefinition,
			"the command definition tree must not be nil")
	}

	d, err := Clone(original)
	if err != nil {
		return nil, err
	}

	setDefaults(d)

	if err := PopulateTraitValues(d); err != nil {
		return nil, err
	}

	d.PassOn = append(d.PassOn, builtinTraits()...)
	if err := PassOn(d, nil); err != nil {
		return nil, err
	}

	if err := Validate(d); err != nil {
		return nil, err
	}

	var baseOptions []Option
	if base != nil {
		baseOptions = base.OptionDefinitions()
	}
	AppendAutoOptions(d, baseOptions)

	logger.DebugContext(ctx, "prepared command definition tree",
		"name", d.Name,
		"nodes", countNodes(d),
		"base_options", len(baseOptions))
	return d, nil
}

// setDefaults replaces nil lists with empty lists throughout the tree.
func setDefaults(d *Definition) {
	if d.Options == nil {
		d.Options = []Option{}
	}
	if d.Aliases == nil {
		d.Aliases = []string{}
	}
	if d.Positionals == nil {
		d.Positionals = []Positional{}
	}
	if d.PassOn == nil {
		d.PassOn = []Trait{}
	}
	for _, c := range d.Children {
		if c != nil {
			setDefaults(c)
		}
	}
}

func countNodes(d *Definition) int {
	n := 1
	for _, c := range d.Children {
		if c != nil {
			n += countNodes(c)
		}
	}
	return n
}
