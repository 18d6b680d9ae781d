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
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/abcxyz/cmdkit/cmderror"
	"github.com/abcxyz/cmdkit/definition"
	"github.com/abcxyz/cmdkit/logging"
)

// TypeConfiguration declares one profile type: its schema, the profile types
// it may depend on, and optional handlers that build profiles from command
// arguments. Handlers are identifiers resolved through a handler registry.
type TypeConfiguration struct {
	Type          string           `json:"type" validate:"required"`
	Schema        *Schema          `json:"schema" validate:"required"`
	Dependencies  []DependencySpec `json:"dependencies,omitempty" validate:"dive"`
	CreateHandler string           `json:"createProfileFromArgumentsHandler,omitempty"`
	UpdateHandler string           `json:"updateProfileFromArgumentsHandler,omitempty"`
}

// DependencySpec declares that profiles of a type may, or must, depend on a
// profile of another type.
type DependencySpec struct {
	Type        string `json:"type" validate:"required"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

var _ definition.OptionSource = (*TypeConfiguration)(nil)

// OptionDefinitions returns every option definition declared on the schema's
// properties, in property name order.
func (c *TypeConfiguration) OptionDefinitions() []definition.Option {
	if c == nil || c.Schema == nil {
		return nil
	}
	return c.Schema.optionDefinitions()
}

// Registry holds the profile type configurations known to a program. It is
// read-only after construction.
type Registry struct {
	configs map[string]*TypeConfiguration
	order   []string
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// NewRegistry validates and registers the configurations. Schemas that
// declare a reserved property (type, name or dependencies) are accepted with a
// warning.
func NewRegistry(ctx context.Context, configs ...*TypeConfiguration) (*Registry, error) {
	logger := logging.FromContext(ctx)

	r := &Registry{
		configs: make(map[string]*TypeConfiguration, len(configs)),
		order:   make([]string, 0, len(configs)),
	}
	for i, c := range configs {
		if c == nil {
			return nil, cmderror.Newf(cmderror.ProfileConfiguration,
				"profile type configuration at index %d is nil", i)
		}
		if err := validateConfiguration(c); err != nil {
			return nil, err
		}
		if _, ok := r.configs[c.Type]; ok {
			return nil, cmderror.Newf(cmderror.ProfileConfiguration,
				"the profile type %q is configured more than once", c.Type)
		}

		if reserved := c.Schema.overloadedProperties(); len(reserved) > 0 {
			logger.WarnContext(ctx, "profile schema declares reserved properties",
				"type", c.Type,
				"properties", reserved)
		}

		r.configs[c.Type] = c
		r.order = append(r.order, c.Type)
	}
	return r, nil
}

// Lookup returns the configuration for typ.
func (r *Registry) Lookup(typ string) (*TypeConfiguration, error) {
	c, ok := r.configs[typ]
	if !ok {
		return nil, cmderror.Newf(cmderror.ProfileConfiguration,
			"could not locate the profile type configuration for %q within the registered types %q",
			typ, r.order)
	}
	return c, nil
}

// Types returns the registered type names in registration order.
func (r *Registry) Types() []string {
	return append([]string(nil), r.order...)
}

// Configurations returns the registered configurations in registration order.
func (r *Registry) Configurations() []*TypeConfiguration {
	out := make([]*TypeConfiguration, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.configs[t])
	}
	return out
}

func validateConfiguration(c *TypeConfiguration) error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return cmderror.Newf(cmderror.ProfileConfiguration,
			"failed to validate the profile type configuration for %q: %s", c.Type, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, configurationProblem(c.Type, fe))
	}
	return cmderror.New(cmderror.ProfileConfiguration, msgs[0]).
		WithDetails(strings.Join(msgs, "\n"))
}

func configurationProblem(typ string, fe validator.FieldError) string {
	ns := fe.StructNamespace()
	switch {
	case ns == "TypeConfiguration.Type":
		return fmt.Sprintf("The profile type configuration document for %q does NOT contain a type.", typ)
	case ns == "TypeConfiguration.Schema":
		return fmt.Sprintf("The profile type configuration document for %q does NOT contain a schema.", typ)
	case ns == "TypeConfiguration.Schema.Properties":
		return fmt.Sprintf("The schema document supplied for the profile type (%q) does NOT contain properties.", typ)
	case strings.HasPrefix(ns, "TypeConfiguration.Dependencies[") && fe.Field() == "Type":
		return fmt.Sprintf("A dependency specified for the profile type %q did not contain a type.", typ)
	default:
		return fmt.Sprintf("The profile type configuration document for %q is invalid: %s", typ, fe.Error())
	}
}

// DecodeTypeConfigurations reads a YAML list of type configurations. Keys use
// the same names as the JSON form.
func DecodeTypeConfigurations(r io.Reader) ([]*TypeConfiguration, error) {
	var raw []any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, cmderror.Newf(cmderror.ProfileConfiguration,
			"failed to parse profile type configurations: %s", err)
	}

	var out []*TypeConfiguration
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		Result:      &out,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, cmderror.Newf(cmderror.ProfileConfiguration,
			"failed to decode profile type configurations: %s", err)
	}
	return out, nil
}
