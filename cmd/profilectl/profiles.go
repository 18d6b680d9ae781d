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

package main

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/abcxyz/cmdkit/cli"
	"github.com/abcxyz/cmdkit/definition"
	"github.com/abcxyz/cmdkit/handler"
	"github.com/abcxyz/cmdkit/profile"
)

const (
	profileNameArg     = "profileName"
	overwriteOption    = "overwrite"
	updateDefaultOpt   = "update-default"
	showContentsOption = "show-contents"
	rejectIfDepOption  = "reject-if-dependency"
	strictOption       = "strict"
)

// profilesGroup returns the "profiles" group with one subgroup per profile
// type. Handler names are "profiles.<type>.<action>".
func profilesGroup(reg *profile.Registry) *definition.Definition {
	g := &definition.Definition{
		Name:        "profiles",
		Aliases:     []string{"profile"},
		Type:        definition.TypeGroup,
		Summary:     "Create and manage profiles.",
		Description: "Create and manage the profiles of every type known to this CLI.",
	}
	for _, c := range reg.Configurations() {
		g.Children = append(g.Children, profileTypeGroup(c))
	}
	return g
}

func profileTypeGroup(c *profile.TypeConfiguration) *definition.Definition {
	typ := c.Type
	title := cases.Title(language.English).String(typ) + " Profile"
	if c.Schema != nil && c.Schema.Title != "" {
		title = c.Schema.Title
	}

	name := definition.Positional{
		Name:        profileNameArg,
		Type:        definition.OptionString,
		Description: fmt.Sprintf("The name of the %s profile.", typ),
		Required:    true,
	}
	optionalName := name
	optionalName.Required = false
	optionalName.Description = fmt.Sprintf("The name of the %s profile. The default profile is used when omitted.", typ)

	// Create and update take the schema's options plus one option per
	// dependency type.
	valueOptions := c.OptionDefinitions()
	for _, dep := range c.Dependencies {
		opt, alias := definition.ProfileOptionName(dep.Type)
		desc := dep.Description
		if desc == "" {
			desc = fmt.Sprintf("The name of a %s profile this profile depends on.", dep.Type)
		}
		valueOptions = append(valueOptions, definition.Option{
			Name:        opt,
			Aliases:     []string{alias},
			Type:        definition.OptionString,
			Description: desc,
			Required:    dep.Required,
		})
	}

	createOptions := append(cloneOptions(valueOptions),
		definition.Option{
			Name:        overwriteOption,
			Aliases:     []string{"ow"},
			Type:        definition.OptionBoolean,
			Description: "Overwrite a profile of the same name.",
		},
		definition.Option{
			Name:        updateDefaultOpt,
			Aliases:     []string{"ud"},
			Type:        definition.OptionBoolean,
			Description: "Make the new profile the default.",
		},
	)

	id := func(action string) string { return "profiles." + typ + "." + action }
	return &definition.Definition{
		Name:        typ,
		Type:        definition.TypeGroup,
		Summary:     fmt.Sprintf("Manage %s profiles.", typ),
		Description: fmt.Sprintf("Manage profiles of type %q (%s).", typ, title),
		Children: []*definition.Definition{
			{
				Name:        "create",
				Aliases:     []string{"cre"},
				Type:        definition.TypeCommand,
				Description: fmt.Sprintf("Create a %s profile from the given options.", typ),
				Handler:     id("create"),
				Positionals: []definition.Positional{name},
				Options:     createOptions,
				Examples: []definition.Example{{
					Description: fmt.Sprintf("Create a %s profile named \"main\" and make it the default", typ),
					Options:     "main --" + updateDefaultOpt,
				}},
			},
			{
				Name:        "update",
				Aliases:     []string{"upd"},
				Type:        definition.TypeCommand,
				Description: fmt.Sprintf("Update a %s profile. Given options replace stored values and the rest are kept.", typ),
				Handler:     id("update"),
				Positionals: []definition.Positional{name},
				Options:     cloneOptions(valueOptions),
			},
			{
				Name:        "delete",
				Aliases:     []string{"rm"},
				Type:        definition.TypeCommand,
				Description: fmt.Sprintf("Delete a %s profile and its secure values.", typ),
				Handler:     id("delete"),
				Positionals: []definition.Positional{name},
				Options: []definition.Option{{
					Name:        rejectIfDepOption,
					Type:        definition.OptionBoolean,
					Description: "Refuse to delete the profile when other profiles depend on it.",
				}},
			},
			{
				Name:        "list",
				Aliases:     []string{"ls"},
				Type:        definition.TypeCommand,
				Description: fmt.Sprintf("List the %s profiles.", typ),
				Handler:     id("list"),
				Options: []definition.Option{{
					Name:        showContentsOption,
					Aliases:     []string{"sc"},
					Type:        definition.OptionBoolean,
					Description: "Print the contents of each profile. Secure values are not shown.",
				}},
				OutputFormatOptions: true,
			},
			{
				Name:                "show",
				Type:                definition.TypeCommand,
				Description:         fmt.Sprintf("Print a %s profile as YAML. Secure values are not shown.", typ),
				Handler:             id("show"),
				Positionals:         []definition.Positional{optionalName},
				OutputFormatOptions: true,
			},
			{
				Name:        "set-default",
				Aliases:     []string{"set"},
				Type:        definition.TypeCommand,
				Description: fmt.Sprintf("Make a %s profile the default.", typ),
				Handler:     id("set-default"),
				Positionals: []definition.Positional{name},
			},
			{
				Name:        "validate",
				Aliases:     []string{"val"},
				Type:        definition.TypeCommand,
				Description: fmt.Sprintf("Check a %s profile against its schema and load its dependencies.", typ),
				Handler:     id("validate"),
				Positionals: []definition.Positional{optionalName},
				Options: []definition.Option{{
					Name:        strictOption,
					Type:        definition.OptionBoolean,
					Description: "Reject properties the schema does not declare.",
				}},
			},
		},
	}
}

func cloneOptions(opts []definition.Option) []definition.Option {
	return append([]definition.Option(nil), opts...)
}

// registerProfileHandlers registers the handlers of [profilesGroup].
func registerProfileHandlers(reg *handler.Registry[cli.Handler], store *profile.Store) {
	for _, typ := range store.Registry().Types() {
		h := &profileHandlers{store: store, typ: typ}
		prefix := "profiles." + typ + "."
		reg.MustRegister(prefix+"create", h.create)
		reg.MustRegister(prefix+"update", h.update)
		reg.MustRegister(prefix+"delete", h.delete)
		reg.MustRegister(prefix+"list", h.list)
		reg.MustRegister(prefix+"show", h.show)
		reg.MustRegister(prefix+"set-default", h.setDefault)
		reg.MustRegister(prefix+"validate", h.validate)
	}
}

type profileHandlers struct {
	store *profile.Store
	typ   string
}

func (h *profileHandlers) manager() (*profile.Manager, error) {
	return h.store.Manager(h.typ)
}

func (h *profileHandlers) create(ctx context.Context, p *cli.Params) error {
	m, err := h.manager()
	if err != nil {
		return err
	}
	saved, err := m.SaveFromArgs(ctx, profile.ArgsSaveOptions{
		Name:          p.String(profileNameArg),
		Args:          profile.Args(p.Arguments),
		Overwrite:     p.Bool(overwriteOption),
		UpdateDefault: p.Bool(updateDefaultOpt),
	})
	if err != nil {
		return err
	}
	p.Response.SetMessage("%s", saved.Message)
	p.Response.SetData(map[string]any{
		"path":        saved.Path,
		"overwritten": saved.Overwritten,
	})
	return nil
}

func (h *profileHandlers) update(ctx context.Context, p *cli.Params) error {
	m, err := h.manager()
	if err != nil {
		return err
	}
	updated, err := m.UpdateFromArgs(ctx, profile.ArgsUpdateOptions{
		Name:  p.String(profileNameArg),
		Args:  profile.Args(p.Arguments),
		Merge: true,
	})
	if err != nil {
		return err
	}
	p.Response.SetMessage("%s", updated.Message)
	p.Response.SetData(map[string]any{"path": updated.Path})
	return nil
}

func (h *profileHandlers) delete(ctx context.Context, p *cli.Params) error {
	m, err := h.manager()
	if err != nil {
		return err
	}
	deleted, err := m.Delete(ctx, profile.DeleteOptions{
		Name:               p.String(profileNameArg),
		RejectIfDependency: p.Bool(rejectIfDepOption),
	})
	if err != nil {
		return err
	}
	p.Response.SetMessage("%s", deleted.Message)
	p.Response.SetData(map[string]any{
		"path":           deleted.Path,
		"defaultCleared": deleted.DefaultCleared,
	})
	return nil
}

type listedProfile struct {
	Name     string         `json:"name"`
	Default  bool           `json:"default"`
	Contents map[string]any `json:"contents,omitempty"`
}

func (h *profileHandlers) list(ctx context.Context, p *cli.Params) error {
	m, err := h.manager()
	if err != nil {
		return err
	}
	def, err := m.DefaultName(ctx)
	if err != nil {
		return err
	}

	var listed []*listedProfile
	if p.Bool(showContentsOption) {
		all, err := m.LoadAll(ctx, profile.LoadAllOptions{NoSecure: true})
		if err != nil {
			return err
		}
		for _, l := range all {
			listed = append(listed, &listedProfile{
				Name:     l.Name,
				Default:  l.Name == def,
				Contents: l.Profile.Document(),
			})
		}
	} else {
		names, err := m.Names(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			listed = append(listed, &listedProfile{Name: n, Default: n == def})
		}
	}

	p.Response.SetData(listed)
	if p.FormatRequested() {
		return nil
	}

	for _, l := range listed {
		line := l.Name
		if l.Default {
			line += " (default)"
		}
		fmt.Fprintln(p.Stdout, line)
		if l.Contents != nil {
			if err := writeIndentedYAML(p, l.Contents); err != nil {
				return err
			}
		}
	}
	if len(listed) == 0 {
		p.Response.SetMessage("No %s profiles found.", h.typ)
	}
	return nil
}

func (h *profileHandlers) show(ctx context.Context, p *cli.Params) error {
	m, err := h.manager()
	if err != nil {
		return err
	}
	opts := profile.LoadOptions{
		Name:             p.String(profileNameArg),
		SkipDependencies: true,
		NoSecure:         true,
	}
	opts.LoadDefault = opts.Name == ""
	loaded, err := m.Load(ctx, opts)
	if err != nil {
		return err
	}

	doc := loaded.Profile.Document()
	p.Response.SetData(map[string]any{
		"name":     loaded.Name,
		"contents": doc,
	})
	if p.FormatRequested() {
		return nil
	}

	b, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to render profile %q: %w", loaded.Name, err)
	}
	fmt.Fprint(p.Stdout, string(b))
	return nil
}

func (h *profileHandlers) setDefault(ctx context.Context, p *cli.Params) error {
	m, err := h.manager()
	if err != nil {
		return err
	}
	name := p.String(profileNameArg)
	if err := m.SetDefault(ctx, name); err != nil {
		return err
	}
	p.Response.SetMessage("The default profile for %s set to %s.", h.typ, name)
	return nil
}

func (h *profileHandlers) validate(ctx context.Context, p *cli.Params) error {
	m, err := h.manager()
	if err != nil {
		return err
	}
	opts := profile.LoadOptions{
		Name:             p.String(profileNameArg),
		SkipDependencies: true,
	}
	opts.LoadDefault = opts.Name == ""
	loaded, err := m.Load(ctx, opts)
	if err != nil {
		return err
	}
	validated, err := m.Validate(ctx, profile.ValidateOptions{
		Profile: loaded.Profile,
		Strict:  p.Bool(strictOption),
	})
	if err != nil {
		return err
	}
	p.Response.SetMessage("%s", validated.Message)
	return nil
}

func writeIndentedYAML(p *cli.Params, v any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to render profile: %w", err)
	}
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		fmt.Fprintln(p.Stdout, "  "+line)
	}
	return nil
}
