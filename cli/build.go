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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abcxyz/cmdkit/cmdprofile"
	"github.com/abcxyz/cmdkit/definition"
	"github.com/abcxyz/cmdkit/handler"
	"github.com/abcxyz/cmdkit/logging"
)

// BuildOptions configures [Build].
type BuildOptions struct {
	// Handlers resolves the handler names used by the tree. Every name must be
	// registered.
	Handlers *handler.Registry[Handler]

	// Profiles loads the profile types that commands declare. It is required
	// when any command declares one.
	Profiles cmdprofile.TypeLoader

	Version string

	// EnvPrefix, when set, lets options be supplied through environment
	// variables named by the prefix and the upper-cased option name, e.g.
	// FRUITCTL_OPT_COLOR for "--color". Global options are excluded.
	EnvPrefix string

	// LookupEnv defaults to [os.LookupEnv].
	LookupEnv LookupEnvFunc
}

// Build turns a prepared definition tree into a runnable command. Groups
// become [RootCommand] values and commands run their handlers.
func Build(root *definition.Definition, opts *BuildOptions) (Command, error) {
	if root == nil {
		return nil, fmt.Errorf("definition must not be nil")
	}
	if opts == nil {
		opts = &BuildOptions{}
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}

	if err := definition.Walk(root, func(d *definition.Definition, _ []*definition.Definition) error {
		names := make([]string, 0, len(d.ChainedHandlers)+1)
		if d.Handler != "" {
			names = append(names, d.Handler)
		}
		for _, ch := range d.ChainedHandlers {
			names = append(names, ch.Handler)
		}
		for _, name := range names {
			if _, err := opts.Handlers.Lookup(name); err != nil {
				return fmt.Errorf("command %q: %w", d.Name, err)
			}
		}

		if len(d.Profile.Types()) > 0 && opts.Profiles == nil {
			return fmt.Errorf("command %q loads profiles but no profile loader was given", d.Name)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	path := root.Name
	if path == "" {
		path = filepath.Base(os.Args[0])
	}
	return newCommand(root, path, opts, false), nil
}

func newCommand(d *definition.Definition, path string, opts *BuildOptions, hidden bool) Command {
	if !d.IsGroup() {
		return &definitionCommand{
			def:    d,
			path:   path,
			opts:   opts,
			hidden: hidden,
		}
	}

	r := &RootCommand{
		Name:        path[strings.LastIndex(path, " ")+1:],
		Description: summary(d),
		Hide:        hidden,
		Version:     opts.Version,
		Examples:    func() string { return groupExamples(d, path) },
		WebHelp:     func() (string, error) { return webHelp(d, path) },
		Commands:    make(map[string]CommandFactory, len(d.Children)),
	}
	for _, c := range d.Children {
		r.Commands[c.Name] = func() Command {
			return newCommand(c, path+" "+c.Name, opts, false)
		}
	}
	for _, c := range d.Children {
		for _, alias := range c.Aliases {
			if _, ok := r.Commands[alias]; ok {
				continue
			}
			r.Commands[alias] = func() Command {
				return newCommand(c, path+" "+alias, opts, true)
			}
		}
	}
	return r
}

func summary(d *definition.Definition) string {
	if d.Summary != "" {
		return d.Summary
	}
	first, _, _ := strings.Cut(d.Description, "\n")
	return first
}

var _ Command = (*definitionCommand)(nil)

// definitionCommand runs one command definition.
type definitionCommand struct {
	BaseCommand

	def    *definition.Definition
	path   string
	opts   *BuildOptions
	hidden bool

	flags   *FlagSet
	targets map[string]any
}

func (c *definitionCommand) Desc() string {
	return summary(c.def)
}

func (c *definitionCommand) Hidden() bool {
	return c.hidden
}

func (c *definitionCommand) Help() string {
	return commandHelp(c.def, c.path, c.Flags())
}

// Flags registers one flag per option. Options or aliases that repeat an
// earlier name are skipped.
func (c *definitionCommand) Flags() *FlagSet {
	if c.flags != nil {
		return c.flags
	}

	set := NewFlagSet(WithLookupEnv(c.opts.LookupEnv))
	c.targets = make(map[string]any, len(c.def.Options))

	for i := range c.def.Options {
		o := &c.def.Options[i]
		if set.Lookup(o.Name) != nil {
			continue
		}

		aliases := make([]string, 0, len(o.Aliases))
		for _, a := range o.Aliases {
			if a != o.Name && set.Lookup(a) == nil {
				aliases = append(aliases, a)
			}
		}

		usage := o.Description
		if o.DefaultValue != nil {
			usage += fmt.Sprintf(" The default value is %v.", o.DefaultValue)
		}
		if env := c.envVar(o); env != "" {
			usage += fmt.Sprintf(" This option can also be specified with the %s "+
				"environment variable.", env)
		}

		sec := set.NewSection(o.Group)
		switch o.Type {
		case definition.OptionBoolean:
			t := new(bool)
			sec.BoolVar(&BoolVar{
				Name:    o.Name,
				Aliases: aliases,
				Usage:   usage,
				Hidden:  o.Hidden,
				Target:  t,
			})
			c.targets[o.Name] = t
		case definition.OptionNumber:
			t := new(float64)
			sec.Float64Var(&Float64Var{
				Name:    o.Name,
				Aliases: aliases,
				Usage:   usage,
				Example: "number",
				Hidden:  o.Hidden,
				Target:  t,
			})
			c.targets[o.Name] = t
		case definition.OptionArray:
			t := new([]string)
			sec.StringSliceVar(&StringSliceVar{
				Name:    o.Name,
				Aliases: aliases,
				Usage:   usage,
				Example: "value1,value2",
				Hidden:  o.Hidden,
				Target:  t,
			})
			c.targets[o.Name] = t
		case definition.OptionJSON:
			t := new(any)
			sec.JSONVar(&JSONVar{
				Name:    o.Name,
				Aliases: aliases,
				Usage:   usage,
				Example: "json",
				Hidden:  o.Hidden,
				Target:  t,
			})
			c.targets[o.Name] = t
		default:
			t := new(string)
			sv := &StringVar{
				Name:    o.Name,
				Aliases: aliases,
				Usage:   usage,
				Example: "string",
				Hidden:  o.Hidden,
				Target:  t,
			}
			if o.Type == definition.OptionExistingLocalFile {
				sv.Example = "file"
			}
			if av := o.AllowableValues; av != nil {
				sv.Values = av.Values
				sv.CaseSensitive = av.CaseSensitive
			}
			sec.StringVar(sv)
			c.targets[o.Name] = t
		}
	}

	c.flags = set
	return set
}

func (c *definitionCommand) envVar(o *definition.Option) string {
	if c.opts.EnvPrefix == "" || o.Group == definition.GlobalGroup {
		return ""
	}
	return c.opts.EnvPrefix + strings.ToUpper(strings.ReplaceAll(o.Name, "-", "_"))
}

// Run parses args, prints help when asked, and otherwise runs the handler.
// With "--response-format-json" the handler output is captured and written
// as a single JSON [Response].
func (c *definitionCommand) Run(ctx context.Context, args []string) error {
	set := c.Flags()
	if err := set.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if set.IsSet(definition.HelpOption) {
		fmt.Fprintln(c.Stderr(), c.Help())
		return nil
	}
	if set.IsSet(definition.HelpWebOption) {
		page, err := webHelp(c.def, c.path)
		if err != nil {
			return err
		}
		fmt.Fprint(c.Stdout(), page)
		return nil
	}

	arguments, err := c.arguments(set)
	if err != nil {
		return err
	}

	params := &Params{
		Definition:  c.def,
		Arguments:   arguments,
		Positionals: set.Args(),
		Profiles:    cmdprofile.NewProfiles(),
		Stdin:       c.Stdin(),
		Stdout:      c.Stdout(),
		Stderr:      c.Stderr(),
		Response:    &Response{},
	}

	if v, _ := arguments[definition.StdinOption].(bool); v {
		b, err := io.ReadAll(c.Stdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		params.StdinData = b
	}

	if v, _ := arguments[definition.ShowInputsOnlyOption].(bool); v {
		return c.showInputs(params)
	}

	jsonMode, _ := arguments[definition.JSONOption].(bool)
	if !jsonMode {
		if err := c.execute(ctx, params); err != nil {
			return err
		}
		if params.FormatRequested() {
			fields, _ := arguments[definition.ResponseFormatFilterOption].([]string)
			return formatResponse(c.Stdout(), params.Response.Data,
				params.String(definition.ResponseFormatTypeOption), fields,
				params.Bool(definition.ResponseFormatHeaderOption))
		}
		if msg := params.Response.Message; msg != "" {
			fmt.Fprintln(c.Stdout(), msg)
		}
		return nil
	}

	var stdout, stderr bytes.Buffer
	params.Stdout = &stdout
	params.Stderr = &stderr

	runErr := c.execute(ctx, params)

	resp := params.Response
	resp.Stdout = stdout.String()
	resp.Stderr = stderr.String()
	resp.Success = runErr == nil
	if runErr != nil {
		resp.fail(runErr)
	}

	enc := json.NewEncoder(c.Stdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to write response: %w", err))
	}
	if runErr != nil {
		return &ReportedError{Err: runErr}
	}
	return nil
}

// execute loads the declared profiles and runs the handler or the chain.
func (c *definitionCommand) execute(ctx context.Context, p *Params) error {
	ctx = logging.WithAttrs(ctx, "command", c.path)
	logger := logging.FromContext(ctx)

	if len(c.def.Profile.Types()) > 0 {
		loader, err := cmdprofile.NewLoader(c.def, c.opts.Profiles)
		if err != nil {
			return err //nolint:wrapcheck // Want passthrough
		}
		profiles, err := loader.Load(ctx, p.Arguments)
		if err != nil {
			return err //nolint:wrapcheck // Want passthrough
		}
		p.Profiles = profiles
	}

	switch {
	case c.def.Handler != "":
		h, err := c.opts.Handlers.Lookup(c.def.Handler)
		if err != nil {
			return err //nolint:wrapcheck // Want passthrough
		}
		logger.DebugContext(ctx, "running handler", "handler", c.def.Handler)
		return h(ctx, p)
	case len(c.def.ChainedHandlers) > 0:
		return c.runChain(ctx, p)
	default:
		return fmt.Errorf("command %q does not define a handler", c.path)
	}
}

// runChain runs the chained handlers in order. After handler i runs, each of
// its argument mappings copies a literal value, or a value from its response
// data, into the arguments of the handlers at the mapping's relative
// indexes. The last handler's response becomes the command's response.
func (c *definitionCommand) runChain(ctx context.Context, base *Params) error {
	logger := logging.FromContext(ctx)

	chain := c.def.ChainedHandlers
	mapped := make([]map[string]any, len(chain))

	for i, ch := range chain {
		h, err := c.opts.Handlers.Lookup(ch.Handler)
		if err != nil {
			return err //nolint:wrapcheck // Want passthrough
		}

		args := maps.Clone(base.Arguments)
		maps.Copy(args, mapped[i])

		p := *base
		p.Arguments = args
		p.Response = &Response{}
		if ch.Silent {
			p.Stdout = io.Discard
			p.Stderr = io.Discard
		}

		logger.DebugContext(ctx, "running chained handler",
			"handler", ch.Handler,
			"index", i)
		if err := h(ctx, &p); err != nil {
			return fmt.Errorf("chained handler %d (%s) failed: %w", i, ch.Handler, err)
		}

		for _, m := range ch.ArgumentMapping {
			value := m.Value
			if m.From != "" {
				v, ok := dataPath(p.Response.Data, m.From)
				if !ok {
					logger.DebugContext(ctx, "chained handler response has no value to map",
						"handler", ch.Handler,
						"from", m.From)
					continue
				}
				value = v
			}
			for _, ahead := range m.Targets() {
				idx := i + ahead
				if idx < 0 || idx >= len(chain) {
					continue
				}
				if mapped[idx] == nil {
					mapped[idx] = make(map[string]any)
				}
				mapped[idx][m.To] = value
			}
		}

		*base.Response = *p.Response
	}
	return nil
}

// arguments collects the option and positional values. Options come from
// the command line, then the environment, then their default values.
func (c *definitionCommand) arguments(set *FlagSet) (map[string]any, error) {
	args := make(map[string]any, len(c.def.Options)+len(c.def.Positionals))
	given := make(map[string]bool, len(c.def.Options))

	var merr error
	for i := range c.def.Options {
		o := &c.def.Options[i]
		target, ok := c.targets[o.Name]
		if !ok {
			continue
		}

		switch {
		case set.IsSet(o.Name):
			given[o.Name] = true
			args[o.Name] = deref(target)
		case c.envVar(o) != "":
			env := c.envVar(o)
			v, ok := set.LookupEnv(env)
			if !ok {
				break
			}
			if err := set.Lookup(o.Name).Value.Set(v); err != nil {
				merr = errors.Join(merr, fmt.Errorf("invalid value %q for %s: %w", v, env, err))
				continue
			}
			given[o.Name] = true
			args[o.Name] = deref(target)
		}

		if _, ok := args[o.Name]; !ok && o.DefaultValue != nil {
			args[o.Name] = defaultValue(o)
		}
	}

	var missing []string
	for i := range c.def.Options {
		o := &c.def.Options[i]
		v, ok := args[o.Name]
		if o.Required && !ok {
			missing = append(missing, "--"+o.Name)
			continue
		}
		if !given[o.Name] {
			continue
		}

		switch o.Type {
		case definition.OptionString:
			if s, _ := v.(string); strings.TrimSpace(s) == "" {
				merr = errors.Join(merr, fmt.Errorf("option --%s requires a non-empty value", o.Name))
			}
		case definition.OptionExistingLocalFile:
			s, _ := v.(string)
			if _, err := os.Stat(s); err != nil {
				merr = errors.Join(merr, fmt.Errorf("option --%s: file %q does not exist", o.Name, s))
			}
		}

		for _, other := range o.ConflictsWith {
			if given[other] {
				merr = errors.Join(merr, fmt.Errorf("option --%s cannot be specified with --%s", o.Name, other))
			}
		}
		for _, other := range o.Implies {
			if _, ok := args[other]; !ok {
				merr = errors.Join(merr, fmt.Errorf("option --%s requires --%s", o.Name, other))
			}
		}
	}
	if len(missing) > 0 {
		merr = errors.Join(merr, fmt.Errorf("missing required options: %s", strings.Join(missing, ", ")))
	}

	if err := c.positionals(set.Args(), args); err != nil {
		merr = errors.Join(merr, err)
	}
	if merr != nil {
		return nil, merr
	}
	return args, nil
}

func (c *definitionCommand) positionals(values []string, args map[string]any) error {
	defs := c.def.Positionals
	if len(values) > len(defs) {
		return fmt.Errorf("unexpected positional arguments: %q", values[len(defs):])
	}

	var merr error
	for i := range defs {
		p := &defs[i]
		if i >= len(values) {
			if p.Required {
				merr = errors.Join(merr, fmt.Errorf("missing required positional argument %q", p.Name))
			}
			continue
		}

		v := values[i]
		if p.Regex != "" {
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				merr = errors.Join(merr, fmt.Errorf("positional %q has an invalid pattern: %w", p.Name, err))
				continue
			}
			if !re.MatchString(v) {
				merr = errors.Join(merr, fmt.Errorf("positional %q value %q does not match %q", p.Name, v, p.Regex))
				continue
			}
		}

		switch p.Type {
		case definition.OptionNumber:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				merr = errors.Join(merr, fmt.Errorf("positional %q must be a number: %q", p.Name, v))
				continue
			}
			args[p.Name] = f
		case definition.OptionBoolean:
			b, err := strconv.ParseBool(v)
			if err != nil {
				merr = errors.Join(merr, fmt.Errorf("positional %q must be a boolean: %q", p.Name, v))
				continue
			}
			args[p.Name] = b
		default:
			args[p.Name] = v
		}
	}
	return merr
}

// showInputs prints the arguments and requested profiles as YAML without
// running anything.
func (c *definitionCommand) showInputs(p *Params) error {
	out := map[string]any{
		"commandValues": p.Arguments,
	}
	if len(p.Positionals) > 0 {
		out["positionals"] = p.Positionals
	}
	if types := c.def.Profile.Types(); len(types) > 0 {
		requested := make(map[string]string, len(types))
		for _, typ := range types {
			name, _ := definition.ProfileOptionName(typ)
			if v, ok := p.Arguments[name].(string); ok && v != "" {
				requested[typ] = v
			} else {
				requested[typ] = "(default)"
			}
		}
		out["profiles"] = requested
	}

	enc := yaml.NewEncoder(c.Stdout())
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write inputs: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to write inputs: %w", err)
	}
	return nil
}

func deref(target any) any {
	switch t := target.(type) {
	case *bool:
		return *t
	case *float64:
		return *t
	case *string:
		return *t
	case *[]string:
		return *t
	case *any:
		return *t
	default:
		panic(fmt.Sprintf("unknown target type %T", target))
	}
}

// defaultValue converts a default from a definition document to the type
// the option's flag produces.
func defaultValue(o *definition.Option) any {
	v := o.DefaultValue
	switch o.Type {
	case definition.OptionBoolean:
		if b, ok := v.(bool); ok {
			return b
		}
		b, _ := strconv.ParseBool(fmt.Sprint(v))
		return b
	case definition.OptionNumber:
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
		f, _ := strconv.ParseFloat(fmt.Sprint(v), 64)
		return f
	case definition.OptionArray:
		switch s := v.(type) {
		case []string:
			return s
		case []any:
			out := make([]string, 0, len(s))
			for _, e := range s {
				out = append(out, fmt.Sprint(e))
			}
			return out
		}
		return []string{fmt.Sprint(v)}
	case definition.OptionJSON:
		return v
	default:
		return fmt.Sprint(v)
	}
}
