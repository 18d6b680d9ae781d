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

//nolint:wrapcheck // These functions intentionally just wrap flag.Flag.
package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/kr/text"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"github.com/abcxyz/cmdkit/logging"
)

const maxLineLength = 80

// LookupEnvFunc looks up an environment variable, like [os.LookupEnv].
type LookupEnvFunc = func(string) (string, bool)

// MapLookuper returns a LookupEnvFunc that reads from m instead of the
// environment.
func MapLookuper(m map[string]string) LookupEnvFunc {
	return func(s string) (string, bool) {
		v, ok := m[s]
		return v, ok
	}
}

// MultiLookuper returns the first value found by fns, in order.
func MultiLookuper(fns ...LookupEnvFunc) LookupEnvFunc {
	return func(s string) (string, bool) {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if v, ok := fn(s); ok {
				return v, ok
			}
		}
		return "", false
	}
}

// AfterParseFunc is called after flags are parsed with the parse error, if
// any.
type AfterParseFunc func(existingErr error) error

// FlagSet holds the options of one command, grouped into sections for help
// output. Unlike [flag.FlagSet], positional arguments may appear between
// options.
type FlagSet struct {
	flagSet         *flag.FlagSet
	sections        []*FlagSection
	lookupEnv       LookupEnvFunc
	afterParseFuncs []AfterParseFunc
	args            []string
}

// Option is an option to the flagset.
type Option func(fs *FlagSet) *FlagSet

// WithLookupEnv sets the function used to read option values from the
// environment.
func WithLookupEnv(fn LookupEnvFunc) Option {
	return func(fs *FlagSet) *FlagSet {
		if fn != nil {
			fs.lookupEnv = fn
		}
		return fs
	}
}

// NewFlagSet creates an empty flag set.
func NewFlagSet(opts ...Option) *FlagSet {
	f := flag.NewFlagSet("", flag.ContinueOnError)
	f.Usage = func() {}
	f.SetOutput(io.Discard)

	fs := &FlagSet{
		flagSet:   f,
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		fs = opt(fs)
	}
	return fs
}

// FlagSection is a titled group of flags in help output. Every flag is
// registered on the parent set.
type FlagSection struct {
	name      string
	flagNames []string

	flagSet   *flag.FlagSet
	lookupEnv LookupEnvFunc
}

// NewSection creates a section, or returns the existing one with the same
// name.
func (f *FlagSet) NewSection(name string) *FlagSection {
	for _, s := range f.sections {
		if s.name == name {
			return s
		}
	}
	fs := &FlagSection{
		name:      name,
		flagSet:   f.flagSet,
		lookupEnv: f.lookupEnv,
	}
	f.sections = append(f.sections, fs)
	return fs
}

// AfterParse registers fn to run after parsing, before [FlagSet.Parse]
// returns. Panics in fn are returned as errors.
func (f *FlagSet) AfterParse(fn AfterParseFunc) {
	if fn == nil {
		return
	}
	f.afterParseFuncs = append(f.afterParseFuncs, fn)
}

// Arg returns the i'th positional argument, or "".
func (f *FlagSet) Arg(i int) string {
	if i < 0 || i >= len(f.args) {
		return ""
	}
	return f.args[i]
}

// Args returns the positional arguments.
func (f *FlagSet) Args() []string {
	return f.args
}

// Lookup implements flag.FlagSet#Lookup.
func (f *FlagSet) Lookup(name string) *flag.Flag {
	return f.flagSet.Lookup(name)
}

// Parse parses args. Positional arguments may appear anywhere; everything
// after "--" is positional.
func (f *FlagSet) Parse(args []string) error {
	var tail []string
	if i := slices.Index(args, "--"); i >= 0 {
		tail = args[i+1:]
		args = args[:i]
	}

	var merr error
	positionals := make([]string, 0, len(args)+len(tail))
	for rest := args; ; {
		if err := f.flagSet.Parse(rest); err != nil {
			merr = err
			break
		}
		rest = f.flagSet.Args()
		if len(rest) == 0 {
			break
		}
		positionals = append(positionals, rest[0])
		rest = rest[1:]
	}
	f.args = append(positionals, tail...)

	for _, fn := range f.afterParseFuncs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					merr = errors.Join(merr, fmt.Errorf("panic: %v", r))
				}
			}()
			merr = errors.Join(merr, fn(merr))
		}()
	}
	return merr
}

// Parsed implements flag.FlagSet#Parsed.
func (f *FlagSet) Parsed() bool {
	return f.flagSet.Parsed()
}

// Visit implements flag.FlagSet#Visit.
func (f *FlagSet) Visit(fn func(*flag.Flag)) {
	f.flagSet.Visit(fn)
}

// VisitAll implements flag.FlagSet#VisitAll.
func (f *FlagSet) VisitAll(fn func(*flag.Flag)) {
	f.flagSet.VisitAll(fn)
}

// IsSet reports whether the flag name, or one of its aliases, was given on the
// command line.
func (f *FlagSet) IsSet(name string) bool {
	fl := f.flagSet.Lookup(name)
	if fl == nil {
		return false
	}
	set := false
	f.flagSet.Visit(func(v *flag.Flag) {
		if v.Value == fl.Value {
			set = true
		}
	})
	return set
}

// Help renders every section with its visible flags, sorted by name.
func (f *FlagSet) Help() string {
	var b strings.Builder

	for _, set := range f.sections {
		names := slices.Clone(set.flagNames)
		sort.Strings(names)

		var body strings.Builder
		for _, name := range names {
			sub := set.flagSet.Lookup(name)
			if sub == nil {
				panic("inconsistency between flag structure and help")
			}
			typ, ok := sub.Value.(Value)
			if !ok {
				panic(fmt.Sprintf("flag is incorrect type %T", sub.Value))
			}
			if typ.Hidden() {
				continue
			}

			all := make([]string, 0, len(typ.Aliases())+1)
			all = append(all, dashed(sub.Name))
			for _, v := range typ.Aliases() {
				all = append(all, dashed(v))
			}

			if typ.IsBoolFlag() {
				fmt.Fprintf(&body, "  %s\n", strings.Join(all, " | "))
			} else {
				fmt.Fprintf(&body, "  %s (%s)\n", strings.Join(all, " | "), typ.Example())
			}
			fmt.Fprint(&body, wrapAtLengthWithPadding(sub.Usage, 6))
			fmt.Fprint(&body, "\n\n")
		}
		if body.Len() == 0 {
			continue
		}

		fmt.Fprint(&b, strings.ToUpper(set.name))
		fmt.Fprint(&b, "\n\n")
		fmt.Fprint(&b, body.String())
	}

	return strings.TrimRight(b.String(), "\n")
}

func dashed(name string) string {
	if len(name) == 1 {
		return "-" + name
	}
	return "--" + name
}

// GetEnv returns the environment variable k, or "".
func (f *FlagSet) GetEnv(k string) string {
	v, _ := f.LookupEnv(k)
	return v
}

// LookupEnv looks up the environment variable k with the set's lookup
// function.
func (f *FlagSet) LookupEnv(k string) (string, bool) {
	return f.lookupEnv(k)
}

// Value is a [flag.Value] with the extra details used for help output and
// completion.
type Value interface {
	flag.Value

	// Get returns the current value.
	Get() any

	// Aliases returns the alternative names of the flag.
	Aliases() []string

	// Example is a sample input shown in help output.
	Example() string

	Hidden() bool

	// IsBoolFlag reports whether the flag takes no argument.
	IsBoolFlag() bool

	Predictor() complete.Predictor
}

// ParserFunc parses a command line value into T.
type ParserFunc[T any] func(val string) (T, error)

// PrinterFunc formats T for help output.
type PrinterFunc[T any] func(cur T) string

// SetterFunc stores val into cur.
type SetterFunc[T any] func(cur *T, val T)

// Var describes a flag of type T. The typed helpers on [FlagSection] fill in
// the parser and printer.
type Var[T any] struct {
	Name    string
	Aliases []string
	Usage   string
	Example string
	Default T
	Hidden  bool
	IsBool  bool
	EnvVar  string
	Target  *T

	Parser  ParserFunc[T]
	Printer PrinterFunc[T]

	// Predict defaults to predicting a value for everything except booleans.
	Predict complete.Predictor

	// Setter defaults to overwriting the target.
	Setter SetterFunc[T]
}

// Flag registers i on the section. An environment variable, when named and
// set, replaces the default.
//
// It panics if any of the target, parser, or printer are nil.
func Flag[T any](f *FlagSection, i *Var[T]) {
	if i.Target == nil {
		panic("missing target")
	}
	parser := i.Parser
	if parser == nil {
		panic("missing parser func")
	}
	printer := i.Printer
	if printer == nil {
		panic("missing printer func")
	}

	predictor := i.Predict
	if predictor == nil {
		if i.IsBool {
			predictor = predict.Nothing
		} else {
			predictor = predict.Something
		}
	}

	setter := i.Setter
	if setter == nil {
		setter = func(cur *T, val T) { *cur = val }
	}

	initial := i.Default
	if v, ok := f.lookupEnv(i.EnvVar); ok && i.EnvVar != "" {
		if t, err := parser(v); err == nil {
			initial = t
		}
	}
	*i.Target = initial

	example := i.Example
	if example == "" {
		example = fmt.Sprintf("%T", *new(T))
	}

	usage := i.Usage
	if v := printer(i.Default); v != "" {
		usage += fmt.Sprintf(" The default value is %q.", v)
	}
	if v := i.EnvVar; v != "" {
		usage += fmt.Sprintf(" This option can also be specified with the %s "+
			"environment variable.", v)
	}

	fv := &flagValue[T]{
		target:    i.Target,
		hidden:    i.Hidden,
		isBool:    i.IsBool,
		example:   example,
		parser:    parser,
		printer:   printer,
		predictor: predictor,
		setter:    setter,
		aliases:   i.Aliases,
	}
	f.flagNames = append(f.flagNames, i.Name)
	f.flagSet.Var(fv, i.Name, usage)

	// Aliases share the value; help output lists them with the flag.
	for _, alias := range i.Aliases {
		f.flagSet.Var(fv, alias, "")
	}
}

var _ Value = (*flagValue[any])(nil)

type flagValue[T any] struct {
	target  *T
	hidden  bool
	isBool  bool
	example string

	parser    ParserFunc[T]
	printer   PrinterFunc[T]
	setter    SetterFunc[T]
	predictor complete.Predictor
	aliases   []string
}

func (f *flagValue[T]) Set(s string) error {
	v, err := f.parser(s)
	if err != nil {
		return err
	}
	f.setter(f.target, v)
	return nil
}

func (f *flagValue[T]) Get() any                      { return *f.target }
func (f *flagValue[T]) Aliases() []string             { return f.aliases }
func (f *flagValue[T]) String() string                { return f.printer(*f.target) }
func (f *flagValue[T]) Example() string               { return f.example }
func (f *flagValue[T]) Hidden() bool                  { return f.hidden }
func (f *flagValue[T]) IsBoolFlag() bool              { return f.isBool }
func (f *flagValue[T]) Predictor() complete.Predictor { return f.predictor }

// BoolVar is a flag that takes no value.
type BoolVar struct {
	Name    string
	Aliases []string
	Usage   string
	Default bool
	Hidden  bool
	EnvVar  string
	Target  *bool
}

func (f *FlagSection) BoolVar(i *BoolVar) {
	Flag(f, &Var[bool]{
		Name:    i.Name,
		Aliases: i.Aliases,
		Usage:   i.Usage,
		IsBool:  true,
		Default: i.Default,
		Hidden:  i.Hidden,
		EnvVar:  i.EnvVar,
		Target:  i.Target,
		Parser:  strconv.ParseBool,
		Printer: func(v bool) string {
			if !v {
				return ""
			}
			return strconv.FormatBool(v)
		},
	})
}

// Float64Var is a numeric flag.
type Float64Var struct {
	Name    string
	Aliases []string
	Usage   string
	Example string
	Default float64
	Hidden  bool
	EnvVar  string
	Target  *float64
}

func (f *FlagSection) Float64Var(i *Float64Var) {
	Flag(f, &Var[float64]{
		Name:    i.Name,
		Aliases: i.Aliases,
		Usage:   i.Usage,
		Example: i.Example,
		Default: i.Default,
		Hidden:  i.Hidden,
		EnvVar:  i.EnvVar,
		Target:  i.Target,
		Parser: func(s string) (float64, error) {
			return strconv.ParseFloat(s, 64)
		},
		Printer: func(v float64) string {
			if v == 0 {
				return ""
			}
			return strconv.FormatFloat(v, 'f', -1, 64)
		},
	})
}

// StringVar is a string flag. Values restricts the accepted input and feeds
// completion.
type StringVar struct {
	Name          string
	Aliases       []string
	Usage         string
	Example       string
	Default       string
	Hidden        bool
	EnvVar        string
	Values        []string
	CaseSensitive bool
	Target        *string
}

func (f *FlagSection) StringVar(i *StringVar) {
	parser := func(s string) (string, error) { return s, nil }
	var predictor complete.Predictor
	if len(i.Values) > 0 {
		predictor = predict.Set(i.Values)
		parser = func(s string) (string, error) {
			for _, v := range i.Values {
				if s == v || (!i.CaseSensitive && strings.EqualFold(s, v)) {
					return s, nil
				}
			}
			return "", fmt.Errorf("must be one of %q", i.Values)
		}
	}

	Flag(f, &Var[string]{
		Name:    i.Name,
		Aliases: i.Aliases,
		Usage:   i.Usage,
		Example: i.Example,
		Default: i.Default,
		Hidden:  i.Hidden,
		EnvVar:  i.EnvVar,
		Predict: predictor,
		Target:  i.Target,
		Parser:  parser,
		Printer: func(v string) string { return v },
	})
}

// StringSliceVar collects comma separated values. Repeating the flag appends.
type StringSliceVar struct {
	Name    string
	Aliases []string
	Usage   string
	Example string
	Default []string
	Hidden  bool
	EnvVar  string
	Target  *[]string
}

func (f *FlagSection) StringSliceVar(i *StringSliceVar) {
	parser := func(s string) ([]string, error) {
		final := make([]string, 0)
		for _, part := range strings.Split(s, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				final = append(final, trimmed)
			}
		}
		return final, nil
	}

	Flag(f, &Var[[]string]{
		Name:    i.Name,
		Aliases: i.Aliases,
		Usage:   i.Usage,
		Example: i.Example,
		Default: i.Default,
		Hidden:  i.Hidden,
		EnvVar:  i.EnvVar,
		Target:  i.Target,
		Parser:  parser,
		Printer: func(v []string) string { return strings.Join(v, ",") },
		Setter: func(cur *[]string, val []string) {
			*cur = append(*cur, val...)
		},
	})
}

// JSONVar is a flag whose value is a JSON document.
type JSONVar struct {
	Name    string
	Aliases []string
	Usage   string
	Example string
	Hidden  bool
	EnvVar  string
	Target  *any
}

func (f *FlagSection) JSONVar(i *JSONVar) {
	Flag(f, &Var[any]{
		Name:    i.Name,
		Aliases: i.Aliases,
		Usage:   i.Usage,
		Example: i.Example,
		Hidden:  i.Hidden,
		EnvVar:  i.EnvVar,
		Target:  i.Target,
		Parser: func(s string) (any, error) {
			var v any
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				return nil, fmt.Errorf("invalid JSON: %w", err)
			}
			return v, nil
		},
		Printer: func(v any) string {
			if v == nil {
				return ""
			}
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Sprint(v)
			}
			return string(b)
		},
	})
}

// LogLevelVar adds a "--log-level" flag that changes the level of Logger.
type LogLevelVar struct {
	Logger *slog.Logger
}

func (f *FlagSection) LogLevelVar(i *LogLevelVar) {
	levelNames := logging.LevelNames()

	// The level lives on the logger's handler; the target only satisfies
	// Flag.
	var fake slog.Level

	Flag(f, &Var[slog.Level]{
		Name:    "log-level",
		Usage:   `Sets the logging verbosity. Valid values include: ` + strings.Join(levelNames, ",") + `.`,
		Example: "warning",
		Default: slog.LevelWarn,
		Predict: predict.Set(levelNames),
		Target:  &fake,
		Parser:  logging.LookupLevel,
		Printer: logging.LevelString,
		Setter:  func(_ *slog.Level, val slog.Level) { logging.SetLevel(i.Logger, val) },
	})
}

// wrapAtLengthWithPadding wraps s to the line length, indenting every line by
// pad spaces.
func wrapAtLengthWithPadding(s string, pad int) string {
	wrapped := text.Wrap(s, maxLineLength-pad)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		lines[i] = strings.Repeat(" ", pad) + line
	}
	return strings.Join(lines, "\n")
}
