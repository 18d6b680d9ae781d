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

// Package config loads the runtime configuration of a cmdkit binary. Values
// are layered: built-in defaults, then an optional YAML file, then
// environment variables. The result is validated before it is returned.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/abcxyz/cmdkit/logging"
)

// DefaultEnvPrefix is the prefix of the environment variables read by
// [Load].
const DefaultEnvPrefix = "CMDKIT_"

// Config is the configuration shared by the commands of a binary. It is
// created once in main and passed down.
type Config struct {
	// ProfileRoot is the directory holding one subdirectory per profile type.
	ProfileRoot string `yaml:"profileRoot,omitempty" env:"PROFILE_ROOT,overwrite" validate:"required"`

	CLIName string `yaml:"cliName,omitempty" env:"CLI_NAME,overwrite" validate:"required"`

	// VaultDir holds the secure credential vault. It defaults to ".vault"
	// under the profile root.
	VaultDir string `yaml:"vaultDir,omitempty" env:"VAULT_DIR,overwrite"`

	// DisableVault stores no secure values. Profiles with secure properties
	// keep them in plain text.
	DisableVault bool `yaml:"disableVault,omitempty" env:"DISABLE_VAULT,overwrite"`

	LogLevel  string `yaml:"logLevel,omitempty" env:"LOG_LEVEL,overwrite" validate:"required,loglevel"`
	LogFormat string `yaml:"logFormat,omitempty" env:"LOG_FORMAT,overwrite" validate:"required,logformat"`

	// LoadConcurrency bounds the profiles read at once when loading every
	// profile.
	LoadConcurrency int64 `yaml:"loadConcurrency,omitempty" env:"LOAD_CONCURRENCY,overwrite" validate:"gte=1,lte=256"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults(cliName string) *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return &Config{
		ProfileRoot:     filepath.Join(home, "."+cliName, "profiles"),
		CLIName:         cliName,
		LogLevel:        "warning",
		LogFormat:       string(logging.FormatText),
		LoadConcurrency: 8,
	}
}

// Vault returns the vault directory.
func (c *Config) Vault() string {
	if c.VaultDir != "" {
		return c.VaultDir
	}
	return filepath.Join(c.ProfileRoot, ".vault")
}

// Logger creates a logger writing to w at the configured level and format.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := logging.LookupLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	format, err := logging.LookupFormat(c.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("invalid log format: %w", err)
	}
	return logging.New(w, level, format, false), nil
}

// Validatable is implemented by configurations with checks beyond their
// struct tags.
type Validatable interface {
	Validate() error
}

type options struct {
	cliName   string
	file      string
	yamlBytes []byte
	envPrefix string
	lookuper  envconfig.Lookuper
}

// Option is a loading option.
type Option func(*options) *options

// WithCLIName sets the binary name used for the default values. It defaults
// to the base name of os.Args[0].
func WithCLIName(name string) Option {
	return func(o *options) *options {
		o.cliName = name
		return o
	}
}

// WithFile reads YAML from path. The file must exist.
func WithFile(path string) Option {
	return func(o *options) *options {
		o.file = path
		return o
	}
}

// WithYAML reads YAML from b. It is applied after any file.
func WithYAML(b []byte) Option {
	return func(o *options) *options {
		o.yamlBytes = b
		return o
	}
}

// WithEnvPrefix replaces [DefaultEnvPrefix].
func WithEnvPrefix(prefix string) Option {
	return func(o *options) *options {
		o.envPrefix = prefix
		return o
	}
}

// WithLookuper replaces the OS environment.
func WithLookuper(lookuper envconfig.Lookuper) Option {
	return func(o *options) *options {
		o.lookuper = lookuper
		return o
	}
}

// Load builds the configuration from the defaults, the YAML sources, and the
// environment.
func Load(ctx context.Context, opt ...Option) (*Config, error) {
	opts := &options{
		cliName:   filepath.Base(os.Args[0]),
		envPrefix: DefaultEnvPrefix,
		lookuper:  envconfig.OsLookuper(),
	}
	for _, o := range opt {
		opts = o(opts)
	}

	cfg := Defaults(opts.cliName)

	var sources [][]byte
	if opts.file != "" {
		b, err := os.ReadFile(opts.file)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		sources = append(sources, b)
	}
	if opts.yamlBytes != nil {
		sources = append(sources, opts.yamlBytes)
	}

	if err := Process(ctx, cfg, sources, envconfig.PrefixLookuper(opts.envPrefix, opts.lookuper)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Process overlays the YAML sources and then the environment onto cfg, and
// validates the result with its `validate` struct tags and, when it
// implements [Validatable], its Validate method. Unknown YAML keys are
// rejected.
//
// The config type needs `yaml` tags to load from YAML and [env tags] with the
// overwrite option to load from the environment over existing values:
//
//	type Cfg struct {
//		Root string `yaml:"root" env:"ROOT,overwrite" validate:"required"`
//	}
//
// [env tags]: https://github.com/sethvargo/go-envconfig
func Process(ctx context.Context, cfg any, sources [][]byte, lookuper envconfig.Lookuper) error {
	for i, b := range sources {
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to unmarshal yaml source %d: %w", i, err)
		}
	}

	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, cfg, lookuper); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := newValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			problems := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s failed the %q check (value %v)",
					fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("config invalid: %s", strings.Join(problems, "; "))
		}
		return fmt.Errorf("config invalid: %w", err)
	}

	if v, ok := cfg.(Validatable); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, err := logging.LookupLevel(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		_, err := logging.LookupFormat(fl.Field().String())
		return err == nil
	})
	return v
}
