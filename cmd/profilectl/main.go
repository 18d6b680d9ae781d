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

// Command profilectl manages fruit profiles and runs commands that consume
// them. It is a working example of a CLI assembled from a command definition
// document, a set of profile type configurations, and a handler registry.
package main

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/abcxyz/cmdkit/cli"
	"github.com/abcxyz/cmdkit/cmderror"
	"github.com/abcxyz/cmdkit/config"
	"github.com/abcxyz/cmdkit/credentials"
	"github.com/abcxyz/cmdkit/definition"
	"github.com/abcxyz/cmdkit/handler"
	"github.com/abcxyz/cmdkit/internal/version"
	"github.com/abcxyz/cmdkit/logging"
	"github.com/abcxyz/cmdkit/profile"
)

const (
	envPrefix       = "PROFILECTL_"
	optionEnvPrefix = "PROFILECTL_OPT_"

	// baseProfileType contributes its options to commands that load more
	// than one profile type.
	baseProfileType = "orchard"
)

var (
	//go:embed definitions.yaml
	definitionsYAML []byte

	//go:embed types.yaml
	typesYAML []byte
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer done()

	if err := realMain(ctx); err != nil {
		done()

		var reported *cli.ReportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, cmderror.Render(err))
		}
		os.Exit(cmderror.ExitCode(err))
	}
}

func realMain(ctx context.Context) error {
	cfg, err := config.Load(ctx,
		config.WithCLIName(version.Name),
		config.WithEnvPrefix(envPrefix))
	if err != nil {
		return err
	}

	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return err
	}
	ctx = logging.WithLogger(ctx, logger)

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	return app.Run(ctx, os.Args[1:]) //nolint:wrapcheck // Want passthrough
}

// newApp wires the profile store and the command tree for cfg.
func newApp(ctx context.Context, cfg *config.Config) (cli.Command, error) {
	configs, err := profile.DecodeTypeConfigurations(bytes.NewReader(typesYAML))
	if err != nil {
		return nil, err
	}
	registry, err := profile.NewRegistry(ctx, configs...)
	if err != nil {
		return nil, err
	}

	storeOpts := []profile.Option{
		profile.WithCLIName(cfg.CLIName),
		profile.WithLoadConcurrency(cfg.LoadConcurrency),
	}
	if !cfg.DisableVault {
		vault, err := credentials.NewVault(ctx, cfg.Vault())
		if err != nil {
			return nil, fmt.Errorf("failed to open credential vault: %w", err)
		}
		storeOpts = append(storeOpts, profile.WithCredentials(vault))
	}
	store, err := profile.NewStore(cfg.ProfileRoot, registry, storeOpts...)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(ctx, false); err != nil {
		return nil, err
	}

	root, err := definition.Decode(bytes.NewReader(definitionsYAML), definition.FormatYAML)
	if err != nil {
		return nil, err
	}
	root.Children = append(root.Children, profilesGroup(registry))

	base, err := registry.Lookup(baseProfileType)
	if err != nil {
		return nil, err
	}
	prepared, err := definition.Prepare(ctx, root, base)
	if err != nil {
		return nil, err
	}

	handlers := handler.NewRegistry[cli.Handler]()
	registerFruitHandlers(handlers)
	registerProfileHandlers(handlers, store)

	cmd, err := cli.Build(prepared, &cli.BuildOptions{
		Handlers:  handlers,
		Profiles:  store,
		Version:   version.HumanVersion,
		EnvPrefix: optionEnvPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build commands: %w", err)
	}
	return cmd, nil
}
