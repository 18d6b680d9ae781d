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
	"fmt"
	"os"
	"path/filepath"

	"github.com/abcxyz/cmdkit/cmderror"
	"github.com/abcxyz/cmdkit/credentials"
	"github.com/abcxyz/cmdkit/handler"
	"github.com/abcxyz/cmdkit/logging"
)

// Store is a profile directory tree. It hands out one [Manager] per profile
// type; managers of the same store share its registry, credentials and
// handlers.
type Store struct {
	root        string
	registry    *Registry
	creds       credentials.Manager
	handlers    *handler.Registry[ArgsHandler]
	concurrency int64
	cliName     string
}

// Option configures a [Store].
type Option func(s *Store) *Store

// WithCredentials stores secure properties in m. Without it, secure
// properties are written to the profile files in plain text.
func WithCredentials(m credentials.Manager) Option {
	return func(s *Store) *Store {
		s.creds = m
		return s
	}
}

// WithHandlers resolves the create and update handlers named by type
// configurations.
func WithHandlers(h *handler.Registry[ArgsHandler]) Option {
	return func(s *Store) *Store {
		s.handlers = h
		return s
	}
}

// WithLoadConcurrency bounds the number of parallel loads in LoadAll. Values
// below one use the number of CPUs.
func WithLoadConcurrency(n int64) Option {
	return func(s *Store) *Store {
		s.concurrency = n
		return s
	}
}

// WithCLIName sets the program name used in remediation hints.
func WithCLIName(name string) Option {
	return func(s *Store) *Store {
		s.cliName = name
		return s
	}
}

// NewStore creates a store rooted at root.
func NewStore(root string, registry *Registry, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, cmderror.New(cmderror.ProfileConfiguration,
			"the profile root directory must be specified")
	}
	if registry == nil {
		return nil, cmderror.New(cmderror.ProfileConfiguration,
			"a profile type registry must be specified")
	}

	s := &Store{
		root:     root,
		registry: registry,
		cliName:  filepath.Base(os.Args[0]),
	}
	for _, opt := range opts {
		s = opt(s)
	}
	return s, nil
}

// Root returns the profile root directory.
func (s *Store) Root() string { return s.root }

// Registry returns the store's type registry.
func (s *Store) Registry() *Registry { return s.registry }

// Manager returns the manager for profiles of typ.
func (s *Store) Manager(typ string) (*Manager, error) {
	c, err := s.registry.Lookup(typ)
	if err != nil {
		return nil, err
	}
	return &Manager{
		store:  s,
		typ:    typ,
		config: c,
	}, nil
}

// Load loads a profile of typ. See [Manager.Load].
func (s *Store) Load(ctx context.Context, typ string, opts LoadOptions) (*Loaded, error) {
	m, err := s.Manager(typ)
	if err != nil {
		return nil, err
	}
	return m.Load(ctx, opts)
}

// Initialize creates the type directories and meta files. Existing meta files
// are left alone unless reinitialize is set, in which case the configuration
// is rewritten and the default profile kept.
func (s *Store) Initialize(ctx context.Context, reinitialize bool) error {
	logger := logging.FromContext(ctx)

	if err := os.MkdirAll(s.root, 0o700); err != nil {
		return cmderror.Newf(cmderror.ProfileIO,
			"failed to create the profile root directory %s: %s", s.root, err).WithCauses(err)
	}

	for _, c := range s.registry.Configurations() {
		dir := s.typeDir(c.Type)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return cmderror.Newf(cmderror.ProfileIO,
				"failed to create the profile directory %s: %s", dir, err).WithCauses(err)
		}

		pth := s.metaPath(c.Type)
		exists, err := fileExists(pth)
		if err != nil {
			return err
		}
		if exists && !reinitialize {
			continue
		}

		md := &meta{}
		if exists {
			if md, err = readMetaFile(pth, c.Type); err != nil {
				return err
			}
		}
		if md.Configuration, err = configurationDocument(c); err != nil {
			return err
		}
		if err := writeMetaFile(pth, md); err != nil {
			return err
		}
		logger.DebugContext(ctx, "initialized profile type",
			"type", c.Type,
			"path", pth)
	}
	return nil
}

func (s *Store) typeDir(typ string) string {
	return filepath.Join(s.root, typ)
}

func (s *Store) profilePath(typ, name string) string {
	return filepath.Join(s.root, typ, name+Extension)
}

func (s *Store) metaPath(typ string) string {
	return s.profilePath(typ, metaName(typ))
}

func (s *Store) placeholder() string {
	return fmt.Sprintf("%s %s", SecurelyStored, s.creds.Name())
}
