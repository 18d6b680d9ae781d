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

package credentials

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"
	"gopkg.in/yaml.v3"

	"github.com/abcxyz/cmdkit/logging"
)

const (
	// IdentityFile holds the vault's X25519 private key.
	IdentityFile = "identity.txt"

	// SecretsFile holds the encrypted key/value map.
	SecretsFile = "credentials.age"

	vaultName = "age-vault"
)

// Vault is a [Manager] backed by a single age-encrypted YAML document. The
// identity is generated on first use. Every operation reads and rewrites the
// whole document under a mutex; concurrent writers in other processes are not
// coordinated.
type Vault struct {
	dir string

	mu       sync.Mutex
	identity *age.X25519Identity
}

var _ Manager = (*Vault)(nil)

// NewVault opens the vault in dir, creating the directory and the identity
// file if they do not exist.
func NewVault(ctx context.Context, dir string) (*Vault, error) {
	logger := logging.FromContext(ctx)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	pth := filepath.Join(dir, IdentityFile)
	b, err := os.ReadFile(pth)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read vault identity: %w", err)
	}

	var identity *age.X25519Identity
	if err == nil {
		identity, err = age.ParseX25519Identity(strings.TrimSpace(string(b)))
		if err != nil {
			return nil, fmt.Errorf("failed to parse vault identity %s: %w", pth, err)
		}
	} else {
		identity, err = age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("failed to generate vault identity: %w", err)
		}
		if err := os.WriteFile(pth, []byte(identity.String()+"\n"), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write vault identity: %w", err)
		}
		logger.DebugContext(ctx, "created vault identity", "path", pth)
	}

	return &Vault{
		dir:      dir,
		identity: identity,
	}, nil
}

func (v *Vault) Name() string { return vaultName }

// Recipient returns the public key values are encrypted to.
func (v *Vault) Recipient() string {
	return v.identity.Recipient().String()
}

func (v *Vault) Save(ctx context.Context, key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, err := v.read()
	if err != nil {
		return err
	}
	m[key] = value
	if err := v.write(m); err != nil {
		return err
	}

	logging.FromContext(ctx).DebugContext(ctx, "saved secure value", "key", key)
	return nil
}

func (v *Vault) Load(_ context.Context, key string) (string, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, err := v.read()
	if err != nil {
		return "", false, err
	}
	val, ok := m[key]
	return val, ok, nil
}

func (v *Vault) Delete(ctx context.Context, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, err := v.read()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	if err := v.write(m); err != nil {
		return err
	}

	logging.FromContext(ctx).DebugContext(ctx, "deleted secure value", "key", key)
	return nil
}

func (v *Vault) read() (map[string]string, error) {
	f, err := os.Open(filepath.Join(v.dir, SecretsFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}
	defer f.Close()

	r, err := age.Decrypt(f, v.identity)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt vault: %w", err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault: %w", err)
	}

	m := make(map[string]string)
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to parse vault contents: %w", err)
	}
	return m, nil
}

func (v *Vault) write(m map[string]string) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal vault contents: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, v.identity.Recipient())
	if err != nil {
		return fmt.Errorf("failed to create vault encryptor: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("failed to encrypt vault: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize vault encryption: %w", err)
	}

	// Write to a temporary file first so a failed write never truncates the
	// existing vault.
	pth := filepath.Join(v.dir, SecretsFile)
	tmp := pth + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write vault: %w", err)
	}
	if err := os.Rename(tmp, pth); err != nil {
		return fmt.Errorf("failed to replace vault: %w", err)
	}
	return nil
}
