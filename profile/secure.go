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
	"encoding/json"
	"strings"

	"github.com/abcxyz/cmdkit/cmderror"
	"github.com/abcxyz/cmdkit/logging"
)

// securePaths returns the dot paths of every property marked secure.
func (m *Manager) securePaths() []string {
	var out []string
	m.config.Schema.walkProperties(func(path string, p *Property) bool {
		if p.Secure {
			out = append(out, path)
			return false
		}
		return true
	})
	return out
}

func (m *Manager) secureKey(name, path string) string {
	return m.typ + "_" + name + "_" + strings.ReplaceAll(path, ".", "_")
}

func isPlaceholder(v Value) bool {
	s, ok := v.AsString()
	return ok && strings.HasPrefix(s, SecurelyStored)
}

// storeSecure moves the secure values of p into the credential manager and
// replaces them in p with a placeholder. Unset values are removed from the
// manager.
func (m *Manager) storeSecure(ctx context.Context, p *Profile) error {
	creds := m.store.creds
	if creds == nil {
		return nil
	}
	logger := logging.FromContext(ctx)

	for _, path := range m.securePaths() {
		key := m.secureKey(p.Name, path)

		v, ok := p.Get(path)
		if !ok || v.IsNull() {
			if err := creds.Delete(ctx, key); err != nil {
				return m.secureError("delete", path, p.Name, err)
			}
			p.Unset(path)
			continue
		}
		if isPlaceholder(v) {
			continue
		}

		b, err := json.Marshal(v)
		if err != nil {
			return m.secureError("store", path, p.Name, err)
		}
		if err := creds.Save(ctx, key, string(b)); err != nil {
			return m.secureError("store", path, p.Name, err)
		}
		p.Set(path, NewString(m.store.placeholder()))
		logger.DebugContext(ctx, "stored secure property",
			"type", m.typ,
			"name", p.Name,
			"property", path)
	}
	return nil
}

// loadSecure replaces every placeholder in p with the stored value.
func (m *Manager) loadSecure(ctx context.Context, p *Profile) error {
	creds := m.store.creds
	if creds == nil {
		return nil
	}

	for _, path := range m.securePaths() {
		v, ok := p.Get(path)
		if !ok || !isPlaceholder(v) {
			continue
		}

		s, found, err := creds.Load(ctx, m.secureKey(p.Name, path))
		if err == nil && !found {
			err = cmderror.Newf(cmderror.NotFound, "no value stored with %s", creds.Name())
		}
		if err != nil {
			return m.secureError("load", path, p.Name, err)
		}

		var restored Value
		if err := json.Unmarshal([]byte(s), &restored); err != nil {
			return m.secureError("load", path, p.Name, err)
		}
		p.Set(path, restored)
	}
	return nil
}

func (m *Manager) deleteSecure(ctx context.Context, name string) error {
	creds := m.store.creds
	if creds == nil {
		return nil
	}
	for _, path := range m.securePaths() {
		if err := creds.Delete(ctx, m.secureKey(name, path)); err != nil {
			return m.secureError("delete", path, name, err)
		}
	}
	return nil
}

func (m *Manager) secureError(op, path, name string, err error) error {
	return cmderror.Newf(cmderror.ProfileIO,
		"Unable to %s the secure field %q associated with the profile %q of type %q.",
		op, path, name, m.typ).
		WithDetails(err.Error()).
		WithCauses(err)
}
