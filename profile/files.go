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
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abcxyz/cmdkit/cmderror"
)

const (
	// Extension is the file extension of profile and meta files.
	Extension = ".yaml"

	// MetaSuffix is appended to the type name to form the meta file name.
	MetaSuffix = "_meta"

	// SecurelyStored prefixes the value written in place of a secure
	// property. The credential manager's name follows it.
	SecurelyStored = "managed by"
)

// meta is the per-type meta file: the default profile and a frozen copy of the
// type configuration.
type meta struct {
	DefaultProfile *string        `yaml:"defaultProfile"`
	Configuration  map[string]any `yaml:"configuration"`
}

func (m *meta) defaultName() string {
	if m.DefaultProfile == nil {
		return ""
	}
	return *m.DefaultProfile
}

func metaName(typ string) string {
	return typ + MetaSuffix
}

// checkName rejects names that would resolve outside the type directory.
func checkName(typ, name string) error {
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return cmderror.Newf(cmderror.ProfileValidation,
			"The profile name %q of type %q must not contain path separators or \"..\".", name, typ)
	}
	return nil
}

func fileExists(pth string) (bool, error) {
	_, err := os.Stat(pth)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, cmderror.Newf(cmderror.ProfileIO,
		"failed to check for %s: %s", pth, err).WithCauses(err)
}

func readProfileFile(pth, typ, name string) (*Profile, error) {
	b, err := os.ReadFile(pth)
	if err != nil {
		return nil, cmderror.Newf(cmderror.ProfileIO,
			"failed to read profile %q of type %q: %s", name, typ, err).WithCauses(err)
	}

	doc := make(map[string]any)
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, cmderror.Newf(cmderror.ProfileIO,
			"failed to parse profile %q of type %q (%s): %s", name, typ, pth, err).WithCauses(err)
	}

	p, err := fromDocument(typ, name, doc)
	if err != nil {
		return nil, cmderror.New(cmderror.ProfileValidation, err.Error()).WithCauses(err)
	}
	return p, nil
}

func writeProfileFile(pth string, p *Profile) error {
	b, err := yaml.Marshal(p.Document())
	if err != nil {
		return cmderror.Newf(cmderror.ProfileIO,
			"failed to marshal profile %q of type %q: %s", p.Name, p.Type, err).WithCauses(err)
	}
	return writeFile(pth, b)
}

func readMetaFile(pth, typ string) (*meta, error) {
	b, err := os.ReadFile(pth)
	if err != nil {
		return nil, cmderror.Newf(cmderror.ProfileIO,
			"Error reading %q meta file: %s.", typ, err).WithCauses(err)
	}

	var m meta
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, cmderror.Newf(cmderror.ProfileIO,
			"Error reading %q meta file: %s.", typ, err).WithCauses(err)
	}
	if m.Configuration == nil {
		return nil, cmderror.Newf(cmderror.ProfileIO,
			"A meta profile of type %q does NOT supply a configuration.", typ)
	}
	return &m, nil
}

func writeMetaFile(pth string, m *meta) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return cmderror.Newf(cmderror.ProfileIO,
			"failed to marshal meta file %s: %s", pth, err).WithCauses(err)
	}
	return writeFile(pth, b)
}

func writeFile(pth string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(pth), 0o700); err != nil {
		return cmderror.Newf(cmderror.ProfileIO,
			"failed to create directory for %s: %s", pth, err).WithCauses(err)
	}
	if err := os.WriteFile(pth, b, 0o600); err != nil {
		return cmderror.Newf(cmderror.ProfileIO,
			"failed to write %s: %s", pth, err).WithCauses(err)
	}
	return nil
}

// configurationDocument converts c to plain data using its JSON field names.
func configurationDocument(c *TypeConfiguration) (map[string]any, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal configuration for %q: %w", c.Type, err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to convert configuration for %q: %w", c.Type, err)
	}
	return out, nil
}
