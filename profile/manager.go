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
	"io/fs"
	"os"
	"slices"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/abcxyz/cmdkit/cmderror"
	"github.com/abcxyz/cmdkit/logging"
)

// Manager loads and persists the profiles of one type. Create managers with
// [Store.Manager].
type Manager struct {
	store  *Store
	typ    string
	config *TypeConfiguration
}

// Type returns the profile type the manager serves.
func (m *Manager) Type() string { return m.typ }

// Configuration returns the type configuration.
func (m *Manager) Configuration() *TypeConfiguration { return m.config }

// LoadOptions controls [Manager.Load]. The zero value loads the named profile
// and its dependencies and fails when the profile does not exist.
type LoadOptions struct {
	// Name of the profile to load. Ignored when LoadDefault is set.
	Name string

	// LoadDefault loads the type's default profile.
	LoadDefault bool

	// AllowNotFound returns a response with NotFound set instead of an error
	// when the profile does not exist.
	AllowNotFound bool

	// SkipDependencies loads only the profile itself.
	SkipDependencies bool

	// NoSecure leaves secure properties as their on-disk placeholders.
	NoSecure bool
}

// Loaded is the result of a load.
type Loaded struct {
	Message                 string
	Type                    string
	Name                    string
	Profile                 *Profile
	NotFound                bool
	DependenciesLoaded      bool
	DependencyLoadResponses []*Loaded
}

// Load loads a profile and, unless disabled, every profile it depends on.
// Dependencies are loaded in parallel; a chain that returns to a profile
// already on the load path fails as circular.
func (m *Manager) Load(ctx context.Context, opts LoadOptions) (*Loaded, error) {
	return m.load(ctx, opts, nil)
}

func (m *Manager) load(ctx context.Context, opts LoadOptions, chain []Dependency) (*Loaded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)

	name := opts.Name
	if opts.LoadDefault {
		def, err := m.DefaultName(ctx)
		if err != nil {
			return nil, err
		}
		if def == "" {
			if opts.AllowNotFound {
				return m.notFound(""), nil
			}
			return nil, cmderror.Newf(cmderror.NotFound,
				"No default profile set for type %q.", m.typ)
		}
		if err := checkName(m.typ, def); err != nil {
			return nil, err
		}
		exists, err := fileExists(m.store.profilePath(m.typ, def))
		if err != nil {
			return nil, err
		}
		if !exists {
			if opts.AllowNotFound {
				return m.notFound(def), nil
			}
			return nil, cmderror.Newf(cmderror.NotFound,
				"Your default profile named %q does not exist for type %q. "+
					"To change your default, use the command: %s profiles %s set-default <profileName>",
				def, m.typ, m.store.cliName, m.typ)
		}
		name = def
	}
	if strings.TrimSpace(name) == "" {
		return nil, cmderror.Newf(cmderror.ProfileConfiguration,
			"A profile name was not specified and the default of type %q was not requested.", m.typ)
	}
	if err := checkName(m.typ, name); err != nil {
		return nil, err
	}

	self := Dependency{Type: m.typ, Name: name}
	if slices.Contains(chain, self) {
		return nil, cmderror.Newf(cmderror.ProfileDependency,
			"A circular profile dependency was detected. Profile %q of type %q either points directly "+
				"to itself OR a dependency of this profile points to this profile.", name, m.typ).
			WithDetails(dependencyList(append(slices.Clone(chain), self)))
	}

	pth := m.store.profilePath(m.typ, name)
	exists, err := fileExists(pth)
	if err != nil {
		return nil, err
	}
	if !exists {
		if opts.AllowNotFound {
			return m.notFound(name), nil
		}
		return nil, cmderror.Newf(cmderror.NotFound,
			"Profile %q of type %q does not exist.", name, m.typ)
	}

	logger.DebugContext(ctx, "loading profile",
		"type", m.typ,
		"name", name)

	p, err := readProfileFile(pth, m.typ, name)
	if err != nil {
		return nil, err
	}
	if err := m.check(ctx, p, false); err != nil {
		return nil, cmderror.Newf(cmderror.ProfileValidation,
			"Profile validation error during load of profile %q of type %q. Error Details: %s",
			name, m.typ, err).WithCauses(err)
	}
	if !opts.NoSecure {
		if err := m.loadSecure(ctx, p); err != nil {
			return nil, err
		}
	}

	resp := &Loaded{
		Message: fmt.Sprintf("Profile %q of type %q loaded successfully.", name, m.typ),
		Type:    m.typ,
		Name:    name,
		Profile: p,
	}
	if opts.SkipDependencies || len(p.Dependencies) == 0 {
		return resp, nil
	}

	deps, err := m.loadDependencies(ctx, p, opts.NoSecure, append(slices.Clone(chain), self))
	if err != nil {
		return nil, err
	}
	resp.DependenciesLoaded = true
	resp.DependencyLoadResponses = deps
	return resp, nil
}

// loadDependencies loads every dependency of p in parallel. chain is the load
// path ending with p.
func (m *Manager) loadDependencies(ctx context.Context, p *Profile, noSecure bool, chain []Dependency) ([]*Loaded, error) {
	out := make([]*Loaded, len(p.Dependencies))

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range p.Dependencies {
		g.Go(func() error {
			dm, err := m.store.Manager(d.Type)
			if err != nil {
				return err
			}
			l, err := dm.load(gctx, LoadOptions{
				Name:     d.Name,
				NoSecure: noSecure,
			}, chain)
			if err != nil {
				return err
			}
			out[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, cmderror.Newf(cmderror.ProfileDependency,
			"An error occurred while loading the dependencies of profile %q of type %q. "+
				"Dependency load list: \n%s\n\nError Details: %s",
			p.Name, p.Type, dependencyList(p.Dependencies), err).
			WithCauses(err)
	}
	return out, nil
}

func (m *Manager) notFound(name string) *Loaded {
	return &Loaded{
		Message:  fmt.Sprintf("Profile %q of type %q was not found.", name, m.typ),
		Type:     m.typ,
		Name:     name,
		NotFound: true,
	}
}

// ValidateOptions controls [Manager.Validate].
type ValidateOptions struct {
	Profile *Profile

	// Strict rejects properties the schema does not declare.
	Strict bool

	// SkipDependencies checks the shape of the dependency list without
	// loading the dependencies.
	SkipDependencies bool
}

// Validated is the result of a successful validation.
type Validated struct {
	Message string
}

// Validate runs the checks performed before a save without writing anything.
// Unless skipped, every dependency must load, and none may lead back to the
// profile.
func (m *Manager) Validate(ctx context.Context, opts ValidateOptions) (*Validated, error) {
	p := opts.Profile
	if err := m.check(ctx, p, opts.Strict); err != nil {
		return nil, err
	}
	if !opts.SkipDependencies && len(p.Dependencies) > 0 {
		self := Dependency{Type: m.typ, Name: p.Name}
		if _, err := m.loadDependencies(ctx, p, true, []Dependency{self}); err != nil {
			return nil, err
		}
	}
	return &Validated{
		Message: fmt.Sprintf("Profile %q of type %q is valid.", p.Name, m.typ),
	}, nil
}

// check validates everything about p that does not require loading other
// profiles.
func (m *Manager) check(ctx context.Context, p *Profile, strict bool) error {
	if p == nil {
		return cmderror.Newf(cmderror.ProfileValidation,
			"A profile of type %q must be supplied for validation.", m.typ)
	}
	if p.Type != m.typ {
		return cmderror.Newf(cmderror.ProfileValidation,
			"The profile passed (%q) of type %q does not match the profile manager's type of %q.",
			p.Name, p.Type, m.typ)
	}
	if strings.TrimSpace(p.Name) == "" {
		return cmderror.Newf(cmderror.ProfileValidation,
			"The profile passed does not contain a name (type: %q) OR the name property specified is not of type \"string\".",
			m.typ)
	}
	if err := checkName(m.typ, p.Name); err != nil {
		return err
	}
	if p.Name == metaName(m.typ) {
		return cmderror.Newf(cmderror.ProfileValidation,
			"The profile name %q is reserved for the meta file of type %q.", p.Name, m.typ)
	}

	for i, d := range p.Dependencies {
		if strings.TrimSpace(d.Type) == "" {
			return cmderror.Newf(cmderror.ProfileValidation,
				"The profile passed (name %q of type %q) has dependencies, but entry %d is missing a type.",
				p.Name, m.typ, i)
		}
		if strings.TrimSpace(d.Name) == "" {
			return cmderror.Newf(cmderror.ProfileValidation,
				"The profile passed (name %q of type %q) has dependencies, but entry %d is missing a name.",
				p.Name, m.typ, i)
		}
		if _, err := m.store.registry.Lookup(d.Type); err != nil {
			return cmderror.Newf(cmderror.ProfileConfiguration,
				"The profile passed (name %q of type %q) depends on the unknown profile type %q.",
				p.Name, m.typ, d.Type).WithCauses(err)
		}
	}

	if p.Empty() {
		return cmderror.Newf(cmderror.ProfileValidation,
			"The profile passed (name %q of type %q) does not contain any content.", p.Name, m.typ)
	}

	for _, spec := range m.config.Dependencies {
		if !spec.Required {
			continue
		}
		found := slices.ContainsFunc(p.Dependencies, func(d Dependency) bool {
			return d.Type == spec.Type
		})
		if !found {
			return cmderror.Newf(cmderror.ProfileValidation,
				"Profile type %q specifies a required dependency of type %q on the %q profile type, "+
					"but the profile %q does not list it as a dependency.",
				m.typ, spec.Type, m.typ, p.Name)
		}
	}

	problems, err := m.config.Schema.validateAgainst(p.Document(), strict)
	if err != nil {
		return cmderror.Newf(cmderror.ProfileValidation,
			"Unable to validate profile %q of type %q: %s", p.Name, m.typ, err)
	}
	if len(problems) > 0 {
		logging.FromContext(ctx).DebugContext(ctx, "profile failed schema validation",
			"type", m.typ,
			"name", p.Name,
			"problems", problems)
		return cmderror.New(cmderror.ProfileValidation, formatProblems(
			fmt.Sprintf("Errors located in profile %q of type %q:", p.Name, m.typ), problems))
	}
	return nil
}

// SaveOptions controls [Manager.Save].
type SaveOptions struct {
	Profile *Profile

	// Overwrite replaces an existing profile of the same name.
	Overwrite bool

	// UpdateDefault makes the profile the type's default.
	UpdateDefault bool
}

// Saved is the result of a save.
type Saved struct {
	Message     string
	Path        string
	Overwritten bool
	Profile     *Profile
}

// Save validates and writes a profile. The profile becomes the default when
// requested or when the type has no default yet.
func (m *Manager) Save(ctx context.Context, opts SaveOptions) (*Saved, error) {
	logger := logging.FromContext(ctx)

	if opts.Profile == nil {
		return nil, cmderror.Newf(cmderror.ProfileConfiguration,
			"A request was made to save a profile of type %q, but no profile was supplied.", m.typ)
	}
	p := opts.Profile.Clone()
	if p.Type == "" {
		p.Type = m.typ
	}

	if _, err := m.Validate(ctx, ValidateOptions{Profile: p}); err != nil {
		return nil, err
	}

	pth := m.store.profilePath(m.typ, p.Name)
	exists, err := fileExists(pth)
	if err != nil {
		return nil, err
	}
	if exists && !opts.Overwrite {
		return nil, cmderror.Newf(cmderror.ProfileConfiguration,
			"Profile %q of type %q already exists and overwrite was NOT specified.", p.Name, m.typ)
	}

	onDisk := p.Clone()
	if err := m.storeSecure(ctx, onDisk); err != nil {
		return nil, err
	}
	if err := writeProfileFile(pth, onDisk); err != nil {
		return nil, err
	}
	logger.DebugContext(ctx, "saved profile",
		"type", m.typ,
		"name", p.Name,
		"path", pth)

	md, err := m.readMeta()
	if err != nil {
		return nil, err
	}
	if opts.UpdateDefault || md == nil || md.defaultName() == "" {
		if err := m.SetDefault(ctx, p.Name); err != nil {
			return nil, err
		}
	}

	msg := fmt.Sprintf("Profile (%q) of type %q successfully written: %s", p.Name, m.typ, pth)
	if exists {
		msg = fmt.Sprintf("Profile (%q) of type %q successfully overwritten: %s", p.Name, m.typ, pth)
	}
	return &Saved{
		Message:     msg,
		Path:        pth,
		Overwritten: exists,
		Profile:     p,
	}, nil
}

// UpdateOptions controls [Manager.Update].
type UpdateOptions struct {
	Profile *Profile

	// Merge combines the new values with the stored profile. Without it, the
	// stored profile is replaced.
	Merge bool
}

// Updated is the result of an update.
type Updated struct {
	Message string
	Path    string
	Profile *Profile
}

// Update overwrites an existing profile, optionally merging it with the
// stored copy first. See [Merge].
func (m *Manager) Update(ctx context.Context, opts UpdateOptions) (*Updated, error) {
	p := opts.Profile
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return nil, cmderror.Newf(cmderror.ProfileConfiguration,
			"A request was made to update a profile of type %q, but no profile name was supplied.", m.typ)
	}
	if err := checkName(m.typ, p.Name); err != nil {
		return nil, err
	}

	exists, err := fileExists(m.store.profilePath(m.typ, p.Name))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, cmderror.Newf(cmderror.NotFound,
			"Profile %q of type %q does not exist and cannot be updated.", p.Name, m.typ)
	}

	if opts.Merge {
		old, err := m.Load(ctx, LoadOptions{
			Name:             p.Name,
			SkipDependencies: true,
		})
		if err != nil {
			return nil, err
		}
		p = Merge(old.Profile, p)
	}

	saved, err := m.Save(ctx, SaveOptions{
		Profile:   p,
		Overwrite: true,
	})
	if err != nil {
		return nil, err
	}
	return &Updated{
		Message: fmt.Sprintf("Profile %q of type %q updated successfully.", saved.Profile.Name, m.typ),
		Path:    saved.Path,
		Profile: saved.Profile,
	}, nil
}

// DeleteOptions controls [Manager.Delete].
type DeleteOptions struct {
	Name string

	// RejectIfDependency refuses to delete a profile that other profiles
	// depend on.
	RejectIfDependency bool
}

// Deleted is the result of a delete.
type Deleted struct {
	Message        string
	Path           string
	DefaultCleared bool
}

// Delete removes a profile and its secure values. Dependent profiles are not
// touched.
func (m *Manager) Delete(ctx context.Context, opts DeleteOptions) (*Deleted, error) {
	logger := logging.FromContext(ctx)

	name := opts.Name
	if strings.TrimSpace(name) == "" {
		return nil, cmderror.Newf(cmderror.ProfileConfiguration,
			"A delete was requested for profile type %q, but the name specified is undefined or blank.", m.typ)
	}

	if err := checkName(m.typ, name); err != nil {
		return nil, err
	}
	pth := m.store.profilePath(m.typ, name)
	exists, err := fileExists(pth)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, cmderror.Newf(cmderror.NotFound,
			"Profile %q of type %q does not exist.", name, m.typ)
	}

	if opts.RejectIfDependency {
		if err := m.rejectIfDependency(ctx, name); err != nil {
			return nil, err
		}
	}

	// Secure values go only once the file is gone.
	if err := os.Remove(pth); err != nil {
		return nil, cmderror.Newf(cmderror.ProfileIO,
			"An error occurred deleting profile %q of type %q: %s", name, m.typ, err).WithCauses(err)
	}
	if err := m.deleteSecure(ctx, name); err != nil {
		return nil, err
	}
	logger.DebugContext(ctx, "deleted profile",
		"type", m.typ,
		"name", name)

	resp := &Deleted{
		Message: fmt.Sprintf("Profile %q of type %q successfully deleted.", name, m.typ),
		Path:    pth,
	}

	def, err := m.DefaultName(ctx)
	if err != nil {
		return nil, err
	}
	if def == name {
		if err := m.ClearDefault(ctx); err != nil {
			return nil, err
		}
		resp.DefaultCleared = true
	}
	return resp, nil
}

func (m *Manager) rejectIfDependency(ctx context.Context, name string) error {
	all, err := m.store.LoadAll(ctx, LoadAllOptions{NoSecure: true})
	if err != nil {
		return err
	}

	target := Dependency{Type: m.typ, Name: name}
	var dependents []Dependency
	for _, l := range all {
		if slices.Contains(l.Profile.Dependencies, target) {
			dependents = append(dependents, Dependency{Type: l.Type, Name: l.Name})
		}
	}
	if len(dependents) > 0 {
		return cmderror.Newf(cmderror.ProfileDependency,
			"The profile specified for deletion (%q of type %q) is marked as a dependency for profiles:\n%s",
			name, m.typ, dependencyList(dependents))
	}
	return nil
}

// SetDefault makes name the type's default profile.
func (m *Manager) SetDefault(ctx context.Context, name string) error {
	if err := checkName(m.typ, name); err != nil {
		return err
	}
	exists, err := fileExists(m.store.profilePath(m.typ, name))
	if err != nil {
		return err
	}
	if !exists {
		return cmderror.Newf(cmderror.NotFound,
			"Cannot update default profile for type %q. The profile name specified (%q) does not exist. "+
				"Please create before attempting to set the default.", m.typ, name)
	}
	if err := m.updateMeta(func(md *meta) { md.DefaultProfile = &name }); err != nil {
		return err
	}
	logging.FromContext(ctx).DebugContext(ctx, "set default profile",
		"type", m.typ,
		"name", name)
	return nil
}

// ClearDefault removes the type's default profile setting.
func (m *Manager) ClearDefault(ctx context.Context) error {
	return m.updateMeta(func(md *meta) { md.DefaultProfile = nil })
}

// DefaultName returns the name of the type's default profile, or "" when none
// is set.
func (m *Manager) DefaultName(ctx context.Context) (string, error) {
	md, err := m.readMeta()
	if err != nil || md == nil {
		return "", err
	}
	return md.defaultName(), nil
}

// Names returns the names of every stored profile of the type, sorted.
func (m *Manager) Names(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(m.store.typeDir(m.typ))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, cmderror.Newf(cmderror.ProfileIO,
			"failed to list profiles of type %q: %s", m.typ, err).WithCauses(err)
	}

	metaFile := metaName(m.typ)
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(e.Name(), Extension)
		if !ok || name == metaFile {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// LoadAllOptions controls LoadAll.
type LoadAllOptions struct {
	NoSecure bool
}

// LoadAll loads every profile of the type without dependencies.
func (m *Manager) LoadAll(ctx context.Context, opts LoadAllOptions) ([]*Loaded, error) {
	names, err := m.Names(ctx)
	if err != nil {
		return nil, err
	}
	jobs := make([]loadJob, 0, len(names))
	for _, n := range names {
		jobs = append(jobs, loadJob{typ: m.typ, name: n})
	}
	return m.store.loadAll(ctx, jobs, opts)
}

// LoadAll loads every profile of every registered type without
// dependencies.
func (s *Store) LoadAll(ctx context.Context, opts LoadAllOptions) ([]*Loaded, error) {
	var jobs []loadJob
	for _, typ := range s.registry.Types() {
		m, err := s.Manager(typ)
		if err != nil {
			return nil, err
		}
		names, err := m.Names(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			jobs = append(jobs, loadJob{typ: typ, name: n})
		}
	}
	return s.loadAll(ctx, jobs, opts)
}

func (s *Store) loadAll(ctx context.Context, jobs []loadJob, opts LoadAllOptions) ([]*Loaded, error) {
	pool := newLoadPool(s.concurrency, len(jobs))
	for i, j := range jobs {
		if err := pool.do(ctx, i, func(ctx context.Context) (*Loaded, error) {
			return s.Load(ctx, j.typ, LoadOptions{
				Name:             j.name,
				SkipDependencies: true,
				NoSecure:         opts.NoSecure,
			})
		}); err != nil {
			break
		}
	}

	results, err := pool.done(ctx)
	if err != nil {
		kind, ok := cmderror.KindOf(err)
		if !ok {
			kind = cmderror.ProfileIO
		}
		list := make([]Dependency, 0, len(jobs))
		for _, j := range jobs {
			list = append(list, Dependency{Type: j.typ, Name: j.name})
		}
		return nil, cmderror.Newf(kind,
			"An error occurred attempting to load all profiles of every type. Load List: %s\nError Details: %q",
			dependencyList(list), err.Error()).WithCauses(err)
	}
	return results, nil
}

// readMeta returns nil when the meta file does not exist.
func (m *Manager) readMeta() (*meta, error) {
	pth := m.store.metaPath(m.typ)
	exists, err := fileExists(pth)
	if err != nil || !exists {
		return nil, err
	}
	return readMetaFile(pth, m.typ)
}

// updateMeta applies fn to the meta file, creating it when missing.
func (m *Manager) updateMeta(fn func(md *meta)) error {
	md, err := m.readMeta()
	if err != nil {
		return err
	}
	if md == nil {
		md = &meta{}
	}
	if md.Configuration == nil {
		if md.Configuration, err = configurationDocument(m.config); err != nil {
			return cmderror.New(cmderror.ProfileIO, err.Error()).WithCauses(err)
		}
	}
	fn(md)
	return writeMetaFile(m.store.metaPath(m.typ), md)
}

func dependencyList(deps []Dependency) string {
	lines := make([]string, 0, len(deps))
	for _, d := range deps {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}
