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

// Package credentials stores secure profile values outside of the profile
// files. The default implementation is an age-encrypted vault on disk.
package credentials

import (
	"context"
	"sort"
	"sync"
)

// Manager saves and restores secure values by key.
type Manager interface {
	// Name identifies the manager in the placeholder written to profile files.
	Name() string

	// Save stores value under key, replacing any existing value.
	Save(ctx context.Context, key, value string) error

	// Load returns the value stored under key. The boolean is false when no
	// value exists.
	Load(ctx context.Context, key string) (string, bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Memory is a [Manager] that holds values in process memory. It is intended
// for tests and for commands that must not touch the disk.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

var _ Manager = (*Memory)(nil)

// NewMemory creates an empty in-memory manager.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]string),
	}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Save(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Load(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
