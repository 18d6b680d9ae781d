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

// Package handler maps handler identifiers named in command definitions and
// profile type configurations to functions registered at startup.
package handler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/abcxyz/cmdkit/cmderror"
)

// Registry is a concurrency-safe mapping from a handler identifier to a value
// of type T. The zero value is not usable; use [NewRegistry].
type Registry[T any] struct {
	mu       sync.RWMutex
	handlers map[string]T
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		handlers: make(map[string]T),
	}
}

// Register adds h under name. It returns an error if the name is empty or
// already registered.
func (r *Registry[T]) Register(name string, h T) error {
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("handler %q is already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// MustRegister is like [Registry.Register], but panics on error. It is meant
// for registration during program initialization.
func (r *Registry[T]) MustRegister(name string, h T) {
	if err := r.Register(name, h); err != nil {
		panic(err)
	}
}

// Lookup returns the handler registered under name. A missing handler is a
// [cmderror.HandlerNotFound] error. Lookup on a nil registry always fails.
func (r *Registry[T]) Lookup(name string) (T, error) {
	var zero T
	if r == nil {
		return zero, cmderror.Newf(cmderror.HandlerNotFound,
			"no handler registered for %q", name)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	if !ok {
		return zero, cmderror.Newf(cmderror.HandlerNotFound,
			"no handler registered for %q", name).
			WithDetails(fmt.Sprintf("registered handlers: %v", r.namesLocked()))
	}
	return h, nil
}

// Names returns the registered handler names in sorted order.
func (r *Registry[T]) Names() []string {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry[T]) namesLocked() []string {
	names := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
