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
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// loadJob names one profile to load.
type loadJob struct {
	typ  string
	name string
}

// loadPool runs profile loads with bounded parallelism. Results keep the order
// in which jobs were scheduled.
type loadPool struct {
	size int64
	sem  *semaphore.Weighted

	lock    sync.Mutex
	results []*Loaded
	errs    []error
}

func newLoadPool(concurrency int64, jobs int) *loadPool {
	if concurrency < 1 {
		concurrency = int64(runtime.NumCPU())
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &loadPool{
		size:    concurrency,
		sem:     semaphore.NewWeighted(concurrency),
		results: make([]*Loaded, jobs),
		errs:    make([]error, jobs),
	}
}

// do schedules fn as job i. It blocks until a slot is free or ctx is done.
func (p *loadPool) do(ctx context.Context, i int, fn func(ctx context.Context) (*Loaded, error)) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		err = fmt.Errorf("failed to acquire semaphore: %w", err)
		p.set(i, nil, err)
		return err
	}

	go func() {
		defer p.sem.Release(1)
		l, err := fn(ctx)
		p.set(i, l, err)
	}()
	return nil
}

func (p *loadPool) set(i int, l *Loaded, err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.results[i] = l
	p.errs[i] = err
}

// done waits for every scheduled job and returns the results. The error joins
// every job failure.
func (p *loadPool) done(ctx context.Context) ([]*Loaded, error) {
	if err := p.sem.Acquire(ctx, p.size); err != nil {
		return nil, fmt.Errorf("failed to wait for loads to finish: %w", err)
	}
	defer p.sem.Release(p.size)

	p.lock.Lock()
	defer p.lock.Unlock()
	return p.results, errors.Join(p.errs...)
}
