package engine

import (
	"context"
	"fmt"
	"sync"
)

// Scheduler runs a compiled plan's parallel groups against a single,
// call-scoped concurrency budget (C7).
//
// Unlike internal/application/executor/engine.go's executeWave, which
// recreates a semaphore per wave, the pool here is built once per Process
// call and shared across every group's global- and section-dimension
// submissions, so the engine-wide concurrency limit (§5: "single global
// concurrency budget across all groups and scopes in one process call")
// holds across the whole run rather than per layer.
//
// continueOnError gates the cancellation behavior in spec.md §5/§7: when
// false, a terminal dimension failure stops further unit submission (already
// running units still run to completion) and Run returns an error so the
// driver enters its failure path, the way
// internal/application/engine/dag_executor.go's ContinueOnError check does.
type Scheduler struct {
	catalog         *Catalog
	executor        *DimensionExecutor
	pool            chan struct{}
	continueOnError bool

	mu       sync.Mutex
	abortErr error
}

// NewScheduler builds a Scheduler with a semaphore sized to concurrency.
func NewScheduler(catalog *Catalog, executor *DimensionExecutor, concurrency int, continueOnError bool) *Scheduler {
	return &Scheduler{catalog: catalog, executor: executor, pool: make(chan struct{}, concurrency), continueOnError: continueOnError}
}

// markFailure records the first terminal dimension failure when
// continueOnError is disabled, so subsequent submission checks can abort.
func (s *Scheduler) markFailure(dimension, cause string) {
	if s.continueOnError {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abortErr == nil {
		s.abortErr = fmt.Errorf("dimension %q failed: %s", dimension, cause)
	}
}

// aborted returns the recorded failure, if any.
func (s *Scheduler) aborted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortErr
}

func (s *Scheduler) acquire(ctx context.Context) bool {
	select {
	case s.pool <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Scheduler) release() {
	<-s.pool
}

// Run executes every parallel group in order. Within a group, every global
// dimension runs first (concurrently; once all of them have finished, their
// section-rewrite transforms are applied in declaration order), then every
// section dimension is submitted once per current section, all under the
// shared pool.
func (s *Scheduler) Run(ctx context.Context, groups [][]string, transforms *TransformManager) error {
	for _, group := range groups {
		if err := s.aborted(); err != nil {
			return err
		}

		var globals, sectionDims []string
		for _, name := range group {
			if s.catalog.IsGlobal(name) {
				globals = append(globals, name)
			} else {
				sectionDims = append(sectionDims, name)
			}
		}

		if len(globals) > 0 {
			if err := s.runGlobals(ctx, globals, transforms); err != nil {
				return err
			}
		}

		if err := s.aborted(); err != nil {
			return err
		}

		if len(sectionDims) > 0 {
			if err := s.runSections(ctx, sectionDims); err != nil {
				return err
			}
		}

		if err := s.aborted(); err != nil {
			return err
		}
	}
	return nil
}

// runGlobals runs every global dimension in the group concurrently, then
// applies each one's section-rewrite transform sequentially in declaration
// order once every global in the group has finished (§5: transforms apply
// after all of that layer's globals complete).
func (s *Scheduler) runGlobals(ctx context.Context, globals []string, transforms *TransformManager) error {
	results := make(map[string]Result, len(globals))
	var mu sync.Mutex
	var wg sync.WaitGroup

	submitted := make([]string, 0, len(globals))
	for _, name := range globals {
		if err := s.aborted(); err != nil {
			break
		}
		name := name
		if !s.acquire(ctx) {
			wg.Wait()
			return ctx.Err()
		}
		submitted = append(submitted, name)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.release()
			r := s.executor.ExecuteGlobal(ctx, name)
			if r.IsError() {
				s.markFailure(name, r.Error)
			}
			mu.Lock()
			results[name] = r
			mu.Unlock()
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.aborted(); err != nil {
		return err
	}

	for _, name := range submitted {
		transforms.Apply(ctx, name, results[name])
	}
	return nil
}

// runSections submits |sectionDims| x |sections| units to the shared pool
// and waits for all of them. The section vector is read once per dimension
// from the executor's state immediately before submission, since a prior
// dimension's transform in an earlier group may have already resized it.
func (s *Scheduler) runSections(ctx context.Context, sectionDims []string) error {
	var wg sync.WaitGroup

outer:
	for _, name := range sectionDims {
		name := name
		n := s.executor.state.sectionCount()
		for i := 0; i < n; i++ {
			if err := s.aborted(); err != nil {
				break outer
			}
			i := i
			if !s.acquire(ctx) {
				wg.Wait()
				return ctx.Err()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer s.release()
				s.executor.ExecuteSection(ctx, name, i)
				if r, ok := s.executor.state.GetSectionResult(i, name); ok && r.IsError() {
					s.markFailure(name, r.Error)
				}
			}()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return s.aborted()
}
