// Package memo provides an in-memory, dependency-tracking memoization
// engine.
//
// A unit of work is a task, identified by a Key. Invoking a task
// through Engine.Call either returns the cached result or computes it
// exactly once, and records a dependency edge from the calling task
// (carried in the context) to the callee. Invalidating a task marks it
// and every transitive dependent stale, so the next Call recomputes.
//
// Two read modes are available to callers: a plain Call is eventually
// consistent with respect to asynchronously delivered invalidations,
// while Settle followed by Call is strongly consistent - it observes
// every invalidation enqueued before Settle returned.
package memo

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// keySep separates key arguments. It cannot appear in paths or glob
// sources, so joined arguments never collide.
const keySep = "\x1f"

// Key identifies a memoized task by the kind of work and its inputs.
type Key struct {
	Kind string
	Args string
}

// NewKey builds a task key from a kind and its input arguments.
func NewKey(kind string, args ...string) Key {
	return Key{Kind: kind, Args: strings.Join(args, keySep)}
}

func (k Key) String() string {
	return k.Kind + "(" + strings.ReplaceAll(k.Args, keySep, ", ") + ")"
}

// task is the cached state of one unit of work. All fields are guarded
// by the engine mutex; the compute function itself runs unlocked.
type task struct {
	key Key

	valid     bool
	computing bool
	done      chan struct{} // closed when the in-flight computation finishes
	gen       uint64        // bumped by every invalidation
	value     any
	err       error

	deps       map[*task]struct{} // tasks this task read during its last run
	dependents map[*task]struct{} // tasks that read this task
}

// Engine owns the task graph.
type Engine struct {
	mu    sync.Mutex
	tasks map[Key]*task

	// Asynchronous invalidation queue, drained by a background
	// goroutine. Settle waits for it to empty.
	queueMu sync.Mutex
	queue   []Key
	pending int
	idle    chan struct{} // non-nil while pending > 0, closed on drain

	kick chan struct{}
	stop chan struct{}
}

// NewEngine creates an engine and starts its invalidation worker.
// Callers must Close the engine when done with it.
func NewEngine() *Engine {
	e := &Engine{
		tasks: make(map[Key]*task),
		kick:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}
	go e.invalidationLoop()
	return e
}

// Close stops the invalidation worker. Pending asynchronous
// invalidations are discarded.
func (e *Engine) Close() {
	close(e.stop)
}

type ctxKey struct{}

// callerFromContext returns the task currently computing, if any.
func callerFromContext(ctx context.Context) *task {
	t, _ := ctx.Value(ctxKey{}).(*task)
	return t
}

func withCaller(ctx context.Context, t *task) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// Call invokes the task identified by key. If the task is valid its
// cached result is returned; otherwise compute runs exactly once, with
// concurrent callers waiting on the same computation. In both cases a
// dependency edge is recorded from the calling task carried in ctx, so
// a later invalidation of this task propagates to its callers.
func (e *Engine) Call(ctx context.Context, key Key, compute func(context.Context) (any, error)) (any, error) {
	for {
		e.mu.Lock()
		t := e.tasks[key]
		if t == nil {
			t = &task{
				key:        key,
				deps:       make(map[*task]struct{}),
				dependents: make(map[*task]struct{}),
			}
			e.tasks[key] = t
		}
		if caller := callerFromContext(ctx); caller != nil && caller != t {
			t.dependents[caller] = struct{}{}
			caller.deps[t] = struct{}{}
		}

		if t.valid {
			value, err := t.value, t.err
			e.mu.Unlock()
			return value, err
		}

		if t.computing {
			done := t.done
			e.mu.Unlock()
			select {
			case <-done:
				continue // re-check; the result may already be stale
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		t.computing = true
		t.done = make(chan struct{})
		gen := t.gen
		// The previous run's reads no longer count as dependencies.
		for d := range t.deps {
			delete(d.dependents, t)
		}
		clear(t.deps)
		e.mu.Unlock()

		value, err := compute(withCaller(ctx, t))

		e.mu.Lock()
		t.value, t.err = value, err
		// An invalidation that arrived mid-computation bumps gen; the
		// result is stored but stays stale so the next Call recomputes.
		t.valid = t.gen == gen
		t.computing = false
		close(t.done)
		e.mu.Unlock()

		return value, err
	}
}

// Call invokes a task through the engine with a typed result. See
// Engine.Call for the caching and dependency semantics.
func Call[T any](ctx context.Context, e *Engine, key Key, compute func(context.Context) (T, error)) (T, error) {
	value, err := e.Call(ctx, key, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("task %s: cached value is %T, caller expects %T", key, value, zero)
	}
	return typed, nil
}

// Invalidate synchronously marks the given tasks and all their
// transitive dependents stale. Keys without a task are ignored.
func (e *Engine) Invalidate(keys ...Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, key := range keys {
		if t := e.tasks[key]; t != nil {
			e.invalidateLocked(t)
		}
	}
}

func (e *Engine) invalidateLocked(t *task) {
	t.gen++
	if !t.valid {
		// Dependents were already invalidated when this task went
		// stale; anything registered since is itself mid-computation.
		return
	}
	t.valid = false
	for d := range t.dependents {
		e.invalidateLocked(d)
	}
}

// InvalidateAsync enqueues invalidations for the background worker.
// Safe to call from event-delivery goroutines that must not block on
// the task graph.
func (e *Engine) InvalidateAsync(keys ...Key) {
	if len(keys) == 0 {
		return
	}
	e.queueMu.Lock()
	if e.pending == 0 {
		e.idle = make(chan struct{})
	}
	e.pending += len(keys)
	e.queue = append(e.queue, keys...)
	e.queueMu.Unlock()

	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Settle blocks until every invalidation enqueued before the call has
// been applied. A Call made after Settle returns is a strongly
// consistent read with respect to those invalidations.
func (e *Engine) Settle(ctx context.Context) error {
	for {
		e.queueMu.Lock()
		idle := e.idle
		if e.pending == 0 {
			e.queueMu.Unlock()
			return nil
		}
		e.queueMu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) invalidationLoop() {
	for {
		select {
		case <-e.stop:
			return
		case <-e.kick:
		}
		for {
			e.queueMu.Lock()
			if len(e.queue) == 0 {
				e.queueMu.Unlock()
				break
			}
			key := e.queue[0]
			e.queue = e.queue[1:]
			e.queueMu.Unlock()

			e.Invalidate(key)

			e.queueMu.Lock()
			e.pending--
			if e.pending == 0 && e.idle != nil {
				close(e.idle)
				e.idle = nil
			}
			e.queueMu.Unlock()
		}
	}
}
