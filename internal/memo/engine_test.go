package memo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallCachesResult(t *testing.T) {
	e := NewEngine()
	defer e.Close()
	ctx := context.Background()

	var runs int
	key := NewKey("double", "21")
	compute := func(context.Context) (int, error) {
		runs++
		return 42, nil
	}

	got, err := Call(ctx, e, key, compute)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	got, err = Call(ctx, e, key, compute)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, runs, "second call should hit the cache")
}

func TestCallCachesError(t *testing.T) {
	e := NewEngine()
	defer e.Close()
	ctx := context.Background()

	var runs int
	boom := errors.New("boom")
	key := NewKey("fails")
	compute := func(context.Context) (int, error) {
		runs++
		return 0, boom
	}

	_, err := Call(ctx, e, key, compute)
	require.ErrorIs(t, err, boom)
	_, err = Call(ctx, e, key, compute)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, runs, "errors are cached like values")
}

func TestInvalidateRecomputes(t *testing.T) {
	e := NewEngine()
	defer e.Close()
	ctx := context.Background()

	var runs int
	key := NewKey("counter")
	compute := func(context.Context) (int, error) {
		runs++
		return runs, nil
	}

	got, err := Call(ctx, e, key, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	e.Invalidate(key)

	got, err = Call(ctx, e, key, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

// Invalidating a leaf must invalidate everything that read it,
// transitively, but nothing else.
func TestInvalidationPropagatesToDependents(t *testing.T) {
	e := NewEngine()
	defer e.Close()
	ctx := context.Background()

	leaf := NewKey("leaf")
	mid := NewKey("mid")
	top := NewKey("top")
	other := NewKey("other")

	var leafRuns, midRuns, topRuns, otherRuns int

	callLeaf := func(ctx context.Context) (int, error) {
		return Call(ctx, e, leaf, func(context.Context) (int, error) {
			leafRuns++
			return leafRuns, nil
		})
	}
	callMid := func(ctx context.Context) (int, error) {
		return Call(ctx, e, mid, func(ctx context.Context) (int, error) {
			midRuns++
			v, err := callLeaf(ctx)
			return v + 10, err
		})
	}
	callTop := func(ctx context.Context) (int, error) {
		return Call(ctx, e, top, func(ctx context.Context) (int, error) {
			topRuns++
			v, err := callMid(ctx)
			return v + 100, err
		})
	}
	callOther := func(ctx context.Context) (int, error) {
		return Call(ctx, e, other, func(context.Context) (int, error) {
			otherRuns++
			return 7, nil
		})
	}

	v, err := callTop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 111, v)
	_, err = callOther(ctx)
	require.NoError(t, err)

	e.Invalidate(leaf)

	v, err = callTop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 112, v)
	assert.Equal(t, 2, leafRuns)
	assert.Equal(t, 2, midRuns)
	assert.Equal(t, 2, topRuns)

	_, err = callOther(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, otherRuns, "unrelated task must not be invalidated")
}

// A dependency edge must be recorded on a cache hit too, or a second
// caller of a cached task would never be invalidated.
func TestEdgeRecordedOnCacheHit(t *testing.T) {
	e := NewEngine()
	defer e.Close()
	ctx := context.Background()

	leaf := NewKey("leaf")
	callLeaf := func(ctx context.Context) (int, error) {
		return Call(ctx, e, leaf, func(context.Context) (int, error) { return 1, nil })
	}

	// Warm the leaf through a first parent.
	_, err := Call(ctx, e, NewKey("parent", "a"), func(ctx context.Context) (int, error) {
		return callLeaf(ctx)
	})
	require.NoError(t, err)

	var bRuns int
	callB := func(ctx context.Context) (int, error) {
		return Call(ctx, e, NewKey("parent", "b"), func(ctx context.Context) (int, error) {
			bRuns++
			return callLeaf(ctx) // cache hit
		})
	}
	_, err = callB(ctx)
	require.NoError(t, err)

	e.Invalidate(leaf)
	_, err = callB(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, bRuns)
}

// Dependencies from a previous run that are not re-read must be
// dropped, or pruned subtrees would keep invalidating old readers.
func TestStaleEdgesDropped(t *testing.T) {
	e := NewEngine()
	defer e.Close()
	ctx := context.Background()

	choice := NewKey("choice")
	a := NewKey("a")
	b := NewKey("b")
	useA := true

	var rootRuns int
	callRoot := func(ctx context.Context) (string, error) {
		return Call(ctx, e, NewKey("root"), func(ctx context.Context) (string, error) {
			rootRuns++
			if _, err := Call(ctx, e, choice, func(context.Context) (bool, error) {
				return useA, nil
			}); err != nil {
				return "", err
			}
			key := b
			if useA {
				key = a
			}
			return Call(ctx, e, key, func(context.Context) (string, error) {
				return key.Kind, nil
			})
		})
	}

	v, err := callRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	// Switch the root over to b.
	useA = false
	e.Invalidate(choice)
	v, err = callRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.Equal(t, 2, rootRuns)

	// The root no longer reads a; invalidating a must not recompute it.
	e.Invalidate(a)
	_, err = callRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rootRuns)
}

func TestConcurrentCallersCoalesce(t *testing.T) {
	e := NewEngine()
	defer e.Close()
	ctx := context.Background()

	var runs atomic.Int32
	gate := make(chan struct{})
	key := NewKey("slow")

	const callers = 8
	var wg sync.WaitGroup
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Call(ctx, e, key, func(context.Context) (int, error) {
				runs.Add(1)
				<-gate
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestSettleAppliesAsyncInvalidations(t *testing.T) {
	e := NewEngine()
	defer e.Close()
	ctx := context.Background()

	var runs int
	key := NewKey("watched")
	compute := func(context.Context) (Completion, error) {
		runs++
		return NewCompletion(), nil
	}

	first, err := Call(ctx, e, key, compute)
	require.NoError(t, err)

	// Without invalidations, Settle is a no-op and the token is stable.
	require.NoError(t, e.Settle(ctx))
	second, err := Call(ctx, e, key, compute)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	e.InvalidateAsync(key)
	require.NoError(t, e.Settle(ctx))

	third, err := Call(ctx, e, key, compute)
	require.NoError(t, err)
	assert.NotEqual(t, second, third)
	assert.Equal(t, 2, runs)
}

func TestInvalidateUnknownKeyIsNoop(t *testing.T) {
	e := NewEngine()
	defer e.Close()

	e.Invalidate(NewKey("never", "seen"))
	e.InvalidateAsync(NewKey("also", "unseen"))
	require.NoError(t, e.Settle(context.Background()))
}

func TestKeyString(t *testing.T) {
	k := NewKey("readDir", "sub", "a/b")
	assert.Equal(t, "readDir(sub, a/b)", k.String())
	assert.NotEqual(t, NewKey("x", "a", "b"), NewKey("x", "a/b"))
	assert.NotEqual(t, NewKey("x", "ab"), NewKey("x", "a", "b"))
}
