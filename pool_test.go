package resmgr_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/resmgr"
	"github.com/hupe1980/resmgr/testutil"
)

func newCachePool(t *testing.T, plugin *testutil.FakePlugin) *resmgr.Pool {
	t.Helper()

	factory := resmgr.NewDefaultFactory(testutil.SingleTypeRegistry("cache", plugin))
	pool, err := resmgr.NewPool("p1", "cache", factory,
		map[string]float64{"maxRamMB": 100}, nil,
		resmgr.WithPoolLogger(resmgr.NoopLogger()),
	)
	require.NoError(t, err)

	return pool
}

func TestNewPool_UnsupportedType(t *testing.T) {
	factory := resmgr.NewDefaultFactory(resmgr.NewRegistry())

	pool, err := resmgr.NewPool("p1", "bogus", factory, nil, nil)
	require.Error(t, err)
	assert.Nil(t, pool)

	var unsupported *resmgr.ErrUnsupportedPoolType
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "bogus", unsupported.Type)
}

func TestNewPool_PluginInitFailure(t *testing.T) {
	initErr := errors.New("bad params")
	plugin := &testutil.FakePlugin{InitErr: initErr}
	factory := resmgr.NewDefaultFactory(testutil.SingleTypeRegistry("cache", plugin))

	pool, err := resmgr.NewPool("p1", "cache", factory, nil, map[string]any{"x": 1})
	require.Error(t, err)
	assert.Nil(t, pool)

	var initFailed *resmgr.ErrPluginInit
	require.ErrorAs(t, err, &initFailed)
	assert.Equal(t, "cache", initFailed.Type)
	assert.ErrorIs(t, err, initErr)
}

func TestPool_Accessors(t *testing.T) {
	plugin := &testutil.FakePlugin{}
	factory := resmgr.NewDefaultFactory(testutil.SingleTypeRegistry("cache", plugin))

	pool, err := resmgr.NewPool("p1", "cache", factory,
		map[string]float64{"b": 2, "a": 1},
		map[string]any{"k": "v"},
	)
	require.NoError(t, err)

	assert.Equal(t, "p1", pool.Name())
	assert.Equal(t, "cache", pool.Type())
	assert.Equal(t, map[string]any{"k": "v"}, pool.Params())
	assert.Equal(t, map[string]float64{"a": 1, "b": 2}, pool.Limits())
	assert.Equal(t, []string{"a", "b"}, pool.LimitTags())

	// Mutating the returned copies must not affect the pool.
	pool.Params()["k"] = "changed"
	pool.Limits()["a"] = 99
	assert.Equal(t, map[string]any{"k": "v"}, pool.Params())
	assert.Equal(t, map[string]float64{"a": 1, "b": 2}, pool.Limits())
}

func TestPool_AddResource_TypeMismatch(t *testing.T) {
	pool := newCachePool(t, &testutil.FakePlugin{})

	r := testutil.NewFakeResource("r1", []string{"other"}, nil)
	require.NoError(t, pool.AddResource(r))
	assert.Empty(t, pool.Resources())
}

func TestPool_AddResource_Duplicate(t *testing.T) {
	pool := newCachePool(t, &testutil.FakePlugin{})

	first := testutil.NewFakeResource("r1", []string{"cache"}, nil)
	second := testutil.NewFakeResource("r1", []string{"cache"}, nil)

	require.NoError(t, pool.AddResource(first))

	err := pool.AddResource(second)
	require.Error(t, err)

	var dup *resmgr.ErrDuplicateResource
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "r1", dup.Resource)
	assert.Equal(t, "p1", dup.Pool)

	// The first entry stays intact.
	resources := pool.Resources()
	require.Len(t, resources, 1)
	assert.Same(t, first, resources["r1"].(*testutil.FakeResource))
}

func TestPool_CurrentValues_Totals(t *testing.T) {
	ctx := context.Background()
	pool := newCachePool(t, &testutil.FakePlugin{Monitored: []string{"ramMB"}})

	require.NoError(t, pool.AddResource(testutil.NewFakeResource("r1", []string{"cache"}, map[string]float64{"ramMB": 40})))
	require.NoError(t, pool.AddResource(testutil.NewFakeResource("r2", []string{"cache"}, map[string]float64{"ramMB": 70})))

	current, err := pool.CurrentValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]float64{
		"r1": {"ramMB": 40},
		"r2": {"ramMB": 70},
	}, current)

	totals, err := pool.TotalValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"ramMB": 110}, totals)
}

func TestPool_CurrentValues_PartialFailure(t *testing.T) {
	ctx := context.Background()
	pool := newCachePool(t, &testutil.FakePlugin{Monitored: []string{"ramMB"}})

	r1 := testutil.NewFakeResource("r1", []string{"cache"}, map[string]float64{"ramMB": 40})
	r2 := testutil.NewFakeResource("r2", []string{"cache"}, map[string]float64{"ramMB": 70})
	require.NoError(t, pool.AddResource(r1))
	require.NoError(t, pool.AddResource(r2))

	r2.FailWith(errors.New("unreachable"))

	current, err := pool.CurrentValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]float64{
		"r1": {"ramMB": 40},
	}, current)

	totals, err := pool.TotalValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"ramMB": 40}, totals)

	// Healing the resource restores its contribution on the next tick.
	r2.FailWith(nil)
	_, err = pool.CurrentValues(ctx)
	require.NoError(t, err)
	totals, err = pool.TotalValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"ramMB": 110}, totals)
}

func TestPool_CurrentValues_SparseTags(t *testing.T) {
	ctx := context.Background()
	pool := newCachePool(t, &testutil.FakePlugin{Monitored: []string{"ramMB", "entries"}})

	// r2 does not track "entries"; its term is simply absent, not zero-filled.
	require.NoError(t, pool.AddResource(testutil.NewFakeResource("r1", []string{"cache"}, map[string]float64{"ramMB": 40, "entries": 10})))
	require.NoError(t, pool.AddResource(testutil.NewFakeResource("r2", []string{"cache"}, map[string]float64{"ramMB": 70})))

	current, err := pool.CurrentValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"ramMB": 70}, current["r2"])

	totals, err := pool.TotalValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"ramMB": 110, "entries": 10}, totals)
}

func TestPool_CurrentValues_EmptyPool(t *testing.T) {
	ctx := context.Background()
	pool := newCachePool(t, &testutil.FakePlugin{Monitored: []string{"ramMB"}})

	current, err := pool.CurrentValues(ctx)
	require.NoError(t, err)
	assert.Empty(t, current)

	totals, err := pool.TotalValues(ctx)
	require.NoError(t, err)
	assert.Empty(t, totals)
}

func TestPool_TotalValues_BeforeAggregation(t *testing.T) {
	pool := newCachePool(t, &testutil.FakePlugin{})

	totals, err := pool.TotalValues(context.Background())
	assert.ErrorIs(t, err, resmgr.ErrNotAggregated)
	assert.Nil(t, totals)
}

// blockingResource holds GetMonitoredValues until released, so tests can keep
// the pool's update lock busy.
type blockingResource struct {
	release chan struct{}
}

func (r *blockingResource) Name() string { return "blocker" }

func (r *blockingResource) SupportedPoolTypes() []string { return []string{"cache"} }

func (r *blockingResource) SetLimit(context.Context, string, float64) error { return nil }

func (r *blockingResource) GetMonitoredValues(ctx context.Context, tags []string) (map[string]float64, error) {
	select {
	case <-r.release:
		return map[string]float64{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestPool_UpdateLock_Interruptible(t *testing.T) {
	pool := newCachePool(t, &testutil.FakePlugin{Monitored: []string{"ramMB"}})

	blocker := &blockingResource{release: make(chan struct{})}
	require.NoError(t, pool.AddResource(blocker))

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		close(started)
		_, _ = pool.CurrentValues(context.Background())
	}()
	<-started

	// Wait until the aggregation goroutine holds the update lock.
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		_, err := pool.TotalValues(ctx)
		return errors.Is(err, context.DeadlineExceeded)
	}, time.Second, time.Millisecond)

	// A canceled waiter is interrupted instead of hanging.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pool.CurrentValues(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(blocker.release)
	<-done
}

func TestPool_SetLimits_Atomic(t *testing.T) {
	pool := newCachePool(t, &testutil.FakePlugin{})

	a := map[string]float64{"x": 1, "y": 1}
	b := map[string]float64{"x": 2, "y": 2}

	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				pool.SetLimits(a)
			} else {
				pool.SetLimits(b)
			}
		}
	}()

	// Readers must never observe a mix of the two maps.
	for i := 0; i < 1000; i++ {
		limits := pool.Limits()
		assert.Equal(t, limits["x"], limits["y"], "observed a torn limits map: %v", limits)
	}

	close(stop)
	wg.Wait()

	final := pool.Limits()
	assert.Contains(t, []float64{1, 2}, final["x"])
}

func TestPool_Execute_PluginFailureRecovered(t *testing.T) {
	ctx := context.Background()
	plugin := &testutil.FakePlugin{ManageErr: errors.New("algorithm broke")}
	pool := newCachePool(t, plugin)

	// A failing plugin must not crash or poison the pool.
	pool.Execute(ctx)
	assert.Equal(t, 1, plugin.ManageCalls())

	pool.Execute(ctx)
	assert.Equal(t, 2, plugin.ManageCalls())
}

func TestPool_Execute_SkipsOverlapping(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	plugin := &testutil.FakePlugin{
		OnManage: func(ctx context.Context, pool *resmgr.Pool) error {
			close(entered)
			<-release
			return nil
		},
	}
	pool := newCachePool(t, plugin)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Execute(context.Background())
	}()
	<-entered

	// Overlapping call is a no-op.
	pool.Execute(context.Background())
	assert.Equal(t, 1, plugin.ManageCalls())

	close(release)
	<-done

	pool.Execute(context.Background())
	assert.Equal(t, 2, plugin.ManageCalls())
}

func TestPool_Close_Idempotent(t *testing.T) {
	pool := newCachePool(t, &testutil.FakePlugin{})

	var cancels int
	pool.SetScheduleHandle(resmgr.NewScheduleHandle(func() { cancels++ }))

	require.NoError(t, pool.Close())
	assert.Equal(t, 1, cancels)
	assert.Nil(t, pool.ScheduleHandle())

	require.NoError(t, pool.Close())
	assert.Equal(t, 1, cancels)
}

func TestScheduleHandle_CancelIdempotent(t *testing.T) {
	var cancels int
	h := resmgr.NewScheduleHandle(func() { cancels++ })

	h.Cancel()
	h.Cancel()
	assert.Equal(t, 1, cancels)

	var nilHandle *resmgr.ScheduleHandle
	nilHandle.Cancel() // must not panic
}
