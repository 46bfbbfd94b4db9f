package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/provider"
	"github.com/cuemby/pixelforge/pkg/storage"
	"github.com/cuemby/pixelforge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowAdapter lands one image per delay tick and stops as soon as its
// context is done (canceled or timed out), returning whatever already
// landed.
type slowAdapter struct {
	delay time.Duration
}

func (a *slowAdapter) Name() string { return "slow" }

func (a *slowAdapter) Validate(params types.GenerateParams) error { return nil }

func (a *slowAdapter) Generate(ctx context.Context, params types.GenerateParams) (*provider.Result, error) {
	result := &provider.Result{}
	for i := 0; i < params.Count; i++ {
		select {
		case <-ctx.Done():
			return result, nil
		case <-time.After(a.delay):
		}
		result.Images = append(result.Images, provider.ImageResult{Bytes: []byte("x"), MIME: "image/png"})
	}
	return result, nil
}

type fakeSink struct {
	mu       sync.Mutex
	images   []provider.ImageResult
	outcomes []Outcome
	done     chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{done: make(chan struct{}, 16)}
}

func (f *fakeSink) Start(ctx context.Context, taskID string) error {
	return nil
}

func (f *fakeSink) OnImage(ctx context.Context, taskID string, index int, result provider.ImageResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, result)
	return nil
}

func (f *fakeSink) Finalize(ctx context.Context, taskID string, outcome Outcome) error {
	f.mu.Lock()
	f.outcomes = append(f.outcomes, outcome)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func newTestRegistry(t *testing.T) *provider.Registry {
	t.Helper()
	st, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg := provider.NewRegistry(st)
	reg.Register("stub", func(cfg types.ProviderConfig) (provider.Adapter, error) {
		return &provider.StubAdapter{AdapterName: "stub", FixedBytes: []byte("fake-image-bytes")}, nil
	})
	require.NoError(t, st.UpsertProviderConfig(&types.ProviderConfig{Name: "stub", Enabled: true, MaxRetries: 1}))
	require.NoError(t, reg.Reload())
	return reg
}

func TestPoolProcessesSubmittedTask(t *testing.T) {
	reg := newTestRegistry(t)
	sink := newFakeSink()
	pool := NewPool(Config{Workers: 2, QueueCapacity: 4}, reg, sink)
	pool.Start()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	task := &types.Task{ID: "t1", Provider: "stub"}
	params := types.GenerateParams{
		Prompt:      "a cat",
		ModelID:     "m1",
		AspectRatio: types.AspectRatio1x1,
		ImageSize:   types.Resolution1K,
		Count:       2,
	}

	require.NoError(t, pool.Submit(task, params))

	select {
	case <-sink.done:
	case <-time.After(time.Second):
		t.Fatal("task was not finalized in time")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.images, 2)
	assert.Len(t, sink.outcomes, 1)
	assert.NoError(t, sink.outcomes[0].FatalErr)
}

func TestPoolSubmitReturnsQueueFullAtCapacity(t *testing.T) {
	reg := newTestRegistry(t)
	sink := newFakeSink()
	pool := NewPool(Config{Workers: 1, QueueCapacity: 1}, reg, sink) // Start is never called, so nothing drains the queue

	task := &types.Task{ID: "t1", Provider: "stub"}
	params := types.GenerateParams{
		Prompt: "a cat", ModelID: "m1",
		AspectRatio: types.AspectRatio1x1, ImageSize: types.Resolution1K, Count: 1,
	}

	require.NoError(t, pool.Submit(task, params))
	err := pool.Submit(task, params)
	require.Error(t, err)
}

func TestPoolUnknownProviderFinalizesWithFatalError(t *testing.T) {
	reg := newTestRegistry(t)
	sink := newFakeSink()
	pool := NewPool(Config{Workers: 1, QueueCapacity: 4}, reg, sink)
	pool.Start()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	task := &types.Task{ID: "t1", Provider: "does-not-exist"}
	params := types.GenerateParams{
		Prompt: "a cat", ModelID: "m1",
		AspectRatio: types.AspectRatio1x1, ImageSize: types.Resolution1K, Count: 1,
	}
	require.NoError(t, pool.Submit(task, params))

	select {
	case <-sink.done:
	case <-time.After(time.Second):
		t.Fatal("task was not finalized in time")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.outcomes, 1)
	assert.Error(t, sink.outcomes[0].FatalErr)
}

func newSlowRegistry(t *testing.T, delay time.Duration) *provider.Registry {
	t.Helper()
	st, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg := provider.NewRegistry(st)
	reg.Register("slow", func(cfg types.ProviderConfig) (provider.Adapter, error) {
		return &slowAdapter{delay: delay}, nil
	})
	require.NoError(t, st.UpsertProviderConfig(&types.ProviderConfig{Name: "slow", Enabled: true}))
	require.NoError(t, reg.Reload())
	return reg
}

func TestPoolCancelFinalizesTaskAsCanceledPreservingLandedImages(t *testing.T) {
	reg := newSlowRegistry(t, 30*time.Millisecond)
	sink := newFakeSink()
	pool := NewPool(Config{Workers: 1, QueueCapacity: 1}, reg, sink)
	pool.Start()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	task := &types.Task{ID: "t-cancel", Provider: "slow"}
	params := types.GenerateParams{
		Prompt: "a cat", ModelID: "m1",
		AspectRatio: types.AspectRatio1x1, ImageSize: types.Resolution1K, Count: 5,
	}
	require.NoError(t, pool.Submit(task, params))

	time.Sleep(70 * time.Millisecond)
	assert.True(t, pool.Cancel(task.ID))

	select {
	case <-sink.done:
	case <-time.After(time.Second):
		t.Fatal("task was not finalized in time")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.outcomes, 1)
	require.Error(t, sink.outcomes[0].FatalErr)
	assert.Equal(t, apierr.KindCanceled, apierr.KindOf(sink.outcomes[0].FatalErr))
	assert.NotEmpty(t, sink.images)
	assert.Less(t, len(sink.images), 5)

	assert.False(t, pool.Cancel(task.ID), "cancel handle must be released once the task finished")
}

func TestPoolTaskTimeoutFinalizesAsCanceled(t *testing.T) {
	reg := newSlowRegistry(t, 50*time.Millisecond)
	sink := newFakeSink()
	pool := NewPool(Config{Workers: 1, QueueCapacity: 1}, reg, sink)
	pool.Start()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	task := &types.Task{ID: "t-timeout", Provider: "slow", Timeout: 40 * time.Millisecond}
	params := types.GenerateParams{
		Prompt: "a cat", ModelID: "m1",
		AspectRatio: types.AspectRatio1x1, ImageSize: types.Resolution1K, Count: 5,
	}
	require.NoError(t, pool.Submit(task, params))

	select {
	case <-sink.done:
	case <-time.After(time.Second):
		t.Fatal("task was not finalized in time")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.outcomes, 1)
	require.Error(t, sink.outcomes[0].FatalErr)
	assert.Equal(t, apierr.KindCanceled, apierr.KindOf(sink.outcomes[0].FatalErr))
	assert.Less(t, len(sink.images), 5)
}
