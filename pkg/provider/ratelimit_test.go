package provider

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/pixelforge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRateLimitZeroDisablesWrapping(t *testing.T) {
	base := &StubAdapter{AdapterName: "stub"}
	wrapped := withRateLimit(base, 0)
	assert.Same(t, Adapter(base), wrapped)
}

func TestWithRateLimitThrottlesSecondCall(t *testing.T) {
	base := &StubAdapter{AdapterName: "stub", FixedBytes: []byte("x"), FixedMIME: "image/png"}
	wrapped := withRateLimit(base, 5)

	params := types.GenerateParams{
		Prompt: "a cat", ModelID: "m1",
		AspectRatio: types.AspectRatio1x1, ImageSize: types.Resolution1K, Count: 1,
	}

	start := time.Now()
	_, err := wrapped.Generate(context.Background(), params)
	require.NoError(t, err)
	_, err = wrapped.Generate(context.Background(), params)
	require.NoError(t, err)

	// Burst of 1 at 5 rps means the second call waits roughly 200ms.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestWithRateLimitRespectsCancellation(t *testing.T) {
	base := &StubAdapter{AdapterName: "stub", FixedBytes: []byte("x")}
	wrapped := withRateLimit(base, 1)

	params := types.GenerateParams{
		Prompt: "a cat", ModelID: "m1",
		AspectRatio: types.AspectRatio1x1, ImageSize: types.Resolution1K, Count: 1,
	}
	_, err := wrapped.Generate(context.Background(), params)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = wrapped.Generate(ctx, params)
	require.Error(t, err)
}
