package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/stretchr/testify/assert"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), 3, func() error {
		attempts++
		if attempts < 3 {
			return apierr.New(apierr.KindUpstreamTransient, "try again")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryDoesNotRetryInvalidParams(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), 5, func() error {
		attempts++
		return apierr.New(apierr.KindInvalidParams, "bad input")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, apierr.KindInvalidParams, apierr.KindOf(err))
}

func TestWithRetryExhaustsAndReturnsLastError(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), 2, func() error {
		attempts++
		return apierr.New(apierr.KindUpstreamTransient, "still failing")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestWithRetryRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, 5, func() error {
		return apierr.New(apierr.KindUpstreamTransient, "transient")
	})

	assert.Error(t, err)
	var classified *apierr.Error
	assert.True(t, errors.As(err, &classified))
	assert.Equal(t, apierr.KindCanceled, classified.Kind)
}
