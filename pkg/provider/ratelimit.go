package provider

import (
	"context"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/types"
	"golang.org/x/time/rate"
)

// rateLimitedAdapter wraps an Adapter with a per-provider outbound rate
// limit, applied ahead of the adapter's own retry/backoff loop so a
// burst of Task submissions never exceeds what the upstream allows.
type rateLimitedAdapter struct {
	Adapter
	limiter *rate.Limiter
}

// withRateLimit wraps adapter with a token-bucket limiter allowing rps
// requests/sec with a burst of one. rps <= 0 disables limiting and
// returns adapter unchanged.
func withRateLimit(adapter Adapter, rps float64) Adapter {
	if rps <= 0 {
		return adapter
	}
	return &rateLimitedAdapter{
		Adapter: adapter,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (r *rateLimitedAdapter) Generate(ctx context.Context, params types.GenerateParams) (*Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, apierr.Wrap(apierr.KindCanceled, "rate limit wait canceled", err)
	}
	return r.Adapter.Generate(ctx, params)
}

// OptimizePrompt forwards to the wrapped Adapter's Optimizer when it has
// one, through the same rate limiter as Generate. Returns a
// KindInvalidParams error when the wrapped adapter doesn't support
// optimization at all.
func (r *rateLimitedAdapter) OptimizePrompt(ctx context.Context, modelID, prompt string) (string, error) {
	opt, ok := r.Adapter.(Optimizer)
	if !ok {
		return "", apierr.New(apierr.KindInvalidParams, "provider does not support prompt optimization")
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return "", apierr.Wrap(apierr.KindCanceled, "rate limit wait canceled", err)
	}
	return opt.OptimizePrompt(ctx, modelID, prompt)
}
