package provider

import (
	"context"
	"sync/atomic"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/types"
)

// StubAdapter is a deterministic, in-memory Adapter for tests. It
// returns FixedBytes for every requested image, optionally failing the
// first FailCount images (counted across Generate calls) with an
// upstream-transient per-image error. Failed images are not retried.
type StubAdapter struct {
	AdapterName string
	FixedBytes  []byte
	FixedMIME   string
	FailCount   int32 // number of images to fail with upstream-transient before succeeding

	calls atomic.Int32
}

func (s *StubAdapter) Name() string {
	if s.AdapterName != "" {
		return s.AdapterName
	}
	return "stub"
}

func (s *StubAdapter) Validate(params types.GenerateParams) error {
	return validateCommon(params)
}

func (s *StubAdapter) Generate(ctx context.Context, params types.GenerateParams) (*Result, error) {
	if err := s.Validate(params); err != nil {
		return nil, err
	}

	width, height := Dimensions(params.AspectRatio, params.ImageSize)

	result := &Result{}
	for i := 0; i < params.Count; i++ {
		if s.calls.Add(1) <= s.FailCount {
			result.Images = append(result.Images, ImageResult{
				Err: apierr.New(apierr.KindUpstreamTransient, "stub transient failure"),
			})
			continue
		}

		mime := s.FixedMIME
		if mime == "" {
			mime = "image/png"
		}
		result.Images = append(result.Images, ImageResult{
			Bytes:  s.FixedBytes,
			Width:  width,
			Height: height,
			MIME:   mime,
		})
	}

	select {
	case <-ctx.Done():
		return nil, apierr.Wrap(apierr.KindCanceled, "stub generation canceled", ctx.Err())
	default:
	}

	return result, nil
}
