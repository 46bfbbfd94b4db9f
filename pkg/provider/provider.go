// Package provider defines the upstream image-generation adapter contract
// and the registry that resolves a provider name to a live adapter.
package provider

import (
	"context"

	"github.com/cuemby/pixelforge/pkg/types"
)

// Result is what a successful Generate call returns: the raw bytes of
// each produced image plus adapter-reported metadata.
type Result struct {
	Images []ImageResult
}

// ImageResult is one produced (or failed) image within a Result.
type ImageResult struct {
	Bytes  []byte
	Width  int
	Height int
	MIME   string
	Err    error // set when this particular image failed; Bytes is nil
}

// Adapter is the uniform contract every upstream provider implements.
// The polymorphic surface is intentionally small: name, validate,
// generate.
type Adapter interface {
	// Name returns the adapter's stable identifier, matching its
	// ProviderConfig.Name.
	Name() string

	// Validate performs a pure, side-effect-free check of params and
	// returns an *apierr.Error with Kind KindInvalidParams when a
	// required field is missing or out of range.
	Validate(params types.GenerateParams) error

	// Generate submits params to the upstream and returns produced
	// image bytes. The context's deadline/cancellation must interrupt
	// in-flight upstream I/O. Errors are classified per pkg/apierr.
	Generate(ctx context.Context, params types.GenerateParams) (*Result, error)
}
