package provider

import (
	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/types"
)

// validateCommon applies the field constraints shared by every adapter:
// non-empty prompt, non-empty model id, a closed-set aspect ratio and
// resolution class, and a count clamped to [1, 100].
func validateCommon(params types.GenerateParams) error {
	if params.Prompt == "" {
		return apierr.New(apierr.KindInvalidParams, "prompt is required")
	}
	if params.ModelID == "" {
		return apierr.New(apierr.KindInvalidParams, "model_id is required")
	}
	if !types.ValidAspectRatio(params.AspectRatio) {
		return apierr.New(apierr.KindInvalidParams, "unsupported aspect ratio")
	}
	if !types.ValidResolutionClass(params.ImageSize) {
		return apierr.New(apierr.KindInvalidParams, "unsupported image size")
	}
	if params.Count < 1 || params.Count > 100 {
		return apierr.New(apierr.KindInvalidParams, "count must be between 1 and 100")
	}
	return nil
}
