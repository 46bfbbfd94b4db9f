package provider

import "github.com/cuemby/pixelforge/pkg/types"

// baseDims maps a ResolutionClass to the longer-edge pixel size used
// before the aspect ratio is applied.
var baseDims = map[types.ResolutionClass]int{
	types.Resolution1K: 1024,
	types.Resolution2K: 2048,
	types.Resolution4K: 4096,
}

// aspectFactors maps an AspectRatio to its (width, height) weight.
var aspectFactors = map[types.AspectRatio][2]float64{
	types.AspectRatio1x1:  {1, 1},
	types.AspectRatio16x9: {16, 9},
	types.AspectRatio9x16: {9, 16},
	types.AspectRatio4x3:  {4, 3},
	types.AspectRatio3x4:  {3, 4},
	types.AspectRatio2x3:  {2, 3},
}

// Dimensions translates a closed-set aspect ratio and resolution class
// into concrete pixel dimensions aligned to a multiple of 8 on both
// axes, with the longer edge anchored to the resolution class's base
// size.
func Dimensions(ratio types.AspectRatio, class types.ResolutionClass) (width, height int) {
	base, ok := baseDims[class]
	if !ok {
		base = baseDims[types.Resolution1K]
	}
	factor, ok := aspectFactors[ratio]
	if !ok {
		factor = aspectFactors[types.AspectRatio1x1]
	}

	w, h := factor[0], factor[1]
	if w >= h {
		width = base
		height = int(float64(base) * h / w)
	} else {
		height = base
		width = int(float64(base) * w / h)
	}

	return alignDown8(width), alignDown8(height)
}

// alignDown8 rounds n down to the nearest positive multiple of 8.
func alignDown8(n int) int {
	aligned := n - (n % 8)
	if aligned < 8 {
		return 8
	}
	return aligned
}
