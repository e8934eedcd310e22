package transform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"image-preprocessing/internal/core"
)

// gradientImage builds a deterministic w x h image whose channels vary with position.
func gradientImage(t *testing.T, w, h int, mode core.ColorMode) *core.Image {
	t.Helper()
	c := mode.Channels()
	pix := make([]byte, w*h*c)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for ch := 0; ch < c; ch++ {
				pix[(y*w+x)*c+ch] = byte((x*7 + y*13 + ch*50) % 256)
			}
		}
	}
	img, err := core.NewImageFromBytes(w, h, mode, pix)
	require.NoError(t, err)
	t.Cleanup(func() { img.Close() })
	return img
}

func uniformImage(t *testing.T, w, h int, mode core.ColorMode, v byte) *core.Image {
	t.Helper()
	pix := make([]byte, w*h*mode.Channels())
	for i := range pix {
		pix[i] = v
	}
	img, err := core.NewImageFromBytes(w, h, mode, pix)
	require.NoError(t, err)
	t.Cleanup(func() { img.Close() })
	return img
}

func inspectionPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(
		Normalize{Mode: core.ModeRGB},
		Resize{Size: 256},
		Filter{Kernel: KernelSharpen},
		Tensorize{Range: core.UnitRange},
	)
	require.NoError(t, err)
	return p
}

func closeValue(t *testing.T, v core.Value) {
	t.Helper()
	t.Cleanup(func() { v.Close() })
}
