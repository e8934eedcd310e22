package transform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-preprocessing/internal/core"
)

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, target := range []core.ColorMode{core.ModeRGB, core.ModeGray} {
		for _, source := range []core.ColorMode{core.ModeGray, core.ModeRGB, core.ModeRGBA} {
			t.Run(source.String()+"->"+target.String(), func(t *testing.T) {
				n, err := NewNormalize(target)
				require.NoError(t, err)

				once, err := n.Apply(gradientImage(t, 12, 9, source))
				require.NoError(t, err)
				closeValue(t, once)

				twice, err := n.Apply(once)
				require.NoError(t, err)
				closeValue(t, twice)

				onceImg := once.(*core.Image)
				twiceImg := twice.(*core.Image)
				assert.Equal(t, target, onceImg.Mode())
				assert.Equal(t, onceImg.Mode(), twiceImg.Mode())
				assert.Equal(t, onceImg.Bytes(), twiceImg.Bytes())
			})
		}
	}
}

func TestNormalizeGrayToRGBReplicatesChannel(t *testing.T) {
	img := uniformImage(t, 3, 2, core.ModeGray, 77)

	out, err := Normalize{Mode: core.ModeRGB}.Apply(img)
	require.NoError(t, err)
	closeValue(t, out)

	rgb := out.(*core.Image)
	assert.Equal(t, []int{3, 2, 3}, rgb.Shape())
	for _, b := range rgb.Bytes() {
		assert.Equal(t, byte(77), b)
	}
}

func TestNormalizeRGBADropsAlpha(t *testing.T) {
	pix := []byte{10, 20, 30, 0, 40, 50, 60, 255}
	img, err := core.NewImageFromBytes(2, 1, core.ModeRGBA, pix)
	require.NoError(t, err)
	defer img.Close()

	out, err := Normalize{Mode: core.ModeRGB}.Apply(img)
	require.NoError(t, err)
	closeValue(t, out)

	assert.Equal(t, []byte{10, 20, 30, 40, 50, 60}, out.(*core.Image).Bytes())
}

func TestResizeTargetSize(t *testing.T) {
	tests := []struct {
		name         string
		resize       Resize
		w, h         int
		wantW, wantH int
	}{
		{"square from portrait", Resize{Size: 10}, 20, 40, 10, 10},
		{"shorter side landscape", Resize{Size: 10, Policy: ResizeShorterSide}, 40, 20, 20, 10},
		{"shorter side portrait", Resize{Size: 10, Policy: ResizeShorterSide}, 20, 45, 10, 22},
		{"shorter side square", Resize{Size: 128, Policy: ResizeShorterSide}, 28, 28, 128, 128},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, h := tc.resize.TargetSize(tc.w, tc.h)
			assert.Equal(t, tc.wantW, w)
			assert.Equal(t, tc.wantH, h)
		})
	}
}

func TestResizeShorterSideKeepsAspect(t *testing.T) {
	r, err := NewResize(10, ResizeShorterSide, InterpArea)
	require.NoError(t, err)

	out, err := r.Apply(gradientImage(t, 40, 20, core.ModeRGB))
	require.NoError(t, err)
	closeValue(t, out)

	assert.Equal(t, []int{3, 10, 20}, out.Shape())
}

func TestStepsRejectTensorInput(t *testing.T) {
	tensor, err := core.NewTensor(1, 2, 2, []float32{0, 0.5, 1, 0.25}, core.UnitRange)
	require.NoError(t, err)

	for _, s := range []Step{Normalize{Mode: core.ModeRGB}, Resize{Size: 4}, Filter{}, Tensorize{}} {
		_, err := s.Apply(tensor)
		var shapeErr *core.ShapeError
		assert.True(t, errors.As(err, &shapeErr), "%s accepted a tensor", s.Name())
	}
}

func TestSharpenPreservesFlatRegions(t *testing.T) {
	out, err := Filter{Kernel: KernelSharpen}.Apply(uniformImage(t, 6, 6, core.ModeGray, 120))
	require.NoError(t, err)
	closeValue(t, out)

	for _, b := range out.(*core.Image).Bytes() {
		assert.Equal(t, byte(120), b)
	}
}

func TestSharpenAccentuatesEdges(t *testing.T) {
	const w, h = 8, 5
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				pix[y*w+x] = 100
			} else {
				pix[y*w+x] = 150
			}
		}
	}
	img, err := core.NewImageFromBytes(w, h, core.ModeGray, pix)
	require.NoError(t, err)
	defer img.Close()

	out, err := Filter{Kernel: KernelSharpen}.Apply(img)
	require.NoError(t, err)
	closeValue(t, out)

	got := out.(*core.Image).Bytes()
	row := 2 * w
	// (32*100 - 2*(5*100 + 3*150)) / 16 = 81.25 and its mirror 168.75.
	assert.Equal(t, byte(81), got[row+w/2-1])
	assert.Equal(t, byte(169), got[row+w/2])
	assert.Equal(t, byte(100), got[row])
	assert.Equal(t, byte(150), got[row+w-1])
}

func TestSharpenFiltersBorderAgainstReplicatedEdge(t *testing.T) {
	pix := []byte{
		100, 100, 100,
		100, 200, 100,
		100, 100, 100,
	}
	img, err := core.NewImageFromBytes(3, 3, core.ModeGray, pix)
	require.NoError(t, err)
	defer img.Close()

	out, err := Filter{Kernel: KernelSharpen}.Apply(img)
	require.NoError(t, err)
	closeValue(t, out)

	// The corner sees its own value three more times through the replicated
	// edge: (32*100 - 2*(7*100 + 200)) / 16 = 87.5, rounded to even.
	assert.Equal(t, byte(88), out.(*core.Image).Bytes()[0])
}

func TestTensorizeScalesChannelFirst(t *testing.T) {
	pix := []byte{
		0, 51, 255, 102, 204, 153,
	}
	img, err := core.NewImageFromBytes(2, 1, core.ModeRGB, pix)
	require.NoError(t, err)
	defer img.Close()

	out, err := Tensorize{}.Apply(img)
	require.NoError(t, err)
	tensor := out.(*core.Tensor)

	assert.Equal(t, []int{3, 1, 2}, tensor.Shape())
	assert.InDelta(t, 0.0, tensor.At(0, 0, 0), 1e-6)
	assert.InDelta(t, 0.2, tensor.At(1, 0, 0), 1e-6)
	assert.InDelta(t, 1.0, tensor.At(2, 0, 0), 1e-6)
	assert.InDelta(t, 0.4, tensor.At(0, 0, 1), 1e-6)
	assert.InDelta(t, 0.8, tensor.At(1, 0, 1), 1e-6)
	assert.InDelta(t, 0.6, tensor.At(2, 0, 1), 1e-6)
}

func TestTensorizeZeroRangeMeansUnit(t *testing.T) {
	assert.NoError(t, Tensorize{}.Validate())
	assert.Equal(t, "tensorize([0, 1])", Tensorize{}.String())

	_, err := NewTensorize(core.Range{Min: 2, Max: 2})
	var cfgErr *core.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestParseHelpers(t *testing.T) {
	interp, err := ParseInterpolation("Lanczos4")
	require.NoError(t, err)
	assert.Equal(t, InterpLanczos4, interp)

	interp, err = ParseInterpolation("")
	require.NoError(t, err)
	assert.Equal(t, InterpBilinear, interp)

	policy, err := ParseResizePolicy("shorter")
	require.NoError(t, err)
	assert.Equal(t, ResizeShorterSide, policy)

	kernel, err := ParseKernel("edge_enhance")
	require.NoError(t, err)
	assert.Equal(t, KernelEdgeEnhance, kernel)

	_, err = ParseKernel("emboss")
	assert.Error(t, err)
	_, err = ParseInterpolation("sinc")
	assert.Error(t, err)
}
