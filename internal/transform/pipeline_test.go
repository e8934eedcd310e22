package transform

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-preprocessing/internal/core"
)

func TestNewRejectsInvalidParameters(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
	}{
		{"zero resize", []Step{Resize{Size: 0}}},
		{"negative resize", []Step{Resize{Size: -5}}},
		{"oversized resize", []Step{Resize{Size: core.MaxDimension + 1}}},
		{"unknown policy", []Step{Resize{Size: 8, Policy: ResizePolicy(9)}}},
		{"rgba normalize target", []Step{Normalize{Mode: core.ModeRGBA}}},
		{"unset normalize target", []Step{Normalize{}}},
		{"unknown kernel", []Step{Filter{Kernel: Kernel(42)}}},
		{"inverted range", []Step{Tensorize{Range: core.Range{Min: 1, Max: 0}}}},
		{"nil step", []Step{Normalize{Mode: core.ModeRGB}, nil}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New(tc.steps...)
			require.Error(t, err)
			assert.Nil(t, p)

			var cfgErr *core.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %T: %v", err, err)
		})
	}
}

func TestNewRejectsStepAfterTensorize(t *testing.T) {
	_, err := New(Normalize{Mode: core.ModeRGB}, Tensorize{}, Resize{Size: 4})
	require.Error(t, err)

	var shapeErr *core.ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Contains(t, shapeErr.Step, "resize")
}

func TestGrayMNISTSampleBecomesRGBTensor(t *testing.T) {
	img := gradientImage(t, 28, 28, core.ModeGray)

	tensor, err := inspectionPipeline(t).ApplyTensor(img)
	require.NoError(t, err)

	if diff := cmp.Diff([]int{3, 256, 256}, tensor.Shape()); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	// Gray replicated into three channels stays gray.
	for _, pt := range [][2]int{{0, 0}, {100, 37}, {255, 255}} {
		y, x := pt[0], pt[1]
		assert.Equal(t, tensor.At(0, y, x), tensor.At(1, y, x))
		assert.Equal(t, tensor.At(0, y, x), tensor.At(2, y, x))
	}
}

func TestAlreadySizedRGBImageIsOnlyFiltered(t *testing.T) {
	img := gradientImage(t, 256, 256, core.ModeRGB)

	tensor, err := inspectionPipeline(t).ApplyTensor(img)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 256, 256}, tensor.Shape())

	filterOnly := MustNew(Filter{Kernel: KernelSharpen}, Tensorize{})
	expected, err := filterOnly.ApplyTensor(img)
	require.NoError(t, err)

	assert.True(t, tensor.EqualApprox(expected, 1e-6), "resize of a 256x256 input must not resample")
}

func TestPipelineIsDeterministic(t *testing.T) {
	p := inspectionPipeline(t)
	for _, mode := range []core.ColorMode{core.ModeGray, core.ModeRGB, core.ModeRGBA} {
		t.Run(mode.String(), func(t *testing.T) {
			img := gradientImage(t, 31, 19, mode)

			first, err := p.ApplyTensor(img)
			require.NoError(t, err)
			second, err := p.ApplyTensor(img)
			require.NoError(t, err)

			assert.True(t, first.EqualApprox(second, 1e-6))
		})
	}
}

func TestSquareResizeShapeInvariant(t *testing.T) {
	p := MustNew(Normalize{Mode: core.ModeRGB}, Resize{Size: 64, Interpolation: InterpLanczos4}, Tensorize{})
	sizes := [][2]int{{1, 1}, {28, 28}, {300, 100}, {17, 90}, {64, 64}}

	for _, sz := range sizes {
		img := gradientImage(t, sz[0], sz[1], core.ModeGray)
		tensor, err := p.ApplyTensor(img)
		require.NoError(t, err, "input %dx%d", sz[0], sz[1])
		assert.Equal(t, []int{3, 64, 64}, tensor.Shape(), "input %dx%d", sz[0], sz[1])
	}
}

func TestTensorValuesStayInRange(t *testing.T) {
	ranges := []core.Range{core.UnitRange, {Min: -1, Max: 1}, {Min: 0, Max: 255}}
	for _, r := range ranges {
		p := MustNew(Normalize{Mode: core.ModeRGB}, Resize{Size: 40, Interpolation: InterpBicubic}, Filter{Kernel: KernelSharpen}, Tensorize{Range: r})
		tensor, err := p.ApplyTensor(gradientImage(t, 28, 28, core.ModeGray))
		require.NoError(t, err)

		for i, v := range tensor.Data() {
			if !r.Contains(v) {
				t.Fatalf("element %d = %g outside [%g, %g]", i, v, r.Min, r.Max)
			}
		}
		assert.Equal(t, r, tensor.Range())
	}
}

func TestApplyLeavesInputUntouched(t *testing.T) {
	img := gradientImage(t, 28, 28, core.ModeGray)
	before := img.Bytes()

	out, err := inspectionPipeline(t).Apply(img)
	require.NoError(t, err)
	closeValue(t, out)

	assert.Equal(t, before, img.Bytes())
	assert.Equal(t, core.ModeGray, img.Mode())
	assert.Equal(t, 28, img.Width())
}

func TestApplyWithoutStepsReturnsCopy(t *testing.T) {
	img := gradientImage(t, 5, 4, core.ModeRGB)
	p := MustNew()

	out, err := p.Apply(img)
	require.NoError(t, err)
	closeValue(t, out)

	copyImg, ok := out.(*core.Image)
	require.True(t, ok)
	assert.NotSame(t, img, copyImg)
	assert.Equal(t, img.Bytes(), copyImg.Bytes())
	assert.Equal(t, "identity", p.String())
}

func TestTensorizeBeforeNormalizeFailsOnRGBA(t *testing.T) {
	p := MustNew(Resize{Size: 8}, Tensorize{})

	_, err := p.Apply(gradientImage(t, 16, 16, core.ModeRGBA))
	require.Error(t, err)

	var shapeErr *core.ShapeError
	require.True(t, errors.As(err, &shapeErr), "got %T: %v", err, err)
	assert.Equal(t, "tensorize", shapeErr.Step)
}

func TestApplyTensorRejectsImageOutput(t *testing.T) {
	p := MustNew(Resize{Size: 8})

	_, err := p.ApplyTensor(gradientImage(t, 16, 16, core.ModeGray))
	var shapeErr *core.ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.False(t, p.ProducesTensor())
}

func TestStagesExposeEveryIntermediate(t *testing.T) {
	p := inspectionPipeline(t)
	img := gradientImage(t, 28, 28, core.ModeGray)

	stages, err := p.Stages(img)
	require.NoError(t, err)
	for _, s := range stages {
		closeValue(t, s)
	}

	require.Len(t, stages, 4)
	want := [][]int{{3, 28, 28}, {3, 256, 256}, {3, 256, 256}, {3, 256, 256}}
	for i, s := range stages {
		assert.Equal(t, want[i], s.Shape(), "stage %d", i)
	}
	_, isTensor := stages[3].(*core.Tensor)
	assert.True(t, isTensor)
}

func TestPipelineStringAndSteps(t *testing.T) {
	p := inspectionPipeline(t)
	assert.Equal(t, "normalize(rgb) -> resize(256, square, bilinear) -> filter(sharpen) -> tensorize([0, 1])", p.String())

	steps := p.Steps()
	steps[0] = Resize{Size: 1}
	assert.Equal(t, KindNormalize, KindOf(p.Steps()[0]), "Steps must return a copy")
	assert.True(t, p.ProducesTensor())
	assert.Equal(t, 4, p.Len())
}

// scriptedStep is an in-package Step whose Apply is supplied by the test.
type scriptedStep struct {
	name  string
	apply func(core.Value) (core.Value, error)
}

func (scriptedStep) step()            {}
func (s scriptedStep) Name() string   { return s.name }
func (s scriptedStep) String() string { return s.name }
func (scriptedStep) Validate() error  { return nil }

func (s scriptedStep) Apply(in core.Value) (core.Value, error) { return s.apply(in) }

func TestPanickingStepBecomesError(t *testing.T) {
	var produced []*core.Tensor
	emit := scriptedStep{name: "emit", apply: func(core.Value) (core.Value, error) {
		tensor, err := core.NewTensor(1, 1, 2, []float32{0, 1}, core.UnitRange)
		produced = append(produced, tensor)
		return tensor, err
	}}
	explode := scriptedStep{name: "explode", apply: func(core.Value) (core.Value, error) {
		panic("opencv assertion failed")
	}}

	p, err := New(emit, explode)
	require.NoError(t, err)
	img := gradientImage(t, 4, 4, core.ModeGray)

	t.Run("apply", func(t *testing.T) {
		produced = nil
		out, err := p.Apply(img)
		require.Error(t, err)
		assert.Nil(t, out)
		assert.Contains(t, err.Error(), "opencv assertion failed")
		assert.Equal(t, []int{1, 4, 4}, img.Shape())
		require.Len(t, produced, 1)
		assert.Nil(t, produced[0].Data())
	})

	t.Run("stages release partial values", func(t *testing.T) {
		produced = nil
		stages, err := p.Stages(img)
		require.Error(t, err)
		assert.Nil(t, stages)
		require.Len(t, produced, 1)
		assert.Nil(t, produced[0].Data(), "intermediate was not closed")
	})
}
