package core

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageFromBytesValidatesLength(t *testing.T) {
	_, err := NewImageFromBytes(2, 2, ModeRGB, make([]byte, 5))
	var shapeErr *ShapeError
	require.True(t, errors.As(err, &shapeErr))

	_, err = NewImageFromBytes(0, 2, ModeGray, nil)
	assert.Error(t, err)
}

func TestImageCopiesPixels(t *testing.T) {
	pix := []byte{1, 2, 3, 4}
	img, err := NewImageFromBytes(2, 2, ModeGray, pix)
	require.NoError(t, err)
	defer img.Close()

	pix[0] = 99
	assert.Equal(t, []byte{1, 2, 3, 4}, img.Bytes())
	assert.Equal(t, []int{1, 2, 2}, img.Shape())
	assert.Equal(t, "2x2 gray", img.String())

	clone := img.Clone()
	defer clone.Close()
	assert.Equal(t, img.Bytes(), clone.Bytes())
}

func TestImageRaster(t *testing.T) {
	img, err := NewImageFromBytes(2, 1, ModeRGB, []byte{255, 0, 0, 0, 0, 255})
	require.NoError(t, err)
	defer img.Close()

	raster, ok := img.Raster().(*image.RGBA)
	require.True(t, ok)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 255}, raster.Pix)
}

func TestParseColorMode(t *testing.T) {
	for in, want := range map[string]ColorMode{"RGB": ModeRGB, "L": ModeGray, "gray": ModeGray, "rgba": ModeRGBA} {
		got, err := ParseColorMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseColorMode("cmyk")
	assert.Error(t, err)

	_, err = ModeForChannels(2)
	assert.Error(t, err)
}

func TestRangeValidate(t *testing.T) {
	assert.NoError(t, UnitRange.Validate("tensorize"))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(Range{Min: 1, Max: 1}.Validate("tensorize"), &cfgErr))
	assert.Equal(t, "tensorize", cfgErr.Step)
	assert.Equal(t, "range", cfgErr.Field)
}

func TestTensorLayoutAndStats(t *testing.T) {
	data := []float32{0, 0.25, 0.5, 1, 1, 1, 0, 0}
	tensor, err := NewTensor(2, 2, 2, data, UnitRange)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 2}, tensor.Shape())
	assert.Equal(t, float32(0.5), tensor.At(0, 1, 0))
	assert.Equal(t, float32(1), tensor.At(1, 0, 1))

	stats := tensor.Stats()
	assert.Equal(t, 0.0, stats.Min)
	assert.Equal(t, 1.0, stats.Max)
	assert.InDelta(t, 0.46875, stats.Mean, 1e-9)

	ch := tensor.ChannelStats(1)
	assert.Equal(t, 0.5, ch.Mean)

	_, err = NewTensor(2, 2, 2, data[:7], UnitRange)
	var shapeErr *ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestTensorToImageRoundTrip(t *testing.T) {
	tensor, err := NewTensor(3, 1, 2, []float32{-1, 1, 0, 0, 1, -1}, Range{Min: -1, Max: 1})
	require.NoError(t, err)

	img, err := tensor.ToImage()
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, ModeRGB, img.Mode())
	// R,G,B of pixel 0 then pixel 1.
	assert.Equal(t, []byte{0, 128, 255, 255, 128, 0}, img.Bytes())

	four, err := NewTensor(4, 1, 1, []float32{1, 0, 0, 1}, UnitRange)
	require.NoError(t, err)
	rgba, err := four.ToImage()
	require.NoError(t, err)
	defer rgba.Close()
	assert.Equal(t, ModeRGBA, rgba.Mode())
	assert.Equal(t, []byte{255, 0, 0, 255}, rgba.Bytes())

	two, err := NewTensor(2, 1, 1, []float32{0, 0}, UnitRange)
	require.NoError(t, err)
	_, err = two.ToImage()
	var shapeErr *ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "invalid resize configuration: size must be positive",
		(&ConfigurationError{Step: "resize", Field: "size", Reason: "must be positive"}).Error())
	assert.Equal(t, "tensorize: expected 3 channels, got 4 channels",
		(&ShapeError{Step: "tensorize", Expected: "3 channels", Actual: "4 channels"}).Error())

	inner := errors.New("bad header")
	decErr := &DecodingError{Source: "x.png", Err: inner}
	assert.ErrorIs(t, decErr, inner)
	assert.Equal(t, "cannot decode image x.png: bad header", decErr.Error())
}
