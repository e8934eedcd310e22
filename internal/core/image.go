// Core image data structure shared by transforms, datasets and displays
package core

import (
	"fmt"
	"image"
	"strings"

	"gocv.io/x/gocv"
)

// MaxDimension bounds image width and height to keep allocations sane.
const MaxDimension = 16384

// ColorMode describes the channel layout of an Image.
type ColorMode int

const (
	ModeGray ColorMode = iota + 1
	ModeRGB
	ModeRGBA
)

// Channels returns the number of 8-bit channels the mode carries.
func (m ColorMode) Channels() int {
	switch m {
	case ModeGray:
		return 1
	case ModeRGB:
		return 3
	case ModeRGBA:
		return 4
	}
	return 0
}

func (m ColorMode) String() string {
	switch m {
	case ModeGray:
		return "gray"
	case ModeRGB:
		return "rgb"
	case ModeRGBA:
		return "rgba"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func (m ColorMode) matType() gocv.MatType {
	switch m {
	case ModeGray:
		return gocv.MatTypeCV8UC1
	case ModeRGB:
		return gocv.MatTypeCV8UC3
	case ModeRGBA:
		return gocv.MatTypeCV8UC4
	}
	return gocv.MatTypeCV8U
}

// ParseColorMode accepts "gray", "l", "rgb" and "rgba" in any case.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gray", "grey", "grayscale", "l":
		return ModeGray, nil
	case "rgb":
		return ModeRGB, nil
	case "rgba":
		return ModeRGBA, nil
	}
	return 0, fmt.Errorf("unknown color mode %q", s)
}

// ModeForChannels maps a channel count to its color mode.
func ModeForChannels(channels int) (ColorMode, error) {
	switch channels {
	case 1:
		return ModeGray, nil
	case 3:
		return ModeRGB, nil
	case 4:
		return ModeRGBA, nil
	}
	return 0, &ShapeError{Step: "image", Expected: "1, 3 or 4 channels", Actual: fmt.Sprintf("%d channels", channels)}
}

// Value is a representation flowing through a pipeline: an *Image or a *Tensor.
type Value interface {
	// Shape returns (channels, height, width).
	Shape() []int
	Close() error
	value()
}

// Image is a decoded 8-bit raster. Channels are stored in R,G,B(,A) order.
// An Image owns its Mat; callers release it with Close.
type Image struct {
	mat  gocv.Mat
	mode ColorMode
}

// NewImage wraps mat and takes ownership of it; mat is closed if it is rejected.
func NewImage(mat gocv.Mat, mode ColorMode) (*Image, error) {
	if err := ValidateImage(mat); err != nil {
		mat.Close()
		return nil, err
	}
	if mat.Type() != mode.matType() {
		defer mat.Close()
		return nil, &ShapeError{
			Step:     "image",
			Expected: fmt.Sprintf("8-bit %s", mode),
			Actual:   fmt.Sprintf("mat type %d with %d channels", int(mat.Type()), mat.Channels()),
		}
	}
	return &Image{mat: mat, mode: mode}, nil
}

// NewImageFromBytes copies interleaved 8-bit pixels into a new Image.
func NewImageFromBytes(width, height int, mode ColorMode, pix []byte) (*Image, error) {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", width, height)
	}
	if want := width * height * mode.Channels(); want == 0 || len(pix) != want {
		return nil, &ShapeError{
			Step:     "image",
			Expected: fmt.Sprintf("%d bytes for %dx%d %s", width*height*mode.Channels(), width, height, mode),
			Actual:   fmt.Sprintf("%d bytes", len(pix)),
		}
	}

	view, err := gocv.NewMatFromBytes(height, width, mode.matType(), pix)
	if err != nil {
		return nil, fmt.Errorf("failed to create mat: %w", err)
	}
	defer view.Close()

	// The view aliases pix; keep an independent copy.
	return NewImage(view.Clone(), mode)
}

func (img *Image) value() {}

func (img *Image) Width() int      { return img.mat.Cols() }
func (img *Image) Height() int     { return img.mat.Rows() }
func (img *Image) Channels() int   { return img.mode.Channels() }
func (img *Image) Mode() ColorMode { return img.mode }

// Mat exposes the underlying matrix. It stays owned by the Image and must not be closed.
func (img *Image) Mat() gocv.Mat { return img.mat }

func (img *Image) Shape() []int {
	return []int{img.Channels(), img.Height(), img.Width()}
}

// Bytes returns a copy of the interleaved pixel data.
func (img *Image) Bytes() []byte {
	return img.mat.ToBytes()
}

func (img *Image) Clone() *Image {
	return &Image{mat: img.mat.Clone(), mode: img.mode}
}

func (img *Image) Close() error {
	if img == nil {
		return nil
	}
	return img.mat.Close()
}

func (img *Image) String() string {
	return fmt.Sprintf("%dx%d %s", img.Width(), img.Height(), img.mode)
}

// Raster converts the image to a Go image for display or encoding.
func (img *Image) Raster() image.Image {
	w, h := img.Width(), img.Height()
	pix := img.Bytes()
	rect := image.Rect(0, 0, w, h)

	switch img.mode {
	case ModeGray:
		out := image.NewGray(rect)
		copy(out.Pix, pix)
		return out
	case ModeRGBA:
		out := image.NewNRGBA(rect)
		copy(out.Pix, pix)
		return out
	default:
		out := image.NewRGBA(rect)
		for i, j := 0, 0; i+2 < len(pix); i, j = i+3, j+4 {
			out.Pix[j] = pix[i]
			out.Pix[j+1] = pix[i+1]
			out.Pix[j+2] = pix[i+2]
			out.Pix[j+3] = 0xff
		}
		return out
	}
}

// ValidateImage validates an OpenCV Mat for basic requirements
func ValidateImage(mat gocv.Mat) error {
	if mat.Empty() {
		return fmt.Errorf("image is empty")
	}

	if mat.Cols() <= 0 || mat.Rows() <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", mat.Cols(), mat.Rows())
	}

	channels := mat.Channels()
	if channels < 1 || channels > 4 {
		return fmt.Errorf("unsupported channel count: %d", channels)
	}

	if mat.Cols() > MaxDimension || mat.Rows() > MaxDimension {
		return fmt.Errorf("image too large: %dx%d (max: %d)", mat.Cols(), mat.Rows(), MaxDimension)
	}

	return nil
}
