package transform

import (
	"fmt"
	"image"
	"strings"

	"gocv.io/x/gocv"

	"image-preprocessing/internal/core"
)

// ResizePolicy selects which dimension the target size applies to.
type ResizePolicy int

const (
	// ResizeSquare scales both sides to the target size.
	ResizeSquare ResizePolicy = iota
	// ResizeShorterSide scales the shorter side to the target size and keeps
	// the aspect ratio, truncating the longer side.
	ResizeShorterSide
)

func (p ResizePolicy) String() string {
	switch p {
	case ResizeSquare:
		return "square"
	case ResizeShorterSide:
		return "shorter"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

func ParseResizePolicy(s string) (ResizePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "square":
		return ResizeSquare, nil
	case "shorter", "shorter_side", "short":
		return ResizeShorterSide, nil
	}
	return 0, fmt.Errorf("unknown resize policy %q", s)
}

// Interpolation is the resampling filter used by Resize.
type Interpolation int

const (
	InterpBilinear Interpolation = iota
	InterpNearest
	InterpBicubic
	InterpArea
	InterpLanczos4
)

var interpolationNames = map[Interpolation]string{
	InterpBilinear: "bilinear",
	InterpNearest:  "nearest",
	InterpBicubic:  "bicubic",
	InterpArea:     "area",
	InterpLanczos4: "lanczos4",
}

func (i Interpolation) String() string {
	if name, ok := interpolationNames[i]; ok {
		return name
	}
	return fmt.Sprintf("interpolation(%d)", int(i))
}

func ParseInterpolation(s string) (Interpolation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "linear" {
		return InterpBilinear, nil
	}
	if s == "cubic" {
		return InterpBicubic, nil
	}
	for interp, name := range interpolationNames {
		if name == s {
			return interp, nil
		}
	}
	return 0, fmt.Errorf("unknown interpolation %q", s)
}

func (i Interpolation) flag() gocv.InterpolationFlags {
	switch i {
	case InterpNearest:
		return gocv.InterpolationNearestNeighbor
	case InterpBicubic:
		return gocv.InterpolationCubic
	case InterpArea:
		return gocv.InterpolationArea
	case InterpLanczos4:
		return gocv.InterpolationLanczos4
	}
	return gocv.InterpolationLinear
}

// Resize scales an image so its defining dimension equals Size.
type Resize struct {
	Size          int
	Policy        ResizePolicy
	Interpolation Interpolation
}

// NewResize returns a validated Resize step.
func NewResize(size int, policy ResizePolicy, interp Interpolation) (Resize, error) {
	r := Resize{Size: size, Policy: policy, Interpolation: interp}
	return r, r.Validate()
}

func (Resize) step() {}

func (Resize) Name() string { return string(KindResize) }

func (r Resize) String() string {
	return fmt.Sprintf("resize(%d, %s, %s)", r.Size, r.Policy, r.Interpolation)
}

func (r Resize) Validate() error {
	if r.Size <= 0 {
		return core.Configf(r.Name(), "size", "must be positive, got %d", r.Size)
	}
	if r.Size > core.MaxDimension {
		return core.Configf(r.Name(), "size", "must not exceed %d, got %d", core.MaxDimension, r.Size)
	}
	if r.Policy != ResizeSquare && r.Policy != ResizeShorterSide {
		return core.Configf(r.Name(), "policy", "unknown value %d", int(r.Policy))
	}
	if _, ok := interpolationNames[r.Interpolation]; !ok {
		return core.Configf(r.Name(), "interpolation", "unknown value %d", int(r.Interpolation))
	}
	return nil
}

// TargetSize returns the output width and height for an input of w x h.
func (r Resize) TargetSize(w, h int) (int, int) {
	if r.Policy == ResizeSquare {
		return r.Size, r.Size
	}
	if w <= h {
		return r.Size, max(1, int(float64(r.Size)*float64(h)/float64(w)))
	}
	return max(1, int(float64(r.Size)*float64(w)/float64(h))), r.Size
}

func (r Resize) Apply(in core.Value) (core.Value, error) {
	img, err := asImage(r.Name(), in)
	if err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	newWidth, newHeight := r.TargetSize(img.Width(), img.Height())
	if newWidth == img.Width() && newHeight == img.Height() {
		return img.Clone(), nil
	}
	if newWidth > core.MaxDimension || newHeight > core.MaxDimension {
		return nil, &core.ShapeError{
			Step:     r.Name(),
			Expected: fmt.Sprintf("output within %d pixels", core.MaxDimension),
			Actual:   fmt.Sprintf("%dx%d", newWidth, newHeight),
		}
	}

	dst := gocv.NewMat()
	if err := gocv.Resize(img.Mat(), &dst, image.Point{X: newWidth, Y: newHeight}, 0, 0, r.Interpolation.flag()); err != nil {
		dst.Close()
		return nil, fmt.Errorf("%s: %w", r.Name(), err)
	}
	return core.NewImage(dst, img.Mode())
}
