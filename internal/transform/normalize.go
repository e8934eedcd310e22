package transform

import (
	"fmt"

	"gocv.io/x/gocv"

	"image-preprocessing/internal/core"
)

// Normalize converts any supported color mode to a fixed target mode.
// Applying it to an image already in the target mode returns an identical copy.
type Normalize struct {
	Mode core.ColorMode
}

// NewNormalize returns a validated Normalize step.
func NewNormalize(mode core.ColorMode) (Normalize, error) {
	n := Normalize{Mode: mode}
	return n, n.Validate()
}

func (Normalize) step() {}

func (Normalize) Name() string { return string(KindNormalize) }

func (n Normalize) String() string { return fmt.Sprintf("normalize(%s)", n.Mode) }

func (n Normalize) Validate() error {
	if n.Mode != core.ModeRGB && n.Mode != core.ModeGray {
		return core.Configf(n.Name(), "mode", "must be rgb or gray, got %s", n.Mode)
	}
	return nil
}

func (n Normalize) Apply(in core.Value) (core.Value, error) {
	img, err := asImage(n.Name(), in)
	if err != nil {
		return nil, err
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	if img.Mode() == n.Mode {
		return img.Clone(), nil
	}

	code, ok := conversionCode(img.Mode(), n.Mode)
	if !ok {
		return nil, &core.ShapeError{Step: n.Name(), Expected: "gray, rgb or rgba image", Actual: img.String()}
	}

	dst := gocv.NewMat()
	if err := gocv.CvtColor(img.Mat(), &dst, code); err != nil {
		dst.Close()
		return nil, fmt.Errorf("%s: color conversion %s -> %s: %w", n.Name(), img.Mode(), n.Mode, err)
	}
	return core.NewImage(dst, n.Mode)
}

// Mats hold R,G,B(,A); the BGR-named codes only add, drop or replicate
// channels, so they preserve that order.
func conversionCode(from, to core.ColorMode) (gocv.ColorConversionCode, bool) {
	switch {
	case from == core.ModeGray && to == core.ModeRGB:
		return gocv.ColorGrayToBGR, true
	case from == core.ModeRGBA && to == core.ModeRGB:
		return gocv.ColorBGRAToBGR, true
	case from == core.ModeRGB && to == core.ModeGray:
		return gocv.ColorRGBToGray, true
	case from == core.ModeRGBA && to == core.ModeGray:
		return gocv.ColorRGBAToGray, true
	}
	return 0, false
}
