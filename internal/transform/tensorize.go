package transform

import (
	"fmt"

	"image-preprocessing/internal/core"
)

// Tensorize converts a 1- or 3-channel image into a channel-first tensor,
// scaling 8-bit intensities into Range. A zero Range means [0, 1].
type Tensorize struct {
	Range core.Range
}

// NewTensorize returns a validated Tensorize step.
func NewTensorize(r core.Range) (Tensorize, error) {
	t := Tensorize{Range: r}
	return t, t.Validate()
}

func (Tensorize) step() {}

func (Tensorize) Name() string { return string(KindTensorize) }

func (t Tensorize) String() string {
	r := t.effectiveRange()
	return fmt.Sprintf("tensorize([%g, %g])", r.Min, r.Max)
}

func (t Tensorize) effectiveRange() core.Range {
	if t.Range == (core.Range{}) {
		return core.UnitRange
	}
	return t.Range
}

func (t Tensorize) Validate() error {
	return t.effectiveRange().Validate(t.Name())
}

func (t Tensorize) Apply(in core.Value) (core.Value, error) {
	img, err := asImage(t.Name(), in)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	channels := img.Channels()
	if channels != 1 && channels != 3 {
		return nil, &core.ShapeError{
			Step:     t.Name(),
			Expected: "1 or 3 channel image (normalize the color mode first)",
			Actual:   img.String(),
		}
	}

	r := t.effectiveRange()
	scale := (r.Max - r.Min) / 255
	width, height := img.Width(), img.Height()
	plane := width * height

	pix := img.Bytes()
	if len(pix) != plane*channels {
		return nil, &core.ShapeError{
			Step:     t.Name(),
			Expected: fmt.Sprintf("%d contiguous bytes", plane*channels),
			Actual:   fmt.Sprintf("%d bytes", len(pix)),
		}
	}

	data := make([]float32, plane*channels)
	for i := 0; i < plane; i++ {
		for c := 0; c < channels; c++ {
			v := r.Min + float32(pix[i*channels+c])*scale
			if v > r.Max {
				v = r.Max
			}
			data[c*plane+i] = v
		}
	}
	return core.NewTensor(channels, height, width, data, r)
}
