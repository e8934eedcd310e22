package core

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Range is the closed interval tensor elements are scaled into.
type Range struct {
	Min float32
	Max float32
}

// UnitRange is the conventional [0, 1] normalization.
var UnitRange = Range{Min: 0, Max: 1}

// Validate reports a ConfigurationError for empty, inverted or non-finite ranges.
func (r Range) Validate(step string) error {
	if isNonFinite(r.Min) || isNonFinite(r.Max) {
		return Configf(step, "range", "must be finite, got [%g, %g]", r.Min, r.Max)
	}
	if r.Min >= r.Max {
		return Configf(step, "range", "min must be below max, got [%g, %g]", r.Min, r.Max)
	}
	return nil
}

func (r Range) Contains(v float32) bool {
	return v >= r.Min && v <= r.Max
}

func isNonFinite(v float32) bool {
	f := float64(v)
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// Tensor is a channel-first (C, H, W) float32 array.
type Tensor struct {
	channels int
	height   int
	width    int
	data     []float32
	rng      Range
}

// NewTensor wraps data, which must hold exactly c*h*w elements laid out channel-first.
func NewTensor(c, h, w int, data []float32, r Range) (*Tensor, error) {
	if c <= 0 || h <= 0 || w <= 0 {
		return nil, &ShapeError{Step: "tensor", Expected: "positive dimensions", Actual: fmt.Sprintf("(%d, %d, %d)", c, h, w)}
	}
	if len(data) != c*h*w {
		return nil, &ShapeError{
			Step:     "tensor",
			Expected: fmt.Sprintf("%d elements for (%d, %d, %d)", c*h*w, c, h, w),
			Actual:   fmt.Sprintf("%d elements", len(data)),
		}
	}
	return &Tensor{channels: c, height: h, width: w, data: data, rng: r}, nil
}

func (t *Tensor) value() {}

func (t *Tensor) Shape() []int  { return []int{t.channels, t.height, t.width} }
func (t *Tensor) Channels() int { return t.channels }
func (t *Tensor) Height() int   { return t.height }
func (t *Tensor) Width() int    { return t.width }
func (t *Tensor) Range() Range  { return t.rng }

// Data returns the backing slice. Callers must treat it as read-only.
func (t *Tensor) Data() []float32 { return t.data }

func (t *Tensor) At(c, y, x int) float32 {
	return t.data[(c*t.height+y)*t.width+x]
}

// Close drops the data so that use after close fails fast. Tensors live on
// the Go heap; nothing else is released.
func (t *Tensor) Close() error {
	if t != nil {
		t.data = nil
	}
	return nil
}

func (t *Tensor) String() string {
	return fmt.Sprintf("tensor(%d, %d, %d) in [%g, %g]", t.channels, t.height, t.width, t.rng.Min, t.rng.Max)
}

// EqualApprox reports whether both tensors share a shape and every element
// differs by at most tol.
func (t *Tensor) EqualApprox(o *Tensor, tol float64) bool {
	if t.channels != o.channels || t.height != o.height || t.width != o.width {
		return false
	}
	for i := range t.data {
		if math.Abs(float64(t.data[i]-o.data[i])) > tol {
			return false
		}
	}
	return true
}

// Stats summarizes tensor values.
type Stats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

func (t *Tensor) Stats() Stats {
	values := make([]float64, len(t.data))
	for i, v := range t.data {
		values[i] = float64(v)
	}
	mean, std := stat.MeanStdDev(values, nil)
	return Stats{
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: std,
	}
}

// ChannelStats summarizes one channel plane.
func (t *Tensor) ChannelStats(c int) Stats {
	plane := t.height * t.width
	values := make([]float64, plane)
	for i, v := range t.data[c*plane : (c+1)*plane] {
		values[i] = float64(v)
	}
	mean, std := stat.MeanStdDev(values, nil)
	return Stats{
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: std,
	}
}

// ToImage maps the tensor back onto 8-bit pixels using its range. The
// channel count picks the color mode.
func (t *Tensor) ToImage() (*Image, error) {
	mode, err := ModeForChannels(t.channels)
	if err != nil {
		return nil, err
	}

	plane := t.height * t.width
	span := float64(t.rng.Max - t.rng.Min)
	pix := make([]byte, plane*t.channels)
	for c := 0; c < t.channels; c++ {
		for i := 0; i < plane; i++ {
			v := (float64(t.data[c*plane+i]) - float64(t.rng.Min)) / span * 255
			pix[i*t.channels+c] = clampByte(math.Round(v))
		}
	}
	return NewImageFromBytes(t.width, t.height, mode, pix)
}

func clampByte(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v)
}
