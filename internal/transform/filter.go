package transform

import (
	"fmt"
	"image"
	"strings"

	"gocv.io/x/gocv"

	"image-preprocessing/internal/core"
)

// Kernel selects one of the fixed 3x3 convolution kernels.
type Kernel int

const (
	KernelSharpen Kernel = iota
	KernelSmooth
	KernelDetail
	KernelEdgeEnhance
)

type kernelSpec struct {
	name    string
	weights [9]float32
	divisor float32
}

// Weights match the classic PIL ImageFilter kernels. Unlike PIL, which copies
// the 1-pixel border through unchanged, the border is filtered against
// replicated edge pixels.
var kernels = map[Kernel]kernelSpec{
	KernelSharpen:     {"sharpen", [9]float32{-2, -2, -2, -2, 32, -2, -2, -2, -2}, 16},
	KernelSmooth:      {"smooth", [9]float32{1, 1, 1, 1, 5, 1, 1, 1, 1}, 13},
	KernelDetail:      {"detail", [9]float32{0, -1, 0, -1, 10, -1, 0, -1, 0}, 6},
	KernelEdgeEnhance: {"edge_enhance", [9]float32{-1, -1, -1, -1, 10, -1, -1, -1, -1}, 2},
}

func (k Kernel) String() string {
	if spec, ok := kernels[k]; ok {
		return spec.name
	}
	return fmt.Sprintf("kernel(%d)", int(k))
}

func ParseKernel(s string) (Kernel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KernelSharpen, nil
	}
	for k, spec := range kernels {
		if spec.name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown filter kernel %q", s)
}

// Filter convolves an image with a fixed kernel. Edges are replicated and
// results saturate to the 8-bit range.
type Filter struct {
	Kernel Kernel
}

// NewFilter returns a validated Filter step.
func NewFilter(kernel Kernel) (Filter, error) {
	f := Filter{Kernel: kernel}
	return f, f.Validate()
}

func (Filter) step() {}

func (Filter) Name() string { return string(KindFilter) }

func (f Filter) String() string { return fmt.Sprintf("filter(%s)", f.Kernel) }

func (f Filter) Validate() error {
	if _, ok := kernels[f.Kernel]; !ok {
		return core.Configf(f.Name(), "kernel", "unknown value %d", int(f.Kernel))
	}
	return nil
}

func (f Filter) Apply(in core.Value) (core.Value, error) {
	img, err := asImage(f.Name(), in)
	if err != nil {
		return nil, err
	}
	spec, ok := kernels[f.Kernel]
	if !ok {
		return nil, f.Validate()
	}

	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	for i, w := range spec.weights {
		kernel.SetFloatAt(i/3, i%3, w/spec.divisor)
	}

	dst := gocv.NewMat()
	// ddepth -1 keeps the source depth, which saturates 8-bit output.
	if err := gocv.Filter2D(img.Mat(), &dst, gocv.MatType(-1), kernel, image.Pt(-1, -1), 0, gocv.BorderReplicate); err != nil {
		dst.Close()
		return nil, fmt.Errorf("%s(%s): %w", f.Name(), spec.name, err)
	}
	return core.NewImage(dst, img.Mode())
}
