// Package augment produces several randomly cropped views of one image,
// as used for self-distillation training where a teacher network sees large
// global views and a student additionally sees small local ones.
package augment

import (
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"sync"

	"gocv.io/x/gocv"

	"image-preprocessing/internal/core"
	"image-preprocessing/internal/transform"
)

const cropAttempts = 10

var (
	minRatio = 3.0 / 4.0
	maxRatio = 4.0 / 3.0
)

// CropSpec describes one view. MinScale and MaxScale bound the fraction of
// the source area that is cropped before resizing to OutSize x OutSize.
type CropSpec struct {
	Name     string
	OutSize  int
	MinScale float64
	MaxScale float64
	Teacher  bool
	Student  bool
}

func (s CropSpec) validate(i int) error {
	step := fmt.Sprintf("crop %d (%s)", i, s.Name)
	switch {
	case s.Name == "":
		return core.Configf(fmt.Sprintf("crop %d", i), "name", "must not be empty")
	case s.OutSize <= 0 || s.OutSize > core.MaxDimension:
		return core.Configf(step, "out_size", "must be in [1, %d], got %d", core.MaxDimension, s.OutSize)
	case !(s.MinScale > 0) || s.MaxScale > 1 || s.MinScale > s.MaxScale:
		return core.Configf(step, "scale", "requires 0 < min <= max <= 1, got [%g, %g]", s.MinScale, s.MaxScale)
	case !s.Teacher && !s.Student:
		return core.Configf(step, "views", "crop is used by neither teacher nor student")
	}
	return nil
}

// DefaultMNISTSpecs returns two 128px global views and four 96px local views.
func DefaultMNISTSpecs() []CropSpec {
	specs := []CropSpec{
		{Name: "global1", OutSize: 128, MinScale: 0.6, MaxScale: 1, Teacher: true, Student: true},
		{Name: "global2", OutSize: 128, MinScale: 0.6, MaxScale: 1, Teacher: true, Student: true},
	}
	for i := 1; i <= 4; i++ {
		specs = append(specs, CropSpec{
			Name: fmt.Sprintf("local%d", i), OutSize: 96, MinScale: 0.05, MaxScale: 0.4, Student: true,
		})
	}
	return specs
}

// MultiCrop applies every CropSpec to an image and runs each crop through a
// shared per-crop pipeline. It is safe for concurrent use; results are
// reproducible for a given seed and call order.
type MultiCrop struct {
	specs   []CropSpec
	perCrop *transform.Pipeline

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMultiCrop validates specs. A nil perCrop pipeline leaves crops as images.
func NewMultiCrop(specs []CropSpec, perCrop *transform.Pipeline, seed uint64) (*MultiCrop, error) {
	if len(specs) == 0 {
		return nil, &core.ConfigurationError{Step: "multicrop", Field: "specs", Reason: "at least one crop is required"}
	}
	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		if err := s.validate(i); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, core.Configf("multicrop", "specs", "duplicate crop name %q", s.Name)
		}
		seen[s.Name] = true
	}
	if perCrop == nil {
		perCrop = transform.MustNew()
	}

	owned := make([]CropSpec, len(specs))
	copy(owned, specs)
	return &MultiCrop{
		specs:   owned,
		perCrop: perCrop,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

func (m *MultiCrop) Specs() []CropSpec {
	out := make([]CropSpec, len(m.specs))
	copy(out, m.specs)
	return out
}

// TeacherViews returns the indices of crops the teacher consumes.
func (m *MultiCrop) TeacherViews() []int {
	return m.views(func(s CropSpec) bool { return s.Teacher })
}

// StudentViews returns the indices of crops the student consumes.
func (m *MultiCrop) StudentViews() []int {
	return m.views(func(s CropSpec) bool { return s.Student })
}

func (m *MultiCrop) views(keep func(CropSpec) bool) []int {
	var idx []int
	for i, s := range m.specs {
		if keep(s) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Apply returns one value per spec, in spec order. img is not modified.
func (m *MultiCrop) Apply(img *core.Image) ([]core.Value, error) {
	if img == nil {
		return nil, &core.ShapeError{Step: "multicrop", Expected: "image", Actual: "nil"}
	}

	rects := m.sampleRects(img.Width(), img.Height())

	out := make([]core.Value, 0, len(m.specs))
	for i, rect := range rects {
		v, err := m.crop(img, rect, m.specs[i].OutSize)
		if err != nil {
			closeAll(out)
			return nil, fmt.Errorf("crop %s: %w", m.specs[i].Name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// sampleRects draws all crop windows under one lock so that concurrent
// callers do not interleave their random streams.
func (m *MultiCrop) sampleRects(width, height int) []image.Rectangle {
	m.mu.Lock()
	defer m.mu.Unlock()

	rects := make([]image.Rectangle, len(m.specs))
	for i, s := range m.specs {
		rects[i] = cropRect(m.rng, width, height, s.MinScale, s.MaxScale)
	}
	return rects
}

func (m *MultiCrop) crop(img *core.Image, rect image.Rectangle, size int) (core.Value, error) {
	src := img.Mat()
	region := src.Region(rect)
	defer region.Close()

	dst := gocv.NewMat()
	if err := gocv.Resize(region, &dst, image.Pt(size, size), 0, 0, gocv.InterpolationLinear); err != nil {
		dst.Close()
		return nil, fmt.Errorf("crop %v: %w", rect, err)
	}

	cropped, err := core.NewImage(dst, img.Mode())
	if err != nil {
		return nil, err
	}
	defer cropped.Close()

	return m.perCrop.Apply(cropped)
}

// cropRect picks a window covering a random fraction of the area with a
// log-uniform aspect ratio, falling back to a center crop.
func cropRect(rng *rand.Rand, width, height int, minScale, maxScale float64) image.Rectangle {
	area := float64(width * height)
	logMin, logMax := math.Log(minRatio), math.Log(maxRatio)

	for range cropAttempts {
		target := area * (minScale + rng.Float64()*(maxScale-minScale))
		aspect := math.Exp(logMin + rng.Float64()*(logMax-logMin))

		w := int(math.Round(math.Sqrt(target * aspect)))
		h := int(math.Round(math.Sqrt(target / aspect)))
		if w > 0 && h > 0 && w <= width && h <= height {
			y := rng.IntN(height - h + 1)
			x := rng.IntN(width - w + 1)
			return image.Rect(x, y, x+w, y+h)
		}
	}

	w, h := width, height
	inRatio := float64(width) / float64(height)
	switch {
	case inRatio < minRatio:
		h = int(math.Round(float64(w) / minRatio))
	case inRatio > maxRatio:
		w = int(math.Round(float64(h) * maxRatio))
	}
	x, y := (width-w)/2, (height-h)/2
	return image.Rect(x, y, x+w, y+h)
}

func closeAll(values []core.Value) {
	for _, v := range values {
		v.Close()
	}
}
