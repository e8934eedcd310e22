package display

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"image-preprocessing/internal/core"
)

// Histogram plots the value distribution of each shown value to
// <dir>/<slug(title)>-hist.png. Images are plotted in pixel units, tensors
// in their normalized range.
type Histogram struct {
	dir  string
	bins int
}

func NewHistogram(dir string, bins int) (*Histogram, error) {
	if bins <= 0 {
		return nil, &core.ConfigurationError{Step: "histogram", Field: "bins", Reason: fmt.Sprintf("must be positive, got %d", bins)}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Histogram{dir: dir, bins: bins}, nil
}

// Path returns the file a value shown under title is written to.
func (h *Histogram) Path(title string) string {
	return filepath.Join(h.dir, slug(title)+"-hist.png")
}

func (h *Histogram) Show(title string, v core.Value) error {
	values, unit, err := samples(v)
	if err != nil {
		return err
	}

	hist, err := plotter.NewHist(values, h.bins)
	if err != nil {
		return fmt.Errorf("histogram %s: %w", title, err)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = unit
	p.Y.Label.Text = "count"
	p.Add(hist)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, h.Path(title)); err != nil {
		return fmt.Errorf("histogram %s: %w", title, err)
	}
	return nil
}

func samples(v core.Value) (plotter.Values, string, error) {
	switch t := v.(type) {
	case *core.Tensor:
		if t == nil {
			break
		}
		data := t.Data()
		out := make(plotter.Values, len(data))
		for i, x := range data {
			out[i] = float64(x)
		}
		return out, fmt.Sprintf("value [%g, %g]", t.Range().Min, t.Range().Max), nil
	case *core.Image:
		if t == nil {
			break
		}
		pix := t.Bytes()
		out := make(plotter.Values, len(pix))
		for i, x := range pix {
			out[i] = float64(x)
		}
		return out, "intensity", nil
	}
	return nil, "", fmt.Errorf("display: unsupported value %T", v)
}
