package config

import (
	"fmt"

	"fyne.io/fyne/v2"
	"github.com/sirupsen/logrus"

	"image-preprocessing/internal/augment"
	"image-preprocessing/internal/core"
	"image-preprocessing/internal/dataset"
	"image-preprocessing/internal/display"
	imgio "image-preprocessing/internal/io"
	"image-preprocessing/internal/transform"
)

// Step converts the configuration into a validated transform step.
func (s StepConfig) Step() (transform.Step, error) {
	invalid := func(field string, err error) error {
		return &core.ConfigurationError{Step: s.Kind, Field: field, Reason: err.Error()}
	}

	var (
		step transform.Step
		err  error
	)
	switch s.Kind {
	case "normalize":
		mode, perr := core.ParseColorMode(s.Mode)
		if perr != nil {
			return nil, invalid("mode", perr)
		}
		step, err = transform.NewNormalize(mode)
	case "resize":
		policy, perr := transform.ParseResizePolicy(s.Policy)
		if perr != nil {
			return nil, invalid("policy", perr)
		}
		interp, perr := transform.ParseInterpolation(s.Interpolation)
		if perr != nil {
			return nil, invalid("interpolation", perr)
		}
		step, err = transform.NewResize(s.Size, policy, interp)
	case "filter":
		kernel, perr := transform.ParseKernel(s.Kernel)
		if perr != nil {
			return nil, invalid("kernel", perr)
		}
		step, err = transform.NewFilter(kernel)
	case "tensorize":
		step, err = transform.NewTensorize(core.Range{Min: s.Min, Max: s.Max})
	default:
		return nil, &core.ConfigurationError{Step: "pipeline", Field: "kind", Reason: fmt.Sprintf("unknown step kind %q", s.Kind)}
	}

	if err != nil {
		return nil, err
	}
	return step, nil
}

func buildSteps(key string, configs []StepConfig) ([]transform.Step, error) {
	steps := make([]transform.Step, 0, len(configs))
	for i, sc := range configs {
		step, err := sc.Step()
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// BuildPipeline assembles the configured steps, tracing through logger.
func (c *Config) BuildPipeline(logger logrus.FieldLogger) (*transform.Pipeline, error) {
	steps, err := buildSteps("pipeline", c.Pipeline)
	if err != nil {
		return nil, err
	}
	p, err := transform.New(steps...)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return p.WithLogger(logger), nil
}

// BuildMultiCrop returns nil when augmentation is disabled.
func (c *Config) BuildMultiCrop(logger logrus.FieldLogger) (*augment.MultiCrop, error) {
	if !c.Augment.Enabled {
		return nil, nil
	}
	steps, err := buildSteps("augment.per_crop", c.Augment.PerCrop)
	if err != nil {
		return nil, err
	}
	perCrop, err := transform.New(steps...)
	if err != nil {
		return nil, fmt.Errorf("augment.per_crop: %w", err)
	}
	return augment.NewMultiCrop(augment.DefaultMNISTSpecs(), perCrop.WithLogger(logger), c.Augment.Seed)
}

// OpenDataset opens the configured dataset.
func (c *Config) OpenDataset(logger logrus.FieldLogger) (dataset.RandomAccess, error) {
	switch c.Dataset.Kind {
	case "mnist":
		split, err := c.Dataset.split()
		if err != nil {
			return nil, err
		}
		opts := []dataset.MNISTOption{dataset.WithLogger(logger)}
		if c.Dataset.Verify {
			opts = append(opts, dataset.WithChecksums())
		}
		ds, err := dataset.OpenMNIST(c.Dataset.Root, split, opts...)
		if err != nil {
			return nil, err
		}
		return ds, nil
	case "folder":
		ds, err := dataset.OpenFolder(c.Dataset.Root, imgio.NewImageLoader(logger))
		if err != nil {
			return nil, err
		}
		return ds, nil
	}
	return nil, &core.ConfigurationError{Step: "dataset", Field: "kind", Reason: fmt.Sprintf("unknown dataset kind %q", c.Dataset.Kind)}
}

// BuildDisplay combines the configured outputs. app is only required when a
// window output is configured; the returned window is nil otherwise.
func (c *Config) BuildDisplay(app fyne.App, logger logrus.FieldLogger) (display.Display, *display.Window, error) {
	var (
		outputs []display.Display
		window  *display.Window
	)

	for _, out := range c.Display.Outputs {
		switch out {
		case "window":
			if app == nil {
				return nil, nil, &core.ConfigurationError{Step: "display", Field: "outputs", Reason: "window output needs an application"}
			}
			if window == nil {
				window = display.NewWindow(app, "Preprocessing inspection")
				outputs = append(outputs, window)
			}
		case "files":
			files, err := display.NewFiles(c.Display.Dir, imgio.NewImageLoader(logger))
			if err != nil {
				return nil, nil, err
			}
			outputs = append(outputs, files)
		case "histogram":
			hist, err := display.NewHistogram(c.Display.Dir, c.Display.Bins)
			if err != nil {
				return nil, nil, err
			}
			outputs = append(outputs, hist)
		default:
			return nil, nil, &core.ConfigurationError{Step: "display", Field: "outputs", Reason: fmt.Sprintf("unknown output %q", out)}
		}
	}

	return display.Tee(outputs...), window, nil
}
