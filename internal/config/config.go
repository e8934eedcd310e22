// Package config loads the inspection settings and builds the dataset,
// pipeline, augmentation and displays they describe.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"image-preprocessing/internal/core"
	"image-preprocessing/internal/dataset"
)

// Config is the root configuration.
type Config struct {
	Debug    bool          `mapstructure:"debug"`
	Index    int           `mapstructure:"index" validate:"gte=0"`
	Dataset  DatasetConfig `mapstructure:"dataset"`
	Pipeline []StepConfig  `mapstructure:"pipeline" validate:"dive"`
	Augment  AugmentConfig `mapstructure:"augment"`
	Display  DisplayConfig `mapstructure:"display"`
	Runner   RunnerConfig  `mapstructure:"runner"`
}

type DatasetConfig struct {
	Kind   string `mapstructure:"kind" validate:"oneof=mnist folder"`
	Root   string `mapstructure:"root" validate:"required"`
	Split  string `mapstructure:"split"`
	Verify bool   `mapstructure:"verify"`
}

// StepConfig describes one transform. Only the fields of its kind are read.
type StepConfig struct {
	Kind          string  `mapstructure:"kind" validate:"required,oneof=normalize resize filter tensorize"`
	Mode          string  `mapstructure:"mode"`
	Size          int     `mapstructure:"size" validate:"gte=0"`
	Policy        string  `mapstructure:"policy"`
	Interpolation string  `mapstructure:"interpolation"`
	Kernel        string  `mapstructure:"kernel"`
	Min           float32 `mapstructure:"min"`
	Max           float32 `mapstructure:"max"`
}

type AugmentConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Seed    uint64       `mapstructure:"seed"`
	PerCrop []StepConfig `mapstructure:"per_crop" validate:"dive"`
}

type DisplayConfig struct {
	Outputs []string `mapstructure:"outputs" validate:"dive,oneof=window files histogram"`
	Dir     string   `mapstructure:"dir"`
	Bins    int      `mapstructure:"bins" validate:"gte=0"`
	Stages  bool     `mapstructure:"stages"`
}

type RunnerConfig struct {
	Workers int `mapstructure:"workers" validate:"gte=0"`
}

// DefaultPipeline is the inspection chain: RGB, 256x256, sharpen, [0, 1] tensor.
func DefaultPipeline() []StepConfig {
	return []StepConfig{
		{Kind: "normalize", Mode: "rgb"},
		{Kind: "resize", Size: 256, Policy: "square", Interpolation: "bilinear"},
		{Kind: "filter", Kernel: "sharpen"},
		{Kind: "tensorize", Min: 0, Max: 1},
	}
}

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c.Dataset.Kind == "" {
		c.Dataset.Kind = "mnist"
	}
	if c.Dataset.Root == "" {
		c.Dataset.Root = "./data"
	}
	if c.Dataset.Split == "" {
		c.Dataset.Split = dataset.SplitTrain.String()
	}
	if len(c.Pipeline) == 0 {
		c.Pipeline = DefaultPipeline()
	}
	if c.Augment.Enabled && len(c.Augment.PerCrop) == 0 {
		c.Augment.PerCrop = []StepConfig{{Kind: "normalize", Mode: "rgb"}, {Kind: "tensorize"}}
	}
	if len(c.Display.Outputs) == 0 {
		c.Display.Outputs = []string{"window"}
	}
	if c.Display.Dir == "" {
		c.Display.Dir = "./out"
	}
	if c.Display.Bins == 0 {
		c.Display.Bins = 64
	}
}

// Validate checks struct tags, then builds every step so that invalid
// parameters are reported before any image is loaded.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return translate(err)
	}
	if _, err := c.Dataset.split(); err != nil {
		return err
	}
	if _, err := buildSteps("pipeline", c.Pipeline); err != nil {
		return err
	}
	if c.Augment.Enabled {
		if _, err := buildSteps("augment.per_crop", c.Augment.PerCrop); err != nil {
			return err
		}
	}
	return nil
}

func (c DatasetConfig) split() (dataset.Split, error) {
	split, err := dataset.ParseSplit(c.Split)
	if err != nil {
		return 0, &core.ConfigurationError{Step: "dataset", Field: "split", Reason: err.Error()}
	}
	return split, nil
}

// WantsWindow reports whether an interactive window is configured.
func (c DisplayConfig) WantsWindow() bool {
	for _, o := range c.Outputs {
		if o == "window" {
			return true
		}
	}
	return false
}

var (
	validate *validator.Validate
	once     sync.Once
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "" || name == "-" {
				return strings.ToLower(fld.Name)
			}
			return name
		})
	})
	return validate
}

// translate turns validator errors into a ConfigurationError keyed by the
// first offending field.
func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &core.ConfigurationError{Step: "config", Reason: err.Error()}
	}

	reason := describeTag(verrs[0])
	for _, e := range verrs[1:] {
		reason += fmt.Sprintf("; %s %s", keyOf(e.Namespace()), describeTag(e))
	}
	return &core.ConfigurationError{Step: "config", Field: keyOf(verrs[0].Namespace()), Reason: reason}
}

// keyOf strips the root struct name: "Config.dataset.kind" -> "dataset.kind".
func keyOf(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describeTag(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", e.Param(), fmt.Sprint(e.Value()))
	case "gte":
		return fmt.Sprintf("must be >= %s", e.Param())
	}
	return fmt.Sprintf("failed %s validation", e.Tag())
}
