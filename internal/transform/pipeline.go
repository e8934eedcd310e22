package transform

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"image-preprocessing/internal/core"
)

// Pipeline is an ordered, immutable sequence of steps applied as a
// left-to-right fold. It is safe for concurrent use.
type Pipeline struct {
	steps  []Step
	tracer *tracer
}

// New validates steps and returns a pipeline. Invalid step parameters yield a
// ConfigurationError; a step placed after Tensorize yields a ShapeError.
func New(steps ...Step) (*Pipeline, error) {
	for i, step := range steps {
		if step == nil {
			return nil, &core.ConfigurationError{Step: "pipeline", Field: fmt.Sprintf("steps[%d]", i), Reason: "is nil"}
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		if KindOf(step) == KindTensorize && i < len(steps)-1 {
			next := steps[i+1]
			return nil, &core.ShapeError{
				Step:     fmt.Sprintf("steps[%d] %s", i+1, next.Name()),
				Expected: "image input",
				Actual:   "tensor produced by " + step.String(),
			}
		}
	}

	owned := make([]Step, len(steps))
	copy(owned, steps)
	return &Pipeline{steps: owned, tracer: newTracer(nil)}, nil
}

// MustNew is New for statically known pipelines; it panics on error.
func MustNew(steps ...Step) *Pipeline {
	p, err := New(steps...)
	if err != nil {
		panic(err)
	}
	return p
}

// WithLogger returns a copy of the pipeline that traces each step at debug level.
func (p *Pipeline) WithLogger(logger logrus.FieldLogger) *Pipeline {
	return &Pipeline{steps: p.steps, tracer: newTracer(logger)}
}

func (p *Pipeline) Len() int { return len(p.steps) }

// Steps returns a copy of the configured steps.
func (p *Pipeline) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// ProducesTensor reports whether the last step is Tensorize.
func (p *Pipeline) ProducesTensor() bool {
	return len(p.steps) > 0 && KindOf(p.steps[len(p.steps)-1]) == KindTensorize
}

func (p *Pipeline) String() string {
	if len(p.steps) == 0 {
		return "identity"
	}
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.String()
	}
	return strings.Join(names, " -> ")
}

// Apply folds the steps over img. The input is neither mutated nor closed;
// the result is owned by the caller.
func (p *Pipeline) Apply(img *core.Image) (core.Value, error) {
	var out core.Value
	err := p.fold(img, func(_ int, v core.Value) bool {
		out = v
		return false
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return img.Clone(), nil
	}
	return out, nil
}

// ApplyTensor is Apply for pipelines that end in Tensorize.
func (p *Pipeline) ApplyTensor(img *core.Image) (*core.Tensor, error) {
	out, err := p.Apply(img)
	if err != nil {
		return nil, err
	}
	tensor, ok := out.(*core.Tensor)
	if !ok {
		shape := out.Shape()
		out.Close()
		return nil, &core.ShapeError{Step: "pipeline", Expected: "tensor output", Actual: fmt.Sprintf("image %v", shape)}
	}
	return tensor, nil
}

// Stages returns the output of every step in order. The caller owns and
// closes every returned value.
func (p *Pipeline) Stages(img *core.Image) ([]core.Value, error) {
	stages := make([]core.Value, 0, len(p.steps))
	err := p.fold(img, func(_ int, v core.Value) bool {
		stages = append(stages, v)
		return true
	})
	if err != nil {
		for _, v := range stages {
			v.Close()
		}
		return nil, err
	}
	return stages, nil
}

// fold runs the steps. keep is called with every intermediate and the final
// value; when it returns false for an intermediate, fold releases it once the
// next step has consumed it.
func (p *Pipeline) fold(img *core.Image, keep func(int, core.Value) bool) (err error) {
	if img == nil {
		return fmt.Errorf("input image is nil")
	}

	var current core.Value = img
	kept := true

	defer func() {
		if r := recover(); r != nil {
			if current != core.Value(img) && !kept {
				current.Close()
			}
			err = fmt.Errorf("panic in pipeline: %v", r)
		}
	}()

	p.tracer.start(img, len(p.steps))
	for i, step := range p.steps {
		timer := p.tracer.startStep()
		next, stepErr := step.Apply(current)
		if stepErr != nil {
			if current != core.Value(img) && !kept {
				current.Close()
			}
			return fmt.Errorf("step %d (%s): %w", i, step.Name(), stepErr)
		}
		p.tracer.stepApplied(i, step, current, next, timer)

		if current != core.Value(img) && !kept {
			current.Close()
		}
		current = next
		kept = keep(i, next)
	}
	return nil
}
