// Package transform implements the closed set of preprocessing steps and the
// immutable pipeline that folds them over an image.
package transform

import (
	"fmt"

	"image-preprocessing/internal/core"
)

// Step is one stage of a Pipeline. The implementations are Normalize, Resize,
// Filter and Tensorize; the set is closed so pipelines can be validated when
// they are built.
//
// Apply never mutates or closes its input. The returned value is owned by the caller.
type Step interface {
	Name() string
	Validate() error
	Apply(in core.Value) (core.Value, error)
	fmt.Stringer
	step()
}

// Kind names a Step variant in configuration.
type Kind string

const (
	KindNormalize Kind = "normalize"
	KindResize    Kind = "resize"
	KindFilter    Kind = "filter"
	KindTensorize Kind = "tensorize"
)

// KindOf returns the variant of s.
func KindOf(s Step) Kind {
	switch s.(type) {
	case Normalize, *Normalize:
		return KindNormalize
	case Resize, *Resize:
		return KindResize
	case Filter, *Filter:
		return KindFilter
	case Tensorize, *Tensorize:
		return KindTensorize
	}
	return ""
}

func asImage(step string, in core.Value) (*core.Image, error) {
	switch v := in.(type) {
	case *core.Image:
		if v == nil {
			return nil, fmt.Errorf("%s: input image is nil", step)
		}
		return v, nil
	case *core.Tensor:
		return nil, &core.ShapeError{Step: step, Expected: "image", Actual: v.String()}
	case nil:
		return nil, fmt.Errorf("%s: input is nil", step)
	}
	return nil, &core.ShapeError{Step: step, Expected: "image", Actual: fmt.Sprintf("%T", in)}
}
