// Package display renders pipeline values for a human to inspect.
//
// Consumers receive a Display explicitly; nothing in this package installs
// global state.
package display

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"unicode"

	"image-preprocessing/internal/core"
)

// Display shows one value under a title.
type Display interface {
	Show(title string, v core.Value) error
}

// Func adapts a function to Display.
type Func func(title string, v core.Value) error

func (f Func) Show(title string, v core.Value) error { return f(title, v) }

// Raster converts an image or tensor to a Go image. Tensors are mapped back
// to 8-bit pixels using the range they were normalized to.
func Raster(v core.Value) (image.Image, error) {
	img, err := toImage(v)
	if err != nil {
		return nil, err
	}
	if img != v {
		defer img.Close()
	}
	return img.Raster(), nil
}

// toImage returns v itself when it is an image, or a new image the caller
// must close when v is a tensor.
func toImage(v core.Value) (*core.Image, error) {
	switch t := v.(type) {
	case *core.Image:
		if t == nil {
			return nil, errors.New("display: nil image")
		}
		return t, nil
	case *core.Tensor:
		if t == nil {
			return nil, errors.New("display: nil tensor")
		}
		return t.ToImage()
	case nil:
		return nil, errors.New("display: nil value")
	}
	return nil, fmt.Errorf("display: unsupported value %T", v)
}

type tee []Display

// Tee shows every value on each display in turn, stopping at the first error.
func Tee(displays ...Display) Display {
	return tee(displays)
}

func (t tee) Show(title string, v core.Value) error {
	for _, d := range t {
		if err := d.Show(title, v); err != nil {
			return err
		}
	}
	return nil
}

// slug turns a title into a file-name friendly string.
func slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "value"
	}
	return s
}
