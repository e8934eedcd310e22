// Package dataset supplies labeled images to the pipeline runner.
//
// Every Dataset is finite and restartable: each call to Iterate starts a new
// pass from the first sample. Samples own their image and must be closed by
// whoever consumes them.
package dataset

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"image-preprocessing/internal/core"
)

// Split selects the training or evaluation part of a corpus.
type Split int

const (
	SplitTrain Split = iota
	SplitEval
)

func (s Split) String() string {
	if s == SplitEval {
		return "eval"
	}
	return "train"
}

// ParseSplit accepts "train" and "eval" (or "test").
func ParseSplit(s string) (Split, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "train", "training":
		return SplitTrain, nil
	case "eval", "test", "t10k", "valid", "validation":
		return SplitEval, nil
	}
	return 0, fmt.Errorf("unknown split %q", s)
}

// Named is implemented by datasets whose labels index a list of class names.
type Named interface {
	Classes() []string
}

// ClassName returns the name of label in ds, or the label number when ds
// carries no names for it.
func ClassName(ds Dataset, label int) string {
	if named, ok := ds.(Named); ok {
		if classes := named.Classes(); label >= 0 && label < len(classes) {
			return classes[label]
		}
	}
	return strconv.Itoa(label)
}

// Sample is one labeled image.
type Sample struct {
	Index int
	Image *core.Image
	Label int
}

func (s Sample) Close() error {
	return s.Image.Close()
}

// Iterator provides pull-based sequential access to samples.
type Iterator interface {
	// Next returns the next sample. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (Sample, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// Dataset is a finite, restartable sequence of samples.
type Dataset interface {
	Len() int
	Iterate() Iterator
}

// RandomAccess is a Dataset that can also load a sample by index.
type RandomAccess interface {
	Dataset
	At(i int) (Sample, error)
}

// indexIterator walks a RandomAccess dataset from index 0.
type indexIterator struct {
	ds     RandomAccess
	next   int
	closed bool
}

func newIndexIterator(ds RandomAccess) *indexIterator {
	return &indexIterator{ds: ds}
}

func (it *indexIterator) Next(ctx context.Context) (Sample, bool, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, false, err
	}
	if it.closed || it.next >= it.ds.Len() {
		return Sample{}, false, nil
	}
	s, err := it.ds.At(it.next)
	if err != nil {
		return Sample{}, false, err
	}
	it.next++
	return s, true, nil
}

func (it *indexIterator) Close() error {
	it.closed = true
	return nil
}

func checkIndex(name string, i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%s: index %d out of range [0, %d)", name, i, n)
	}
	return nil
}
