// Package runner applies a transform pipeline to every sample of a dataset.
package runner

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"image-preprocessing/internal/core"
	"image-preprocessing/internal/dataset"
	"image-preprocessing/internal/transform"
)

// Result is a transformed sample. Label is the sample's label, unchanged.
type Result struct {
	Index int
	Value core.Value
	Label int
}

// Consumer receives each result. The value is closed once the consumer
// returns, so anything retained must be cloned.
type Consumer func(Result) error

type options struct {
	logger logrus.FieldLogger
}

type Option func(*options)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.logger = logger }
}

func newOptions(opts []Option) options {
	o := options{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Run processes ds one sample at a time: each sample is transformed and
// handed to consume before the next one is requested. The first error stops
// the run.
func Run(ctx context.Context, ds dataset.Dataset, p *transform.Pipeline, consume Consumer, opts ...Option) error {
	o := newOptions(opts)
	started := time.Now()

	it := ds.Iterate()
	defer it.Close()

	processed := 0
	for {
		s, ok, err := it.Next(ctx)
		if err != nil {
			return fmt.Errorf("sample %d: %w", processed, err)
		}
		if !ok {
			break
		}
		if err := process(p, s, consume); err != nil {
			return err
		}
		processed++
	}

	o.logger.WithFields(logrus.Fields{
		"samples":  processed,
		"pipeline": p.String(),
		"duration": time.Since(started),
	}).Info("Run complete")
	return nil
}

func process(p *transform.Pipeline, s dataset.Sample, consume Consumer) error {
	defer s.Close()

	v, err := p.Apply(s.Image)
	if err != nil {
		return fmt.Errorf("sample %d: %w", s.Index, err)
	}
	defer v.Close()

	if err := consume(Result{Index: s.Index, Value: v, Label: s.Label}); err != nil {
		return fmt.Errorf("consume sample %d: %w", s.Index, err)
	}
	return nil
}

// RunParallel transforms ds with up to workers goroutines and delivers
// results to consume in index order. Samples are processed in windows of
// 2*workers; consume is never called concurrently. workers <= 0 means one
// per CPU.
func RunParallel(ctx context.Context, ds dataset.RandomAccess, p *transform.Pipeline, workers int, consume Consumer, opts ...Option) error {
	o := newOptions(opts)
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	started := time.Now()
	n := ds.Len()
	window := 2 * workers
	results := make([]Result, window)

	for base := 0; base < n; base += window {
		if err := ctx.Err(); err != nil {
			return err
		}
		size := min(window, n-base)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for k := range size {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				s, err := ds.At(base + k)
				if err != nil {
					return fmt.Errorf("sample %d: %w", base+k, err)
				}
				defer s.Close()

				v, err := p.Apply(s.Image)
				if err != nil {
					return fmt.Errorf("sample %d: %w", s.Index, err)
				}
				results[k] = Result{Index: s.Index, Value: v, Label: s.Label}
				return nil
			})
		}

		err := g.Wait()
		if err == nil {
			for k := range size {
				if err = consume(results[k]); err != nil {
					err = fmt.Errorf("consume sample %d: %w", results[k].Index, err)
					break
				}
			}
		}
		release(results[:size])
		if err != nil {
			return err
		}
	}

	o.logger.WithFields(logrus.Fields{
		"samples":  n,
		"workers":  workers,
		"pipeline": p.String(),
		"duration": time.Since(started),
	}).Info("Parallel run complete")
	return nil
}

func release(results []Result) {
	for i := range results {
		if results[i].Value != nil {
			results[i].Value.Close()
		}
		results[i] = Result{}
	}
}
