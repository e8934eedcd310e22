package transform

import (
	"time"

	"github.com/sirupsen/logrus"

	"image-preprocessing/internal/core"
)

// tracer logs per-step timings and shapes at debug level.
type tracer struct {
	logger logrus.FieldLogger
}

func newTracer(logger logrus.FieldLogger) *tracer {
	return &tracer{logger: logger}
}

func (t *tracer) enabled() bool {
	if t == nil || t.logger == nil {
		return false
	}
	if l, ok := t.logger.(*logrus.Logger); ok {
		return l.IsLevelEnabled(logrus.DebugLevel)
	}
	if e, ok := t.logger.(*logrus.Entry); ok {
		return e.Logger.IsLevelEnabled(logrus.DebugLevel)
	}
	return true
}

func (t *tracer) start(img *core.Image, steps int) {
	if !t.enabled() {
		return
	}
	t.logger.WithFields(logrus.Fields{
		"input": img.String(),
		"steps": steps,
	}).Debug("pipeline: start")
}

func (t *tracer) startStep() time.Time {
	if !t.enabled() {
		return time.Time{}
	}
	return time.Now()
}

func (t *tracer) stepApplied(index int, step Step, before, after core.Value, started time.Time) {
	if !t.enabled() {
		return
	}
	t.logger.WithFields(logrus.Fields{
		"index":    index,
		"step":     step.String(),
		"before":   before.Shape(),
		"after":    after.Shape(),
		"duration": time.Since(started),
	}).Debug("pipeline: step applied")
}
