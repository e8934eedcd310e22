// Image quality metrics used to quantify what a transform changed
package metrics

import (
	"fmt"
	"math"
	"sort"

	"image-preprocessing/internal/core"
)

// Metric compares an image before and after a transform.
type Metric interface {
	// Calculate computes the metric value
	Calculate(before, after *core.Image) (float64, error)

	GetName() string
	GetDescription() string

	// GetRange returns the practical value range (min, max)
	GetRange() (float64, float64)

	// IsHigherBetter returns true if higher values indicate closer agreement
	IsHigherBetter() bool
}

// Evaluator manages and calculates multiple metrics
type Evaluator struct {
	metrics map[string]Metric
}

// NewEvaluator creates an evaluator with mse, psnr, ssim and sharpness registered.
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		metrics: make(map[string]Metric),
	}
	e.RegisterDefaultMetrics()
	return e
}

func (e *Evaluator) RegisterDefaultMetrics() {
	e.Register("mse", NewMSE())
	e.Register("psnr", NewPSNR())
	e.Register("ssim", NewSSIM())
	e.Register("sharpness", NewSharpness())
}

func (e *Evaluator) Register(name string, metric Metric) {
	e.metrics[name] = metric
}

// Names returns the registered metric names in sorted order.
func (e *Evaluator) Names() []string {
	names := make([]string, 0, len(e.metrics))
	for name := range e.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Calculate calculates a specific metric
func (e *Evaluator) Calculate(name string, before, after *core.Image) (float64, error) {
	metric, exists := e.metrics[name]
	if !exists {
		return 0, fmt.Errorf("metric not found: %s", name)
	}
	return metric.Calculate(before, after)
}

// Evaluate calculates every registered metric, skipping those that fail
// (for example size-sensitive metrics across a resize).
func (e *Evaluator) Evaluate(before, after *core.Image) map[string]float64 {
	results := make(map[string]float64)
	for name, metric := range e.metrics {
		if value, err := metric.Calculate(before, after); err == nil {
			results[name] = value
		}
	}
	return results
}

// Report summarizes the metrics of one before/after pair.
type Report struct {
	OverallScore float64            `json:"overall_score"`
	Metrics      map[string]float64 `json:"metrics"`
	Level        string             `json:"level"`
}

func (e *Evaluator) GenerateReport(before, after *core.Image) Report {
	metrics := e.Evaluate(before, after)
	score := e.calculateOverallScore(metrics)

	var level string
	switch {
	case score >= 90:
		level = "excellent"
	case score >= 75:
		level = "good"
	case score >= 60:
		level = "fair"
	default:
		level = "poor"
	}

	return Report{OverallScore: score, Metrics: metrics, Level: level}
}

// calculateOverallScore is a weighted average of normalized metrics, in percent.
func (e *Evaluator) calculateOverallScore(metrics map[string]float64) float64 {
	weights := map[string]float64{
		"psnr":      0.4,
		"ssim":      0.4,
		"sharpness": 0.2,
	}

	totalWeight := 0.0
	weightedSum := 0.0
	for name, weight := range weights {
		if value, exists := metrics[name]; exists {
			weightedSum += e.normalizeMetric(name, value) * weight
			totalWeight += weight
		}
	}

	if totalWeight == 0 {
		return 0
	}
	return (weightedSum / totalWeight) * 100
}

// normalizeMetric maps a value into [0, 1], inverting lower-is-better metrics.
func (e *Evaluator) normalizeMetric(name string, value float64) float64 {
	metric, exists := e.metrics[name]
	if !exists {
		return 0
	}

	lo, hi := metric.GetRange()
	value = math.Max(lo, math.Min(hi, value))
	if hi == lo {
		return 1.0
	}

	normalized := (value - lo) / (hi - lo)
	if !metric.IsHigherBetter() {
		normalized = 1.0 - normalized
	}
	return normalized
}
