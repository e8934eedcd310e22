// Inspect one preprocessed dataset sample, or scan a whole split.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"fyne.io/fyne/v2/app"
	"github.com/sirupsen/logrus"

	"image-preprocessing/internal/config"
	"image-preprocessing/internal/core"
	"image-preprocessing/internal/dataset"
	"image-preprocessing/internal/display"
	"image-preprocessing/internal/metrics"
	"image-preprocessing/internal/runner"
	"image-preprocessing/internal/transform"
)

const (
	AppName    = "Image Preprocessing Inspector"
	AppID      = "com.example.image-preprocessing.inspect"
	AppVersion = "1.0.0"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML configuration file")
	envFile := flag.String("env", ".env", "Path to an optional .env file")
	index := flag.Int("index", -1, "Sample index to inspect (overrides the configuration)")
	scan := flag.Bool("scan", false, "Run the pipeline over the whole split instead of one sample")
	debugMode := flag.Bool("debug", false, "Enable debug mode with verbose logging")
	flag.Parse()

	logger := initLogger(*debugMode)

	opts := []config.LoaderOption{config.WithEnvFile(*envFile)}
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	if cfg.Debug && !*debugMode {
		logger = initLogger(true)
	}
	if *index >= 0 {
		cfg.Index = *index
	}

	logger.WithFields(logrus.Fields{
		"version": AppVersion,
		"dataset": cfg.Dataset.Kind,
		"root":    cfg.Dataset.Root,
	}).Info("Starting " + AppName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *scan {
		err = runScan(ctx, cfg, logger)
	} else {
		err = runInspect(cfg, logger)
	}
	if err != nil {
		logger.WithError(err).Error("Inspection failed")
		os.Exit(1)
	}
	logger.Info("Done")
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}

func runInspect(cfg *config.Config, logger *logrus.Logger) error {
	ds, err := cfg.OpenDataset(logger)
	if err != nil {
		return err
	}
	p, err := cfg.BuildPipeline(logger)
	if err != nil {
		return err
	}

	var window *display.Window
	var out display.Display
	if cfg.Display.WantsWindow() {
		a := app.NewWithID(AppID)
		out, window, err = cfg.BuildDisplay(a, logger)
	} else {
		out, _, err = cfg.BuildDisplay(nil, logger)
	}
	if err != nil {
		return err
	}

	sample, err := ds.At(cfg.Index)
	if err != nil {
		return err
	}
	defer sample.Close()

	log := logger.WithFields(logrus.Fields{
		"index": sample.Index,
		"label": sample.Label,
		"class": dataset.ClassName(ds, sample.Label),
	})
	log.WithField("image", sample.Image.String()).Info("Sample loaded")

	if err := out.Show(fmt.Sprintf("sample %d (label %d)", sample.Index, sample.Label), sample.Image); err != nil {
		return err
	}

	stages, err := p.Stages(sample.Image)
	if err != nil {
		return err
	}
	defer closeValues(stages)

	steps := p.Steps()
	evaluator := metrics.NewEvaluator()
	prev := sample.Image
	for i, v := range stages {
		stepLog := log.WithFields(logrus.Fields{"step": steps[i].String(), "shape": fmt.Sprint(v.Shape())})

		switch t := v.(type) {
		case *core.Image:
			if sameSize(prev, t) && transform.KindOf(steps[i]) == transform.KindFilter {
				report := evaluator.GenerateReport(prev, t)
				stepLog = stepLog.WithFields(metricFields(report))
			}
			prev = t
		case *core.Tensor:
			s := t.Stats()
			stepLog = stepLog.WithFields(logrus.Fields{"min": s.Min, "max": s.Max, "mean": s.Mean, "std": s.StdDev})
		}
		stepLog.Info("Stage")

		if cfg.Display.Stages || i == len(stages)-1 {
			if err := out.Show(fmt.Sprintf("%d %s", i+1, steps[i]), v); err != nil {
				return err
			}
		}
	}

	if err := showCrops(cfg, sample.Image, out, logger); err != nil {
		return err
	}

	if window != nil {
		logger.Info("Showing inspection window")
		window.Run()
	}
	return nil
}

func showCrops(cfg *config.Config, img *core.Image, out display.Display, logger *logrus.Logger) error {
	mc, err := cfg.BuildMultiCrop(logger)
	if err != nil || mc == nil {
		return err
	}

	views, err := mc.Apply(img)
	if err != nil {
		return err
	}
	defer closeValues(views)

	specs := mc.Specs()
	for i, v := range views {
		if err := out.Show("crop "+specs[i].Name, v); err != nil {
			return err
		}
	}
	logger.WithFields(logrus.Fields{
		"views":   len(views),
		"teacher": mc.TeacherViews(),
		"student": mc.StudentViews(),
	}).Info("Multi-crop views generated")
	return nil
}

// runScan pushes every sample through the pipeline and logs per-label
// value statistics.
func runScan(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	ds, err := cfg.OpenDataset(logger)
	if err != nil {
		return err
	}
	p, err := cfg.BuildPipeline(logger)
	if err != nil {
		return err
	}

	// Running per-channel means of the final tensors, by label.
	type acc struct {
		count int
		means []float64
	}
	perLabel := make(map[int]*acc)

	consume := func(r runner.Result) error {
		a, ok := perLabel[r.Label]
		if !ok {
			a = &acc{}
			perLabel[r.Label] = a
		}
		a.count++
		t, ok := r.Value.(*core.Tensor)
		if !ok {
			return nil
		}
		if a.means == nil {
			a.means = make([]float64, t.Channels())
		}
		for c := range a.means {
			a.means[c] += (t.ChannelStats(c).Mean - a.means[c]) / float64(a.count)
		}
		return nil
	}

	opt := runner.WithLogger(logger)
	if cfg.Runner.Workers == 1 {
		err = runner.Run(ctx, ds, p, consume, opt)
	} else {
		err = runner.RunParallel(ctx, ds, p, cfg.Runner.Workers, consume, opt)
	}
	if errors.Is(err, context.Canceled) {
		logger.Warn("Scan interrupted")
	}
	if err != nil {
		return err
	}

	labels := make([]int, 0, len(perLabel))
	for label := range perLabel {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	for _, label := range labels {
		a := perLabel[label]
		logger.WithFields(logrus.Fields{
			"label":         label,
			"class":         dataset.ClassName(ds, label),
			"samples":       a.count,
			"channel_means": a.means,
		}).Info("Label summary")
	}
	return nil
}

func sameSize(a, b *core.Image) bool {
	return a.Width() == b.Width() && a.Height() == b.Height()
}

// metricFields formats metric values so infinite PSNR stays loggable as JSON.
func metricFields(r metrics.Report) logrus.Fields {
	fields := logrus.Fields{"quality": r.Level, "score": fmt.Sprintf("%.1f", r.OverallScore)}
	for name, v := range r.Metrics {
		fields[name] = fmt.Sprintf("%.4g", v)
	}
	return fields
}

func closeValues(values []core.Value) {
	for _, v := range values {
		v.Close()
	}
}
