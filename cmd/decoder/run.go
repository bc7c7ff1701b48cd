package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/qeclabs/surface-decoder/internal/sampler"
	"github.com/qeclabs/surface-decoder/pkg/decoder"
	"github.com/qeclabs/surface-decoder/pkg/dem"
	"github.com/qeclabs/surface-decoder/pkg/matching"
	"github.com/qeclabs/surface-decoder/pkg/metrics"
	"github.com/qeclabs/surface-decoder/pkg/utils"
)

const metricsShutdownTimeout = 5 * time.Second

func runDecode(c *cli.Context) error {
	cfg := buildConfig(c)

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"dem", cfg.DEMPath,
		"dets", cfg.DetsPath,
		"out", cfg.OutPath,
		"shots", cfg.Shots,
		"numDets", cfg.NumDetectors,
		"numObs", cfg.NumObservables,
		"windowSize", cfg.WindowSize,
		"overlap", cfg.Overlap,
		"rounds", cfg.Rounds,
		"workers", cfg.Workers,
	)

	dec, err := decoder.New(sugar, matching.NewPathCompiler(sugar), cfg.DecoderConfig())
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	start := time.Now()
	if err := dec.DecodeViaFiles(cfg.Shots, cfg.NumDetectors, cfg.NumObservables,
		cfg.DEMPath, cfg.DetsPath, cfg.OutPath); err != nil {
		return err
	}
	sugar.Infow("decode finished", "shots", cfg.Shots, "elapsed", time.Since(start))
	return nil
}

// sampleResult is the machine-readable summary printed to stdout.
type sampleResult struct {
	Shots          uint64  `json:"shots"`
	Errors         uint64  `json:"errors"`
	ShotErrorRate  float64 `json:"shot_error_rate"`
	RoundErrorRate float64 `json:"round_error_rate"`
	Rounds         int     `json:"rounds"`
	Seconds        float64 `json:"seconds"`
}

func runSample(c *cli.Context) error {
	cfg := buildConfig(c)

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"dem", cfg.DEMPath,
		"dets", cfg.DetsPath,
		"obs", cfg.ObsPath,
		"windowSize", cfg.WindowSize,
		"overlap", cfg.Overlap,
		"rounds", cfg.Rounds,
		"workers", cfg.Workers,
		"maxShots", cfg.MaxShots,
		"maxErrors", cfg.MaxErrors,
		"batchSize", cfg.BatchSize,
		"concurrency", cfg.Concurrency,
		"metricsPort", cfg.MetricsPort,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics are optional for one-shot estimation runs; a port enables the
	// server for long-running ones.
	var (
		m             *metrics.Metrics
		metricsErrCh  <-chan error
		metricsServer *metrics.Server
	)
	if cfg.MetricsEnabled() {
		registry := prometheus.NewRegistry()
		m, err = metrics.NewWithLabels(registry, metrics.Labels{
			Experiment:  cfg.Experiment,
			Distance:    cfg.Distance,
			Environment: cfg.Environment,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		metricsServer = metrics.NewServer(cfg.MetricsAddr(), registry)
		metricsErrCh = metricsServer.Start()
		sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				sugar.Warnw("metrics server shutdown failed", "error", err)
			}
		}()
	}

	model, err := dem.FromFile(cfg.DEMPath)
	if err != nil {
		return err
	}
	sugar.Infow("parsed detector error model",
		"detectors", model.NumDetectors,
		"observables", model.NumObservables,
		"mechanisms", len(model.Mechanisms),
	)

	dcfg := cfg.DecoderConfig()
	dcfg.Metrics = m
	dec, err := decoder.New(sugar, matching.NewPathCompiler(sugar), dcfg)
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	compiled, err := dec.Compile(model)
	if err != nil {
		return err
	}

	s, err := sampler.New(sugar, compiled, compiled.Geometry().NumDetectors(),
		compiled.NumObservables(), m, cfg.SamplerConfig())
	if err != nil {
		return fmt.Errorf("failed to create sampler: %w", err)
	}

	dets, err := os.Open(cfg.DetsPath)
	if err != nil {
		return fmt.Errorf("open detection events: %w", err)
	}
	defer dets.Close()

	obs, err := os.Open(cfg.ObsPath)
	if err != nil {
		return fmt.Errorf("open observables: %w", err)
	}
	defer obs.Close()

	type taskDone struct {
		stats sampler.TaskStats
		err   error
	}
	doneCh := make(chan taskDone, 1)
	go func() {
		stats, err := s.Run(ctx, dets, obs)
		doneCh <- taskDone{stats: stats, err: err}
	}()

	for {
		select {
		case err, ok := <-metricsErrCh:
			if ok && err != nil {
				return err
			}
			// Server stopped cleanly; the task keeps running.
			metricsErrCh = nil
		case done := <-doneCh:
			if done.err != nil {
				return done.err
			}
			return printResult(done.stats, compiled.Geometry().Rounds)
		}
	}
}

func printResult(stats sampler.TaskStats, rounds int) error {
	result := sampleResult{
		Shots:          stats.Shots,
		Errors:         stats.Errors,
		ShotErrorRate:  stats.ShotErrorRate(),
		RoundErrorRate: sampler.PieceErrorRate(stats.ShotErrorRate(), rounds),
		Rounds:         rounds,
		Seconds:        stats.Elapsed.Seconds(),
	}
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(result)
}
