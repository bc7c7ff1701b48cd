package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/qeclabs/surface-decoder/internal/sampler"
	"github.com/qeclabs/surface-decoder/pkg/decoder"
)

// Config holds all configuration for the decoder application.
type Config struct {
	// Application settings
	Verbose bool

	// Input/output paths
	DEMPath  string
	DetsPath string
	ObsPath  string
	OutPath  string

	// Window settings
	WindowSize int
	Overlap    int
	Rounds     int
	Workers    int

	// Decode command settings
	Shots          int
	NumDetectors   int
	NumObservables int

	// Sampler settings
	MaxShots    uint64
	MaxErrors   uint64
	BatchSize   int
	Concurrency int

	// Metrics settings
	MetricsHost string
	MetricsPort int
	Experiment  string
	Distance    int
	Environment string
}

// MetricsAddr returns the formatted metrics address.
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// MetricsEnabled reports whether a metrics server should be started.
func (c *Config) MetricsEnabled() bool {
	return c.MetricsPort != 0
}

// DecoderConfig builds the core decoder configuration.
func (c *Config) DecoderConfig() decoder.Config {
	return decoder.Config{
		WindowSize: c.WindowSize,
		Overlap:    c.Overlap,
		Rounds:     c.Rounds,
		Workers:    c.Workers,
	}
}

// SamplerConfig builds the sampler configuration.
func (c *Config) SamplerConfig() sampler.Config {
	return sampler.Config{
		BatchSize:   c.BatchSize,
		Concurrency: c.Concurrency,
		MaxShots:    c.MaxShots,
		MaxErrors:   c.MaxErrors,
	}
}

// buildConfig builds a Config from CLI context flags. Flags that were not
// defined for the running command read as zero values.
func buildConfig(c *cli.Context) *Config {
	return &Config{
		Verbose: c.Bool("verbose"),

		DEMPath:  c.String("dem"),
		DetsPath: c.String("dets"),
		ObsPath:  c.String("obs"),
		OutPath:  c.String("out"),

		WindowSize: c.Int("window-size"),
		Overlap:    c.Int("overlap"),
		Rounds:     c.Int("rounds"),
		Workers:    c.Int("workers"),

		Shots:          c.Int("shots"),
		NumDetectors:   c.Int("num-dets"),
		NumObservables: c.Int("num-obs"),

		MaxShots:    c.Uint64("max-shots"),
		MaxErrors:   c.Uint64("max-errors"),
		BatchSize:   c.Int("batch-size"),
		Concurrency: c.Int("concurrency"),

		MetricsHost: c.String("metrics-host"),
		MetricsPort: c.Int("metrics-port"),
		Experiment:  c.String("experiment"),
		Distance:    c.Int("distance"),
		Environment: c.String("environment"),
	}
}
