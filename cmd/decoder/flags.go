package main

import "github.com/urfave/cli/v2"

// commonFlags are shared by the decode and sample commands.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
			Value:   false,
		},
		&cli.StringFlag{
			Name:     "dem",
			Aliases:  []string{"m"},
			Usage:    "Path to the detector error model file",
			EnvVars:  []string{"DECODER_DEM"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "dets",
			Aliases:  []string{"d"},
			Usage:    "Path to the bit-packed detection event file (b8 format)",
			EnvVars:  []string{"DECODER_DETS"},
			Required: true,
		},
		&cli.IntFlag{
			Name:     "window-size",
			Aliases:  []string{"w"},
			Usage:    "Record window length in rounds",
			EnvVars:  []string{"DECODER_WINDOW_SIZE"},
			Required: true,
		},
		&cli.IntFlag{
			Name:    "overlap",
			Aliases: []string{"O"},
			Usage:   "Context padding in rounds on each side of a record window",
			EnvVars: []string{"DECODER_OVERLAP"},
			Value:   0,
		},
		&cli.IntFlag{
			Name:    "rounds",
			Aliases: []string{"r"},
			Usage:   "Total measurement rounds (0 infers from the detector count)",
			EnvVars: []string{"DECODER_ROUNDS"},
			Value:   0,
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "Concurrent shot decoders per batch (0 or 1 decodes serially)",
			EnvVars: []string{"DECODER_WORKERS"},
			Value:   0,
		},
	}
}

// decodeFlags returns all CLI flags for the decode command.
func decodeFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.IntFlag{
			Name:     "shots",
			Aliases:  []string{"s"},
			Usage:    "Number of shots in the detection event file",
			EnvVars:  []string{"DECODER_SHOTS"},
			Required: true,
		},
		&cli.IntFlag{
			Name:     "num-dets",
			Usage:    "Detectors per shot",
			EnvVars:  []string{"DECODER_NUM_DETS"},
			Required: true,
		},
		&cli.IntFlag{
			Name:    "num-obs",
			Usage:   "Logical observables per shot",
			EnvVars: []string{"DECODER_NUM_OBS"},
			Value:   1,
		},
		&cli.StringFlag{
			Name:     "out",
			Aliases:  []string{"o"},
			Usage:    "Path to write the bit-packed observable predictions to",
			EnvVars:  []string{"DECODER_OUT"},
			Required: true,
		},
	)
}

// sampleFlags returns all CLI flags for the sample command.
func sampleFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.StringFlag{
			Name:     "obs",
			Usage:    "Path to the bit-packed observed observable flips (b8 format)",
			EnvVars:  []string{"DECODER_OBS"},
			Required: true,
		},
		&cli.Uint64Flag{
			Name:    "max-shots",
			Usage:   "Stop after this many shots (0 reads the whole file)",
			EnvVars: []string{"DECODER_MAX_SHOTS"},
			Value:   0,
		},
		&cli.Uint64Flag{
			Name:    "max-errors",
			Usage:   "Stop early after this many logical errors (0 disables)",
			EnvVars: []string{"DECODER_MAX_ERRORS"},
			Value:   0,
		},
		&cli.IntFlag{
			Name:    "batch-size",
			Aliases: []string{"B"},
			Usage:   "Shots read and decoded per batch",
			EnvVars: []string{"DECODER_BATCH_SIZE"},
			Value:   1024,
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Aliases: []string{"c"},
			Usage:   "Batches decoded concurrently",
			EnvVars: []string{"DECODER_CONCURRENCY"},
			Value:   1,
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Usage:   "Port for Prometheus metrics server (0 disables the server)",
			EnvVars: []string{"METRICS_PORT"},
			Value:   0,
		},
		&cli.StringFlag{
			Name:    "experiment",
			Usage:   "Experiment name label applied to all metrics",
			EnvVars: []string{"DECODER_EXPERIMENT"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "distance",
			Usage:   "Code distance label applied to all metrics",
			EnvVars: []string{"DECODER_DISTANCE"},
			Value:   0,
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "Deployment environment label applied to all metrics",
			EnvVars: []string{"ENVIRONMENT"},
			Value:   "",
		},
	)
}
