package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "decoder",
		Usage: "Sliding-window decoding of bit-packed syndrome data",
		Commands: []*cli.Command{
			{
				Name:   "decode",
				Usage:  "Decode detection events into observable predictions",
				Flags:  decodeFlags(),
				Action: runDecode,
			},
			{
				Name:   "sample",
				Usage:  "Estimate the logical error rate of recorded shots",
				Flags:  sampleFlags(),
				Action: runSample,
			},
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
