package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/sunyans/back40computing/internal/logger"
	"github.com/sunyans/back40computing/pkg/device"
	"github.com/sunyans/back40computing/pkg/plan"
	"github.com/sunyans/back40computing/pkg/scan"
)

func planCmd() *cli.Command {
	var numElements int64

	flags := append(engineFlags(), loggingFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "n",
			Usage:       "problem size to plan for",
			Value:       1 << 20,
			Destination: &numElements,
		},
	)

	return &cli.Command{
		Name:  "plan",
		Usage: "Show the launch plan the engine would use for a problem size",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyEngineConfig(cmd, LoadConfig())
			log, err := newLog()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			dev, err := device.Open()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open device: %v", err), 1)
			}
			cfg, err := engineConfig(log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			eng, err := scan.New(dev, scan.Sum[uint32](), cfg)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: build engine: %v", err), 1)
			}

			report, err := eng.Plan(int(numElements))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: plan: %v", err), 1)
			}

			fmt.Printf("elements:       %d\n", numElements)
			fmt.Printf("tile:           %d elements\n", eng.TileElements())
			fmt.Printf("policy:         %s\n", cfg.Policy)
			fmt.Printf("grid:           %d blocks\n", report.Grid)
			fmt.Printf("occupancy:      %d blocks per unit\n", report.Occupancy)
			fmt.Printf("scratch/block:  %d bytes\n", report.ScratchBytes)
			for _, stage := range report.Stages {
				fmt.Printf("  %-18s grid %d\n", stage.Name, stage.Grid)
			}
			return nil
		},
	}
}

// engineConfig builds the scan configuration from the shared tuning flags.
func engineConfig(log logger.Logger) (scan.Config, error) {
	policy, err := plan.ParsePolicy(gridPolicy)
	if err != nil {
		return scan.Config{}, err
	}
	return scan.Config{
		ThreadsPerBlock:   int(threadsPerBlock),
		ElementsPerThread: int(elementsPerThread),
		MaxGridSize:       int(maxGridSize),
		Policy:            policy,
		Logger:            log,
	}, nil
}
