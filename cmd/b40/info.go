package main

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/sunyans/back40computing/pkg/device"
)

func infoCmd() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Print the detected device capabilities",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			caps, err := device.Detect()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: detect device: %v", err), 1)
			}

			fmt.Printf("device:           %s\n", caps.Name)
			fmt.Printf("compute units:    %d\n", caps.ComputeUnits)
			fmt.Printf("lock-step width:  %d\n", caps.LockStepWidth)
			fmt.Printf("scratch/block:    %d KiB\n", caps.MaxScratchPerBlock>>10)
			fmt.Printf("registers/block:  %d\n", caps.MaxRegistersPerBlock)
			fmt.Printf("resident blocks:  %d per unit\n", caps.MaxResidentBlocksPerUnit)
			fmt.Printf("memory budget:    %d MiB\n", caps.MemoryBytes>>20)
			fmt.Printf("generation:       %d\n", caps.Generation)
			if len(caps.Features) > 0 {
				fmt.Printf("features:         %s\n", strings.Join(caps.Features, ", "))
			}
			fmt.Printf("GOMAXPROCS:       %d\n", runtime.GOMAXPROCS(0))
			return nil
		},
	}
}
