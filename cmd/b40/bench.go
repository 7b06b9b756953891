package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/sunyans/back40computing/internal/harness"
	"github.com/sunyans/back40computing/pkg/device"
	"github.com/sunyans/back40computing/pkg/scan"
)

type benchRun struct {
	Elements int           `json:"elements"`
	Duration time.Duration `json:"duration_ns"`
	Rate     float64       `json:"melem_per_s"`
}

type benchReport struct {
	ID        string     `json:"id"`
	CreatedAt int64      `json:"created_at"`
	Device    string     `json:"device"`
	Op        string     `json:"op"`
	Runs      []benchRun `json:"runs"`
}

func benchCmd() *cli.Command {
	var (
		warmupRuns  int64
		benchRuns   int64
		numElements int64
		opName      string
		jsonPath    string
	)

	flags := append(engineFlags(), loggingFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "warmup",
			Usage:       "number of warmup runs",
			Value:       1,
			Destination: &warmupRuns,
		},
		&cli.Int64Flag{
			Name:        "runs",
			Usage:       "number of benchmark runs per size",
			Value:       3,
			Destination: &benchRuns,
		},
		&cli.Int64Flag{
			Name:        "n",
			Usage:       "largest problem size",
			Value:       1 << 22,
			Destination: &numElements,
		},
		&cli.StringFlag{
			Name:        "op",
			Usage:       "combine operator (sum, mul, max, min)",
			Value:       "sum",
			Destination: &opName,
		},
		&cli.StringFlag{
			Name:        "json",
			Usage:       "write the report as JSON to this path",
			Destination: &jsonPath,
		},
	)

	return &cli.Command{
		Name:  "bench",
		Usage: "Run standardized scan benchmarks across problem sizes",
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
			op, err := namedOp(opName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			eng, err := scan.New(dev, op, cfg)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: build engine: %v", err), 1)
			}

			caps := dev.Caps()
			fmt.Println("=== b40 scan benchmark ===")
			fmt.Printf("Device:   %s (%d units, width %d)\n", caps.Name, caps.ComputeUnits, caps.LockStepWidth)
			fmt.Printf("Op:       %s\n", opName)
			fmt.Printf("Tile:     %d elements\n", eng.TileElements())
			fmt.Printf("CPUs:     %d\n", runtime.NumCPU())
			fmt.Printf("Warmup:   %d runs\n", warmupRuns)
			fmt.Printf("Runs:     %d per size\n", benchRuns)
			fmt.Println()

			// Sweep from one tile up to the requested size, doubling.
			sizes := []int{}
			for n := eng.TileElements(); n < int(numElements); n *= 2 {
				sizes = append(sizes, n)
			}
			sizes = append(sizes, int(numElements))

			report := benchReport{
				ID:        "bench-" + uuid.NewString(),
				CreatedAt: time.Now().Unix(),
				Device:    caps.Name,
				Op:        opName,
			}

			in := harness.Values(int(numElements), 42, 1<<16)
			out := make([]uint32, numElements)
			for i := range int(warmupRuns) {
				log.Info("warmup run", "run", i+1)
				if err := eng.Exclusive(ctx, in, out); err != nil {
					return cli.Exit(fmt.Sprintf("error: warmup run %d: %v", i+1, err), 1)
				}
			}

			fmt.Printf("%12s %14s %12s\n", "Elements", "Duration", "Melem/s")
			for _, n := range sizes {
				best := time.Duration(0)
				for i := 0; i < int(benchRuns); i++ {
					start := time.Now()
					if err := eng.Exclusive(ctx, in[:n], out[:n]); err != nil {
						return cli.Exit(fmt.Sprintf("error: bench run: %v", err), 1)
					}
					elapsed := time.Since(start)
					if best == 0 || elapsed < best {
						best = elapsed
					}
				}
				run := benchRun{Elements: n, Duration: best, Rate: rate(n, best)}
				report.Runs = append(report.Runs, run)
				fmt.Printf("%12d %14s %12.1f\n", n, best.Round(time.Microsecond), run.Rate)
			}

			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			fmt.Printf("\nMemory: %.1f MB alloc, %.1f MB sys\n",
				float64(mem.Alloc)/(1024*1024),
				float64(mem.Sys)/(1024*1024))

			if jsonPath != "" {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: encode report: %v", err), 1)
				}
				if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
					return cli.Exit(fmt.Sprintf("error: write report: %v", err), 1)
				}
				log.Info("wrote benchmark report", "path", jsonPath, "id", report.ID)
			}
			return nil
		},
	}
}
