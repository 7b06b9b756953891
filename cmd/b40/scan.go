package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/sunyans/back40computing/internal/harness"
	"github.com/sunyans/back40computing/pkg/device"
	"github.com/sunyans/back40computing/pkg/scan"
)

func scanCmd() *cli.Command {
	var (
		numElements int64
		seed        int64
		opName      string
		inclusive   bool
		segPeriod   int64
		verify      bool
	)

	flags := append(engineFlags(), loggingFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "n",
			Usage:       "number of elements to scan",
			Value:       1 << 20,
			Destination: &numElements,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "seed for the generated input",
			Value:       42,
			Destination: &seed,
		},
		&cli.StringFlag{
			Name:        "op",
			Usage:       "combine operator (sum, mul, max, min)",
			Value:       "sum",
			Destination: &opName,
		},
		&cli.BoolFlag{
			Name:        "inclusive",
			Usage:       "compute the inclusive scan instead of the exclusive one",
			Destination: &inclusive,
		},
		&cli.Int64Flag{
			Name:        "segment-every",
			Usage:       "segmented scan with a head every N elements (0 = plain scan)",
			Destination: &segPeriod,
		},
		&cli.BoolFlag{
			Name:        "verify",
			Usage:       "check the result against a sequential reference",
			Value:       true,
			Destination: &verify,
		},
	)

	return &cli.Command{
		Name:  "scan",
		Usage: "Run one prefix scan over generated input",
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

			n := int(numElements)
			in := harness.Values(n, seed, 1<<16)
			out := make([]uint32, n)
			var flagsVec []bool
			if segPeriod > 0 {
				flagsVec = harness.PeriodicFlags(n, int(segPeriod))
			}

			log.Info("scanning", "elements", n, "op", opName, "inclusive", inclusive, "segmented", flagsVec != nil)
			start := time.Now()
			switch {
			case flagsVec != nil && inclusive:
				err = eng.SegmentedInclusive(ctx, in, flagsVec, out)
			case flagsVec != nil:
				err = eng.SegmentedExclusive(ctx, in, flagsVec, out)
			case inclusive:
				err = eng.Inclusive(ctx, in, out)
			default:
				err = eng.Exclusive(ctx, in, out)
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: scan: %v", err), 1)
			}
			elapsed := time.Since(start)

			fmt.Printf("scanned %d elements in %s (%.1f Melem/s)\n",
				n, elapsed.Round(time.Microsecond), rate(n, elapsed))

			if verify {
				var want []uint32
				if flagsVec != nil {
					want = harness.SegmentedScan(op, in, flagsVec, inclusive)
				} else {
					want = harness.Scan(op, in, inclusive)
				}
				if err := harness.Compare(out, want); err != nil {
					return cli.Exit(fmt.Sprintf("error: verification failed: %v", err), 1)
				}
				fmt.Println("verified against sequential reference")
			}
			return nil
		},
	}
}

func namedOp(name string) (scan.Op[uint32], error) {
	switch name {
	case "sum":
		return scan.Sum[uint32](), nil
	case "mul":
		return scan.Mul[uint32](), nil
	case "max":
		return scan.Max[uint32](0), nil
	case "min":
		return scan.Min[uint32](^uint32(0)), nil
	}
	return scan.Op[uint32]{}, fmt.Errorf("unknown operator %q (expected sum, mul, max or min)", name)
}

func rate(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds() / 1e6
}
