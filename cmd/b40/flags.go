package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/sunyans/back40computing/internal/logger"
)

var (
	threadsPerBlock   int64
	elementsPerThread int64
	maxGridSize       int64
	gridPolicy        string
	logLevel          string
	logFormat         string
	debug             bool
)

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "threads-per-block",
			Aliases:     []string{"tpb"},
			Usage:       "threads per block (power of two, multiple of the lock-step width)",
			Destination: &threadsPerBlock,
		},
		&cli.Int64Flag{
			Name:        "elements-per-thread",
			Aliases:     []string{"ept"},
			Usage:       "elements each thread loads per tile (power of two)",
			Destination: &elementsPerThread,
		},
		&cli.Int64Flag{
			Name:        "max-grid",
			Usage:       "explicit grid size cap (0 = let the planner decide)",
			Destination: &maxGridSize,
		},
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "grid policy (occupied, oversubscribed)",
			Value:       "oversubscribed",
			Destination: &gridPolicy,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func newLog() (logger.Logger, error) {
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	if debug {
		level = slog.LevelDebug
	}
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level), nil
	case "text":
		return logger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
	default:
		return logger.Pretty(os.Stderr, level), nil
	}
}
