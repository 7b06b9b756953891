package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/sunyans/back40computing/internal/api"
	"github.com/sunyans/back40computing/internal/logger"
	"github.com/sunyans/back40computing/pkg/device"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	flags := append(engineFlags(), loggingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the scan REST API",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyServeConfig(cmd, LoadConfig(), &addr)
			log, err := newLog()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			ctx = logger.WithContext(ctx, log)

			dev, err := device.Open()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open device: %v", err), 1)
			}

			server := api.NewServer(dev, api.NewScanStore(), log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			caps := dev.Caps()
			log.Info("starting server",
				"address", addr,
				"device", caps.Name,
				"compute_units", caps.ComputeUnits,
				"lock_step_width", caps.LockStepWidth,
			)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
