//
//  Copyright © Manetu Inc. All rights reserved.
//

package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manetu/ocpihub/internal/logging"
	"github.com/manetu/ocpihub/pkg/core"
	"github.com/manetu/ocpihub/pkg/core/config"
	"github.com/manetu/ocpihub/pkg/core/options"
	"github.com/manetu/ocpihub/pkg/server"
	"github.com/urfave/cli/v3"
)

var logger = logging.GetLogger("ocpihub")

const agent string = "serve"

const shutdownGrace = 10 * time.Second

// settings returns the configured settings with the command line overrides
// applied.
func settings(cmd *cli.Command) (config.Settings, error) {
	if err := config.Load(); err != nil {
		return config.Settings{}, err
	}

	s := config.Current()
	if cmd.IsSet("port") {
		s.Port = cmd.Int("port")
	}
	if cmd.IsSet("store") {
		s.StorePath = cmd.String("store")
	}
	if cmd.IsSet("seed") {
		s.RegistrySeed = cmd.String("seed")
	}
	return s, nil
}

// Execute runs the serve command.  It starts the hub and its HTTP server and
// shuts both down on SIGINT or SIGTERM, flushing state before it returns.
func Execute(ctx context.Context, cmd *cli.Command) error {
	s, err := settings(cmd)
	if err != nil {
		return err
	}

	metrics := server.NewMetrics()
	hub, err := core.NewHub(
		options.WithSettings(s),
		options.WithObserver(metrics.ObserveWrite),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	hub.Start(ctx)

	srv, err := server.CreateServer(hub, server.WithMetrics(metrics))
	if err != nil {
		_ = hub.Stop()
		return err
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	logger.Info(agent, "shutdown", "Shutting down server...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		logger.Errorf(agent, "shutdown", "server stop: %+v", err)
	}

	cancel()
	if err := hub.Stop(); err != nil {
		return err
	}

	logger.Info(agent, "shutdown", "Server exited gracefully.")
	return nil
}
