package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/svcengine/internal/admin"
	"github.com/mattjoyce/svcengine/internal/api"
	"github.com/mattjoyce/svcengine/internal/config"
	"github.com/mattjoyce/svcengine/internal/dispatch"
	"github.com/mattjoyce/svcengine/internal/events"
	"github.com/mattjoyce/svcengine/internal/lock"
	"github.com/mattjoyce/svcengine/internal/log"
	"github.com/mattjoyce/svcengine/internal/metrics"
	"github.com/mattjoyce/svcengine/internal/services"
)

// stopTimeout bounds how long services get to stop after the servers exit.
const stopTimeout = 10 * time.Second

func newSystemCmd(load configLoader) *cobra.Command {
	system := &cobra.Command{
		Use:   "system",
		Short: "Run the engine",
	}

	var listen string
	start := &cobra.Command{
		Use:   "start",
		Short: "Start the engine in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := load(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEngine(ctx, cfg, path)
		},
	}
	start.Flags().StringVar(&listen, "listen", "", "Override the listen address (default from config, :9090)")

	system.AddCommand(start)
	return system
}

// runEngine wires the engine from cfg and blocks until ctx is cancelled or a
// server fails.
func runEngine(ctx context.Context, cfg *config.Config, configPath string) error {
	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("svcengine starting", "version", version, "config", configPath, "listen", cfg.Listen)

	if cfg.PIDFile != "" {
		pidLock, err := lock.AcquirePIDLock(cfg.PIDFile)
		if err != nil {
			logger.Error("failed to acquire PID lock (another instance may be running)", "path", cfg.PIDFile, "error", err)
			return err
		}
		defer func() { _ = pidLock.Release() }()
		logger.Info("acquired PID lock", "path", cfg.PIDFile)
	}

	metrics.Register()
	hub := events.NewHub(events.DefaultCapacity)

	svcs, err := services.Build(cfg.Services, services.Deps{Events: hub})
	if err != nil {
		return err
	}
	policy, err := cfg.ConflictPolicy()
	if err != nil {
		return err
	}
	ctl, err := dispatch.New(svcs, dispatch.Options{
		ConflictPolicy: policy,
		Events:         hub,
		Logger:         log.WithComponent("dispatch"),
	})
	if err != nil {
		return err
	}

	// Service workers outlive the signal context; they are stopped explicitly below.
	if err := ctl.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	logger.Info("services started", "configured", len(svcs), "methods", ctl.Table().Methods())

	g, gctx := errgroup.WithContext(ctx)
	httpServer := api.New(api.Config{
		Listen:       cfg.Listen,
		ResourceDir:  cfg.ResourceDir,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}, ctl, log.WithComponent("api"))
	g.Go(func() error { return httpServer.Start(gctx) })

	if cfg.Admin.Enabled {
		adminServer := admin.New(admin.Config{Listen: cfg.Admin.Listen}, ctl, hub, log.WithComponent("admin"))
		g.Go(func() error { return adminServer.Start(gctx) })
	}

	serveErr := g.Wait()
	if isShutdown(serveErr) {
		logger.Info("shutdown requested")
		serveErr = nil
	} else {
		logger.Error("server failed", "error", serveErr)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := ctl.Stop(stopCtx); err != nil {
		logger.Warn("services stopped with errors", "error", err)
	}
	logger.Info("svcengine stopped")
	return serveErr
}

func isShutdown(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
