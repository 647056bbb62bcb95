// nav2d - 2D navigation overlay server
// Connects to rosbridge, draws the robot pose, its trace and the planned path,
// and lets a browser pick navigation goals.
package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-nav2d/internal/config"
	"github.com/teslashibe/go-nav2d/internal/log"
	"github.com/teslashibe/go-nav2d/pkg/loop"
	"github.com/teslashibe/go-nav2d/pkg/nav2d"
	"github.com/teslashibe/go-nav2d/pkg/rosbridge"
	"github.com/teslashibe/go-nav2d/pkg/scene"
	"github.com/teslashibe/go-nav2d/pkg/web"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	bridgeURL := flag.String("bridge", "", "rosbridge URL (overrides "+config.EnvBridgeURL+")")
	port := flag.String("port", "", "HTTP port (overrides "+config.EnvPort+")")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	if *bridgeURL != "" {
		cfg.Bridge.URL = *bridgeURL
	}
	if *port != "" {
		cfg.Web.Port = *port
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("nav2d stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := log.L()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Everything that touches the scene runs here
	l := loop.New(256, logger)
	loopDone := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(loopDone)
	}()

	client, err := rosbridge.New(cfg.Bridge, logger, rosbridge.WithDispatcher(l.Post))
	if err != nil {
		return err
	}
	defer client.Close()

	log.Info("waiting for rosbridge", "url", cfg.Bridge.URL)
	if err := client.ConnectWithRetry(ctx); err != nil {
		return err
	}
	go func() {
		if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("rosbridge stopped", "error", err)
		}
	}()

	defaults := nav2d.DefaultGoalConfig()
	actions, err := rosbridge.NewActionClient(client,
		cmp.Or(cfg.Overlay.Goal.ActionServer, defaults.ActionServer),
		cmp.Or(cfg.Overlay.Goal.ActionType, defaults.ActionType),
		logger,
	)
	if err != nil {
		return err
	}
	defer actions.Close()

	surface := scene.NewSurface(cfg.Web.Width, cfg.Web.Height, cfg.Web.Zoom)
	var overlay *nav2d.Overlay
	err = l.Do(ctx, func() error {
		var err error
		overlay, err = nav2d.NewOverlay(cfg.Overlay, nav2d.Deps{
			Root:     surface.Root,
			View:     surface,
			Feed:     client,
			Actions:  actions,
			Dispatch: l.Post,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		if cfg.Web.InitScale {
			return overlay.InitScale()
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer func() {
		cancel()
		<-loopDone
		overlay.Close()
	}()

	log.Info("overlay ready",
		"path_topic", overlay.Path.Config().Topic,
		"pose_topic", overlay.Pose.Config().Topic,
		"action_server", overlay.Goal.Config().ActionServer,
	)

	server := web.NewServer(web.Options{
		Port:          cfg.Web.Port,
		Loop:          l,
		Surface:       surface,
		Overlay:       overlay,
		Bridge:        client,
		FrameInterval: cfg.Web.FrameInterval,
		Logger:        logger,
	})
	return server.Start(ctx)
}
