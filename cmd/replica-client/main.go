package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/interp"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/injector"
	"github.com/zeusync/replica/pkg/geom"
	"github.com/zeusync/replica/sdk/go/client"
)

func main() {
	var (
		configPath string
		radius     float64
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML config file (default: built-in defaults and REPLICA_* env)")
	flag.Float64Var(&radius, "radius", 5, "radius of the circle the local entity walks")
	flag.Parse()

	c, cleanup, err := injector.InitializeClient(injector.ConfigPath(configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := c.Config()
	level, _ := cfg.LogLevel()
	logger := log.New(level).With(log.String("component", "demo"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	var (
		player *entity.Entity
		angle  float64
	)

	_, _ = c.OnEvent(client.EventTypeEntitySpawned, func(event client.Event) error {
		if e, ok := event.Data().(*entity.Entity); ok && !e.IsLocal() {
			logger.Info("Remote entity appeared", log.String("entity_id", e.ID().String()))
		}
		return nil
	})
	_, _ = c.OnEvent(client.EventTypeEntityDespawned, func(event client.Event) error {
		if e, ok := event.Data().(*entity.Entity); ok {
			logger.Info("Entity left", log.String("entity_id", e.ID().String()))
		}
		return nil
	})
	_, _ = c.OnEvent(client.EventTypeDisconnected, func(event client.Event) error {
		logger.Warn("Disconnected from server", log.Any("reason", event.Data()))
		player = nil
		return nil
	})

	onRegistered := func(e *entity.Entity, err error) {
		if err != nil {
			logger.Error("Entity registration failed", log.Error(err))
			return
		}
		player = e
		logger.Info("Local entity registered", log.String("entity_id", e.ID().String()))
	}

	onAuthenticated := func(clientID int, err error) {
		if err != nil {
			logger.Error("Authentication failed", log.Error(err))
			return
		}
		logger.Info("Authenticated", log.Int("client_id", clientID))
		if err = c.RegisterEntity(onRegistered); err != nil {
			logger.Error("Failed to request entity", log.Error(err))
		}
	}

	onConnect := func(connected bool) {
		if !connected {
			logger.Error("Could not connect",
				log.String("host", cfg.Server.Host),
				log.Int("port", cfg.Server.Port))
			return
		}
		if err := c.Authenticate(cfg.Credentials, onAuthenticated); err != nil {
			logger.Error("Failed to send credentials", log.Error(err))
		}
	}

	if err = c.Connect(gctx, onConnect); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	step := func(dt time.Duration) {
		if player == nil {
			return
		}
		component, ok := player.Component(interp.TransformName)
		if !ok {
			return
		}
		transform := component.(*interp.Transform)

		angle += dt.Seconds()
		transform.SetPosition(geom.V3(math.Cos(angle)*radius, 0, math.Sin(angle)*radius))
		transform.SetRotation(geom.AxisAngle(geom.V3(0, 1, 0), -angle*180/math.Pi))
	}

	g.Go(func() error {
		return c.Run(gctx, step)
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Client stopped", log.Error(err))
	}
	logger.Info("Shutting down", log.Any("stats", c.Stats()))
}
