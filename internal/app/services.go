package app

import (
	"context"
	"fmt"
	"time"

	"capstan/internal/api"
	"capstan/internal/config"
	"capstan/internal/engine"
	"capstan/internal/events"
	"capstan/internal/registry"
	"capstan/internal/server"
	"capstan/internal/source"
	"capstan/pkg/logging"
)

// components holds the wired daemon parts in start order: the registry
// feeds the engine, the engine serves the API handlers, the server
// exposes them.
type components struct {
	registry *registry.Registry
	engine   *engine.Engine
	server   *server.Server

	serverEnabled bool
}

// initializeComponents wires the daemon together. Handlers are
// registered with the api package here so that the server and the CLI
// surface never import the engine.
func initializeComponents(cfg config.CapstanConfig) (*components, error) {
	reg, err := registry.New(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create application registry: %w", err)
	}

	recorder, err := events.NewRecorder(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create event recorder: %w", err)
	}

	reader := source.NewReader(source.Options{
		CacheDir:     cfg.Source.CacheDir,
		FetchTimeout: time.Duration(cfg.Source.FetchTimeout),
	})

	eng := engine.New(cfg, reg, reader, recorder)
	api.RegisterStatusHandler(eng)
	api.RegisterTriggerHandler(eng)

	return &components{
		registry:      reg,
		engine:        eng,
		server:        server.New(cfg.Server, eng.Gatherer()),
		serverEnabled: cfg.Server.ServerEnabled(),
	}, nil
}

// start brings the components up in dependency order. A failure leaves
// already-started components running; the caller stops them.
func (c *components) start(ctx context.Context) error {
	if err := c.registry.Start(ctx); err != nil {
		return fmt.Errorf("failed to start registry: %w", err)
	}
	if err := c.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	if !c.serverEnabled {
		logging.Info("Bootstrap", "Status API disabled by configuration")
		return nil
	}
	if err := c.server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start status API: %w", err)
	}
	return nil
}

// stop tears the components down in reverse start order. Each step gets
// its own error handling; one failing stop never skips the rest.
func (c *components) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if c.serverEnabled {
		if err := c.server.Shutdown(shutdownCtx); err != nil {
			logging.Error("Bootstrap", err, "Failed to stop status API cleanly")
		}
	}
	if err := c.engine.Stop(); err != nil {
		logging.Error("Bootstrap", err, "Failed to stop engine cleanly")
	}
	if err := c.registry.Stop(); err != nil {
		logging.Error("Bootstrap", err, "Failed to stop registry cleanly")
	}

	api.RegisterStatusHandler(nil)
	api.RegisterTriggerHandler(nil)
}
