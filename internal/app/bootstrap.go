// Package app bootstraps the capstan daemon. It follows a two-phase
// pattern: NewApplication loads configuration, initializes logging, and
// wires every component together; Run starts them in dependency order
// and blocks until a shutdown signal arrives.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"capstan/internal/config"
	"capstan/pkg/logging"
)

// shutdownTimeout bounds the graceful drain of in-flight requests and
// reconciliations.
const shutdownTimeout = 30 * time.Second

// Options carries the command-line settings into the bootstrap.
type Options struct {
	// Debug lowers the log level to debug regardless of configuration.
	Debug bool

	// Silent discards all log output. Used by tests and scripting.
	Silent bool

	// ConfigPath is the configuration directory. Empty means the default
	// user directory.
	ConfigPath string
}

// Application is the assembled daemon: configuration plus the wired
// component set, ready to Run.
type Application struct {
	config     config.CapstanConfig
	components *components
}

// NewApplication performs the bootstrap phase: logging first so every
// later step can report, then configuration, then component wiring.
func NewApplication(opts Options) (*Application, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	if opts.Debug {
		level = logging.LevelDebug
	}
	var output io.Writer = os.Stdout
	if opts.Silent {
		output = io.Discard
	}
	logging.Init(level, logging.Format(cfg.Logging.Format), output)

	comps, err := initializeComponents(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize components")
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return &Application{config: cfg, components: comps}, nil
}

// Run starts every component, announces readiness, and blocks until the
// context is cancelled or a SIGINT/SIGTERM arrives. Shutdown runs in
// reverse start order before Run returns.
func (a *Application) Run(ctx context.Context) error {
	if err := a.components.start(ctx); err != nil {
		a.components.stop()
		return err
	}

	// No-op outside a systemd unit.
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logging.Warn("Bootstrap", "Failed to notify systemd readiness: %v", err)
	}
	logging.Info("Bootstrap", "capstan is ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logging.Info("Bootstrap", "Received %s, shutting down", sig)
	case <-ctx.Done():
		logging.Info("Bootstrap", "Context cancelled, shutting down")
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		logging.Warn("Bootstrap", "Failed to notify systemd shutdown: %v", err)
	}

	a.components.stop()
	return nil
}
