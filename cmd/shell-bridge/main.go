// shell-bridge connects to a remote operator over a websocket and bridges
// the connection to a local interactive shell running in a pseudo-terminal.
//
// There are no command-line flags. Configuration comes from the YAML file
// named by $SHELL_BRIDGE_CONFIG (default $XDG_CONFIG_HOME/shell-bridge/config.yaml)
// and SHELL_BRIDGE_* environment overrides.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/acolita/shell-bridge/internal/agent"
	"github.com/acolita/shell-bridge/internal/config"
	"github.com/acolita/shell-bridge/internal/logging"
)

// Version information - set at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "shell-bridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := config.DefaultConfigPath()

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Sanitize)
	logger.Info("starting shell-bridge",
		slog.String("version", Version),
		slog.String("commit", GitCommit),
		slog.String("config", configPath))

	// Only the log level is applied live; everything else needs a restart.
	if _, err := os.Stat(configPath); err == nil {
		w, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
			logging.SetLevel(newCfg.Logging.Level)
		})
		if err != nil {
			logger.Warn("config hot-reload disabled", slog.String("error", err.Error()))
		} else {
			defer w.Close()
			logger.Info("config hot-reload enabled", slog.String("path", configPath))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := agent.New(cfg, agent.WithLogger(logger)).Run(ctx); err != nil {
		logger.Error("bridge failed", slog.String("error", err.Error()))
		return err
	}
	logger.Info("shell-bridge stopped")
	return nil
}
