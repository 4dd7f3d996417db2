// Command biblioteca runs the library catalog: a small web UI on loopback
// backed by biblioteca.db next to the executable.
//
// main only wires things up:
//
//	config.Load → config.NewLogger → server.New → Start
//
// Everything else lives under internal/.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/biblioteca/internal/config"
	"github.com/sakif/biblioteca/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	srv, err := server.New(server.Config{
		Addr:            cfg.Addr,
		DBPath:          cfg.DBPath,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open catalog",
			slog.String("database", cfg.DBPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Start blocks until Ctrl+C or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
