package main

import (
	"log/slog"
	"os"

	"ldap-admin/internal/app"
	"ldap-admin/internal/config"
	"ldap-admin/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Colored output is for a developer's terminal; production logs go to collectors.
	slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel, cfg.IsDevelopment()))
	slog.Info("starting ldap-admin", "version", app.Version, "env", cfg.AppEnv, "port", cfg.ServerPort)

	server, err := app.New(cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}
