// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/situation_viewer/internal/app"
	"github.com/relabs-tech/situation_viewer/internal/config"
	"github.com/relabs-tech/situation_viewer/internal/logging"
)

func main() {
	log.Println("starting situation-viewer mock GPS producer")

	// Load configuration
	if err := config.InitGlobal("situation_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	cleanup, err := logging.Init(cfg.LogLevel, cfg.LogPath)
	if err != nil {
		log.Fatalf("failed to init logging: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunMockGPSProducer(ctx, cfg); err != nil {
		slog.Error("fatal", "error", err)
		cleanup()
		os.Exit(1)
	}
}
