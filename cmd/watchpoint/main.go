package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"watchpoint/internal/bot"
	"watchpoint/internal/config"
	"watchpoint/internal/logging"
	"watchpoint/internal/preview"
	"watchpoint/internal/session"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log := logging.New(cfg.LogLevel)

	log.WithFields(logrus.Fields{
		"api_url":         cfg.APIURL,
		"session_db_path": cfg.SessionDBPath,
		"preview_timeout": cfg.PreviewTimeout.String(),
	}).Info("Configuration loaded successfully")

	// --- Initialize Components ---
	sessions, err := session.OpenStore(cfg.SessionDBPath, log)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer func() {
		log.Info("Closing session store...")
		if err := sessions.Close(); err != nil {
			log.WithError(err).Error("Error closing session store")
		}
	}()

	previewer := preview.NewRodPreviewer(cfg.PreviewTimeout, log)

	botHandler, err := bot.NewHandler(cfg, sessions, previewer, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize Telegram bot handler")
		// Fatal would skip the deferred Close and leave badger unflushed.
		if closeErr := sessions.Close(); closeErr != nil {
			log.WithError(closeErr).Error("Error closing session store")
		}
		os.Exit(1)
	}

	// --- Application Startup ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go botHandler.Start(ctx)

	log.Info("WatchPoint is running. Press Ctrl+C to exit.")

	<-ctx.Done()

	log.Info("Shutting down WatchPoint...")
	stop()
}
