package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"unidss/internal/config"
	"unidss/internal/container"
	"unidss/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	appConfig, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	c, err := container.New(appConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	logger := c.Logger
	if envErr != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	gin.SetMode(appConfig.Server.GinMode)

	server := ui.NewServer(ui.Assets, c.Dashboard, c.TestKit, ui.Options{
		MaxUploadBytes: appConfig.Server.MaxUploadBytes(),
		Columns:        c.Columns,
		Logger:         logger.With("component", "ui"),
		Usage:          c.Usage,
	})
	if err := server.Initialize(); err != nil {
		logger.Error("Failed to initialize UI server: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + appConfig.Server.Port
	if err := server.Start(ctx, addr); err != nil {
		logger.Error("Server failed: %v", err)
		os.Exit(1)
	}
}
