package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unidss/internal/api"
	"unidss/internal/config"
	"unidss/internal/container"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

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

	router := api.NewRouter(api.Config{
		Insights:     c.Insights,
		Usage:        c.Usage,
		TestKit:      c.TestKit,
		Rules:        appConfig.Rules,
		Columns:      c.Columns,
		MaxBodyBytes: appConfig.Server.MaxUploadBytes(),
		Logger:       c.Logger.With("component", "api"),
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Server.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	c.Logger.Info("Starting API server on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		c.Logger.Error("Server failed: %v", err)
		os.Exit(1)
	}
}
