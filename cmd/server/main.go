package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"snapsort/internal/container"
)

func main() {
	// Optional .env for local development
	if err := godotenv.Load(); err == nil {
		logrus.Info("Loaded environment from .env")
	}

	// Initialize dependency injection container
	c, err := container.NewContainer()
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	cfg := c.Config()

	// Setup structured logging
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	// TCP listener the capture devices push photos to
	if err := c.IngestServer().Start(); err != nil {
		log.Fatalf("Failed to start ingest listener: %v", err)
	}

	// HTTP read API over the gallery
	server := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      c.Handler(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"address": cfg.HTTPAddress(),
			"timeout": cfg.RequestTimeout,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	// Stop intake first so every photo already on the wire is processed
	// before the process exits.
	if err := c.IngestServer().Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Ingest listener forced to shut down")
	}
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("Server forced to shutdown")
	}
	if err := c.Close(); err != nil {
		logrus.WithError(err).Warn("Classifier shutdown reported an error")
	}

	logrus.Info("Server exited")
}
