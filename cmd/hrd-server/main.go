// Command hrd-server serves the buffer, rate and Plex menu calculations over
// HTTP.
//
// Settings come from the environment or a .env file in the working
// directory: PORT, LOG_LEVEL, LOG_FORMAT, WORKERS, TASK_TIMEOUT,
// REQUEST_TIMEOUT, MAX_BODY_BYTES, STRATEGY and DELAY (seconds, used when a
// request names no delay).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/martinpickett/Plex-Tools/internal/platform/clock"
	"github.com/martinpickett/Plex-Tools/internal/platform/config"
	"github.com/martinpickett/Plex-Tools/internal/platform/logger"
	"github.com/martinpickett/Plex-Tools/internal/platform/metrics"
	"github.com/martinpickett/Plex-Tools/internal/server"
	"github.com/martinpickett/Plex-Tools/pkg/hrd"

	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// loadConfig reads the handler settings from the environment.
func loadConfig() (server.Config, error) {
	strategy, err := hrd.ParseStrategy(config.GetEnv("STRATEGY", "bisection"))
	if err != nil {
		return server.Config{}, fmt.Errorf("STRATEGY: %w", err)
	}
	delay := config.GetEnvFloat("DELAY", hrd.DefaultDelay)
	if delay <= 0 {
		return server.Config{}, fmt.Errorf("DELAY: %v is not a positive number of seconds", delay)
	}
	return server.Config{
		Workers:        config.GetEnvInt("WORKERS", runtime.NumCPU()),
		TaskTimeout:    config.GetEnvDuration("TASK_TIMEOUT", 0),
		RequestTimeout: config.GetEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxBodyBytes:   int64(config.GetEnvInt("MAX_BODY_BYTES", 8<<20)),
		Strategy:       strategy,
		Delay:          delay,
	}, nil
}

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	met := metrics.New()
	h := server.NewHandler(cfg, log, met, clock.System{})

	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(h, log, met),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server error")
			os.Exit(1)
		}
	}()

	log.WithFields(logrus.Fields{
		"port":      port,
		"workers":   cfg.Workers,
		"strategy":  cfg.Strategy.String(),
		"delay":     cfg.Delay,
		"log_level": logLevel,
	}).Info("server starting")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown error")
		os.Exit(1)
	}

	log.Info("server stopped")
}
