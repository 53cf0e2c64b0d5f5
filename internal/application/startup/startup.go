// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inkwellhq/inkwell-go/internal/application/container"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/security"
	"github.com/inkwellhq/inkwell-go/internal/presentation/http/server"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// Initialize performs the complete startup sequence: logging, container,
// background workers, HTTP server, and graceful shutdown.
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	logger.Startup().Info("Initializing cache engine")

	if config.StreamTokenSecret == "" && os.Getenv("GIN_MODE") != "release" {
		secret, err := security.GenerateSecureKey(64)
		if err != nil {
			return fmt.Errorf("failed to generate stream token secret: %w", err)
		}
		config.StreamTokenSecret = secret
		logger.Startup().Warn("INKWELL_STREAM_TOKEN_SECRET not set, generated an ephemeral secret; tokens will not survive a restart")
	}

	appContainer, err := container.NewContainer(logger)
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	defer appContainer.Close()
	logger.Startup().Info("Dependency injection container created",
		"redisAddr", config.RedisAddr)

	// Background workers.
	appContainer.Monitor.Start()
	go appContainer.Broadcaster.Run()
	go appContainer.Janitor.Start(ctx)
	logger.Startup().Info("Background workers started",
		"monitorEvalInterval", config.MonitorEvalInterval.String(),
		"janitorInterval", config.JanitorInterval.String())

	// HTTP server.
	port := config.Port
	httpServer := server.New(port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start).String(), "port", port)

	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown")

	shutdownStart := time.Now()
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start).String(),
		"shutdownDuration", time.Since(shutdownStart).String())

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
