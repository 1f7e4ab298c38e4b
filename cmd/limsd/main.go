package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/anatraz/limsbridge/cmd/limsd/container"
	"github.com/anatraz/limsbridge/cmd/limsd/routes"
	"github.com/anatraz/limsbridge/common/bootstrap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap common components (DB, logger, queue, redis, metrics)
	components, err := bootstrap.Setup(ctx, "limsd")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap limsd: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// Start the inbound message pipeline before accepting device traffic
	if err := serviceContainer.Processor.Start(ctx); err != nil {
		components.Logger.Error("Failed to start message processor", "error", err)
		os.Exit(1)
	}
	if err := serviceContainer.Listener.Start(ctx); err != nil {
		components.Logger.Error("Failed to start MLLP listener", "error", err)
		os.Exit(1)
	}

	// Initialize Echo server
	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, serviceContainer)
	setupMetrics(e, serviceContainer)
	registerRoutes(e, serviceContainer)

	go startServer(e, components)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	components.Logger.Info("Shutting down limsd")
	cancel()
	serviceContainer.Listener.Stop()
	serviceContainer.Processor.Stop()
	if err := e.Shutdown(context.Background()); err != nil {
		components.Logger.Error("HTTP server shutdown error", "error", err)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ec echo.Context) error {
		status := "ok"
		if err := c.Components.DB.Health(ec.Request().Context()); err != nil {
			status = "degraded"
		}
		return ec.JSON(200, map[string]string{
			"status":  status,
			"service": "limsd",
		})
	})
}

// setupMetrics exposes the Prometheus registry
func setupMetrics(e *echo.Echo, c *container.Container) {
	e.GET("/metrics", echo.WrapHandler(c.Components.Metrics.Handler()))
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterRoutingRoutes(e, serviceContainer)
}

// startServer starts the Echo server on the configured port
func startServer(e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	components.Logger.Info("Starting limsd", "port", port)

	if err := e.Start(fmt.Sprintf(":%d", port)); err != nil {
		components.Logger.Error("Server error", "error", err)
	}
}
