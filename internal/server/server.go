// Package server exposes the load pipeline over HTTP: listing systems
// and enqueueing load requests for the worker.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/opsgraph/opsgraph/internal/app"
	"github.com/opsgraph/opsgraph/internal/config"
	"github.com/opsgraph/opsgraph/internal/queue"
	"github.com/opsgraph/opsgraph/internal/util"
	"github.com/opsgraph/opsgraph/pkg/logger"
)

// Init wires the HTTP server and blocks until shutdown. The server only
// needs the data source adapter and the queue; the heavy pipeline lives
// in the worker.
func Init(cfg *config.Config, sourceName string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter, err := app.BuildAdapter(ctx, cfg, sourceName)
	if err != nil {
		logger.Fatal("Failed to build data source adapter", "err", err)
	}

	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.LoadQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	RegisterRoutes(e, adapter, ch)

	port := util.GetEnvString("PORT", "8080")
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down cleanly", "err", err)
	}
}
