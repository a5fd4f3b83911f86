package server

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/opsgraph/opsgraph/internal/queue"
	"github.com/opsgraph/opsgraph/pkg/logger"
	"github.com/opsgraph/opsgraph/pkg/source"
)

// RegisterRoutes attaches the HTTP routes to the echo instance.
func RegisterRoutes(e *echo.Echo, adapter source.Adapter, ch *amqp091.Channel) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	e.GET("/systems", func(c echo.Context) error {
		systems, err := adapter.ListAvailableSystems(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to list systems")
		}
		return c.JSON(http.StatusOK, map[string]any{
			"systems": systems,
			"count":   len(systems),
		})
	})

	e.POST("/systems/:id/load", func(c echo.Context) error {
		systemID := c.Param("id")
		if systemID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "system id is required")
		}

		body, err := json.Marshal(queue.LoadSystemMsg{SystemID: systemID})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode load request")
		}
		if err := queue.PublishFIFO(ch, queue.LoadQueue, body); err != nil {
			logger.Error("Failed to enqueue load request", "system_id", systemID, "err", err)
			return echo.NewHTTPError(http.StatusServiceUnavailable, "failed to enqueue load request")
		}

		logger.Info("Load request enqueued", "system_id", systemID)
		return c.JSON(http.StatusAccepted, map[string]any{
			"system_id": systemID,
			"status":    "queued",
		})
	})

	e.POST("/load", func(c echo.Context) error {
		body, err := json.Marshal(queue.LoadSystemMsg{All: true})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode load request")
		}
		if err := queue.PublishFIFO(ch, queue.LoadQueue, body); err != nil {
			logger.Error("Failed to enqueue batch load request", "err", err)
			return echo.NewHTTPError(http.StatusServiceUnavailable, "failed to enqueue load request")
		}

		logger.Info("Batch load request enqueued")
		return c.JSON(http.StatusAccepted, map[string]any{
			"status": "queued",
		})
	})
}
