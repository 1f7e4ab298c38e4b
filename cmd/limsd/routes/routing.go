package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/anatraz/limsbridge/cmd/limsd/container"
	"github.com/anatraz/limsbridge/cmd/limsd/handlers"
)

// RegisterRoutingRoutes registers workflow routing routes
func RegisterRoutingRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewRoutingHandler(c.Router, c.Components.Logger)

	routing := e.Group("/api/v1/routing")
	{
		routing.POST("/wetlab", h.RouteWetLab)        // POST /api/v1/routing/wetlab
		routing.POST("/drylab", h.RouteDryLab)        // POST /api/v1/routing/drylab
		routing.POST("/validate", h.ValidateNextStep) // POST /api/v1/routing/validate
	}
}
