package v1

import (
	"wyr/api/v1/handlers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(app *fiber.App, deps *handlers.Deps) {
	app.Get("/health", deps.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")

	handlers.RegisterAuth(api.Group("/auth"), deps)
	handlers.RegisterTopics(api.Group("/topics"), deps)
	handlers.RegisterComments(api.Group("/comments"), deps)
	handlers.RegisterSystem(api.Group("/system"), deps)
}
