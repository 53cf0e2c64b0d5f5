// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/inkwellhq/inkwell-go/internal/application/container"
	"github.com/inkwellhq/inkwell-go/internal/presentation/http/handlers"
	"github.com/inkwellhq/inkwell-go/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency
// injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Serve static sysop dashboard files from the /sysop URL.
	r.Static("/sysop", "web/sysop")

	mutationHandlers := handlers.NewMutationHandlers(container.ContentWriter, container.Coordinator, container.Logger)
	monitorHandlers := handlers.NewMonitorHandlers(container.Monitor)
	cacheHandlers := handlers.NewCacheHandlers(container.CacheManager, container.ContentReader)
	tokenHandlers := handlers.NewTokenHandlers()
	sysopHandlers := handlers.NewSysOpHandlers(container.Broadcaster, container.Logger)

	api := r.Group("/api/v1")
	{
		api.GET("/stream", middleware.StreamAuth(), container.StreamHandlers.GetStream)
		api.POST("/stream/token", tokenHandlers.PostStreamToken)
		api.POST("/mutations", mutationHandlers.PostMutation)
		api.GET("/monitor/summary", monitorHandlers.GetSummary)
		api.GET("/monitor/alerts", monitorHandlers.GetAlerts)
		api.GET("/cache/:namespace/:id", cacheHandlers.GetEntry)
	}

	sysopAPI := r.Group("/api/sysop")
	{
		sysopAPI.GET("/auth", sysopHandlers.AuthCheck)
		sysopAPI.POST("/login", sysopHandlers.Login)

		sysopAPI.Use(sysopHandlers.RequireSysop)
		{
			sysopAPI.GET("/socket", sysopHandlers.Socket)
			sysopAPI.GET("/logs/levels", sysopHandlers.GetLogLevels)
			sysopAPI.POST("/logs/levels", sysopHandlers.SetLogLevel)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":            "ok",
			"streamConnections": container.StreamHandlers.ActiveConnections(),
		})
	})

	return r
}
