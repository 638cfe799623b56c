package api

import (
	"github.com/gin-gonic/gin"

	"github.com/miku1hhhh/sina-dl/api/handlers"
	"github.com/miku1hhhh/sina-dl/api/middleware"
	"github.com/miku1hhhh/sina-dl/internal/app"
	"github.com/miku1hhhh/sina-dl/pkg/logger"
)

// SetupRouter sets up the HTTP router
func SetupRouter(
	manager *app.SessionManager,
	hub *app.EventHub,
	logs *logger.LoggerAdapter,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.Logger(logs))
	router.Use(middleware.Recovery(logs))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(manager)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		sessionHandler := handlers.NewSessionHandler(manager, logs.General())
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", sessionHandler.CreateSession)
			sessions.GET("", sessionHandler.ListSessions)
			sessions.GET("/:id", sessionHandler.GetSession)
			sessions.DELETE("/:id", sessionHandler.DeleteSession)
			sessions.POST("/:id/clear", sessionHandler.ClearSession)
			sessions.POST("/:id/scan", sessionHandler.Scan)
			sessions.POST("/:id/stop", sessionHandler.Stop)
			sessions.POST("/:id/download", sessionHandler.Download)
			sessions.POST("/:id/archive", sessionHandler.Pack)
			sessions.GET("/:id/archives", sessionHandler.ListSessionArchives)
			sessions.GET("/:id/items/:vid/payload", sessionHandler.ItemPayload)
		}

		archiveHandler := handlers.NewArchiveHandler(manager.Archives(), logs.General())
		archives := v1.Group("/archives")
		{
			archives.GET("", archiveHandler.ListArchives)
			archives.GET("/stats", archiveHandler.GetStats)
			archives.GET("/:id", archiveHandler.GetArchive)
			archives.GET("/:id/file", archiveHandler.DownloadArchive)
			archives.DELETE("/:id", archiveHandler.DeleteArchive)
		}

		eventHandler := handlers.NewEventWebSocketHandler(hub, logs.General())
		v1.GET("/events", eventHandler.HandleWebSocket)

		if logsDir := logs.LogsDir(); logsDir != "" {
			logHandler := handlers.NewLogHandler(logsDir)
			logStream := handlers.NewLogWebSocketHandler(logsDir, logs.General())
			logRoutes := v1.Group("/logs")
			{
				logRoutes.GET("/categories", logHandler.GetCategories)
				logRoutes.GET("/:category", logHandler.GetLogs)
				logRoutes.GET("/:category/search", logHandler.SearchLogs)
				logRoutes.GET("/:category/export", logHandler.ExportLogs)
				logRoutes.GET("/:category/stream", logStream.HandleWebSocket)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "not found"})
	})

	return router
}
