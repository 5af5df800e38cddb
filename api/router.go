package api

import (
	"mediadl/config"

	"github.com/gin-gonic/gin"
)

func SetupRouter(h *Handler, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "intake_enabled": h.manager.IntakeEnabled()})
	})

	routes := r.Group("/")
	routes.Use(AuthMiddleware(cfg))
	{
		// Intake
		routes.POST("/download", h.handleDownload)
		routes.POST("/set_browser_monitor_status", h.handleSetMonitorStatus)
		routes.POST("/analyze_url", h.handleAnalyzeURL)
		routes.POST("/get_formats", h.handleGetFormats)

		// Jobs
		routes.GET("/jobs", h.handleListJobs)
		routes.GET("/jobs/events", h.handleEvents)
		routes.POST("/jobs/cancel", h.handleCancelJob)

		// History and settings
		routes.GET("/history", h.handleListHistory)
		routes.DELETE("/history", h.handleClearHistory)
		routes.GET("/settings", h.handleGetSettings)
		routes.PUT("/settings", h.handlePutSettings)
	}
	return r
}
