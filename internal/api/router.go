package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))

	router.GET("/healthz", h.Health)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/palette", h.CreatePalette)
		apiGroup.GET("/palettes", h.ListPalettes)
		apiGroup.GET("/palettes/:id", h.GetPalette)
		apiGroup.DELETE("/palettes/:id", h.DeletePalette)
		apiGroup.GET("/palettes/:id/swatch.png", h.PaletteSwatch)
		apiGroup.GET("/stats", h.Stats)
	}

	return router
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(startedAt),
			"clientIP", c.ClientIP(),
		)
	}
}
