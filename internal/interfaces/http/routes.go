package http

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api/v1")
	{
		api.POST("/reconcile", handler.Reconcile)
		api.GET("/status", handler.Status)

		api.GET("/bonds", handler.ListBonds)
		api.POST("/bonds/correction", handler.ApplyCorrection)
		api.GET("/pending", handler.ListPending)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
