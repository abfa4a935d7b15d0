// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/pdiddy/mtb-analyzer/internal/pipeline"
)

// SetupRoutes registers every endpoint on router.
func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/health", handler.Health)

	api := router.Group("/api")
	{
		tasks := api.Group("/tasks")
		{
			tasks.POST("/scan", handler.StartTask(pipeline.KindScan))
			tasks.POST("/scrape", handler.StartTask(pipeline.KindScrape))
			tasks.POST("/analyze", handler.StartTask(pipeline.KindAnalyze))
			tasks.POST("/sync", handler.StartTask(pipeline.KindSync))
			tasks.GET("/status", handler.Status)
			tasks.POST("/clear-logs", handler.ClearLogs)
		}

		editions := api.Group("/editions")
		{
			editions.GET("", handler.ListEditions)
			editions.GET("/:id", handler.GetEdition)
			editions.GET("/:id/items", handler.EditionItems)
			editions.POST("/:id/reset", handler.ResetEdition)
		}

		items := api.Group("/items")
		{
			items.GET("", handler.ListItems)
			items.GET("/recent", handler.RecentItems)
			items.GET("/:id", handler.GetItem)
			items.POST("/:id/read", handler.MarkRead)
		}

		api.POST("/attachments/:id/analyze", handler.AnalyzeAttachment)

		settings := api.Group("/settings")
		{
			settings.GET("", handler.GetSettings)
			settings.GET("/role", handler.GetRole)
			settings.PUT("/role", handler.PutRole)
			settings.GET("/threshold", handler.GetThreshold)
			settings.PUT("/threshold", handler.PutThreshold)
			settings.POST("/shutdown", handler.Shutdown)
		}

		api.GET("/stats", handler.Stats)
	}
}
