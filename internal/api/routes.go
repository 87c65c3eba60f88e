package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the read-only API onto the router.
func RegisterRoutes(router *gin.Engine, handler *Handler) {
	router.Use(cors.Default())

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/properties", handler.GetProperties)
		apiGroup.GET("/properties/all", handler.GetAllProperties)
		apiGroup.GET("/properties/:id/history", handler.GetPropertyHistory)
		apiGroup.DELETE("/properties/:id", handler.DeactivateProperty)
		apiGroup.GET("/stats", handler.GetStats)
		apiGroup.GET("/stats/history", handler.GetStatsHistory)
		apiGroup.POST("/snapshot", handler.TakeSnapshot)
	}
}
