package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/construction-backend/services/import-service/controllers"
)

// RegisterRoutes mounts the import API. auth guards everything under /imports.
func RegisterRoutes(r *gin.Engine, h *controllers.BulkImportHandler, auth gin.HandlerFunc) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	imports := r.Group("/imports", auth)
	{
		imports.GET("/history", h.ListHistory)
		imports.GET("/jobs/:id", h.GetJobStatus)
		imports.POST("/:kind", h.Import)
		imports.POST("/:kind/validate", h.Validate)
		imports.GET("/:kind/template", h.Template)
	}
}
