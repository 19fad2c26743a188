package handlers

import (
	"floorplan-render-backend/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterRoutes mounts the API on router.
func RegisterRoutes(router *gin.Engine, service *services.RenderService, maxUploadBytes int64, logger *zap.Logger) {
	projects := NewProjectsHandler(service, maxUploadBytes, logger)
	renders := NewRendersHandler(service)
	rooms := NewRoomsHandler(service, maxUploadBytes)
	health := NewHealthHandler(service)

	router.GET("/health", health.Health)

	api := router.Group("/api/v1")
	api.POST("/projects", projects.CreateProject)
	api.GET("/projects", projects.ListProjects)
	api.GET("/projects/:project_id", projects.GetProject)
	api.GET("/projects/:project_id/renders", projects.GetRenders)
	api.DELETE("/projects/:project_id", projects.DeleteProject)

	api.GET("/renders/:render_id/download", renders.Download)
	api.POST("/rooms/detect", rooms.Detect)
}
