package handlers

import (
	"context"
	"net/http"
	"time"

	"floorplan-render-backend/internal/models"
	"floorplan-render-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	service *services.RenderService
}

func NewHealthHandler(service *services.RenderService) *HealthHandler {
	return &HealthHandler{service: service}
}

// Health godoc
// @Summary     Health check
// @Description Returns the health status of the API
// @Tags        health
// @Produce     json
// @Success     200 {object} models.HealthResponse
// @Router      /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	stats := h.service.WorkerStats()
	response := models.HealthResponse{
		Status:     "ok",
		Generator:  h.service.GeneratorAvailable(),
		Database:   "ok",
		ActiveJobs: stats.Active,
		MaxJobs:    stats.MaxWorkers,
	}
	status := http.StatusOK
	if err := h.service.Ping(ctx); err != nil {
		response.Status = "degraded"
		response.Database = err.Error()
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}
