package handlers

import (
	"fmt"
	"net/http"

	"floorplan-render-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type RendersHandler struct {
	service *services.RenderService
}

func NewRendersHandler(service *services.RenderService) *RendersHandler {
	return &RendersHandler{service: service}
}

// Download godoc
// @Summary     Download a rendered image
// @Tags        renders
// @Produce     png
// @Param       render_id path string true "render id"
// @Router      /renders/{render_id}/download [get]
func (h *RendersHandler) Download(c *gin.Context) {
	renderID, ok := parseID(c, "render_id")
	if !ok {
		return
	}

	data, filename, err := h.service.RenderImage(c.Request.Context(), renderID)
	if err != nil {
		respondError(c, "failed to download render", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "image/png", data)
}
