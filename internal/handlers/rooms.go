package handlers

import (
	"net/http"

	"floorplan-render-backend/internal/models"
	"floorplan-render-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type RoomsHandler struct {
	service        *services.RenderService
	maxUploadBytes int64
}

func NewRoomsHandler(service *services.RenderService, maxUploadBytes int64) *RoomsHandler {
	return &RoomsHandler{service: service, maxUploadBytes: maxUploadBytes}
}

// Detect lists the rooms of an uploaded plan so a client can choose which
// ones to render.
func (h *RoomsHandler) Detect(c *gin.Context) {
	data, _, err := readUpload(c, "file", h.maxUploadBytes)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		c.JSON(status, models.ErrorResponse{Error: "invalid upload", Message: err.Error()})
		return
	}

	rooms, err := h.service.DetectRooms(c.Request.Context(), data)
	if err != nil {
		respondError(c, "failed to detect rooms", err)
		return
	}

	c.JSON(http.StatusOK, models.RoomsResponse{Rooms: rooms})
}
