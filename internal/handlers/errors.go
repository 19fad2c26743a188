package handlers

import (
	"errors"
	"net/http"

	"floorplan-render-backend/internal/common"
	"floorplan-render-backend/internal/models"
	"floorplan-render-backend/internal/pool"
	"floorplan-render-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	var decodeErr *common.DecodeError
	var cfgErr *common.ConfigurationError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &decodeErr):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &cfgErr), errors.Is(err, pool.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrRenderNotReady):
		return http.StatusConflict
	case common.IsServiceError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, msg string, err error) {
	c.JSON(statusFor(err), models.ErrorResponse{
		Error:   msg,
		Message: err.Error(),
	})
}
