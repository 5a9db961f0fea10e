package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"chatkaro-service/internal/models"
	"chatkaro-service/internal/services"
	"chatkaro-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeError maps a service error kind to its status code.
func writeError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	default:
		slog.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: response.Msg(response.CodeInternal),
		})
		return
	}

	c.JSON(status, models.ErrorResponse{
		Code:    status,
		Message: err.Error(),
	})
}

func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Code:    http.StatusBadRequest,
		Message: response.Msg(response.CodeValidation),
		Details: err.Error(),
	})
}

func currentUserID(c *gin.Context) uint {
	return c.MustGet("user_id").(uint)
}

func uintParam(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, services.ErrInvalidID
	}
	return uint(id), nil
}
