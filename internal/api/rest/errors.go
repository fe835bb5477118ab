package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/feral-file/card-registry/internal/api/shared/errors"
	"github.com/feral-file/card-registry/internal/logger"
)

// errorResponse wraps an API error as {"error": {...}}
type errorResponse struct {
	Error *apierrors.APIError `json:"error"`
}

func respond(c *gin.Context, status int, apiErr *apierrors.APIError) {
	c.JSON(status, errorResponse{Error: apiErr})
}

// respondBadRequest responds with a bad request error
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respond(c, http.StatusBadRequest, apierrors.NewBadRequestError(message, details...))
}

// respondValidationError responds with a validation error
func respondValidationError(c *gin.Context, details string) {
	respond(c, http.StatusBadRequest, apierrors.NewValidationError(details))
}

// respondError maps a registry error to its status and logs unexpected failures
func respondError(c *gin.Context, err error) {
	status, apiErr := apierrors.FromDomainError(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(c.Request.Context(), err,
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method))
	}
	respond(c, status, apiErr)
}
