package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the standardized error object.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func respondError(c *gin.Context, logger *slog.Logger, status int, code, message string) {
	logger.Warn("http.error",
		"status", status,
		"code", code,
		"message", message,
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"request_id", requestIDFromContext(c),
	)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
