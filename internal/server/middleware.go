package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey = "requestId"
	userIDKey    = "userId"
)

// requestID attaches a request ID to context and response header.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-Id", id)
		c.Next()
	}
}

func requestIDFromContext(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// logging emits one structured log per request.
func logging(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request.complete",
			"request_id", requestIDFromContext(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"user_id", c.GetString(userIDKey),
			"client_ip", c.ClientIP(),
		)
	}
}

// recovery turns panics into a standardized 500 response.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic",
					"request_id", requestIDFromContext(c),
					"error", rec,
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				respondError(c, logger, http.StatusInternalServerError, "internal", "Unexpected server error")
			}
		}()
		c.Next()
	}
}

// auth resolves the caller identity from the X-User-Id header. Identity
// verification happens upstream at the gateway; this service only needs a
// stable owner ID for scoping.
func auth(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		if userID == "" {
			respondError(c, logger, http.StatusUnauthorized, "unauthorized", "Missing X-User-Id header")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}
