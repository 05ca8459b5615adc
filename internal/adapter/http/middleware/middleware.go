package middleware

import (
	"net/http"
	"time"

	"lightning-timesheet/internal/adapter/http/dto"
	"lightning-timesheet/pkg/apperror"
	"lightning-timesheet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderRequestID = "X-Request-ID"

	// DefaultUserID is used when the caller sends no identity header.
	DefaultUserID = "default"

	// Context keys
	CtxUserID    = "user_id"
	CtxRequestID = "request_id"
)

// RequestID propagates the caller's X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 || !dto.IsSafeID(id) {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// UserIdentity resolves the caller from the X-User-ID header.
// There is no authentication: the header is trusted as-is once validated.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		var hdr dto.UserHeader
		if err := c.ShouldBindHeader(&hdr); err != nil {
			response.Error(c, apperror.Validation("invalid X-User-ID header"))
			c.Abort()
			return
		}
		userID := hdr.UserID
		if userID == "" {
			userID = DefaultUserID
		}
		c.Set(CtxUserID, userID)
		c.Next()
	}
}

// UserID returns the caller resolved by UserIdentity.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(CtxUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return DefaultUserID
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("user_id", c.GetString(CtxUserID)).
			Str("request_id", c.GetString(CtxRequestID))
		if last := c.Errors.Last(); last != nil {
			event = event.Err(last.Err)
		}
		event.Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("path", c.Request.URL.Path).
					Str("request_id", c.GetString(CtxRequestID)).
					Msg("panic recovered")
				response.Error(c, apperror.New(apperror.CodeInternal, "Internal server error", http.StatusInternalServerError))
				c.Abort()
			}
		}()
		c.Next()
	}
}
