package middleware

import (
	"fmt"
	"net/http"

	"lightning-timesheet/pkg/apperror"
	"lightning-timesheet/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize caps request bodies at maxBytes. Requests that declare a larger
// Content-Length are rejected up front with 413; streamed bodies are cut off
// by http.MaxBytesReader when read.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, apperror.New(
				apperror.CodeInvalidRequest,
				fmt.Sprintf("Request body exceeds %d bytes", maxBytes),
				http.StatusRequestEntityTooLarge,
			))
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
