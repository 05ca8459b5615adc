package response

import (
	"errors"
	"net/http"
	"time"

	"lightning-timesheet/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// PageResponse wraps one page of a listing.
type PageResponse struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	success(c, http.StatusOK, data)
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	success(c, http.StatusCreated, data)
}

// Paginated sends a 200 response with a page envelope.
func Paginated(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	var pages int
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	success(c, http.StatusOK, PageResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: pages,
	})
}

// Error writes err as an error envelope. An *apperror.AppError anywhere in the
// chain sets the code and status; anything else is an opaque 500. The error is
// also attached to the gin context for the request logger.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)

	status, body := http.StatusInternalServerError, ErrorResponse{
		ErrorCode: "SYS_000",
		Message:   "Internal server error",
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus
		body.ErrorCode = appErr.Code
		body.Message = appErr.Message
	}

	body.RequestID, body.Timestamp = meta(c)
	c.JSON(status, body)
}

func success(c *gin.Context, status int, data interface{}) {
	id, ts := meta(c)
	c.JSON(status, SuccessResponse{Data: data, RequestID: id, Timestamp: ts})
}

// meta returns the request id set by the request-id middleware, or a fresh one,
// plus the current UTC timestamp.
func meta(c *gin.Context) (string, string) {
	id := c.GetString("request_id")
	if id == "" {
		id = uuid.NewString()
	}
	return id, time.Now().UTC().Format(time.RFC3339)
}
