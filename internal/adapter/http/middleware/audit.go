package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"lightning-timesheet/internal/core/domain"
	"lightning-timesheet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditedRoute struct {
	action   domain.AuditAction
	resource string
}

// auditedRoutes maps route templates to the action they record.
var auditedRoutes = map[string]auditedRoute{
	"POST /api/v1/work/check-in":   {domain.AuditActionCheckIn, "work_session"},
	"POST /api/v1/work/check-out":  {domain.AuditActionCheckOut, "work_session"},
	"POST /api/v1/payments/settle": {domain.AuditActionSettleNow, "settlement"},
}

// AuditLog records session-changing requests that succeeded.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route, ok := auditedRoutes[c.Request.Method+" "+c.FullPath()]
		status := c.Writer.Status()
		if !ok || status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}

		userID := UserID(c)
		details, _ := json.Marshal(struct {
			RequestID string `json:"request_id,omitempty"`
			Status    int    `json:"status"`
		}{c.GetString(CtxRequestID), status})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       userID,
			Action:       route.action,
			ResourceType: route.resource,
			ResourceID:   userID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}
