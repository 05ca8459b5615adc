package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lightning-timesheet/internal/core/domain"
	"lightning-timesheet/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_CheckInSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAudit := mocks.NewMockAuditService(ctrl)

	done := make(chan struct{})
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, entry *domain.AuditLog) {
			assert.Equal(t, domain.AuditActionCheckIn, entry.Action)
			assert.Equal(t, "work_session", entry.ResourceType)
			assert.Equal(t, "alice", entry.UserID)
			assert.Equal(t, "alice", entry.ResourceID)
			assert.Contains(t, entry.Details, `"status":200`)
			close(done)
		},
	)

	r := gin.New()
	r.Use(UserIdentity(), AuditLog(mockAudit))
	r.POST("/api/v1/work/check-in", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/work/check-in", nil)
	req.Header.Set(HeaderUserID, "alice")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("audit not called")
	}
}

func TestAuditLog_SkipsGET(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAudit := mocks.NewMockAuditService(ctrl)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.GET("/api/v1/work/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"is_active": false})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/work/status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditLog_SkipsFailedRequests(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAudit := mocks.NewMockAuditService(ctrl)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/payments/settle", func(c *gin.Context) {
		c.JSON(http.StatusConflict, gin.H{"error_code": "SES_001"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/payments/settle", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuditLog_MatchesRouteTemplate(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	var got []domain.AuditAction
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) {
			got = append(got, entry.Action)
			assert.Equal(t, DefaultUserID, entry.UserID)
		},
	).Times(2)

	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/work/check-out", ok)
	r.POST("/api/v1/payments/settle", ok)
	r.POST("/api/v1/stats", ok)

	for _, path := range []string{"/api/v1/work/check-out", "/api/v1/payments/settle", "/api/v1/stats", "/api/v1/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}

	assert.Equal(t, []domain.AuditAction{domain.AuditActionCheckOut, domain.AuditActionSettleNow}, got)
}
