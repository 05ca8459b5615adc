package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lightning-timesheet/internal/core/domain"
	"lightning-timesheet/internal/core/ports"
	"lightning-timesheet/internal/core/ports/mocks"
	"lightning-timesheet/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newMockRouter(t *testing.T) (*gin.Engine, *mocks.MockSettlementService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSettlementService(ctrl)
	r := SetupRouter(RouterDeps{SettlementSvc: svc, Logger: zerolog.Nop()})
	return r, svc
}

func do(r *gin.Engine, method, target, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["request_id"])
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "body: %s", w.Body.String())
	return data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

// --- Session Handler Tests ---

func TestCheckIn_Success(t *testing.T) {
	r, svc := newMockRouter(t)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.EXPECT().CheckIn(gomock.Any(), "alice").Return(&domain.WorkSession{
		UserID: "alice", IsActive: true, CheckInTime: &at,
	}, nil)

	w := do(r, http.MethodPost, "/api/v1/work/check-in", "alice")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-03-01T09:00:00Z", decodeData(t, w)["check_in_time"])
}

func TestCheckIn_DefaultUser(t *testing.T) {
	r, svc := newMockRouter(t)

	at := time.Now().UTC()
	svc.EXPECT().CheckIn(gomock.Any(), "default").Return(&domain.WorkSession{
		UserID: "default", IsActive: true, CheckInTime: &at,
	}, nil)

	w := do(r, http.MethodPost, "/api/v1/work/check-in", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckIn_InvalidUserHeader(t *testing.T) {
	r, _ := newMockRouter(t)

	w := do(r, http.MethodPost, "/api/v1/work/check-in", "bad user!")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeInvalidRequest, decodeError(t, w))
}

func TestCheckOut_ReturnsElapsed(t *testing.T) {
	r, svc := newMockRouter(t)

	svc.EXPECT().CheckOut(gomock.Any(), "alice").Return(&domain.WorkSession{
		UserID: "alice", ElapsedSeconds: 95,
	}, nil)

	w := do(r, http.MethodPost, "/api/v1/work/check-out", "alice")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(95), decodeData(t, w)["elapsed_seconds"])
}

func TestStatus_Idle(t *testing.T) {
	r, svc := newMockRouter(t)

	svc.EXPECT().Status(gomock.Any(), "bob").Return(&domain.WorkSession{UserID: "bob"}, nil)

	w := do(r, http.MethodGet, "/api/v1/work/status", "bob")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "IDLE", data["state"])
	assert.Equal(t, false, data["is_active"])
	assert.Nil(t, data["check_in_time"])
}

func TestSettleNow_Success(t *testing.T) {
	r, svc := newMockRouter(t)

	rec := &domain.SettlementRecord{
		ID:          uuid.New(),
		UserID:      "alice",
		Amount:      3,
		Timestamp:   time.Now().UTC(),
		ReferenceID: "hash-1",
		Outcome:     domain.SettlementOutcomeSuccess,
		Reason:      domain.SettlementReasonManual,
	}
	svc.EXPECT().SettleNow(gomock.Any(), "alice").Return(rec, nil)

	w := do(r, http.MethodPost, "/api/v1/payments/settle", "alice")

	assert.Equal(t, http.StatusCreated, w.Code)
	record := decodeData(t, w)["record"].(map[string]interface{})
	assert.Equal(t, rec.ID.String(), record["id"])
	assert.Equal(t, "hash-1", record["reference_id"])
	assert.Equal(t, "MANUAL", record["reason"])
	assert.Equal(t, float64(3), record["amount"])
}

func TestSettleNow_TypedErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not working", apperror.ErrNotWorking(), http.StatusConflict},
		{"in progress", apperror.ErrSettlementInProgress(), http.StatusConflict},
		{"insufficient funds", apperror.ErrInsufficientFunds(), http.StatusPaymentRequired},
		{"unconfirmed", apperror.ErrSettlementUnconfirmed(), http.StatusBadGateway},
		{"provider down", apperror.ErrProviderUnavailable(errors.New("dial tcp")), http.StatusServiceUnavailable},
		{"ledger", apperror.ErrLedgerWriteFailed(errors.New("disk full")), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, svc := newMockRouter(t)
			svc.EXPECT().SettleNow(gomock.Any(), "alice").Return(nil, tc.err)

			w := do(r, http.MethodPost, "/api/v1/payments/settle", "alice")

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, apperror.CodeOf(tc.err), decodeError(t, w))
		})
	}
}

// --- Stats Handler Tests ---

func TestGetStats_Success(t *testing.T) {
	r, svc := newMockRouter(t)

	at := time.Now().UTC().Add(-time.Minute)
	balance := int64(42)
	svc.EXPECT().Stats(gomock.Any(), "alice").Return(&ports.SessionStats{
		Session: domain.WorkSession{UserID: "alice", IsActive: true, CheckInTime: &at, ElapsedSeconds: 60},
		Totals:  domain.LedgerTotals{TotalIntervalsPaid: 2, TotalAmountPaid: 6},
		RecentRecords: []domain.SettlementRecord{
			{ID: uuid.New(), Amount: 3, Timestamp: at, ReferenceID: "h1", Outcome: domain.SettlementOutcomeSuccess, Reason: domain.SettlementReasonPeriodic},
		},
		PayeeBalance: &balance,
		Failures:     map[string]int64{apperror.CodeInsufficientFunds: 1},
	}, nil)

	w := do(r, http.MethodGet, "/api/v1/stats", "alice")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["is_active"])
	assert.Equal(t, float64(2), data["total_intervals_paid"])
	assert.Equal(t, float64(6), data["total_amount_paid"])
	assert.Equal(t, float64(42), data["payee_balance"])
	assert.Len(t, data["recent_records"], 1)
	assert.Equal(t, float64(1), data["failures"].(map[string]interface{})["PAY_001"])
}

func TestGetStats_ServiceError(t *testing.T) {
	r, svc := newMockRouter(t)

	svc.EXPECT().Stats(gomock.Any(), "alice").Return(nil, errors.New("boom"))

	w := do(r, http.MethodGet, "/api/v1/stats", "alice")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SYS_000", decodeError(t, w))
}

func TestListLedger_Defaults(t *testing.T) {
	r, svc := newMockRouter(t)

	svc.EXPECT().Ledger(gomock.Any(), "alice", 1, 20).Return([]domain.SettlementRecord{}, int64(0), nil)

	w := do(r, http.MethodGet, "/api/v1/ledger", "alice")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(1), data["page"])
	assert.Equal(t, float64(20), data["page_size"])
	assert.NotNil(t, data["items"])
}

func TestListLedger_Paging(t *testing.T) {
	r, svc := newMockRouter(t)

	recs := []domain.SettlementRecord{
		{ID: uuid.New(), Amount: 3, Timestamp: time.Now().UTC(), ReferenceID: "h3", Outcome: domain.SettlementOutcomeSuccess, Reason: domain.SettlementReasonPeriodic},
	}
	svc.EXPECT().Ledger(gomock.Any(), "alice", 3, 2).Return(recs, int64(5), nil)

	w := do(r, http.MethodGet, "/api/v1/ledger?page=3&page_size=2", "alice")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(5), data["total"])
	assert.Equal(t, float64(3), data["total_pages"])
	assert.Len(t, data["items"], 1)
}

func TestListLedger_InvalidQuery(t *testing.T) {
	r, _ := newMockRouter(t)

	w := do(r, http.MethodGet, "/api/v1/ledger?page_size=1000", "alice")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeInvalidRequest, decodeError(t, w))
}

func TestGetWallets_Success(t *testing.T) {
	r, svc := newMockRouter(t)

	svc.EXPECT().WalletInfo(gomock.Any()).Return(&ports.WalletInfo{
		Payer: &domain.WalletAccount{ID: "w1", Name: "Employer", Balance: 5000, Role: domain.AccountRolePayer},
		Payee: &domain.WalletAccount{ID: "w2", Name: "Employee", Balance: 12, Role: domain.AccountRolePayee},
	}, nil)

	w := do(r, http.MethodGet, "/api/v1/wallets", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(5000), data["payer"].(map[string]interface{})["balance"])
	assert.Equal(t, "PAYEE", data["payee"].(map[string]interface{})["role"])
}

func TestGetWallets_ProviderDown(t *testing.T) {
	r, svc := newMockRouter(t)

	svc.EXPECT().WalletInfo(gomock.Any()).Return(nil, apperror.ErrProviderUnavailable(context.DeadlineExceeded))

	w := do(r, http.MethodGet, "/api/v1/wallets", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, apperror.CodeProviderUnavailable, decodeError(t, w))
}

func TestGetConfig(t *testing.T) {
	r, svc := newMockRouter(t)

	svc.EXPECT().RateInfo().Return(ports.RateInfo{
		HourlyRate:        360,
		Interval:          30 * time.Second,
		AmountPerInterval: 3,
		Unit:              "sat",
	})

	w := do(r, http.MethodGet, "/api/v1/config", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(360), data["hourly_rate"])
	assert.Equal(t, float64(30), data["interval_seconds"])
	assert.Equal(t, float64(3), data["amount_per_interval"])
	assert.Equal(t, "sat", data["unit"])
}

// --- Health & Swagger ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)

	healthy := mocks.NewMockHealthChecker(ctrl)
	healthy.EXPECT().Name().Return("redis").AnyTimes()
	healthy.EXPECT().Ping(gomock.Any()).Return(nil)

	r := gin.New()
	r.GET("/health", HealthCheck(healthy))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
}

func TestHealthCheck_Degraded(t *testing.T) {
	ctrl := gomock.NewController(t)

	healthy := mocks.NewMockHealthChecker(ctrl)
	healthy.EXPECT().Name().Return("redis").AnyTimes()
	healthy.EXPECT().Ping(gomock.Any()).Return(nil)
	broken := mocks.NewMockHealthChecker(ctrl)
	broken.EXPECT().Name().Return("wallet_provider").AnyTimes()
	broken.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	r := gin.New()
	r.GET("/health", HealthCheck(healthy, broken))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	assert.Equal(t, "unhealthy", deps["wallet_provider"].(map[string]interface{})["status"])
	assert.Equal(t, "healthy", deps["redis"].(map[string]interface{})["status"])
}

func TestHealthCheck_PingIsBounded(t *testing.T) {
	ctrl := gomock.NewController(t)

	slow := mocks.NewMockHealthChecker(ctrl)
	slow.EXPECT().Name().Return("postgres").AnyTimes()
	slow.EXPECT().Ping(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	})

	r := gin.New()
	r.GET("/health", HealthCheck(slow))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"latency_ms"`)
}

func TestSwaggerUI(t *testing.T) {
	r := gin.New()
	r.GET("/swagger", SwaggerUI)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger-ui")
}

func TestSwaggerSpec(t *testing.T) {
	r := gin.New()
	r.GET("/swagger/spec", SwaggerSpec)

	SetSwaggerSpec(nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/spec", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	SetSwaggerSpec([]byte("openapi: 3.0.3\n"))
	t.Cleanup(func() { SetSwaggerSpec(nil) })
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/spec", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")
}
