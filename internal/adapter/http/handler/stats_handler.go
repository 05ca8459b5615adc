package handler

import (
	"lightning-timesheet/internal/adapter/http/dto"
	"lightning-timesheet/internal/adapter/http/middleware"
	"lightning-timesheet/internal/core/ports"
	"lightning-timesheet/pkg/apperror"
	"lightning-timesheet/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
)

// StatsHandler serves read-only views of sessions, the ledger and wallets.
type StatsHandler struct {
	settlementSvc ports.SettlementService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(settlementSvc ports.SettlementService) *StatsHandler {
	return &StatsHandler{settlementSvc: settlementSvc}
}

// GetStats handles GET /api/v1/stats.
func (h *StatsHandler) GetStats(c *gin.Context) {
	stats, err := h.settlementSvc.Stats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToStatsResponse(stats))
}

// ListLedger handles GET /api/v1/ledger.
func (h *StatsHandler) ListLedger(c *gin.Context) {
	var q dto.LedgerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if q.Page == 0 {
		q.Page = defaultPage
	}
	if q.PageSize == 0 {
		q.PageSize = defaultPageSize
	}

	records, total, err := h.settlementSvc.Ledger(c.Request.Context(), middleware.UserID(c), q.Page, q.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, dto.ToRecordResponses(records), total, q.Page, q.PageSize)
}

// GetWallets handles GET /api/v1/wallets.
func (h *StatsHandler) GetWallets(c *gin.Context) {
	info, err := h.settlementSvc.WalletInfo(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.WalletsResponse{
		Payer: dto.ToWalletResponse(info.Payer),
		Payee: dto.ToWalletResponse(info.Payee),
	})
}

// GetConfig handles GET /api/v1/config.
func (h *StatsHandler) GetConfig(c *gin.Context) {
	response.OK(c, dto.ToConfigResponse(h.settlementSvc.RateInfo()))
}
