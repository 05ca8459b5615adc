package handler

import (
	"lightning-timesheet/internal/adapter/http/dto"
	"lightning-timesheet/internal/adapter/http/middleware"
	"lightning-timesheet/internal/core/ports"
	"lightning-timesheet/pkg/response"

	"github.com/gin-gonic/gin"
)

// SessionHandler handles check-in, check-out and manual settlement.
type SessionHandler struct {
	settlementSvc ports.SettlementService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(settlementSvc ports.SettlementService) *SessionHandler {
	return &SessionHandler{settlementSvc: settlementSvc}
}

// CheckIn handles POST /api/v1/work/check-in.
func (h *SessionHandler) CheckIn(c *gin.Context) {
	session, err := h.settlementSvc.CheckIn(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToCheckInResponse(session))
}

// CheckOut handles POST /api/v1/work/check-out.
// Checking out while idle is not an error; elapsed is that of the last session.
func (h *SessionHandler) CheckOut(c *gin.Context) {
	session, err := h.settlementSvc.CheckOut(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CheckOutResponse{ElapsedSeconds: session.ElapsedSeconds})
}

// Status handles GET /api/v1/work/status.
func (h *SessionHandler) Status(c *gin.Context) {
	session, err := h.settlementSvc.Status(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToSessionResponse(session))
}

// SettleNow handles POST /api/v1/payments/settle.
func (h *SessionHandler) SettleNow(c *gin.Context) {
	rec, err := h.settlementSvc.SettleNow(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.SettleResponse{Record: dto.ToRecordResponse(rec)})
}
