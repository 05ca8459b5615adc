package dto

import (
	"time"

	"lightning-timesheet/internal/core/domain"
	"lightning-timesheet/internal/core/ports"
)

// UserHeader carries the caller identity. An empty value means the default user.
type UserHeader struct {
	UserID string `header:"X-User-ID" binding:"omitempty,max=64,safe_id"`
}

// LedgerQuery is the query string for ledger pagination.
type LedgerQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1,max=100000"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// CheckInResponse is the response body for a successful check-in.
type CheckInResponse struct {
	CheckInTime string `json:"check_in_time"`
}

// CheckOutResponse is the response body for a check-out.
type CheckOutResponse struct {
	ElapsedSeconds int64 `json:"elapsed_seconds"`
}

// SessionResponse is a point-in-time view of a work session.
type SessionResponse struct {
	UserID             string  `json:"user_id"`
	State              string  `json:"state"`
	IsActive           bool    `json:"is_active"`
	CheckInTime        *string `json:"check_in_time"`
	LastSettlementTime *string `json:"last_settlement_time"`
	ElapsedSeconds     int64   `json:"elapsed_seconds"`
}

// SettlementRecordResponse is one ledger entry.
type SettlementRecordResponse struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Timestamp   string `json:"timestamp"`
	ReferenceID string `json:"reference_id"`
	Outcome     string `json:"outcome"`
	Reason      string `json:"reason"`
	Memo        string `json:"memo,omitempty"`
}

// SettleResponse wraps the record produced by a manual settlement.
type SettleResponse struct {
	Record SettlementRecordResponse `json:"record"`
}

// StatsResponse is the combined session and ledger view.
type StatsResponse struct {
	IsActive           bool                       `json:"is_active"`
	CheckInTime        *string                    `json:"check_in_time"`
	LastSettlementTime *string                    `json:"last_settlement_time"`
	ElapsedSeconds     int64                      `json:"elapsed_seconds"`
	TotalIntervalsPaid int64                      `json:"total_intervals_paid"`
	TotalAmountPaid    int64                      `json:"total_amount_paid"`
	RecentRecords      []SettlementRecordResponse `json:"recent_records"`
	PayeeBalance       *int64                     `json:"payee_balance"`
	Failures           map[string]int64           `json:"failures"`
}

// WalletResponse is one custodial account.
type WalletResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
	Role    string `json:"role"`
}

// WalletsResponse holds both accounts.
type WalletsResponse struct {
	Payer WalletResponse `json:"payer"`
	Payee WalletResponse `json:"payee"`
}

// ConfigResponse describes the payment schedule.
type ConfigResponse struct {
	HourlyRate         int64  `json:"hourly_rate"`
	IntervalSeconds    int64  `json:"interval_seconds"`
	MinIntervalSeconds int64  `json:"min_interval_seconds"`
	AmountPerInterval  int64  `json:"amount_per_interval"`
	Unit               string `json:"unit"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToSessionResponse maps a session snapshot.
func ToSessionResponse(s *domain.WorkSession) SessionResponse {
	return SessionResponse{
		UserID:             s.UserID,
		State:              string(s.State()),
		IsActive:           s.IsActive,
		CheckInTime:        formatTimePtr(s.CheckInTime),
		LastSettlementTime: formatTimePtr(s.LastSettlementTime),
		ElapsedSeconds:     s.ElapsedSeconds,
	}
}

// ToCheckInResponse maps the session returned by check-in.
func ToCheckInResponse(s *domain.WorkSession) CheckInResponse {
	var at string
	if s.CheckInTime != nil {
		at = formatTime(*s.CheckInTime)
	}
	return CheckInResponse{CheckInTime: at}
}

// ToRecordResponse maps a ledger record.
func ToRecordResponse(rec *domain.SettlementRecord) SettlementRecordResponse {
	return SettlementRecordResponse{
		ID:          rec.ID.String(),
		Amount:      rec.Amount,
		Timestamp:   rec.Timestamp.UTC().Format(time.RFC3339Nano),
		ReferenceID: rec.ReferenceID,
		Outcome:     string(rec.Outcome),
		Reason:      string(rec.Reason),
		Memo:        rec.Memo,
	}
}

// ToRecordResponses maps a slice of records, never returning nil.
func ToRecordResponses(recs []domain.SettlementRecord) []SettlementRecordResponse {
	out := make([]SettlementRecordResponse, 0, len(recs))
	for i := range recs {
		out = append(out, ToRecordResponse(&recs[i]))
	}
	return out
}

// ToStatsResponse flattens session stats.
func ToStatsResponse(st *ports.SessionStats) StatsResponse {
	failures := st.Failures
	if failures == nil {
		failures = map[string]int64{}
	}
	return StatsResponse{
		IsActive:           st.Session.IsActive,
		CheckInTime:        formatTimePtr(st.Session.CheckInTime),
		LastSettlementTime: formatTimePtr(st.Session.LastSettlementTime),
		ElapsedSeconds:     st.Session.ElapsedSeconds,
		TotalIntervalsPaid: st.Totals.TotalIntervalsPaid,
		TotalAmountPaid:    st.Totals.TotalAmountPaid,
		RecentRecords:      ToRecordResponses(st.RecentRecords),
		PayeeBalance:       st.PayeeBalance,
		Failures:           failures,
	}
}

// ToWalletResponse maps a provider account.
func ToWalletResponse(acc *domain.WalletAccount) WalletResponse {
	if acc == nil {
		return WalletResponse{}
	}
	return WalletResponse{
		ID:      acc.ID,
		Name:    acc.Name,
		Balance: acc.Balance,
		Role:    string(acc.Role),
	}
}

// ToConfigResponse maps the rate schedule.
func ToConfigResponse(r ports.RateInfo) ConfigResponse {
	return ConfigResponse{
		HourlyRate:         r.HourlyRate,
		IntervalSeconds:    int64(r.Interval / time.Second),
		MinIntervalSeconds: int64(r.MinInterval / time.Second),
		AmountPerInterval:  r.AmountPerInterval,
		Unit:               r.Unit,
	}
}
