package domain

import (
	"time"

	"github.com/google/uuid"
)

// SettlementReason identifies what triggered a settlement attempt.
type SettlementReason string

const (
	SettlementReasonPeriodic SettlementReason = "PERIODIC"
	SettlementReasonManual   SettlementReason = "MANUAL"
)

// IsValid reports whether r is a known reason.
func (r SettlementReason) IsValid() bool {
	return r == SettlementReasonPeriodic || r == SettlementReasonManual
}

// SettlementOutcome is the recorded result. Only successful, provider-confirmed
// settlements are ledgered, so SUCCESS is the only value ever stored.
type SettlementOutcome string

const (
	SettlementOutcomeSuccess SettlementOutcome = "SUCCESS"
)

// SettlementRecord is an immutable ledger entry for one paid interval.
type SettlementRecord struct {
	ID          uuid.UUID         `json:"id"`
	UserID      string            `json:"user_id"`
	Amount      int64             `json:"amount"` // In satoshis
	Timestamp   time.Time         `json:"timestamp"`
	ReferenceID string            `json:"reference_id"` // Provider payment hash
	Outcome     SettlementOutcome `json:"outcome"`
	Reason      SettlementReason  `json:"reason"`
	Memo        string            `json:"memo,omitempty"`
}

// LedgerTotals are aggregate counters derived from the ledger.
type LedgerTotals struct {
	TotalIntervalsPaid int64 `json:"total_intervals_paid"`
	TotalAmountPaid    int64 `json:"total_amount_paid"`
}

// Add folds one record into the totals.
func (t *LedgerTotals) Add(rec *SettlementRecord) {
	t.TotalIntervalsPaid++
	t.TotalAmountPaid += rec.Amount
}

// LedgerSnapshot is a read-only view consistent with the latest append.
type LedgerSnapshot struct {
	Totals LedgerTotals `json:"totals"`
	// Recent holds the most recent records, oldest first.
	Recent []SettlementRecord `json:"recent"`
}
