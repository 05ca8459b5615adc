package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"lightning-timesheet/internal/core/domain"
)

// WalletProvider is the external custodial wallet API. Implementations are
// stateless I/O adapters: no retries, no business rules.
type WalletProvider interface {
	GetBalance(ctx context.Context, role domain.AccountRole) (*domain.WalletAccount, error)
	// CreateReceivable creates an invoice on the payee account.
	CreateReceivable(ctx context.Context, amount int64, memo string) (*domain.Receivable, error)
	// PayReceivable pays an invoice from the payer account.
	PayReceivable(ctx context.Context, payRequest string) (*domain.Payment, error)
	GetTransferStatus(ctx context.Context, referenceID string) (*domain.TransferStatus, error)
}

// Clock abstracts time for the settlement engine.
type Clock interface {
	Now() time.Time
}

// --- Service Ports (Business Logic) ---

// SettlementService is the payment-session and settlement engine.
type SettlementService interface {
	CheckIn(ctx context.Context, userID string) (*domain.WorkSession, error)
	CheckOut(ctx context.Context, userID string) (*domain.WorkSession, error)
	Status(ctx context.Context, userID string) (*domain.WorkSession, error)
	TrySettleInterval(ctx context.Context, userID string, amount int64, reason domain.SettlementReason) (*domain.SettlementRecord, error)
	// SettleNow runs a manual settlement for the configured interval amount.
	SettleNow(ctx context.Context, userID string) (*domain.SettlementRecord, error)
	Stats(ctx context.Context, userID string) (*SessionStats, error)
	Ledger(ctx context.Context, userID string, page, pageSize int) ([]domain.SettlementRecord, int64, error)
	WalletInfo(ctx context.Context) (*WalletInfo, error)
	RateInfo() RateInfo
}

// SessionStats is the combined session + ledger view for one user.
type SessionStats struct {
	Session       domain.WorkSession
	Totals        domain.LedgerTotals
	RecentRecords []domain.SettlementRecord
	// PayeeBalance is nil when the provider could not be reached.
	PayeeBalance *int64
	// Failures counts failed settlement attempts by error code.
	Failures map[string]int64
}

// WalletInfo holds both custodial accounts.
type WalletInfo struct {
	Payer *domain.WalletAccount
	Payee *domain.WalletAccount
}

// RateInfo describes the payment schedule.
type RateInfo struct {
	HourlyRate        int64
	Interval          time.Duration
	MinInterval       time.Duration
	AmountPerInterval int64
	Unit              string
}

// AuditService records session-changing actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
