package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"lightning-timesheet/internal/core/domain"
)

// LedgerRepository is the append-only settlement ledger, partitioned by user.
// Implementations keep totals consistent with the appended records.
type LedgerRepository interface {
	// Append stores a confirmed settlement. It fails only on storage faults.
	Append(ctx context.Context, record *domain.SettlementRecord) error
	// Snapshot returns totals and the most recent records (oldest first).
	Snapshot(ctx context.Context, userID string, recent int) (*domain.LedgerSnapshot, error)
	// Page returns records in insertion order plus the total record count.
	Page(ctx context.Context, userID string, offset, limit int) ([]domain.SettlementRecord, int64, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// SettlementGuard is a cross-process mutual exclusion for settlement attempts.
// The in-process session lock is always taken first; the guard covers several
// instances sharing the same provider accounts.
type SettlementGuard interface {
	// Acquire returns ok=false if another holder owns the guard for userID.
	Acquire(ctx context.Context, userID string, ttl time.Duration) (token string, ok bool, err error)
	// Release frees the guard if it is still owned by token.
	Release(ctx context.Context, userID string, token string) error
}
