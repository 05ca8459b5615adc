package memory

import (
	"context"
	"sync"

	"lightning-timesheet/internal/core/domain"
)

// partition is one user's ledger. Totals are folded in on append so reads
// never rescan the record list.
type partition struct {
	records []domain.SettlementRecord
	totals  domain.LedgerTotals
}

// LedgerRepo implements ports.LedgerRepository in process memory.
// Contents are lost on restart.
type LedgerRepo struct {
	mu    sync.RWMutex
	users map[string]*partition
}

// NewLedgerRepo creates an empty in-memory ledger.
func NewLedgerRepo() *LedgerRepo {
	return &LedgerRepo{users: make(map[string]*partition)}
}

// Append stores a record and updates the user's totals atomically.
func (r *LedgerRepo) Append(_ context.Context, record *domain.SettlementRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.users[record.UserID]
	if !ok {
		p = &partition{}
		r.users[record.UserID] = p
	}
	p.records = append(p.records, *record)
	p.totals.Add(record)
	return nil
}

// Snapshot returns totals and up to recent most recent records, oldest first.
func (r *LedgerRepo) Snapshot(_ context.Context, userID string, recent int) (*domain.LedgerSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &domain.LedgerSnapshot{Recent: []domain.SettlementRecord{}}
	p, ok := r.users[userID]
	if !ok {
		return snap, nil
	}

	snap.Totals = p.totals
	if recent > 0 {
		start := len(p.records) - recent
		if start < 0 {
			start = 0
		}
		snap.Recent = append(snap.Recent, p.records[start:]...)
	}
	return snap, nil
}

// Page returns records in insertion order.
func (r *LedgerRepo) Page(_ context.Context, userID string, offset, limit int) ([]domain.SettlementRecord, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.users[userID]
	if !ok {
		return []domain.SettlementRecord{}, 0, nil
	}

	total := int64(len(p.records))
	if offset < 0 {
		offset = 0
	}
	if offset >= len(p.records) || limit <= 0 {
		return []domain.SettlementRecord{}, total, nil
	}
	end := offset + limit
	if end > len(p.records) {
		end = len(p.records)
	}

	out := make([]domain.SettlementRecord, end-offset)
	copy(out, p.records[offset:end])
	return out, total, nil
}
