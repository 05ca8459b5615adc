package postgres

import (
	"context"
	"errors"
	"fmt"

	"lightning-timesheet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const recordColumns = `id, user_id, amount, settled_at, reference_id, outcome, reason, memo`

// LedgerRepo implements ports.LedgerRepository. Each append writes the record
// and bumps ledger_totals in one transaction, so totals never drift from rows.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts a settlement record and updates the user's totals.
func (r *LedgerRepo) Append(ctx context.Context, rec *domain.SettlementRecord) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO settlement_records (`+recordColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rec.ID, rec.UserID, rec.Amount, rec.Timestamp,
			rec.ReferenceID, string(rec.Outcome), string(rec.Reason), rec.Memo,
		)
		if err != nil {
			return fmt.Errorf("insert settlement record: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO ledger_totals (user_id, total_intervals_paid, total_amount_paid)
			 VALUES ($1, 1, $2)
			 ON CONFLICT (user_id) DO UPDATE SET
			   total_intervals_paid = ledger_totals.total_intervals_paid + 1,
			   total_amount_paid = ledger_totals.total_amount_paid + EXCLUDED.total_amount_paid`,
			rec.UserID, rec.Amount,
		)
		if err != nil {
			return fmt.Errorf("update ledger totals: %w", err)
		}
		return nil
	})
}

// Snapshot returns the user's totals and most recent records, oldest first.
func (r *LedgerRepo) Snapshot(ctx context.Context, userID string, recent int) (*domain.LedgerSnapshot, error) {
	snap := &domain.LedgerSnapshot{Recent: []domain.SettlementRecord{}}

	err := r.pool.QueryRow(ctx,
		`SELECT total_intervals_paid, total_amount_paid FROM ledger_totals WHERE user_id = $1`,
		userID,
	).Scan(&snap.Totals.TotalIntervalsPaid, &snap.Totals.TotalAmountPaid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return snap, nil
		}
		return nil, fmt.Errorf("get ledger totals: %w", err)
	}

	if recent <= 0 {
		return snap, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM (
		   SELECT seq, `+recordColumns+` FROM settlement_records
		   WHERE user_id = $1 ORDER BY seq DESC LIMIT $2
		 ) latest ORDER BY seq ASC`,
		userID, recent,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent settlements: %w", err)
	}
	defer rows.Close()

	snap.Recent, err = scanRecords(rows)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Page returns records in insertion order plus the total count.
func (r *LedgerRepo) Page(ctx context.Context, userID string, offset, limit int) ([]domain.SettlementRecord, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM settlement_records WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count settlements: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM settlement_records
		 WHERE user_id = $1 ORDER BY seq ASC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func scanRecords(rows pgx.Rows) ([]domain.SettlementRecord, error) {
	recs := []domain.SettlementRecord{}
	for rows.Next() {
		var rec domain.SettlementRecord
		var outcome, reason string
		err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Amount, &rec.Timestamp,
			&rec.ReferenceID, &outcome, &reason, &rec.Memo,
		)
		if err != nil {
			return nil, fmt.Errorf("scan settlement row: %w", err)
		}
		rec.Outcome = domain.SettlementOutcome(outcome)
		rec.Reason = domain.SettlementReason(reason)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement rows: %w", err)
	}
	return recs, nil
}
