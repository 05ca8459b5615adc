package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lightning-timesheet/internal/core/domain"

	"github.com/google/uuid"
)

const recordColumns = `id, user_id, amount, settled_at, reference_id, outcome, reason, memo`

// LedgerRepo implements ports.LedgerRepository on a local SQLite file.
type LedgerRepo struct {
	db *sql.DB
}

// NewLedgerRepo creates a ledger on an opened database.
func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// Append inserts the record and bumps the user's totals in one transaction.
func (r *LedgerRepo) Append(ctx context.Context, rec *domain.SettlementRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting ledger transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settlement_records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.UserID, rec.Amount, rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.ReferenceID, string(rec.Outcome), string(rec.Reason), rec.Memo,
	)
	if err != nil {
		return fmt.Errorf("insert settlement record: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_totals (user_id, total_intervals_paid, total_amount_paid) VALUES (?, 1, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   total_intervals_paid = total_intervals_paid + 1,
		   total_amount_paid = total_amount_paid + excluded.total_amount_paid`,
		rec.UserID, rec.Amount,
	)
	if err != nil {
		return fmt.Errorf("update ledger totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ledger transaction: %w", err)
	}
	committed = true
	return nil
}

// Snapshot returns the user's totals and most recent records, oldest first.
func (r *LedgerRepo) Snapshot(ctx context.Context, userID string, recent int) (*domain.LedgerSnapshot, error) {
	snap := &domain.LedgerSnapshot{Recent: []domain.SettlementRecord{}}

	err := r.db.QueryRowContext(ctx,
		`SELECT total_intervals_paid, total_amount_paid FROM ledger_totals WHERE user_id = ?`, userID,
	).Scan(&snap.Totals.TotalIntervalsPaid, &snap.Totals.TotalAmountPaid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snap, nil
		}
		return nil, fmt.Errorf("get ledger totals: %w", err)
	}

	if recent <= 0 {
		return snap, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM (
		   SELECT seq, `+recordColumns+` FROM settlement_records
		   WHERE user_id = ? ORDER BY seq DESC LIMIT ?
		 ) ORDER BY seq ASC`,
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
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM settlement_records WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count settlements: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM settlement_records
		 WHERE user_id = ? ORDER BY seq ASC LIMIT ? OFFSET ?`,
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

// Ping checks the database file is reachable.
func (r *LedgerRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Name returns the dependency name.
func (r *LedgerRepo) Name() string {
	return "sqlite"
}

func scanRecords(rows *sql.Rows) ([]domain.SettlementRecord, error) {
	recs := []domain.SettlementRecord{}
	for rows.Next() {
		var rec domain.SettlementRecord
		var id, settledAt, outcome, reason string
		if err := rows.Scan(&id, &rec.UserID, &rec.Amount, &settledAt,
			&rec.ReferenceID, &outcome, &reason, &rec.Memo); err != nil {
			return nil, fmt.Errorf("scan settlement row: %w", err)
		}

		parsedID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse settlement id %q: %w", id, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, settledAt)
		if err != nil {
			return nil, fmt.Errorf("parse settled_at %q: %w", settledAt, err)
		}

		rec.ID = parsedID
		rec.Timestamp = ts
		rec.Outcome = domain.SettlementOutcome(outcome)
		rec.Reason = domain.SettlementReason(reason)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement rows: %w", err)
	}
	return recs, nil
}
