package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"lightning-timesheet/config"
	"lightning-timesheet/internal/core/domain"
	"lightning-timesheet/internal/core/ports"
	"lightning-timesheet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPage         = 100000
	unitSats        = "sat"

	defaultInterval       = 30 * time.Second
	defaultAttemptTimeout = 30 * time.Second
)

// sessionEntry is one user's slot in the registry.
//
// Lock order: settleMu before stateMu before the registry mutex. stateMu is
// only ever held briefly and never across provider or ledger I/O. Triggers are stopped outside stateMu
// because a running tick may need it to finish.
type sessionEntry struct {
	settleMu sync.Mutex

	stateMu  sync.Mutex
	session  *domain.WorkSession
	trigger  *periodicTrigger
	failures map[string]int64
}

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	provider ports.WalletProvider
	ledger   ports.LedgerRepository
	guard    ports.SettlementGuard
	clock    ports.Clock
	cfg      config.SettlementConfig
	amount   int64
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	closed   bool
}

// NewSettlementService creates a new SettlementServiceImpl.
// guard may be nil when only one instance runs against the provider accounts.
func NewSettlementService(
	provider ports.WalletProvider,
	ledger ports.LedgerRepository,
	guard ports.SettlementGuard,
	clock ports.Clock,
	cfg config.SettlementConfig,
	log zerolog.Logger,
) *SettlementServiceImpl {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	// A periodic tick lands slightly less than one interval after the
	// previous settlement was stamped.
	if cfg.MinInterval >= cfg.Interval {
		cfg.MinInterval = cfg.Interval / 2
	}
	return &SettlementServiceImpl{
		provider: provider,
		ledger:   ledger,
		guard:    guard,
		clock:    clock,
		cfg:      cfg,
		amount:   AmountPerInterval(cfg),
		log:      log,
		sessions: make(map[string]*sessionEntry),
	}
}

// CheckIn starts (or re-stamps) the user's session and its periodic trigger.
func (s *SettlementServiceImpl) CheckIn(_ context.Context, userID string) (*domain.WorkSession, error) {
	entry, err := s.entry(userID)
	if err != nil {
		return nil, err
	}
	return s.checkIn(entry, userID)
}

func (s *SettlementServiceImpl) checkIn(entry *sessionEntry, userID string) (*domain.WorkSession, error) {
	now := s.clock.Now()

	entry.stateMu.Lock()
	// Shutdown may have run since the entry was handed out; it collects
	// triggers under stateMu, so a trigger started after this check is seen.
	if s.isClosed() {
		entry.stateMu.Unlock()
		return nil, errEngineClosed()
	}
	restamp := entry.session.IsActive
	entry.session.CheckIn(now)
	generation := entry.session.Generation
	old := entry.trigger
	entry.trigger = newPeriodicTrigger(s.cfg.Interval, func() {
		s.fire(entry, userID, generation)
	}, s.log.With().Str("user_id", userID).Logger())
	entry.trigger.Start()
	snap := entry.session.Snapshot(now)
	entry.stateMu.Unlock()

	if old != nil {
		old.Stop()
	}

	s.log.Info().
		Str("user_id", userID).
		Bool("restamp", restamp).
		Time("check_in_time", now).
		Msg("checked in")
	return &snap, nil
}

// CheckOut ends the user's session. It returns after the trigger has stopped,
// so no periodic settlement can start once it returns.
func (s *SettlementServiceImpl) CheckOut(_ context.Context, userID string) (*domain.WorkSession, error) {
	entry := s.lookup(userID)
	now := s.clock.Now()
	if entry == nil {
		snap := domain.NewWorkSession(userID).Snapshot(now)
		return &snap, nil
	}

	entry.stateMu.Lock()
	changed := entry.session.CheckOut(now)
	trigger := entry.trigger
	entry.trigger = nil
	snap := entry.session.Snapshot(now)
	entry.stateMu.Unlock()

	if trigger != nil {
		trigger.Stop()
	}

	if changed {
		s.log.Info().
			Str("user_id", userID).
			Int64("elapsed_seconds", snap.ElapsedSeconds).
			Msg("checked out")
	}
	return &snap, nil
}

// Status returns a snapshot of the user's session.
func (s *SettlementServiceImpl) Status(_ context.Context, userID string) (*domain.WorkSession, error) {
	now := s.clock.Now()
	entry := s.lookup(userID)
	if entry == nil {
		snap := domain.NewWorkSession(userID).Snapshot(now)
		return &snap, nil
	}

	entry.stateMu.Lock()
	snap := entry.session.Snapshot(now)
	entry.stateMu.Unlock()
	return &snap, nil
}

// TrySettleInterval pays one interval from the payer to the payee account and
// records it in the ledger once the provider confirms the transfer.
// Concurrent attempts for the same user are rejected, never queued.
func (s *SettlementServiceImpl) TrySettleInterval(ctx context.Context, userID string, amount int64, reason domain.SettlementReason) (*domain.SettlementRecord, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !reason.IsValid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown settlement reason %q", reason))
	}

	entry := s.lookup(userID)
	if entry == nil {
		return nil, apperror.ErrNotWorking()
	}

	if !entry.settleMu.TryLock() {
		return nil, s.fail(entry, userID, amount, reason, apperror.ErrSettlementInProgress())
	}
	defer entry.settleMu.Unlock()

	now := s.clock.Now()
	entry.stateMu.Lock()
	active := entry.session.IsActive
	sinceLast, settledBefore := entry.session.SinceLastSettlement(now)
	entry.stateMu.Unlock()

	if !active {
		return nil, s.fail(entry, userID, amount, reason, apperror.ErrNotWorking())
	}
	if reason == domain.SettlementReasonPeriodic && settledBefore && sinceLast < s.cfg.MinInterval {
		return nil, s.fail(entry, userID, amount, reason, apperror.ErrSettlementTooSoon())
	}

	// A caller going away must not abandon a transfer halfway; the attempt
	// is bounded by its own timeout instead.
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.AttemptTimeout)
	defer cancel()

	if s.guard != nil && s.cfg.GuardTTL > 0 {
		token, ok, err := s.guard.Acquire(attemptCtx, userID, s.cfg.GuardTTL)
		if err != nil {
			return nil, s.fail(entry, userID, amount, reason, apperror.InternalError(fmt.Errorf("acquire settlement guard: %w", err)))
		}
		if !ok {
			return nil, s.fail(entry, userID, amount, reason, apperror.ErrSettlementInProgress())
		}
		defer func() {
			if err := s.guard.Release(context.WithoutCancel(attemptCtx), userID, token); err != nil {
				s.log.Warn().Err(err).Str("user_id", userID).Msg("failed to release settlement guard")
			}
		}()
	}

	rec, err := s.transfer(attemptCtx, userID, amount, reason)
	if err != nil {
		return nil, s.fail(entry, userID, amount, reason, err)
	}

	entry.stateMu.Lock()
	entry.session.MarkSettled(rec.Timestamp)
	entry.stateMu.Unlock()

	s.log.Info().
		Str("user_id", userID).
		Str("reason", string(reason)).
		Int64("amount", amount).
		Str("reference_id", rec.ReferenceID).
		Msg("interval settled")
	return rec, nil
}

// transfer runs the provider round trip and the ledger append.
func (s *SettlementServiceImpl) transfer(ctx context.Context, userID string, amount int64, reason domain.SettlementReason) (*domain.SettlementRecord, error) {
	payer, err := s.provider.GetBalance(ctx, domain.AccountRolePayer)
	if err != nil {
		return nil, err
	}
	if payer.Balance < amount {
		return nil, apperror.ErrInsufficientFunds()
	}

	memo := fmt.Sprintf("Work payment: %d sats (%s)", amount, strings.ToLower(string(reason)))
	receivable, err := s.provider.CreateReceivable(ctx, amount, memo)
	if err != nil {
		return nil, err
	}

	payment, err := s.provider.PayReceivable(ctx, receivable.PayRequest)
	if err != nil {
		return nil, err
	}

	status, err := s.provider.GetTransferStatus(ctx, payment.ReferenceID)
	if err != nil {
		return nil, err
	}
	if !status.Settled {
		return nil, apperror.ErrSettlementUnconfirmed()
	}

	rec := &domain.SettlementRecord{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Timestamp:   s.clock.Now(),
		ReferenceID: payment.ReferenceID,
		Outcome:     domain.SettlementOutcomeSuccess,
		Reason:      reason,
		Memo:        memo,
	}
	// The transfer already happened, so the write gets a fresh deadline.
	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.AttemptTimeout)
	defer cancel()
	if err := s.ledger.Append(appendCtx, rec); err != nil {
		s.log.Error().Err(err).
			Str("user_id", userID).
			Str("reference_id", rec.ReferenceID).
			Int64("amount", amount).
			Msg("confirmed transfer could not be recorded")
		return nil, apperror.ErrLedgerWriteFailed(err)
	}
	return rec, nil
}

// SettleNow runs a manual settlement for the configured interval amount.
func (s *SettlementServiceImpl) SettleNow(ctx context.Context, userID string) (*domain.SettlementRecord, error) {
	return s.TrySettleInterval(ctx, userID, s.amount, domain.SettlementReasonManual)
}

// Stats combines the session snapshot, ledger totals and the payee balance.
// An unreachable provider leaves PayeeBalance nil rather than failing.
func (s *SettlementServiceImpl) Stats(ctx context.Context, userID string) (*ports.SessionStats, error) {
	sess, err := s.Status(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap, err := s.ledger.Snapshot(ctx, userID, s.cfg.RecentRecords)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ledger snapshot: %w", err))
	}

	stats := &ports.SessionStats{
		Session:       *sess,
		Totals:        snap.Totals,
		RecentRecords: snap.Recent,
		Failures:      map[string]int64{},
	}

	if entry := s.lookup(userID); entry != nil {
		entry.stateMu.Lock()
		for code, n := range entry.failures {
			stats.Failures[code] = n
		}
		entry.stateMu.Unlock()
	}

	payee, err := s.provider.GetBalance(ctx, domain.AccountRolePayee)
	if err != nil {
		s.log.Debug().Err(err).Str("user_id", userID).Msg("payee balance unavailable for stats")
	} else {
		balance := payee.Balance
		stats.PayeeBalance = &balance
	}
	return stats, nil
}

// Ledger returns one page of the user's settlement history, oldest first.
func (s *SettlementServiceImpl) Ledger(ctx context.Context, userID string, page, pageSize int) ([]domain.SettlementRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page > maxPage {
		page = maxPage
	}

	recs, total, err := s.ledger.Page(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("ledger page: %w", err))
	}
	return recs, total, nil
}

// WalletInfo fetches both custodial accounts.
func (s *SettlementServiceImpl) WalletInfo(ctx context.Context) (*ports.WalletInfo, error) {
	payer, err := s.provider.GetBalance(ctx, domain.AccountRolePayer)
	if err != nil {
		return nil, err
	}
	payee, err := s.provider.GetBalance(ctx, domain.AccountRolePayee)
	if err != nil {
		return nil, err
	}
	return &ports.WalletInfo{Payer: payer, Payee: payee}, nil
}

// RateInfo describes the configured payment schedule.
func (s *SettlementServiceImpl) RateInfo() ports.RateInfo {
	return ports.RateInfo{
		HourlyRate:        s.cfg.HourlyRate,
		Interval:          s.cfg.Interval,
		MinInterval:       s.cfg.MinInterval,
		AmountPerInterval: s.amount,
		Unit:              unitSats,
	}
}

// Shutdown stops every periodic trigger and rejects new check-ins.
// In-flight settlements finish before it returns.
func (s *SettlementServiceImpl) Shutdown() {
	s.mu.Lock()
	s.closed = true
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	for _, e := range entries {
		e.stateMu.Lock()
		trigger := e.trigger
		e.trigger = nil
		e.stateMu.Unlock()
		if trigger != nil {
			trigger.Stop()
		}
	}
	s.log.Info().Int("sessions", len(entries)).Msg("settlement engine stopped")
}

// fire is the periodic trigger callback. Failures are logged and swallowed so
// the trigger keeps running.
func (s *SettlementServiceImpl) fire(entry *sessionEntry, userID string, generation uint64) {
	entry.stateMu.Lock()
	current := entry.session.IsActive && entry.session.Generation == generation
	entry.stateMu.Unlock()
	if !current {
		return
	}

	// Trigger-owned attempt; bounded by attempt_timeout inside TrySettleInterval.
	_, _ = s.TrySettleInterval(context.Background(), userID, s.amount, domain.SettlementReasonPeriodic)
}

// fail counts err against the session and logs it with its error code.
func (s *SettlementServiceImpl) fail(entry *sessionEntry, userID string, amount int64, reason domain.SettlementReason, err error) error {
	code := apperror.CodeOf(err)

	entry.stateMu.Lock()
	entry.failures[code]++
	entry.stateMu.Unlock()

	ev := s.log.Warn()
	if code == apperror.CodeSettlementInProgress || code == apperror.CodeSettlementTooSoon {
		ev = s.log.Debug()
	}
	ev.Err(err).
		Str("user_id", userID).
		Str("reason", string(reason)).
		Int64("amount", amount).
		Str("error_code", code).
		Msg("settlement attempt failed")
	return err
}

// entry returns the user's registry slot, creating it on first use.
func (s *SettlementServiceImpl) entry(userID string) (*sessionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errEngineClosed()
	}
	e, ok := s.sessions[userID]
	if !ok {
		e = &sessionEntry{
			session:  domain.NewWorkSession(userID),
			failures: make(map[string]int64),
		}
		s.sessions[userID] = e
	}
	return e, nil
}

func (s *SettlementServiceImpl) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func errEngineClosed() error {
	return apperror.InternalError(fmt.Errorf("settlement engine is shut down"))
}

func (s *SettlementServiceImpl) lookup(userID string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID]
}
