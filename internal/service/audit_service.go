package service

import (
	"context"
	"sync"
	"time"

	"lightning-timesheet/internal/core/domain"
	"lightning-timesheet/internal/core/ports"

	"github.com/rs/zerolog"
)

const (
	auditQueueSize    = 256
	auditWriteTimeout = 5 * time.Second
)

// AuditService writes audit entries from a single background worker so the
// request path never waits on storage. Entries are dropped when the queue is full.
type AuditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	entries chan *domain.AuditLog
	done    chan struct{}
}

// NewAuditService starts the audit worker. A nil repo means entries are only logged.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditService {
	s := &AuditService{
		repo:    repo,
		log:     log.With().Str("component", "audit").Logger(),
		entries: make(chan *domain.AuditLog, auditQueueSize),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Log enqueues entry. It never blocks.
func (s *AuditService) Log(_ context.Context, entry *domain.AuditLog) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}
	select {
	case s.entries <- entry:
	default:
		s.log.Warn().
			Str("user_id", entry.UserID).
			Str("action", string(entry.Action)).
			Msg("audit queue full, entry dropped")
	}
}

// Close drains queued entries and stops the worker. Safe to call more than once.
func (s *AuditService) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.entries)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *AuditService) run() {
	defer close(s.done)
	for entry := range s.entries {
		s.write(entry)
	}
}

func (s *AuditService) write(entry *domain.AuditLog) {
	s.log.Info().
		Str("user_id", entry.UserID).
		Str("action", string(entry.Action)).
		Str("resource", entry.ResourceType+"/"+entry.ResourceID).
		Str("ip", entry.IPAddress).
		Msg("audit")

	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("persisting audit entry failed")
	}
}
