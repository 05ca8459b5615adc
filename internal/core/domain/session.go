package domain

import "time"

// SessionState is the work-session state machine position.
type SessionState string

const (
	SessionStateIdle   SessionState = "IDLE"
	SessionStateActive SessionState = "ACTIVE"
)

// WorkSession tracks one user's check-in state. It is reused across work
// sessions for the lifetime of the process.
type WorkSession struct {
	UserID             string     `json:"user_id"`
	IsActive           bool       `json:"is_active"`
	CheckInTime        *time.Time `json:"check_in_time,omitempty"`
	LastSettlementTime *time.Time `json:"last_settlement_time,omitempty"`
	// ElapsedSeconds holds the duration of the last finished session.
	// While active it is derived from CheckInTime on read, see Elapsed.
	ElapsedSeconds int64 `json:"elapsed_seconds"`
	// Generation increments on every check-in so stale triggers can tell
	// they belong to an earlier check-in.
	Generation uint64 `json:"-"`
}

// NewWorkSession returns an idle session for userID.
func NewWorkSession(userID string) *WorkSession {
	return &WorkSession{UserID: userID}
}

// State returns the state machine position.
func (s *WorkSession) State() SessionState {
	if s.IsActive {
		return SessionStateActive
	}
	return SessionStateIdle
}

// CheckIn opens (or re-stamps) the session at now.
// Re-checking in while active resets CheckInTime without error.
func (s *WorkSession) CheckIn(now time.Time) {
	t := now
	s.IsActive = true
	s.CheckInTime = &t
	s.ElapsedSeconds = 0
	s.Generation++
}

// CheckOut closes the session and returns false if it was not active.
func (s *WorkSession) CheckOut(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	s.ElapsedSeconds = s.Elapsed(now)
	s.IsActive = false
	s.CheckInTime = nil
	return true
}

// Elapsed returns whole seconds since check-in while active, or the stored
// duration of the last session otherwise.
func (s *WorkSession) Elapsed(now time.Time) int64 {
	if !s.IsActive || s.CheckInTime == nil {
		return s.ElapsedSeconds
	}
	d := now.Sub(*s.CheckInTime)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// MarkSettled records a successful settlement time.
func (s *WorkSession) MarkSettled(at time.Time) {
	t := at
	s.LastSettlementTime = &t
}

// SinceLastSettlement reports how long ago the last settlement happened.
// ok is false when no settlement has happened yet.
func (s *WorkSession) SinceLastSettlement(now time.Time) (d time.Duration, ok bool) {
	if s.LastSettlementTime == nil {
		return 0, false
	}
	return now.Sub(*s.LastSettlementTime), true
}

// Snapshot returns a copy with ElapsedSeconds computed at now, safe to hand
// to callers outside the session lock.
func (s *WorkSession) Snapshot(now time.Time) WorkSession {
	cp := *s
	if s.CheckInTime != nil {
		t := *s.CheckInTime
		cp.CheckInTime = &t
	}
	if s.LastSettlementTime != nil {
		t := *s.LastSettlementTime
		cp.LastSettlementTime = &t
	}
	cp.ElapsedSeconds = s.Elapsed(now)
	return cp
}
