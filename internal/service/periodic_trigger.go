package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// periodicTrigger fires fn once per interval on its own goroutine until Stop.
// Missed ticks are dropped by time.Ticker, so there is never a backlog of
// intervals to catch up on.
type periodicTrigger struct {
	interval time.Duration
	fn       func()
	log      zerolog.Logger

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

func newPeriodicTrigger(interval time.Duration, fn func(), log zerolog.Logger) *periodicTrigger {
	return &periodicTrigger{
		interval: interval,
		fn:       fn,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Start begins ticking. The first fire happens one interval after Start.
func (t *periodicTrigger) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started || t.stopped {
		return
	}
	t.started = true
	t.ticker = time.NewTicker(t.interval)
	t.wg.Add(1)

	go t.run()

	t.log.Debug().Dur("interval", t.interval).Msg("periodic trigger started")
}

// Stop halts the trigger and waits for the loop to exit. A fire already in
// progress completes first. Safe to call more than once.
func (t *periodicTrigger) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	started := t.started
	if started {
		t.ticker.Stop()
		close(t.stop)
	}
	t.mu.Unlock()

	if started {
		t.wg.Wait()
		t.log.Debug().Msg("periodic trigger stopped")
	}
}

func (t *periodicTrigger) run() {
	defer t.wg.Done()

	for {
		select {
		case <-t.ticker.C:
			// Stop may race with a pending tick; stop wins.
			select {
			case <-t.stop:
				return
			default:
			}
			t.fn()
		case <-t.stop:
			return
		}
	}
}
