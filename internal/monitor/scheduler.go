package monitor

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs the monitor on a fixed interval. Cycles never overlap:
// if one is still running when the ticker fires, that tick is skipped
// rather than queued, so a slow database cannot compound into a
// reminder flood.
type Scheduler struct {
	Monitor  *Monitor
	Interval time.Duration

	// CycleTimeout bounds one full sweep, storage calls included. A
	// cycle that exceeds it is cancelled and retried on a later tick.
	CycleTimeout time.Duration

	mu      sync.Mutex
	running bool
}

func NewScheduler(m *Monitor, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 2 * time.Hour
	}
	return &Scheduler{Monitor: m, Interval: interval, CycleTimeout: time.Minute}
}

// Run blocks until ctx is cancelled. The first cycle runs immediately.
// Shutdown is graceful between cycles: a cycle in flight finishes and
// no new one starts.
func (s *Scheduler) Run(ctx context.Context) {
	s.tick(ctx)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.Monitor.logf("monitor: previous cycle still running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.CycleTimeout)
		defer cancel()
	}
	sent, err := s.Monitor.RunOnce(ctx)
	if err != nil {
		s.Monitor.logf("monitor: cycle failed: %v", err)
		return
	}
	s.Monitor.logf("monitor: cycle complete, %d reminder(s) sent", sent)
}
