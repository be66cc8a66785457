// Package maintenance runs the periodic SessionStore eviction sweep.
// robfig/cron/v3 supplies the schedule parser; the package drives its own
// ticker loop (Start/Stop/RunOnce/tick) rather than cron.Cron's own
// goroutine.
//
// Inbox retention (internal/inbox) is enforced on every Append rather than
// by a periodic sweep, so there is no second job here for it; a
// disconnected client's inbox is reclaimed by link.Hub's grace-window
// eviction instead.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/goldbox/relay/internal/sessionstore"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler evicts expired sessions on the schedule described by a cron
// expression (standard 5-field, optional leading seconds field, or an
// "@every 5m"-style descriptor).
type Scheduler struct {
	sessions sessionstore.Store
	schedule cron.Schedule
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	started bool
	nextRun time.Time
	wg      sync.WaitGroup
}

// New builds a Scheduler for the given cron expression. An invalid
// expression is returned as an error rather than silently disabling the
// sweep, since an unevicted SessionStore grows without bound.
func New(sessions sessionstore.Store, expr string, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("maintenance: parse schedule %q: %w", expr, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sessions: sessions,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start runs the eviction sweep on its schedule until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.nextRun = s.schedule.Next(s.now())
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop blocks until the scheduler's goroutine has exited.
func (s *Scheduler) Stop() {
	s.wg.Wait()
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	due := !s.nextRun.IsZero() && !now.Before(s.nextRun)
	s.mu.Unlock()
	if !due {
		return
	}
	s.RunOnce(ctx)
	s.mu.Lock()
	s.nextRun = s.schedule.Next(now)
	s.mu.Unlock()
}

// RunOnce evicts expired sessions immediately, independent of the
// schedule. Exposed so a server's admin surface (or a test) can trigger a
// sweep on demand.
func (s *Scheduler) RunOnce(ctx context.Context) {
	evicted, err := s.sessions.AutoEvict(ctx)
	if err != nil {
		s.logger.Warn("session eviction sweep failed", "err", err)
		return
	}
	if evicted > 0 {
		s.logger.Info("evicted expired sessions", "count", evicted)
	}
}
