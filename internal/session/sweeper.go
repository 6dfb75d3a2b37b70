package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"imgseekbot/core/logger"
)

const (
	// SweepInterval is how often the background sweep scans the store.
	SweepInterval = 600 * time.Second
	// SweepThreshold evicts sessions inactive for longer than this. It
	// deliberately matches the interactive timeout, not the shorter
	// text-confirm window: the sweep is a backstop, the inline check in
	// dialog processing is the authority for text-confirm expiry.
	SweepThreshold = 30 * time.Second
)

// Sweeper periodically evicts stale sessions. It is owned by the same
// component that owns the store and is stopped deterministically on
// shutdown.
type Sweeper struct {
	store     Store
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewSweeper builds a sweeper over the given store with production timers.
func NewSweeper(store Store) *Sweeper {
	return newSweeper(store, SweepInterval, SweepThreshold, time.Now)
}

func newSweeper(store Store, interval, threshold time.Duration, now func() time.Time) *Sweeper {
	return &Sweeper{
		store:     store,
		interval:  interval,
		threshold: threshold,
		now:       now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start() {
	go s.loop()
}

// Stop terminates the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Sweeper) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	now := s.now()
	var stale []int64
	s.store.ForEach(func(userID int64, sess Session) bool {
		if now.Sub(sess.LastActivity()) > s.threshold {
			stale = append(stale, userID)
		}
		return true
	})
	for _, userID := range stale {
		s.store.Delete(userID)
	}
	if len(stale) > 0 {
		logger.Debug(context.Background(), "session", "sweep.evict",
			slog.String("status", "ok"),
			slog.Int("evicted", len(stale)),
			slog.Int("sessions", s.store.Len()),
		)
	}
}
