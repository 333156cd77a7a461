package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"videostar-app/internal/domain/subscriptions"
)

// SweepScheduler runs the subscription expiry sweep on a fixed cadence. It
// only touches rows the verify and webhook paths have not already moved to a
// terminal state; running it concurrently with them is safe because every
// transition is a conditional write.
type SweepScheduler struct {
	engine   *subscriptions.Engine
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSweepScheduler(engine *subscriptions.Engine, interval time.Duration) *SweepScheduler {
	return &SweepScheduler{
		engine:   engine,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *SweepScheduler) Start(ctx context.Context) {
	log.Printf("sweeper: starting with interval %s", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop(ctx)
	}()
}

func (s *SweepScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		log.Printf("sweeper: stopped")
	})
}

func (s *SweepScheduler) runLoop(ctx context.Context) {
	// Clear any backlog immediately on startup.
	s.runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *SweepScheduler) runOnce() {
	start := time.Now()
	expired, err := s.engine.Sweep(start)
	if err != nil {
		log.Printf("sweeper: sweep failed: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("sweeper: expired %d subscriptions in %s", expired, time.Since(start))
	}
}
