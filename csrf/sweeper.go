package csrf

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-course-server/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically evicts expired records so abandoned identities cannot grow the
// store without bound. It runs on its own ticker, independent of request traffic.
type Sweeper struct {
	store    Store
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSweeper creates a stopped sweeper. now may be nil to use time.Now.
func NewSweeper(store Store, interval time.Duration, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		now:      now,
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop(s.stopCh, s.doneCh)
	log.Info().Dur("interval", s.interval).Msg("csrf sweeper started")
}

// Stop halts the loop and waits for it to exit. Safe to call more than once, or before Start.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	log.Info().Msg("csrf sweeper stopped")
}

// RunOnce performs a single sweep at the sweeper's current time.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	evicted, err := s.store.Sweep(ctx, s.now())
	if err != nil {
		log.Err(err).Msg("csrf sweep failed")
		return 0, err
	}
	metrics.CSRFRecordsSwept.Add(float64(evicted))
	if sized, ok := s.store.(interface{ Len() int }); ok {
		metrics.CSRFLiveRecords.Set(float64(sized.Len()))
	}
	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Msg("csrf sweep complete")
	}
	return evicted, nil
}

func (s *Sweeper) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			_, _ = s.RunOnce(ctx)
			cancel()
		case <-stopCh:
			return
		}
	}
}
