package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ExpireFunc is called for every typing indicator the sweeper removes.
type ExpireFunc func(Expired)

// Sweeper periodically expires typing indicators of clients that stopped
// sending typing-stop, typically because the connection dropped silently.
type Sweeper struct {
	tracker   *Tracker
	interval  time.Duration
	onExpire  ExpireFunc
	now       func() time.Time
	log       zerolog.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSweeper creates a sweeper for tracker.
func NewSweeper(tracker *Tracker, interval time.Duration, onExpire ExpireFunc, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		tracker:  tracker,
		interval: interval,
		onExpire: onExpire,
		now:      time.Now,
		log:      log.With().Str("component", "typing-sweeper").Logger(),
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in background.
// Safe to call multiple times - only the first call starts the sweeper.
func (s *Sweeper) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run(ctx)
		s.log.Info().Dur("interval", s.interval).Msg("typing sweeper started")
	})
}

// Stop gracefully shuts down the sweeper.
// Safe to call multiple times - only the first call stops the sweeper.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.log.Info().Msg("typing sweeper stopped")
	})
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("context cancelled, shutting down sweeper")
			return
		case <-s.done:
			s.log.Debug().Msg("done signal received, shutting down sweeper")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep expires stale typing indicators once.
func (s *Sweeper) Sweep() int {
	expired := s.tracker.ExpireTyping(s.now())
	for _, e := range expired {
		if s.onExpire != nil {
			s.onExpire(e)
		}
	}
	if len(expired) > 0 {
		s.log.Debug().Int("expired", len(expired)).Msg("typing indicators expired")
	}
	return len(expired)
}
