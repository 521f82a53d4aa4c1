package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/models"
	"github.com/ternarybob/recondo/internal/services/feeds"
)

// Service supervises the recurring work. The queue's durable scheduler drives
// the regular epoch-aligned feed polls; this service contributes the offset
// watchdog tick that recovers a stalled schedule, plus startup polls.
type Service struct {
	poller  *feeds.Poller
	cron    *cron.Cron
	logger  arbor.ILogger
	mu      sync.Mutex
	running bool

	// pollMu serializes poll rounds so the watchdog never overlaps one
	pollMu   sync.Mutex
	interval time.Duration
}

// NewService creates the scheduler. The cron runs with second precision so
// the watchdog tick can sit between poll minutes.
func NewService(poller *feeds.Poller, logger arbor.ILogger) *Service {
	return &Service{
		poller: poller,
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
	}
}

// Start registers the watchdog tick: every 5 minutes, offset 2m30s so it
// never lands on a poll minute. Sources without a configured URL register
// nothing.
func (s *Service) Start(pollIntervalMinutes int, sources []models.FeedSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if pollIntervalMinutes <= 0 {
		pollIntervalMinutes = 15
	}
	s.interval = time.Duration(pollIntervalMinutes) * time.Minute

	if len(sources) > 0 {
		if _, err := s.cron.AddFunc("30 2-59/5 * * * *", func() { s.watchdogTick(sources) }); err != nil {
			return fmt.Errorf("failed to register watchdog tick: %w", err)
		}
		s.logger.Info().
			Int("interval_minutes", pollIntervalMinutes).
			Int("sources", len(sources)).
			Msg("Poll watchdog scheduled")
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Msg("Scheduler started")
	return nil
}

// watchdogTick runs a recovery poll when the regular schedule has not
// completed a round within two intervals (missed ticks, hung fetches).
func (s *Service) watchdogTick(sources []models.FeedSource) {
	lastPoll := s.poller.LastPollAt()
	if time.Since(lastPoll) <= 2*s.interval {
		return
	}
	s.logger.Warn().
		Str("last_poll", lastPoll.Format(time.RFC3339)).
		Msg("Poll schedule stalled, running recovery poll")
	s.pollAll(sources)
}

// pollAll runs one full poll round through the poller, which records the
// round's completion time for the watchdog
func (s *Service) pollAll(sources []models.FeedSource) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := s.poller.PollAll(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Poll round finished with errors")
	}
}

// PollNow triggers an immediate poll round, used at startup
func (s *Service) PollNow(sources []models.FeedSource) {
	go s.pollAll(sources)
}

// Stop halts the cron, waiting for a running job to finish
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}
