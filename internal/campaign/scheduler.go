package campaign

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is how often the scheduler looks for due campaigns
const DefaultInterval = 30 * time.Second

// Scheduler delivers scheduled campaigns once they are due
type Scheduler struct {
	composer *Composer
	interval time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler polling every interval
func NewScheduler(composer *Composer, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		composer: composer,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the polling loop
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Info("scheduler started", "interval", s.interval)
}

// Stop cancels in-flight deliveries and waits for the loop to exit
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler...")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(s.ctx); err != nil {
				s.logger.Error("failed to process due campaigns", "error", err)
			}
		}
	}
}

// RunOnce delivers every campaign due now and returns how many were started
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	due, err := s.composer.store.Due(ctx, s.composer.now())
	if err != nil {
		return 0, err
	}

	started := 0
	for _, camp := range due {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.composer.Deliver(ctx, camp.ID); err != nil {
			if errors.Is(err, ErrStatusChanged) {
				continue
			}
			s.logger.Error("failed to deliver campaign", "campaign_id", camp.ID, "error", err)
			continue
		}
		started++
	}
	return started, nil
}
