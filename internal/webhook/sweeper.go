package webhook

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultSweepInterval = 1 * time.Minute
	defaultSweepBatch    = 50
	defaultSweepWorkers  = 4
)

// Sweeper periodically re-attempts undelivered webhook events. It backstops
// the in-process delivery loop against crashes and partner outages that
// outlast the three immediate attempts.
type Sweeper struct {
	dispatcher *Dispatcher
	interval   time.Duration
	batchSize  int
	workers    int
	logger     *slog.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) { s.interval = interval }
}

func WithSweepBatchSize(size int) SweeperOption {
	return func(s *Sweeper) { s.batchSize = size }
}

func WithSweepWorkers(workers int) SweeperOption {
	return func(s *Sweeper) { s.workers = workers }
}

func WithSweepLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = logger }
}

// NewSweeper constructs a Sweeper over the given dispatcher.
func NewSweeper(dispatcher *Dispatcher, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		dispatcher: dispatcher,
		interval:   defaultSweepInterval,
		batchSize:  defaultSweepBatch,
		workers:    defaultSweepWorkers,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "webhook sweep failed", "error", err)
			}
		}
	}
}

// Sweep re-attempts one batch of undelivered events with bounded concurrency.
// Each event gets a single attempt per sweep; the next sweep picks up
// whatever is still undelivered.
func (s *Sweeper) Sweep(ctx context.Context) error {
	pending, err := s.dispatcher.store.ListUndelivered(ctx, s.batchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	s.logger.InfoContext(ctx, "re-attempting undelivered webhooks", "count", len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, event := range pending {
		g.Go(func() error {
			s.dispatcher.attempt(gctx, event)
			return nil
		})
	}
	return g.Wait()
}
