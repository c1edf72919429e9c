// Package scheduler implements the Scheduler (C8): fixed-interval jobs
// that compute cumulative volume over a trailing period and DM every chat
// subscriber with a summary. Each job is a ticker-driven background loop.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/onchainsignal/tracker/internal/model"
)

// WindowReader is the subset of the Window Store the scheduler reads.
type WindowReader interface {
	CumulativeAmount(ctx context.Context, mint string, dir model.Direction, now int64, periodSeconds int64) (float64, error)
}

// SummaryDispatcher sends a rendered summary to every chat subscriber.
type SummaryDispatcher interface {
	DispatchChat(ctx context.Context, message string) error
}

type job struct {
	name          string
	interval      time.Duration
	periodSeconds int64
	running       atomic.Bool
}

// Scheduler drives the three fixed-interval summary jobs.
type Scheduler struct {
	window     WindowReader
	dispatcher SummaryDispatcher
	mint       string
	logger     zerolog.Logger

	jobs []*job

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Scheduler for the configured target token mint.
func New(window WindowReader, dispatcher SummaryDispatcher, mint string, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		window:     window,
		dispatcher: dispatcher,
		mint:       mint,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		jobs: []*job{
			{name: "30m", interval: 30 * time.Minute, periodSeconds: 1800},
			{name: "1h", interval: time.Hour, periodSeconds: 3600},
			{name: "4h", interval: 4 * time.Hour, periodSeconds: 14400},
		},
	}
}

// Start launches one goroutine per job. Call Stop to shut them down.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.runJob(ctx, j)
	}
}

// Stop cancels all job loops and waits for the current tick (if any) to
// finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, j *job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, j)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, j *job) {
	if !j.running.CompareAndSwap(false, true) {
		s.logger.Warn().Str("job", j.name).Msg("skipping overlapping invocation")
		return
	}
	defer j.running.Store(false)

	if err := s.runSummary(ctx, j); err != nil {
		s.logger.Error().Err(err).Str("job", j.name).Msg("summary job failed")
	}
}

// RunOnceForTest runs one summary cycle synchronously, bypassing the
// ticker loop. Exported only for tests exercising the summary logic
// without waiting on real wall-clock intervals.
func (s *Scheduler) RunOnceForTest(ctx context.Context, name string, periodSeconds int64) error {
	return s.runSummary(ctx, &job{name: name, periodSeconds: periodSeconds})
}

func (s *Scheduler) runSummary(ctx context.Context, j *job) error {
	now := time.Now().Unix()

	buys, err := s.window.CumulativeAmount(ctx, s.mint, model.DirectionBuy, now, j.periodSeconds)
	if err != nil {
		return fmt.Errorf("scheduler: %s buys: %w", j.name, err)
	}
	sells, err := s.window.CumulativeAmount(ctx, s.mint, model.DirectionSell, now, j.periodSeconds)
	if err != nil {
		return fmt.Errorf("scheduler: %s sells: %w", j.name, err)
	}

	message := fmt.Sprintf("%s summary for %s: buys $%.2f, sells $%.2f", j.name, s.mint, buys, sells)
	if err := s.dispatcher.DispatchChat(ctx, message); err != nil {
		return fmt.Errorf("scheduler: %s dispatch: %w", j.name, err)
	}
	return nil
}
