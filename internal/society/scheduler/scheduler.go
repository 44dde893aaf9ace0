// Package scheduler runs a society continuously: epochs of cycles separated
// by rest periods, until cancelled, halted, or out of epochs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/conclave/internal/config"
	"github.com/xkilldash9x/conclave/internal/society/coordinator"
	"github.com/xkilldash9x/conclave/internal/society/models"
	"github.com/xkilldash9x/conclave/internal/store"
)

// Scheduler drives a Coordinator through repeated epochs. It is single-use and
// must not be Run concurrently.
type Scheduler struct {
	logger  *zap.Logger
	cfg     config.SchedulerConfig
	coord   *coordinator.Coordinator
	sink    models.ReportSink
	store   store.Store
	limiter *rate.Limiter

	consecutiveFailures int
}

// New builds a Scheduler. sink receives the final report; st, when non-nil,
// persists it. Cycle and epoch reports flow through the coordinator's own sink.
func New(logger *zap.Logger, cfg config.SchedulerConfig, coord *coordinator.Coordinator, sink models.ReportSink, st store.Store) (*Scheduler, error) {
	if coord == nil {
		return nil, fmt.Errorf("%w: a coordinator is required", models.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = models.NopSink{}
	}

	s := &Scheduler{
		logger: logger.Named("scheduler"),
		cfg:    cfg,
		coord:  coord,
		sink:   sink,
		store:  st,
	}
	if cfg.MaxCycleRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.MaxCycleRate), 1)
	}
	return s, nil
}

// Run executes epochs until ctx is cancelled, MaxEpochs is reached, or the
// society halts. It always emits and persists exactly one final report.
// Cancellation is a graceful stop and returns a nil error; a halt returns the
// error that caused it alongside the final report.
func (s *Scheduler) Run(ctx context.Context) (models.FinalReport, error) {
	s.logger.Info("Continuous evolution started.",
		zap.Int("cycles_per_epoch", s.cfg.CyclesPerEpoch),
		zap.Duration("rest", s.cfg.Rest),
		zap.Int("max_epochs", s.cfg.MaxEpochs),
	)

	var (
		epochs int
		reason = models.StopReasonCompleted
		cause  error
	)
	for s.cfg.MaxEpochs == 0 || epochs < s.cfg.MaxEpochs {
		if ctx.Err() != nil {
			reason = models.StopReasonShutdown
			break
		}
		epochs++
		rep, err := s.runEpoch(ctx)
		if err != nil {
			reason, cause = models.StopReasonHalted, err
			break
		}
		if rep.Cancelled {
			reason = models.StopReasonShutdown
			break
		}
		if s.cfg.MaxEpochs > 0 && epochs >= s.cfg.MaxEpochs {
			break
		}
		if err := s.rest(ctx); err != nil {
			reason = models.StopReasonShutdown
			break
		}
	}

	final := s.coord.FinalReport(reason, epochs, cause)
	s.deliver(ctx, final)
	s.logger.Info("Continuous evolution stopped.",
		zap.String("reason", string(reason)),
		zap.Int("epochs", epochs),
		zap.Int("cycles", final.Summary.Cycles),
		zap.Float64("progress", final.Summary.CivilizationProgress),
	)
	return final, cause
}

// runEpoch runs one epoch. Recoverable cycle failures are retried on the next
// cycle; it returns an error only when the scheduler must halt.
func (s *Scheduler) runEpoch(ctx context.Context) (models.EpochReport, error) {
	rep := s.coord.BeginEpoch()
	s.logger.Info("Epoch started.", zap.Int("epoch", rep.Epoch))

	var haltErr error
cycles:
	for i := 0; i < s.cfg.CyclesPerEpoch; i++ {
		if err := s.pace(ctx); err != nil {
			rep.Cancelled = true
			break
		}
		cr, err := s.coord.RunCycle(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				rep.Cancelled = true
				break
			}
			rep.CyclesFailed++
			switch kind := models.KindOf(err); kind {
			case models.KindInvalidInput, models.KindExhaustedCatalog:
				s.consecutiveFailures++
				s.logger.Warn("Cycle failed, retrying on the next cycle.",
					zap.String("kind", string(kind)),
					zap.Int("consecutive_failures", s.consecutiveFailures),
					zap.Error(err),
				)
				if s.consecutiveFailures > s.cfg.MaxConsecutiveFailures {
					haltErr = fmt.Errorf("halting after %d consecutive cycle failures: %w", s.consecutiveFailures, err)
					break cycles
				}
			default:
				s.logger.Error("Cycle failed, halting.", zap.String("kind", string(kind)), zap.Error(err))
				haltErr = err
				break cycles
			}
			continue
		}

		s.consecutiveFailures = 0
		rep.CyclesCompleted++
		if cr.MissionComplete {
			rep.MissionComplete = true
			break
		}
	}

	s.coord.FinishEpoch(ctx, &rep)
	if rep.MissionComplete {
		s.coord.ResetProgress()
	}
	return rep, haltErr
}

func (s *Scheduler) pace(ctx context.Context) error {
	if s.limiter == nil {
		return ctx.Err()
	}
	return s.limiter.Wait(ctx)
}

// rest sleeps between epochs, returning early with ctx's error on cancellation.
func (s *Scheduler) rest(ctx context.Context) error {
	if s.cfg.Rest <= 0 {
		return ctx.Err()
	}
	s.logger.Debug("Resting between epochs.", zap.Duration("rest", s.cfg.Rest))
	timer := time.NewTimer(s.cfg.Rest)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// deliver hands the final report to the sink and the store. Neither is
// subject to the run's cancellation.
func (s *Scheduler) deliver(ctx context.Context, final models.FinalReport) {
	ctx = context.WithoutCancel(ctx)
	if err := s.sink.ReportFinal(ctx, final); err != nil {
		s.logger.Warn("Failed to deliver final report.", zap.Error(err))
	}
	if s.store == nil {
		return
	}
	if err := s.store.SaveFinal(ctx, final); err != nil {
		s.logger.Error("Failed to persist final report.", zap.Error(err))
	}
}
