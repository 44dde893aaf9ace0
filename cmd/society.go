// File: cmd/society.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/conclave/internal/bus"
	"github.com/xkilldash9x/conclave/internal/config"
	"github.com/xkilldash9x/conclave/internal/metrics"
	"github.com/xkilldash9x/conclave/internal/reporting"
	"github.com/xkilldash9x/conclave/internal/society/agent"
	"github.com/xkilldash9x/conclave/internal/society/challenge"
	"github.com/xkilldash9x/conclave/internal/society/coordinator"
	"github.com/xkilldash9x/conclave/internal/society/models"
	"github.com/xkilldash9x/conclave/internal/society/randsrc"
	"github.com/xkilldash9x/conclave/internal/society/scheduler"
	"github.com/xkilldash9x/conclave/internal/store"
)

// reportBufferSize bounds how far the bus subscribers may lag behind the society.
const reportBufferSize = 256

// Function variables allow tests to substitute the store and metrics registry.
var (
	openStore          = store.Open
	newMetricsRegistry = prometheus.NewRegistry
	serveMetrics       = metrics.Serve
)

// societyComponents holds everything a run needs and owns their shutdown.
type societyComponents struct {
	Coordinator *coordinator.Coordinator
	Bus         *bus.ReportBus
	Store       store.Store
	Registry    *prometheus.Registry

	logger    *zap.Logger
	reporter  reporting.Reporter
	generator challenge.Generator
}

// initializeSocietyComponents assembles the society and its report pipeline:
// the bus fans reports out to the reporter, the store and, when enabled, the
// metrics collectors.
func initializeSocietyComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*societyComponents, error) {
	sc := &societyComponents{logger: logger}
	success := false
	defer func() {
		if !success {
			sc.Shutdown()
		}
	}()

	societyCfg := cfg.Society()
	rng := randsrc.New(societyCfg.Seed)

	gen, err := newGenerator(logger, cfg.Challenges(), randsrc.Derive(rng))
	if err != nil {
		return nil, err
	}
	sc.generator = gen

	st, err := openStore(ctx, logger, cfg.Store())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	sc.Store = st

	reportCfg := cfg.Report()
	reporter, err := reporting.New(reportCfg.Format, reportCfg.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to create reporter: %w", err)
	}
	sc.reporter = reporter

	sc.Bus = bus.NewReportBus(logger, reportBufferSize)
	sc.Bus.Attach("reporter", reporter)
	sc.Bus.Attach("store", store.NewRecorder(st))
	sc.Bus.Attach("log", reporting.NewLogSink(logger), bus.TypeEpoch, bus.TypeFinal)
	if cfg.Metrics().Enabled {
		sc.Registry = newMetricsRegistry()
		sc.Bus.Attach("metrics", metrics.New(sc.Registry))
	}

	agents := agent.Spawn(societyCfg.Agents, rng, agent.WithRetention(societyCfg.HistoryRetention))
	coord, err := coordinator.New(logger, societyCfg, coordinator.Dependencies{
		Agents:    agents,
		Generator: gen,
		Sink:      sc.Bus,
		Rand:      randsrc.Derive(rng),
	})
	if err != nil {
		return nil, err
	}
	sc.Coordinator = coord

	success = true
	return sc, nil
}

func newGenerator(logger *zap.Logger, cfg config.ChallengesConfig, rng randsrc.Source) (challenge.Generator, error) {
	switch cfg.Source {
	case config.SourceCatalog, "":
		return challenge.NewCatalog(rng, challenge.DefaultCatalog())
	case config.SourceSequence:
		return challenge.NewShuffledSequence(rng, challenge.DefaultCatalog()), nil
	case config.SourceFeed:
		return challenge.NewFeed(logger, cfg.FeedPath, cfg.Follow)
	default:
		return nil, fmt.Errorf("%w: unknown challenge source %q", models.ErrInvalidInput, cfg.Source)
	}
}

// Shutdown drains the bus into its subscribers, then releases the reporter,
// the generator and the store. Safe on a partially built value.
func (sc *societyComponents) Shutdown() {
	if sc.Bus != nil {
		sc.Bus.Shutdown()
	}
	if sc.reporter != nil {
		if err := sc.reporter.Close(); err != nil {
			sc.logger.Warn("Failed to close reporter.", zap.Error(err))
		}
	}
	if c, ok := sc.generator.(io.Closer); ok {
		if err := c.Close(); err != nil {
			sc.logger.Warn("Failed to close challenge feed.", zap.Error(err))
		}
	}
	if sc.Store != nil {
		sc.Store.Close()
	}
}

// runScheduler drives the society with schedCfg, serving metrics alongside
// when enabled. The final report is returned even when the run halts.
func runScheduler(ctx context.Context, cfg config.Interface, schedCfg config.SchedulerConfig, logger *zap.Logger) (models.FinalReport, error) {
	sc, err := initializeSocietyComponents(ctx, cfg, logger)
	if err != nil {
		return models.FinalReport{}, err
	}
	defer sc.Shutdown()

	sched, err := scheduler.New(logger, schedCfg, sc.Coordinator, sc.Bus, sc.Store)
	if err != nil {
		return models.FinalReport{}, err
	}

	if sc.Registry == nil {
		return sched.Run(ctx)
	}

	// The metrics endpoint lives exactly as long as the run.
	g, gctx := errgroup.WithContext(ctx)
	runCtx, stopMetrics := context.WithCancel(gctx)
	var final models.FinalReport
	g.Go(func() error {
		defer stopMetrics()
		var runErr error
		final, runErr = sched.Run(runCtx)
		return runErr
	})
	g.Go(func() error {
		return serveMetrics(runCtx, logger, cfg.Metrics().Addr, sc.Registry)
	})
	err = g.Wait()
	return final, err
}
