// Package metrics exposes society health as Prometheus metrics.
//
// Metrics implements models.ReportSink, so it is attached to the report bus
// like any other subscriber. Gauges mirror the latest summary; counters
// accumulate across the run.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/conclave/internal/society/models"
)

const namespace = "conclave"

// Metrics holds every collector fed by the report stream.
type Metrics struct {
	CivilizationProgress    prometheus.Gauge
	SocietyCoherence        prometheus.Gauge
	CollectiveWisdom        prometheus.Gauge
	CollaborationMeanWeight prometheus.Gauge
	OverallRisk             prometheus.Gauge

	// CyclesTotal counts completed cycles. Labels: outcome (solved, unsolved)
	CyclesTotal         *prometheus.CounterVec
	BreakthroughsTotal  prometheus.Counter
	EpochsTotal         *prometheus.CounterVec
	CyclesFailedTotal   prometheus.Counter
	ProgressResetsTotal prometheus.Counter
	OversightTotal      prometheus.Counter

	CollectiveConfidence prometheus.Histogram
}

// New registers the collectors with reg. Use prometheus.NewRegistry in tests
// to avoid clashing with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	unitBuckets := prometheus.LinearBuckets(0.1, 0.1, 10)

	return &Metrics{
		CivilizationProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "society",
			Name: "civilization_progress",
			Help: "Civilization progress after the latest cycle, in [0,1].",
		}),
		SocietyCoherence: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "society",
			Name: "coherence",
			Help: "Society coherence of the latest collective solution.",
		}),
		CollectiveWisdom: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "society",
			Name: "collective_wisdom",
			Help: "Mean wisdom reported by the latest value-convergence phase.",
		}),
		CollaborationMeanWeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "society",
			Name: "collaboration_mean_weight",
			Help: "Mean weight of the collaboration network.",
		}),
		OverallRisk: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "risk",
			Name: "overall",
			Help: "Maximum agent danger level in the latest cycle.",
		}),
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cycles",
			Name: "total",
			Help: "Completed cycles by implementation outcome.",
		}, []string{"outcome"}),
		BreakthroughsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cycles",
			Name: "breakthroughs_shared_total",
			Help: "Novel breakthroughs shared with the society.",
		}),
		EpochsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "epochs",
			Name: "total",
			Help: "Finished epochs by how they ended.",
		}, []string{"status"}),
		CyclesFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cycles",
			Name: "failed_total",
			Help: "Cycles that failed and were not applied.",
		}),
		ProgressResetsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "epochs",
			Name: "progress_resets_total",
			Help: "Times civilization progress reached its target and was reset.",
		}),
		OversightTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "risk",
			Name: "heightened_oversight_total",
			Help: "Cycles whose overall risk triggered heightened oversight.",
		}),
		CollectiveConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "cycles",
			Name:    "collective_confidence",
			Help:    "Distribution of collective confidence per cycle.",
			Buckets: unitBuckets,
		}),
	}
}

func (m *Metrics) ReportCycle(_ context.Context, rep models.CycleReport) error {
	outcome := "unsolved"
	if rep.Implementation.Solved {
		outcome = "solved"
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.BreakthroughsTotal.Add(float64(rep.BreakthroughsShared))
	if rep.Risk.HeightenedOversight {
		m.OversightTotal.Inc()
	}
	m.CollectiveConfidence.Observe(rep.Collective.CollectiveConfidence)
	m.OverallRisk.Set(rep.Risk.OverallRisk)
	m.setSummary(rep.Summary)
	return nil
}

func (m *Metrics) ReportEpoch(_ context.Context, rep models.EpochReport) error {
	status := "finished"
	switch {
	case rep.Cancelled:
		status = "cancelled"
	case rep.MissionComplete:
		status = "mission_complete"
		m.ProgressResetsTotal.Inc()
	}
	m.EpochsTotal.WithLabelValues(status).Inc()
	m.CyclesFailedTotal.Add(float64(rep.CyclesFailed))
	m.setSummary(rep.Summary)
	return nil
}

func (m *Metrics) ReportFinal(_ context.Context, rep models.FinalReport) error {
	m.setSummary(rep.Summary)
	return nil
}

func (m *Metrics) setSummary(s models.Summary) {
	m.CivilizationProgress.Set(s.CivilizationProgress)
	m.SocietyCoherence.Set(s.SocietyCoherence)
	m.CollectiveWisdom.Set(s.CollectiveWisdom)
	m.CollaborationMeanWeight.Set(s.CollaborationMeanWeight)
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, logger *zap.Logger, addr string, g prometheus.Gatherer) error {
	logger = logger.Named("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics endpoint listening.", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics endpoint did not shut down cleanly.", zap.Error(err))
			return err
		}
		<-errCh
		logger.Info("Metrics endpoint stopped.")
		return nil
	}
}
