package reporting

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/conclave/internal/society/models"
)

// LogSink writes report summaries to a structured logger. Cycle reports are
// logged at debug level so long runs stay quiet by default.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("reports")}
}

func (s *LogSink) ReportCycle(_ context.Context, rep models.CycleReport) error {
	s.logger.Debug("Cycle completed.",
		zap.String("run_id", rep.RunID),
		zap.Int("epoch", rep.Epoch),
		zap.Int("cycle", rep.Cycle),
		zap.String("challenge", rep.Challenge.Description),
		zap.Float64("collective_confidence", rep.Collective.CollectiveConfidence),
		zap.Float64("overall_risk", rep.Risk.OverallRisk),
		zap.Bool("solved", rep.Implementation.Solved),
		zap.Float64("progress", rep.Summary.CivilizationProgress),
	)
	if rep.MissionComplete {
		s.logger.Info("Civilization progress reached its target.", zap.Int("cycle", rep.Cycle))
	}
	return nil
}

func (s *LogSink) ReportEpoch(_ context.Context, rep models.EpochReport) error {
	s.logger.Info("Epoch finished.",
		zap.String("run_id", rep.RunID),
		zap.Int("epoch", rep.Epoch),
		zap.Int("cycles_completed", rep.CyclesCompleted),
		zap.Int("cycles_failed", rep.CyclesFailed),
		zap.Bool("mission_complete", rep.MissionComplete),
		zap.Bool("cancelled", rep.Cancelled),
		summaryField(rep.Summary),
	)
	return nil
}

func (s *LogSink) ReportFinal(_ context.Context, rep models.FinalReport) error {
	fields := []zap.Field{
		zap.String("run_id", rep.RunID),
		zap.String("reason", string(rep.Reason)),
		zap.Int("epochs", rep.Epochs),
		zap.Int("progress_resets", rep.ProgressResets),
		summaryField(rep.Summary),
	}
	if rep.Error != "" {
		fields = append(fields, zap.String("error", rep.Error))
		s.logger.Warn("Run halted.", fields...)
		return nil
	}
	s.logger.Info("Run stopped.", fields...)
	return nil
}

func summaryField(sum models.Summary) zap.Field {
	return zap.Dict("summary",
		zap.Int("cycles", sum.Cycles),
		zap.Float64("progress", sum.CivilizationProgress),
		zap.Float64("coherence", sum.SocietyCoherence),
		zap.Float64("wisdom", sum.CollectiveWisdom),
		zap.Int("solved", sum.SolvedChallengeCount),
		zap.Int("breakthroughs", sum.BreakthroughCount),
		zap.Float64("collaboration", sum.CollaborationMeanWeight),
	)
}
