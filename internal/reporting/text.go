package reporting

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/conclave/internal/society/models"
)

// TextReporter renders reports for a human at a terminal: one line per cycle,
// a short block per epoch and a full summary when the run stops.
type TextReporter struct {
	mu     sync.Mutex
	writer io.WriteCloser
}

// NewTextReporter takes ownership of writer.
func NewTextReporter(writer io.WriteCloser) *TextReporter {
	return &TextReporter{writer: writer}
}

func (r *TextReporter) ReportCycle(_ context.Context, rep models.CycleReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	solved := ""
	if rep.Implementation.Solved {
		solved = " solved"
	}
	_, err := fmt.Fprintf(r.writer,
		"[epoch %d cycle %d] %s | confidence %.3f coherence %.3f risk %.3f success %.3f%s | progress %.3f\n",
		rep.Epoch, rep.Cycle, rep.Challenge.Description,
		rep.Collective.CollectiveConfidence, rep.Collective.SocietyCoherence,
		rep.Risk.OverallRisk, rep.Implementation.Success, solved,
		rep.Summary.CivilizationProgress,
	)
	if err != nil {
		return err
	}
	if rep.Reflection != nil {
		if _, err := fmt.Fprintf(r.writer, "  reflection: %s\n", rep.Reflection.Insight); err != nil {
			return err
		}
	}
	if rep.MissionComplete {
		_, err = fmt.Fprintln(r.writer, "  civilization progress reached its target")
	}
	return err
}

func (r *TextReporter) ReportEpoch(_ context.Context, rep models.EpochReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := "finished"
	switch {
	case rep.Cancelled:
		status = "cancelled"
	case rep.MissionComplete:
		status = "mission complete"
	}
	_, err := fmt.Fprintf(r.writer,
		"== epoch %d %s: %d cycles completed, %d failed, took %s\n",
		rep.Epoch, status, rep.CyclesCompleted, rep.CyclesFailed,
		rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond),
	)
	if err != nil {
		return err
	}
	return writeSummary(r.writer, rep.Summary)
}

func (r *TextReporter) ReportFinal(_ context.Context, rep models.FinalReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "== run %s stopped (%s) after %d epochs\n", rep.RunID, rep.Reason, rep.Epochs)
	if rep.Error != "" {
		fmt.Fprintf(&b, "  error: %s\n", rep.Error)
	}
	fmt.Fprintf(&b, "  progress resets: %d, shared knowledge: %d\n", rep.ProgressResets, rep.KnowledgePool)
	if _, err := io.WriteString(r.writer, b.String()); err != nil {
		return err
	}
	if err := writeSummary(r.writer, rep.Summary); err != nil {
		return err
	}

	b.Reset()
	if len(rep.DominantValues) > 0 {
		values := make([]string, 0, len(rep.DominantValues))
		for _, v := range rep.DominantValues {
			values = append(values, fmt.Sprintf("%s (%d)", v.Value, v.Count))
		}
		fmt.Fprintf(&b, "  dominant values: %s\n", strings.Join(values, ", "))
	}
	for _, a := range rep.Agents {
		fmt.Fprintf(&b, "  agent %s [%s] consciousness %.3f wisdom %.3f alignment %.3f cycles %d\n",
			a.ID, a.Specialization, a.Consciousness, a.Wisdom, a.Alignment, a.Cycles)
	}
	for _, sb := range tail(rep.RecentBreakthroughs, 3) {
		fmt.Fprintf(&b, "  breakthrough (cycle %d, %s): %s\n", sb.Cycle, sb.Source, sb.Breakthrough.Description)
	}
	for _, sc := range tail(rep.RecentSolved, 5) {
		fmt.Fprintf(&b, "  solved (cycle %d, success %.3f): %s\n", sc.Cycle, sc.Success, sc.Challenge.Description)
	}
	_, err := io.WriteString(r.writer, b.String())
	return err
}

func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer.Close()
}

func writeSummary(w io.Writer, s models.Summary) error {
	_, err := fmt.Fprintf(w,
		"  cycles %d | progress %.3f | coherence %.3f | wisdom %.3f | solved %d | breakthroughs %d | collaboration %.3f\n",
		s.Cycles, s.CivilizationProgress, s.SocietyCoherence, s.CollectiveWisdom,
		s.SolvedChallengeCount, s.BreakthroughCount, s.CollaborationMeanWeight,
	)
	return err
}

func tail[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
