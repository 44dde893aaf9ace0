package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xkilldash9x/conclave/internal/society/models"
)

type memoryRun struct {
	cycles []models.CycleReport
	epochs []models.EpochReport
	final  *models.FinalReport
}

// Memory keeps every report in process memory. It is the default backend and
// forgets everything when the process exits.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]*memoryRun
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{runs: make(map[string]*memoryRun)}
}

func (m *Memory) run(id string) *memoryRun {
	r, ok := m.runs[id]
	if !ok {
		r = &memoryRun{}
		m.runs[id] = r
	}
	return r
}

func (m *Memory) SaveCycle(_ context.Context, rep models.CycleReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.run(rep.RunID)
	r.cycles = append(r.cycles, rep)
	return nil
}

func (m *Memory) SaveEpoch(_ context.Context, rep models.EpochReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.run(rep.RunID)
	r.epochs = append(r.epochs, rep)
	return nil
}

func (m *Memory) SaveFinal(_ context.Context, rep models.FinalReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.run(rep.RunID).final = &rep
	return nil
}

func (m *Memory) Runs(_ context.Context, limit int) ([]RunInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RunInfo, 0, len(m.runs))
	for id, r := range m.runs {
		if len(r.cycles) == 0 {
			continue
		}
		last := r.cycles[len(r.cycles)-1]
		info := RunInfo{
			RunID:     id,
			Cycles:    len(r.cycles),
			Progress:  last.Summary.CivilizationProgress,
			UpdatedAt: last.Timestamp,
		}
		if r.final != nil {
			info.Reason = r.final.Reason
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Cycles(_ context.Context, runID string, limit int) ([]models.CycleReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[runID]
	if !ok || len(r.cycles) == 0 {
		return nil, fmt.Errorf("cycles for run %s: %w", runID, ErrNotFound)
	}
	cycles := r.cycles
	if limit > 0 && len(cycles) > limit {
		cycles = cycles[len(cycles)-limit:]
	}
	return append([]models.CycleReport(nil), cycles...), nil
}

func (m *Memory) Final(_ context.Context, runID string) (models.FinalReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[runID]
	if !ok || r.final == nil {
		return models.FinalReport{}, fmt.Errorf("final report for run %s: %w", runID, ErrNotFound)
	}
	return *r.final, nil
}

// Epochs returns every epoch report recorded for runID.
func (m *Memory) Epochs(runID string) []models.EpochReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.runs[runID]; ok {
		return append([]models.EpochReport(nil), r.epochs...)
	}
	return nil
}

func (m *Memory) Close() {}
