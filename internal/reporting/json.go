package reporting

import (
	"context"
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/conclave/internal/society/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one line of JSON output. Exactly one of the report fields is set.
type Record struct {
	Kind  string              `json:"kind"`
	Cycle *models.CycleReport `json:"cycle,omitempty"`
	Epoch *models.EpochReport `json:"epoch,omitempty"`
	Final *models.FinalReport `json:"final,omitempty"`
}

// JSONReporter writes every report as a single JSON line.
type JSONReporter struct {
	mu      sync.Mutex
	writer  io.WriteCloser
	encoder *jsoniter.Encoder
}

// NewJSONReporter takes ownership of writer.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: writer, encoder: json.NewEncoder(writer)}
}

func (r *JSONReporter) ReportCycle(_ context.Context, rep models.CycleReport) error {
	return r.encode(Record{Kind: "cycle", Cycle: &rep})
}

func (r *JSONReporter) ReportEpoch(_ context.Context, rep models.EpochReport) error {
	return r.encode(Record{Kind: "epoch", Epoch: &rep})
}

func (r *JSONReporter) ReportFinal(_ context.Context, rep models.FinalReport) error {
	return r.encode(Record{Kind: "final", Final: &rep})
}

func (r *JSONReporter) encode(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.encoder.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode %s report: %w", rec.Kind, err)
	}
	return nil
}

func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
