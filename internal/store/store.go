// Package store persists cycle, epoch and final reports so a run can be
// inspected after the process exits.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/conclave/internal/config"
	"github.com/xkilldash9x/conclave/internal/society/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when a run has no stored report of the requested kind.
var ErrNotFound = errors.New("not found")

// RunInfo is one row of the run listing.
type RunInfo struct {
	RunID     string            `json:"run_id"`
	Cycles    int               `json:"cycles"`
	Progress  float64           `json:"progress"`
	Reason    models.StopReason `json:"reason,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store is the summary repository. SaveFinal is idempotent per run.
type Store interface {
	SaveCycle(ctx context.Context, report models.CycleReport) error
	SaveEpoch(ctx context.Context, report models.EpochReport) error
	SaveFinal(ctx context.Context, report models.FinalReport) error
	// Runs lists runs that recorded at least one cycle, most recent first.
	Runs(ctx context.Context, limit int) ([]RunInfo, error)
	// Cycles returns the latest limit cycle reports of a run, oldest first.
	Cycles(ctx context.Context, runID string, limit int) ([]models.CycleReport, error)
	Final(ctx context.Context, runID string) (models.FinalReport, error)
	Close()
}

// Open builds the backend selected by cfg. Postgres connections are lazy; the
// schema is created on open so the first write does not race table creation.
func Open(ctx context.Context, logger *zap.Logger, cfg config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "", config.StoreMemory:
		return NewMemory(), nil
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		s := NewPostgres(pool, logger)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unsupported store type %q", models.ErrInvalidInput, cfg.Type)
	}
}

// Recorder adapts a Store to a models.ReportSink.
type Recorder struct {
	store Store
}

// NewRecorder wraps s.
func NewRecorder(s Store) *Recorder { return &Recorder{store: s} }

func (r *Recorder) ReportCycle(ctx context.Context, rep models.CycleReport) error {
	return r.store.SaveCycle(ctx, rep)
}

func (r *Recorder) ReportEpoch(ctx context.Context, rep models.EpochReport) error {
	return r.store.SaveEpoch(ctx, rep)
}

func (r *Recorder) ReportFinal(ctx context.Context, rep models.FinalReport) error {
	return r.store.SaveFinal(ctx, rep)
}
