package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/conclave/internal/society/models"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cycle_reports (
    id          UUID PRIMARY KEY,
    run_id      TEXT NOT NULL,
    epoch       INTEGER NOT NULL,
    cycle       INTEGER NOT NULL,
    progress    DOUBLE PRECISION NOT NULL,
    payload     JSONB NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS cycle_reports_run_cycle_idx ON cycle_reports (run_id, cycle);
CREATE TABLE IF NOT EXISTS epoch_reports (
    id          UUID PRIMARY KEY,
    run_id      TEXT NOT NULL,
    epoch       INTEGER NOT NULL,
    payload     JSONB NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS final_reports (
    run_id      TEXT PRIMARY KEY,
    reason      TEXT NOT NULL,
    payload     JSONB NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL
);`

const (
	sqlInsertCycle = `
        INSERT INTO cycle_reports (id, run_id, epoch, cycle, progress, payload, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO NOTHING;`
	sqlInsertEpoch = `
        INSERT INTO epoch_reports (id, run_id, epoch, payload, recorded_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO NOTHING;`
	sqlUpsertFinal = `
        INSERT INTO final_reports (run_id, reason, payload, recorded_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (run_id) DO UPDATE SET
            reason = EXCLUDED.reason,
            payload = EXCLUDED.payload,
            recorded_at = EXCLUDED.recorded_at;`
	sqlSelectRuns = `
        SELECT c.run_id, COUNT(*)::int, (ARRAY_AGG(c.progress ORDER BY c.cycle DESC))[1],
               MAX(c.recorded_at), COALESCE(MAX(f.reason), '')
        FROM cycle_reports c
        LEFT JOIN final_reports f ON f.run_id = c.run_id
        GROUP BY c.run_id
        ORDER BY MAX(c.recorded_at) DESC
        LIMIT $1;`
	sqlSelectCycles = `
        SELECT payload FROM (
            SELECT payload, cycle FROM cycle_reports
            WHERE run_id = $1
            ORDER BY cycle DESC
            LIMIT $2
        ) latest
        ORDER BY cycle ASC;`
	sqlSelectFinal = `SELECT payload FROM final_reports WHERE run_id = $1;`
)

// Postgres stores reports as JSONB rows.
type Postgres struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgres wraps pool. It does not touch the database.
func NewPostgres(pool DBPool, logger *zap.Logger) *Postgres {
	return &Postgres{
		pool: pool,
		log:  logger.Named("store"),
	}
}

// EnsureSchema creates the report tables if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.log.Debug("Report schema ensured.")
	return nil
}

func (s *Postgres) SaveCycle(ctx context.Context, rep models.CycleReport) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode cycle report: %w", err)
	}
	_, err = s.pool.Exec(ctx, sqlInsertCycle,
		rep.ID, rep.RunID, rep.Epoch, rep.Cycle,
		rep.Summary.CivilizationProgress,
		string(payload),
		rep.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle %d: %w", rep.Cycle, err)
	}
	return nil
}

func (s *Postgres) SaveEpoch(ctx context.Context, rep models.EpochReport) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode epoch report: %w", err)
	}
	_, err = s.pool.Exec(ctx, sqlInsertEpoch,
		rep.ID, rep.RunID, rep.Epoch,
		string(payload),
		rep.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert epoch %d: %w", rep.Epoch, err)
	}
	return nil
}

func (s *Postgres) SaveFinal(ctx context.Context, rep models.FinalReport) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode final report: %w", err)
	}
	_, err = s.pool.Exec(ctx, sqlUpsertFinal,
		rep.RunID, string(rep.Reason),
		string(payload),
		rep.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert final report: %w", err)
	}
	return nil
}

func (s *Postgres) Runs(ctx context.Context, limit int) ([]RunInfo, error) {
	rows, err := s.pool.Query(ctx, sqlSelectRuns, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			info   RunInfo
			reason string
			at     time.Time
		)
		if err := rows.Scan(&info.RunID, &info.Cycles, &info.Progress, &at, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		info.Reason = models.StopReason(reason)
		info.UpdatedAt = at
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}

func (s *Postgres) Cycles(ctx context.Context, runID string, limit int) ([]models.CycleReport, error) {
	rows, err := s.pool.Query(ctx, sqlSelectCycles, runID, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []models.CycleReport
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan cycle row: %w", err)
		}
		var rep models.CycleReport
		if err := json.Unmarshal(payload, &rep); err != nil {
			return nil, fmt.Errorf("failed to decode cycle report: %w", err)
		}
		cycles = append(cycles, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	if len(cycles) == 0 {
		return nil, fmt.Errorf("cycles for run %s: %w", runID, ErrNotFound)
	}
	return cycles, nil
}

func (s *Postgres) Final(ctx context.Context, runID string) (models.FinalReport, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, sqlSelectFinal, runID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.FinalReport{}, fmt.Errorf("final report for run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return models.FinalReport{}, fmt.Errorf("failed to query final report: %w", err)
	}
	var rep models.FinalReport
	if err := json.Unmarshal(payload, &rep); err != nil {
		return models.FinalReport{}, fmt.Errorf("failed to decode final report: %w", err)
	}
	return rep, nil
}

func (s *Postgres) Close() { s.pool.Close() }

// limitArg maps a non-positive limit to SQL NULL, which Postgres treats as no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
