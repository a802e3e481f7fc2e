package record

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	_ "github.com/mattn/go-sqlite3"

	"github.com/specialistvlad/pipeforge/internal/artifact"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore is the durable Store implementation. It uses SQLite with WAL
// mode so cache index reads stay cheap while runs append.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the run history database at the given path.
// Pragmas and the schema are applied automatically; the call is idempotent.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening run history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to run history database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying run history schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun implements Store. The run and its step attempts are appended in
// one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning run append: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, pipeline, status, started_at, ended_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Pipeline, string(run.Status), run.Started.UnixNano(), run.Ended.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("appending run %q: %w", run.ID, err)
	}

	for _, step := range run.Steps {
		artifacts, err := sonic.Marshal(step.Artifacts)
		if err != nil {
			return fmt.Errorf("encoding artifacts for step %q: %w", step.StepID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO step_runs
			 (run_id, step_id, status, cache_key, cache_disabled, error, artifacts, started_at, ended_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, step.StepID, string(step.Status), step.CacheKey,
			boolToInt(step.CacheDisabled), step.Error, string(artifacts),
			step.Started.UnixNano(), step.Ended.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("appending step run %q: %w", step.StepID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run append: %w", err)
	}
	return nil
}

// FindCached implements Store.
func (s *SQLiteStore) FindCached(ctx context.Context, cacheKey string) (*StepRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT step_id, status, cache_key, cache_disabled, error, artifacts, started_at, ended_at
		 FROM step_runs
		 WHERE cache_key = ? AND cache_disabled = 0 AND status IN (?, ?)
		 ORDER BY ended_at DESC LIMIT 1`,
		cacheKey, string(StepSucceeded), string(StepCachedSucceeded),
	)
	step, err := scanStepRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying cache index: %w", err)
	}
	return step, nil
}

// ListRuns implements Store.
func (s *SQLiteStore) ListRuns(ctx context.Context, pipeline string) ([]*RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pipeline, status, started_at, ended_at
		 FROM runs WHERE pipeline = ? ORDER BY started_at ASC`, pipeline)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		run := &RunRecord{Steps: make(map[string]*StepRun)}
		var status string
		var started, ended int64
		if err := rows.Scan(&run.ID, &run.Pipeline, &status, &started, &ended); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.Status = RunStatus(status)
		run.Started = time.Unix(0, started)
		run.Ended = time.Unix(0, ended)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	for _, run := range runs {
		if err := s.loadSteps(ctx, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// FindStepRuns implements Store.
func (s *SQLiteStore) FindStepRuns(ctx context.Context, stepID string) ([]*StepRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step_id, status, cache_key, cache_disabled, error, artifacts, started_at, ended_at
		 FROM step_runs WHERE step_id = ? ORDER BY ended_at ASC`, stepID)
	if err != nil {
		return nil, fmt.Errorf("querying step runs: %w", err)
	}
	defer rows.Close()

	var steps []*StepRun
	for rows.Next() {
		step, err := scanStepRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning step run: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func (s *SQLiteStore) loadSteps(ctx context.Context, run *RunRecord) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step_id, status, cache_key, cache_disabled, error, artifacts, started_at, ended_at
		 FROM step_runs WHERE run_id = ?`, run.ID)
	if err != nil {
		return fmt.Errorf("loading steps for run %q: %w", run.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		step, err := scanStepRun(rows)
		if err != nil {
			return fmt.Errorf("scanning step for run %q: %w", run.ID, err)
		}
		run.Steps[step.StepID] = step
	}
	return rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanStepRun(row scanner) (*StepRun, error) {
	step := &StepRun{}
	var status, artifacts string
	var disabled int
	var started, ended int64
	err := row.Scan(&step.StepID, &status, &step.CacheKey, &disabled,
		&step.Error, &artifacts, &started, &ended)
	if err != nil {
		return nil, err
	}
	step.Status = StepStatus(status)
	step.CacheDisabled = disabled != 0
	step.Started = time.Unix(0, started)
	step.Ended = time.Unix(0, ended)
	step.Artifacts = make(map[string]artifact.Handle)
	if err := sonic.Unmarshal([]byte(artifacts), &step.Artifacts); err != nil {
		return nil, fmt.Errorf("decoding artifacts: %w", err)
	}
	return step, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
