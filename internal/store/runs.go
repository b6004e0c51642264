package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/pipetest/internal/ir"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// ErrAggregatorNotFound is returned when a run never registered the
// requested aggregator.
var ErrAggregatorNotFound = errors.New("aggregator not found")

// RunStatus is the lifecycle state of a run record.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is a recorded pipeline run.
type Run struct {
	ID             string            `json:"id"`
	JobName        string            `json:"job_name"`
	Pipeline       string            `json:"pipeline"`
	PipelineDigest string            `json:"pipeline_digest"`
	Streaming      bool              `json:"streaming"`
	Labels         map[string]string `json:"labels,omitempty"`
	Status         RunStatus         `json:"status"`
	Error          string            `json:"error,omitempty"`
	StartedSeq     int64             `json:"started_seq"`
	FinishedSeq    int64             `json:"finished_seq,omitempty"`
}

// CreateRun inserts a new run record with status running.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	labels, err := marshalLabels(run.Labels)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, job_name, pipeline, pipeline_digest, streaming, labels, status, started_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.JobName,
		run.Pipeline,
		run.PipelineDigest,
		run.Streaming,
		labels,
		string(RunRunning),
		run.StartedSeq,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the final status of a run.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, errMsg string, seq int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_seq = ?
		WHERE id = ?
	`, string(status), errMsg, seq, id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// ReadRun returns a single run record.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_name, pipeline, pipeline_digest, streaming, labels, status, error, started_seq, finished_seq
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_name, pipeline, pipeline_digest, streaming, labels, status, error, started_seq, finished_seq
		FROM runs
		ORDER BY started_seq DESC, id ASC COLLATE BINARY
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// WriteAggregators stores the aggregator values of a run, replacing any
// values previously written under the same names.
func (s *Store) WriteAggregators(ctx context.Context, runID string, values map[string]int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write aggregators: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for name, value := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO aggregators (run_id, name, value)
			VALUES (?, ?, ?)
			ON CONFLICT(run_id, name) DO UPDATE SET value = excluded.value
		`, runID, name, value)
		if err != nil {
			return fmt.Errorf("write aggregator %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write aggregators: commit: %w", err)
	}
	return nil
}

// AggregatorValue returns one aggregator value of a run.
// Returns an error wrapping ErrAggregatorNotFound if the run never
// registered the aggregator.
func (s *Store) AggregatorValue(ctx context.Context, runID, name string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM aggregators WHERE run_id = ? AND name = ?
	`, runID, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("run %s: %q: %w", runID, name, ErrAggregatorNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("read aggregator %q: %w", name, err)
	}
	return value, nil
}

// Aggregators returns all aggregator values of a run.
func (s *Store) Aggregators(ctx context.Context, runID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value FROM aggregators
		WHERE run_id = ?
		ORDER BY name ASC COLLATE BINARY
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read aggregators: %w", err)
	}
	defer rows.Close()

	values := make(map[string]int64)
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("read aggregators: %w", err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read aggregators: %w", err)
	}
	return values, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var status, labels string
	err := row.Scan(
		&run.ID,
		&run.JobName,
		&run.Pipeline,
		&run.PipelineDigest,
		&run.Streaming,
		&labels,
		&status,
		&run.Error,
		&run.StartedSeq,
		&run.FinishedSeq,
	)
	if err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	if run.Labels, err = unmarshalLabels(labels); err != nil {
		return Run{}, err
	}
	return run, nil
}

// marshalLabels stores labels in canonical form so equal label sets are
// byte-identical in the database.
func marshalLabels(labels map[string]string) (string, error) {
	rec := make(ir.Record, len(labels))
	for k, v := range labels {
		rec[k] = ir.String(v)
	}
	b, err := ir.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal labels: %w", err)
	}
	return string(b), nil
}

func unmarshalLabels(data string) (map[string]string, error) {
	var labels map[string]string
	if err := json.Unmarshal([]byte(data), &labels); err != nil {
		return nil, fmt.Errorf("unmarshal labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, nil
	}
	return labels, nil
}
