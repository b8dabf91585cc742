package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run represents one clustering run over a live session or a PCAP replay.
type Run struct {
	RunID           string          `json:"run_id"`
	Source          string          `json:"source"` // "udp:<addr>" or "pcap:<file>"
	ParamsJSON      json.RawMessage `json:"params_json,omitempty"`
	StartedAt       int64           `json:"started_at"` // unix ns
	FinishedAt      int64           `json:"finished_at,omitempty"`
	EventCount      int64           `json:"event_count"`
	VertexCount     int64           `json:"vertex_count"`
	NoiseTrackCount int64           `json:"noise_track_count"`
}

// RunStore provides persistence for clustering runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore backed by the given database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Insert persists a new run. If RunID is empty, a UUID is generated.
func (s *RunStore) Insert(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().UnixNano()
	}

	var paramsStr interface{}
	if len(run.ParamsJSON) > 0 {
		paramsStr = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO vertex_runs (
				run_id, source, params_json, started_at,
				event_count, vertex_count, noise_track_count
			) VALUES (?, ?, ?, ?, 0, 0, 0)`,
			run.RunID, run.Source, paramsStr, run.StartedAt,
		)
		return err
	})
}

// Finish closes a run, recording its totals.
func (s *RunStore) Finish(runID string, eventCount, vertexCount, noiseTrackCount int64) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`
			UPDATE vertex_runs
			SET finished_at = ?, event_count = ?, vertex_count = ?, noise_track_count = ?
			WHERE run_id = ?`,
			time.Now().UnixNano(), eventCount, vertexCount, noiseTrackCount, runID,
		)
		if err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		return nil
	})
}

// Get returns one run by id.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, source, params_json, started_at, finished_at,
		       event_count, vertex_count, noise_track_count
		FROM vertex_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return run, err
}

// List returns the most recent runs, newest first.
func (s *RunStore) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT run_id, source, params_json, started_at, finished_at,
		       event_count, vertex_count, noise_track_count
		FROM vertex_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var params sql.NullString
	var finished sql.NullInt64
	if err := s.Scan(
		&run.RunID, &run.Source, &params, &run.StartedAt, &finished,
		&run.EventCount, &run.VertexCount, &run.NoiseTrackCount,
	); err != nil {
		return nil, err
	}
	if params.Valid {
		run.ParamsJSON = json.RawMessage(params.String)
	}
	if finished.Valid {
		run.FinishedAt = finished.Int64
	}
	return &run, nil
}
