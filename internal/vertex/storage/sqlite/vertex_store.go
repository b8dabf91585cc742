package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/vertex.report/internal/vertex"
)

// VertexRecord is one persisted vertex row.
type VertexRecord struct {
	RunID        string  `json:"run_id"`
	EventID      int64   `json:"event_id"`
	VertexID     int64   `json:"vertex_id"`
	Z            float64 `json:"z"`
	ZMean        float64 `json:"z_mean"`
	ZSpread      float64 `json:"z_spread"`
	Multiplicity int64   `json:"multiplicity"`
	CreatedAt    int64   `json:"created_at"`
}

// VertexStore provides persistence for per-event vertices.
type VertexStore struct {
	db *sql.DB
}

// NewVertexStore creates a VertexStore backed by the given database.
func NewVertexStore(db *sql.DB) *VertexStore {
	return &VertexStore{db: db}
}

// InsertEvent persists all vertices of one event in a single transaction.
func (s *VertexStore) InsertEvent(runID string, vertices []vertex.Vertex) error {
	if len(vertices) == 0 {
		return nil
	}
	now := time.Now().UnixNano()

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO vertices (
				run_id, event_id, vertex_id, z, z_mean, z_spread, multiplicity, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, v := range vertices {
			if _, err := stmt.Exec(
				runID, int64(v.EventID), int64(v.VertexID),
				v.Z, v.ZMean, v.ZSpread, int64(v.Multiplicity), now,
			); err != nil {
				return fmt.Errorf("insert vertex %d of event %d: %w", v.VertexID, v.EventID, err)
			}
		}
		return tx.Commit()
	})
}

// ListByEvent returns the vertices of one event, ordered by vertex id.
func (s *VertexStore) ListByEvent(runID string, eventID int64) ([]*VertexRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, event_id, vertex_id, z, z_mean, z_spread, multiplicity, created_at
		FROM vertices WHERE run_id = ? AND event_id = ?
		ORDER BY vertex_id`, runID, eventID)
	if err != nil {
		return nil, fmt.Errorf("list vertices: %w", err)
	}
	defer rows.Close()
	return collectVertexRows(rows)
}

// ListByRun returns up to limit vertices of a run, ordered by event then
// vertex id.
func (s *VertexStore) ListByRun(runID string, limit int) ([]*VertexRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.Query(`
		SELECT run_id, event_id, vertex_id, z, z_mean, z_spread, multiplicity, created_at
		FROM vertices WHERE run_id = ?
		ORDER BY event_id, vertex_id LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("list vertices: %w", err)
	}
	defer rows.Close()
	return collectVertexRows(rows)
}

func collectVertexRows(rows *sql.Rows) ([]*VertexRecord, error) {
	var records []*VertexRecord
	for rows.Next() {
		var r VertexRecord
		if err := rows.Scan(
			&r.RunID, &r.EventID, &r.VertexID,
			&r.Z, &r.ZMean, &r.ZSpread, &r.Multiplicity, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}
