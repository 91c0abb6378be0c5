package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/pinsync/internal/ir"
)

// RecordOutcome stores the terminal outcome of a cell for a run.
// Recording the same cell again replaces the previous outcome.
func (s *Store) RecordOutcome(ctx context.Context, runID string, o ir.CellOutcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("record outcome: marshal: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record outcome: begin tx: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx, "cell_outcomes")
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cell_outcomes (run_id, cell_id, outcome, seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, cell_id) DO UPDATE SET
			outcome = excluded.outcome,
			seq = excluded.seq
	`, runID, o.Cell.ID, string(data), seq)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record outcome: commit: %w", err)
	}
	return nil
}

// ReadOutcomes returns the recorded outcomes of a run in recording order.
// Returns an empty slice (not nil) if none were recorded.
func (s *Store) ReadOutcomes(ctx context.Context, runID string) ([]ir.CellOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT outcome
		FROM cell_outcomes
		WHERE run_id = ?
		ORDER BY seq ASC, cell_id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []ir.CellOutcome{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		var o ir.CellOutcome
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			return nil, fmt.Errorf("unmarshal outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}
