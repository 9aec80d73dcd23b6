package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kadewey/parley/internal/protocol"
)

// ReadTrace returns every traced message in seq order.
func (s *Store) ReadTrace(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, instance_key, schema, sender, params, seq
		FROM messages
		ORDER BY seq ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ReadInstance returns one instance's messages in seq order.
func (s *Store) ReadInstance(ctx context.Context, instanceKey string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, instance_key, schema, sender, params, seq
		FROM messages
		WHERE instance_key = ?
		ORDER BY seq ASC, id ASC
	`, instanceKey)
	if err != nil {
		return nil, fmt.Errorf("read instance %s: %w", instanceKey, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// CountMessages returns the number of traced messages.
func (s *Store) CountMessages(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var recs []Record
	for rows.Next() {
		var rec Record
		var paramsJSON string
		if err := rows.Scan(&rec.ID, &rec.InstanceKey, &rec.Schema, &rec.Sender, &paramsJSON, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		params, err := protocol.UnmarshalParams([]byte(paramsJSON))
		if err != nil {
			return nil, fmt.Errorf("decode params for %s: %w", rec.ID, err)
		}
		rec.Params = params
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return recs, nil
}
