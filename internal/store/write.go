package store

import (
	"context"
	"fmt"

	"github.com/kadewey/parley/internal/protocol"
)

// Record is one traced message.
type Record struct {
	ID          string
	InstanceKey string
	Schema      string
	Sender      string
	Params      protocol.Params
	Seq         int64
}

// WriteMessage records an accepted message. The row ID is the message's
// content hash, so writing the same message twice is a no-op
// (ON CONFLICT DO NOTHING); only genuinely new messages land.
func (s *Store) WriteMessage(ctx context.Context, msg protocol.Message, instanceKey string, seq int64) error {
	id, err := msg.ID()
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	paramsJSON, err := msg.Params.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, instance_key, schema, sender, params, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, instanceKey, msg.Schema, msg.From, string(paramsJSON), seq)
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
