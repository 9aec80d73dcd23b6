package store

import (
	"context"
	"fmt"

	"github.com/kadewey/parley/internal/causality"
	"github.com/kadewey/parley/internal/protocol"
)

// ReplayRejection is one message a replay could not re-validate.
type ReplayRejection struct {
	Seq    int64
	Key    string
	Schema string
	Reason string
}

// ReplayReport summarizes a trace replay.
type ReplayReport struct {
	Messages   int
	Instances  int
	Rejections []ReplayRejection
}

// Clean reports whether every traced message re-validated.
func (r ReplayReport) Clean() bool {
	return len(r.Rejections) == 0
}

// Replay feeds the recorded trace through a fresh causality engine in
// seq order. A well-formed trace re-validates with zero rejections;
// anything else points at a trace written outside the engine or a
// protocol change since the run.
func (s *Store) Replay(ctx context.Context, proto *protocol.Protocol) (ReplayReport, error) {
	recs, err := s.ReadTrace(ctx)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}

	eng := causality.New(proto)
	report := ReplayReport{Messages: len(recs)}
	seen := make(map[string]bool)

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("replay: %w", err)
		}
		if !seen[rec.InstanceKey] {
			seen[rec.InstanceKey] = true
			report.Instances++
		}

		msg := protocol.Message{Schema: rec.Schema, From: rec.Sender, Params: rec.Params}
		if _, err := eng.ValidateAndBind(msg); err != nil {
			report.Rejections = append(report.Rejections, ReplayRejection{
				Seq:    rec.Seq,
				Key:    rec.InstanceKey,
				Schema: rec.Schema,
				Reason: err.Error(),
			})
		}
	}
	return report, nil
}
