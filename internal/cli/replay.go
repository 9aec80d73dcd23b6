package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kadewey/parley/internal/protocol"
	"github.com/kadewey/parley/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Protocol string // optional - replay against a protocol file instead of the embedded one
}

// ReplayRejectionLine is one message a replay could not re-validate.
type ReplayRejectionLine struct {
	Seq      int64  `json:"seq"`
	Instance string `json:"instance"`
	Schema   string `json:"schema"`
	Reason   string `json:"reason"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Messages   int                   `json:"messages"`
	Instances  int                   `json:"instances"`
	Clean      bool                  `json:"clean"`
	Rejections []ReplayRejectionLine `json:"rejections,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-validate a recorded trace",
		Long: `Feed the recorded trace through a fresh causality engine in seq order.

A well-formed trace re-validates with zero rejections; anything else
points at a trace written outside the engine or a protocol change
since the run.

Exit codes:
  0 - Trace re-validates cleanly
  1 - One or more messages were rejected
  2 - Command error (database not found, etc.)

Examples:
  parley replay --db ./trace.db
  parley replay --db ./trace.db --protocol ./protocols/purchase.cue
  parley replay --db ./trace.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplayCmd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Protocol, "protocol", "", "protocol CUE file (default: embedded Purchase)")

	return cmd
}

func runReplayCmd(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	var (
		proto *protocol.Protocol
		err   error
	)
	if opts.Protocol != "" {
		proto, err = protocol.CompileFile(opts.Protocol)
	} else {
		proto, err = protocol.Purchase()
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load protocol", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	rep, err := st.Replay(ctx, proto)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	result := ReplayResult{
		Messages:  rep.Messages,
		Instances: rep.Instances,
		Clean:     rep.Clean(),
	}
	for _, rej := range rep.Rejections {
		result.Rejections = append(result.Rejections, ReplayRejectionLine{
			Seq:      rej.Seq,
			Instance: rej.Key,
			Schema:   rej.Schema,
			Reason:   rej.Reason,
		})
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		writeReplayText(cmd, result)
	}

	if !result.Clean {
		return NewExitError(ExitFailure,
			fmt.Sprintf("replay rejected %d message(s)", len(result.Rejections)))
	}
	return nil
}

func writeReplayText(cmd *cobra.Command, result ReplayResult) {
	w := cmd.OutOrStdout()

	if result.Clean {
		fmt.Fprintf(w, "✓ Trace re-validated: %d messages, %d instances\n",
			result.Messages, result.Instances)
		return
	}

	fmt.Fprintf(w, "✗ Replay rejected %d of %d messages\n",
		len(result.Rejections), result.Messages)
	for _, rej := range result.Rejections {
		fmt.Fprintf(w, "  [%d] %s %s: %s\n",
			rej.Seq, rej.Schema, truncateID(rej.Instance), rej.Reason)
	}
}
