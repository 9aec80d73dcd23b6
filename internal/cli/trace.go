package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kadewey/parley/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Instance string
	Schema   string // optional - filter to one message schema
}

// TraceLine is one recorded message in the trace timeline.
type TraceLine struct {
	Seq      int64          `json:"seq"`
	Instance string         `json:"instance"`
	Schema   string         `json:"schema"`
	Sender   string         `json:"sender"`
	ID       string         `json:"id"`
	Params   map[string]any `json:"params"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Instance  string      `json:"instance,omitempty"`
	Timeline  []TraceLine `json:"timeline"`
	Messages  int         `json:"messages"`
	Instances int         `json:"instances"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded message trace",
		Long: `Show the recorded message timeline from a trace database.

Messages appear in acceptance order (global logical-clock seq). Filter
to one transaction instance with --instance, or to one message schema
with --schema.

Examples:
  parley trace --db ./trace.db
  parley trace --db ./trace.db --instance 0198b2-...-0001
  parley trace --db ./trace.db --schema deliver --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceCmd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Instance, "instance", "", "filter to one transaction instance")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "filter to one message schema")

	return cmd
}

func runTraceCmd(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var recs []store.Record
	if opts.Instance != "" {
		recs, err = st.ReadInstance(ctx, opts.Instance)
	} else {
		recs, err = st.ReadTrace(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	result := buildTraceResult(recs, opts.Instance, opts.Schema)

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}
	return writeTraceText(cmd, result)
}

func buildTraceResult(recs []store.Record, instance, schemaFilter string) TraceResult {
	result := TraceResult{Instance: instance, Timeline: []TraceLine{}}
	seen := make(map[string]bool)

	for _, rec := range recs {
		if !seen[rec.InstanceKey] {
			seen[rec.InstanceKey] = true
			result.Instances++
		}
		if schemaFilter != "" && rec.Schema != schemaFilter {
			continue
		}
		params := make(map[string]any, len(rec.Params))
		for name, v := range rec.Params {
			params[name] = v
		}
		result.Timeline = append(result.Timeline, TraceLine{
			Seq:      rec.Seq,
			Instance: rec.InstanceKey,
			Schema:   rec.Schema,
			Sender:   rec.Sender,
			ID:       rec.ID,
			Params:   params,
		})
	}
	result.Messages = len(result.Timeline)
	return result
}

func writeTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No messages recorded.")
		return nil
	}

	fmt.Fprintln(w, "=== Timeline ===")
	for _, line := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s %s %s %s\n",
			line.Seq, line.Schema, line.Sender, truncateID(line.Instance), formatParams(line.Params))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Messages:  %d\n", result.Messages)
	fmt.Fprintf(w, "Instances: %d\n", result.Instances)
	return nil
}

// formatParams renders params with sorted keys for deterministic output.
func formatParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// truncateID truncates a long instance key for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
