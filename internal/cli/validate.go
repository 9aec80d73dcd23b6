package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kadewey/parley/internal/protocol"
)

// ValidationResult holds the outcome of protocol validation.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Protocol string   `json:"protocol,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Keys     []string `json:"keys,omitempty"`
	Schemas  []string `json:"schemas,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [protocol.cue]",
		Short: "Compile and validate a protocol specification",
		Long: `Compile a CUE protocol specification and check its information flow.

Validation rejects protocols whose in parameters no schema can ever
produce, whose key parameters are missing from a schema, or which
declare no terminal message. Without an argument the embedded Purchase
protocol is checked.

Exit codes:
  0 - Protocol valid
  1 - Protocol invalid
  2 - Command error (file not found, etc.)

Examples:
  parley validate
  parley validate ./protocols/purchase.cue
  parley validate ./protocols/purchase.cue --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var (
		proto *protocol.Protocol
		err   error
	)
	if path == "" {
		formatter.VerboseLog("validating embedded Purchase protocol")
		proto, err = protocol.Purchase()
	} else {
		formatter.VerboseLog("compiling %s", path)
		proto, err = protocol.CompileFile(path)
	}
	if err != nil {
		if formatter.Format == "json" {
			if encErr := formatter.Error("E_PROTOCOL", err.Error(), nil); encErr != nil {
				return encErr
			}
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Protocol invalid")
			fmt.Fprintf(formatter.Writer, "  %v\n", err)
		}
		return WrapExitError(ExitFailure, "protocol validation failed", err)
	}

	names := make([]string, len(proto.Schemas))
	for i, s := range proto.Schemas {
		names[i] = s.Name
	}
	result := ValidationResult{
		Valid:    true,
		Protocol: proto.Name,
		Roles:    proto.Roles,
		Keys:     proto.Keys,
		Schemas:  names,
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Protocol %s valid: %d roles, %d schemas\n",
		proto.Name, len(proto.Roles), len(proto.Schemas))
	if opts.Verbose {
		for _, s := range proto.Schemas {
			terminal := ""
			if s.Terminal {
				terminal = " [terminal]"
			}
			fmt.Fprintf(formatter.Writer, "  %s: %s -> %s%s\n", s.Name, s.From, s.To, terminal)
		}
	}
	return nil
}
