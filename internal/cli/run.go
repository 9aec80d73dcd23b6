package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kadewey/parley/internal/decider"
	"github.com/kadewey/parley/internal/sim"
	"github.com/kadewey/parley/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Seed     int64
	SeedSet  bool
	LLM      bool
}

// RunResult is the JSON payload for a completed run.
type RunResult struct {
	Scenario   string              `json:"scenario"`
	Messages   int                 `json:"messages"`
	Buyer      any                 `json:"buyer"`
	Seller     any                 `json:"seller"`
	Shipper    any                 `json:"shipper"`
	Rejections []sim.RejectionNote `json:"rejections,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario to quiescence",
		Long: `Run a buyer/seller/shipper scenario until the buyer stops.

The scenario file configures budgets, inventory, and delivery zones.
Every message is validated by the sending and receiving role's
causality engine; with --db the accepted trace is recorded to SQLite
for later replay and inspection.

With --llm an LLM advisor (configured via PARLEY_LLM_* environment
variables) is consulted before each quote evaluation; an explicit
REJECT verdict overrides the budget rules.

Examples:
  parley run ./scenarios/standard.yaml
  parley run ./scenarios/standard.yaml --db ./trace.db --seed 7
  parley run ./scenarios/standard.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.SeedSet = cmd.Flags().Changed("seed")
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (optional)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "override the scenario seed")
	cmd.Flags().BoolVar(&opts.LLM, "llm", false, "consult an LLM advisor on each quote")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	sc, err := sim.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	if opts.SeedSet {
		sc.Seed = opts.Seed
	}

	runnerOpts := []sim.Option{sim.WithLogger(log)}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		runnerOpts = append(runnerOpts, sim.WithStore(st))
	}

	if opts.LLM {
		advisor, err := decider.NewLLMFromEnv(log)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to configure LLM advisor", err)
		}
		runnerOpts = append(runnerOpts, sim.WithAdvisor(advisor))
	}

	runner, err := sim.NewRunner(sc, runnerOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build runner", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	res, err := runner.Run(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return formatter.Success(RunResult{
			Scenario:   sc.Name,
			Messages:   res.Messages,
			Buyer:      res.Buyer,
			Seller:     res.Seller,
			Shipper:    res.Shipper,
			Rejections: res.Rejections,
		})
	}
	if err := sim.WriteSummary(cmd.OutOrStdout(), sc.Name, res); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
