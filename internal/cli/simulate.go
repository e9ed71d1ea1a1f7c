package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/config"
	"github.com/roach88/cadence/internal/harness"
	"github.com/roach88/cadence/internal/ingest"
	"github.com/roach88/cadence/internal/ir"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Shards     int
	Domains    int
	Capacity   int
	Beats      int
	KernelCost uint32
	TickBudget uint32
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate [scenario.yaml | deltas.json]",
		Short: "Run a deterministic beat simulation",
		Long: `Run the scheduler against a deterministic clock and print the beat trace.

A .yaml/.yml argument is a scenario file; its dimensions, deltas and
assertions are used and the dimension flags are ignored. Any other
argument is a JSON delta file admitted before the first beat into the
scheduler described by the flags. With no argument the scheduler runs
empty.

Exit codes:
  0 - simulation ran and every expectation held
  1 - an expectation or assertion failed
  2 - bad input or invalid dimensions

Example:
  cadence simulate ./testdata/scenarios/end_to_end.yaml
  cadence simulate --shards 2 --domains 1 --capacity 8 --beats 9 deltas.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runSimulate(cmd, opts, path)
		},
	}

	cmd.Flags().IntVar(&opts.Shards, "shards", 2, "fiber count")
	cmd.Flags().IntVar(&opts.Domains, "domains", 1, "domain count")
	cmd.Flags().IntVar(&opts.Capacity, "capacity", 8, "ring capacity per domain (power of two, >= 8)")
	cmd.Flags().IntVar(&opts.Beats, "beats", 9, "number of beats to advance")
	cmd.Flags().Uint32Var(&opts.KernelCost, "kernel-cost", 0, "ticks charged per batch (0 = one tick)")
	cmd.Flags().Uint32Var(&opts.TickBudget, "tick-budget", 0, "fiber tick budget (0 = default)")

	return cmd
}

func runSimulate(cmd *cobra.Command, opts *SimulateOptions, path string) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	scenario, err := loadSimulation(opts, path)
	if err != nil {
		_ = formatter.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load simulation", err)
	}

	result, err := harness.Run(scenario, harness.WithLogger(newLogger(cmd.ErrOrStderr(), simulateLogConfig(), opts.Verbose)))
	if err != nil {
		_ = formatter.Error(ErrCodeScheduler, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to run simulation", err)
	}

	if err := formatter.Render(result, func(w io.Writer) { printTrace(w, scenario, result) }); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("simulation %s failed", scenario.Name))
	}
	return nil
}

// loadSimulation builds a scenario from a YAML file, or from flags plus
// an optional JSON delta file.
func loadSimulation(opts *SimulateOptions, path string) (*harness.Scenario, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		return harness.LoadScenario(path)
	}

	scenario := &harness.Scenario{
		Name:       "simulate",
		Shards:     opts.Shards,
		Domains:    opts.Domains,
		Capacity:   opts.Capacity,
		Beats:      opts.Beats,
		KernelCost: opts.KernelCost,
		TickBudget: opts.TickBudget,
	}
	if path != "" {
		envelopes, err := ingest.LoadEnvelopes(path)
		if err != nil {
			return nil, err
		}
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		for _, env := range envelopes {
			for _, chunk := range ingest.Chunk(env.Triples, ir.MaxRunLen) {
				scenario.Deltas = append(scenario.Deltas, harness.DeltaStep{
					Domain:  env.Domain,
					Cycle:   env.Cycle,
					Triples: chunk,
				})
			}
		}
	}
	if err := harness.Validate(scenario); err != nil {
		return nil, fmt.Errorf("invalid simulation: %w", err)
	}
	return scenario, nil
}

// simulateLogConfig keeps scheduler chatter at warn unless --verbose.
func simulateLogConfig() config.Config {
	cfg := config.Default()
	cfg.Log.Level = "warn"
	return cfg
}

func printTrace(w io.Writer, scenario *harness.Scenario, result *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s (shards=%d domains=%d capacity=%d beats=%d)\n",
		scenario.Name, scenario.Shards, scenario.Domains, scenario.Capacity, scenario.Beats)

	for _, e := range result.Trace {
		switch e.Type {
		case harness.EventAdmit:
			fmt.Fprintf(w, "  [%3d] admit   domain=%d cycle=%d rows=%d\n", e.Beat, e.Domain, e.Cycle, e.Rows)
		case harness.EventReject:
			fmt.Fprintf(w, "  [%3d] reject  domain=%d cycle=%d code=%s\n", e.Beat, e.Domain, e.Cycle, e.Code)
		case harness.EventBeat:
			pulse := ""
			if e.Pulse {
				pulse = " pulse"
			}
			fmt.Fprintf(w, "  [%3d] beat    cycle=%d tick=%d%s\n", e.Beat, e.Cycle, e.Tick, pulse)
		case harness.EventPark:
			fmt.Fprintf(w, "  [%3d] park    %s domain=%d tick=%d cause=%s\n", e.Beat, e.ID, e.Domain, e.Tick, e.Cause)
		case harness.EventCommit:
			fmt.Fprintf(w, "  [%3d] commit  cycle=%d receipts=%d lanes=%d shards=%v\n",
				e.Beat, e.Cycle, e.Receipts, e.Lanes, e.Shards)
		}
	}

	s := result.Stats
	fmt.Fprintf(w, "Receipts: %d, parked: %d, commits: %d\n", len(result.Receipts), len(result.Parked), s.Commits)
	if result.LastRoot != nil {
		fmt.Fprintf(w, "Last root: cycle %d %s\n", result.LastRoot.CycleID, result.LastRoot.Root)
	}
	if result.Pass {
		fmt.Fprintln(w, "PASS")
		return
	}
	fmt.Fprintln(w, "FAIL")
	for _, msg := range result.Errors {
		fmt.Fprintf(w, "  %s\n", msg)
	}
}
