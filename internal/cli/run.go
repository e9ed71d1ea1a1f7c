package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/beat"
	"github.com/roach88/cadence/internal/config"
	"github.com/roach88/cadence/internal/ingest"
	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/lockchain"
	"github.com/roach88/cadence/internal/scheduler"
	"github.com/roach88/cadence/internal/store"
)

// defaultSelfPeer is the local peer id when --db enables the lockchain
// without a lockchain config section.
const defaultSelfPeer = "local"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string
	Database   string
	DeltasPath string
	MaxBeats   uint64
	BeatRate   float64
}

// RunSummary is printed when the driver stops.
type RunSummary struct {
	Stats    scheduler.Stats    `json:"stats"`
	Admitted int                `json:"deltas_admitted"`
	Rejected int                `json:"deltas_rejected"`
	LastRoot *ir.ProvenanceRoot `json:"last_root,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the scheduler at a fixed beat rate",
		Long: `Build a scheduler from config, admit deltas from a JSON file and
advance beats until interrupted or --beats is reached.

With --db (or a lockchain config section) every non-empty cycle is
committed to a Merkle root, ratified by the configured quorum and
persisted to SQLite. A database that already holds roots resumes the
cadence at the epoch after the latest one.

Example:
  cadence run --config cadence.yaml --deltas deltas.json
  cadence run --db ./roots.db --beats 64 --rate 0`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config (defaults when empty)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "lockchain SQLite path (overrides config)")
	cmd.Flags().StringVar(&opts.DeltasPath, "deltas", "", "JSON delta file admitted before the first beat")
	cmd.Flags().Uint64Var(&opts.MaxBeats, "beats", 0, "stop after this many beats (0 = until interrupted)")
	cmd.Flags().Float64Var(&opts.BeatRate, "rate", 0, "beats per second (overrides config; 0 = unpaced)")

	return cmd
}

func runScheduler(cmd *cobra.Command, opts *RunOptions) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	if cmd.Flags().Changed("rate") {
		cfg.BeatRate = opts.BeatRate
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)

	var envelopes []ingest.Envelope
	if opts.DeltasPath != "" {
		var err error
		if envelopes, err = ingest.LoadEnvelopes(opts.DeltasPath); err != nil {
			_ = formatter.Error(ErrCodeInput, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load deltas", err)
		}
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	schedOpts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithTickBudget(cfg.TickBudget),
		scheduler.WithCommitTimeout(cfg.CommitTimeoutDuration()),
		scheduler.WithParkHighWater(cfg.ParkHighWater),
	}

	lc, err := openLockchain(cfg, opts.Database, logger)
	if err != nil {
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to configure lockchain", err)
	}
	if lc != nil {
		start, err := resumeCycle(parentCtx, lc.Store())
		if err != nil {
			lc.Close()
			_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to read lockchain", err)
		}
		if start > 0 {
			logger.Info("resuming cadence after persisted roots", "cycle", start)
		}
		schedOpts = append(schedOpts,
			scheduler.WithSink(lc),
			scheduler.WithClock(beat.NewClockAt(start)))
	}

	sched, err := scheduler.New(cfg.Shards, cfg.Domains, cfg.RingCapacity, schedOpts...)
	if err != nil {
		if lc != nil {
			lc.Close()
		}
		_ = formatter.Error(ErrCodeScheduler, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to create scheduler", err)
	}
	defer func() {
		if closeErr := sched.Close(); closeErr != nil {
			logger.Error("error closing scheduler", "error", closeErr)
		}
	}()

	admitted, rejected := admitEnvelopes(sched, envelopes, logger)
	logger.Info("deltas loaded", "admitted", admitted, "rejected", rejected)

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	notifier := newServiceNotifier(logger)
	driver := scheduler.NewDriver(sched,
		scheduler.WithBeatRate(cfg.BeatRate),
		scheduler.WithMaxBeats(opts.MaxBeats),
		scheduler.WithPulseHandler(func(cycle uint64, receipts []ir.Receipt) {
			logger.Debug("pulse", "cycle", cycle, "receipts", len(receipts))
			notifier.pulse()
		}),
		scheduler.WithParkedHandler(func(parked []ir.ParkedDelta) {
			for _, p := range parked {
				logger.Warn("delta parked",
					"id", p.ID,
					"domain", p.DomainID,
					"cycle", p.CycleID,
					"cause", p.Cause.String())
			}
		}),
	)

	notifier.ready()
	err = driver.Run(ctx)
	notifier.stopping()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "driver error", err)
	}

	summary := RunSummary{Stats: sched.Stats(), Admitted: admitted, Rejected: rejected}
	if root, ok := sched.LastRoot(); ok {
		summary.LastRoot = &root
	}
	return formatter.Render(summary, func(w io.Writer) {
		s := summary.Stats
		fmt.Fprintf(w, "Stopped at cycle %d\n", s.Cycle)
		fmt.Fprintf(w, "  deltas:   %d admitted, %d rejected\n", admitted, rejected)
		fmt.Fprintf(w, "  executed: %d, parked: %d\n", s.Executed, s.Parked)
		fmt.Fprintf(w, "  commits:  %d (provenance failures: %d)\n", s.Commits, s.ProvenanceFailures)
		if summary.LastRoot != nil {
			fmt.Fprintf(w, "  last root: cycle %d %s\n", summary.LastRoot.CycleID, summary.LastRoot.Root)
		}
	})
}

// newLogger builds the process logger from the log config section.
// --verbose forces debug level.
func newLogger(w io.Writer, cfg config.Config, verbose bool) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// openLockchain opens the provenance sink when the config has a
// lockchain section or dbPath is set. dbPath wins over storage_path.
// Returns nil when provenance is off.
func openLockchain(cfg config.Config, dbPath string, logger *slog.Logger) (*lockchain.Lockchain, error) {
	lc := cfg.Lockchain
	if lc == nil && dbPath == "" {
		return nil, nil
	}
	if lc == nil {
		lc = &config.LockchainConfig{QuorumThreshold: 1, SelfPeerID: defaultSelfPeer}
	}
	path := lc.StoragePath
	if dbPath != "" {
		path = dbPath
	}
	return lockchain.Open(lockchain.Config{
		Peers:           lc.Peers,
		QuorumThreshold: lc.QuorumThreshold,
		SelfPeerID:      lc.SelfPeerID,
		StoragePath:     path,
	}, logger)
}

// resumeCycle returns the first cycle of the epoch after the latest
// persisted root, so a restarted run never rewrites an earlier epoch.
func resumeCycle(ctx context.Context, st *store.Store) (uint64, error) {
	latest, err := st.LatestRoot(ctx)
	if errors.Is(err, store.ErrRootNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if latest.Epoch >= math.MaxUint64>>3 {
		return math.MaxUint64, nil
	}
	return (latest.Epoch + 1) << 3, nil
}

// admitEnvelopes enqueues every envelope, splitting oversized deltas into
// runs the scheduler accepts. Rejections are logged and counted.
func admitEnvelopes(sched *scheduler.Scheduler, envelopes []ingest.Envelope, logger *slog.Logger) (admitted, rejected int) {
	for _, env := range envelopes {
		for _, chunk := range ingest.Chunk(env.Triples, ir.MaxRunLen) {
			if err := sched.EnqueueDelta(env.Domain, chunk, env.Cycle); err != nil {
				logger.Warn("delta rejected",
					"domain", env.Domain,
					"cycle", env.Cycle,
					"rows", len(chunk),
					"error", err)
				rejected++
				continue
			}
			admitted++
		}
	}
	return admitted, rejected
}
