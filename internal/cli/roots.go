package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/store"
)

// RootsOptions holds flags for the roots command.
type RootsOptions struct {
	*RootOptions
	Database string
	From     uint64
	To       uint64
}

// NewRootsCommand creates the roots command.
func NewRootsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RootsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "roots",
		Short: "List persisted lockchain roots",
		Long: `List the Merkle roots persisted by the lockchain, one per committed
cycle epoch. Without --to the range ends at the latest epoch.

Example:
  cadence roots --db ./roots.db
  cadence roots --db ./roots.db --from 2 --to 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoots(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to lockchain SQLite database (required)")
	cmd.Flags().Uint64Var(&opts.From, "from", 0, "first epoch")
	cmd.Flags().Uint64Var(&opts.To, "to", 0, "last epoch (default: latest)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRoots(cmd *cobra.Command, opts *RootsOptions) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	st, err := openExistingStore(opts.Database, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	to, empty, err := rangeEnd(ctx, st, opts.To, cmd.Flags().Changed("to"))
	if err != nil {
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read roots", err)
	}
	roots := []store.RootEntry{}
	if !empty {
		if roots, err = st.GetRootsRange(ctx, opts.From, to); err != nil {
			_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to read roots", err)
		}
	}

	return formatter.Render(roots, func(w io.Writer) {
		if len(roots) == 0 {
			fmt.Fprintln(w, "No roots.")
			return
		}
		for _, r := range roots {
			fmt.Fprintf(w, "epoch %-6d %s receipts=%d votes=%d/%d\n",
				r.Epoch, r.Root, r.ReceiptCount, r.Proof.VoteCount(), r.Proof.Threshold)
		}
	})
}

// openExistingStore opens path, refusing to create a new database.
func openExistingStore(path string, formatter *OutputFormatter) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", path), nil)
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// rangeEnd resolves the last epoch of a query. When to was not given it
// is the latest persisted epoch; empty reports a store with no roots.
func rangeEnd(ctx context.Context, st *store.Store, to uint64, explicit bool) (end uint64, empty bool, err error) {
	if explicit {
		return to, false, nil
	}
	latest, err := st.LatestRoot(ctx)
	if errors.Is(err, store.ErrRootNotFound) {
		return 0, true, nil
	}
	if err != nil {
		return 0, false, err
	}
	return latest.Epoch, false, nil
}
