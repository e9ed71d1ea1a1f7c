package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/lockchain"
	"github.com/roach88/cadence/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
	From     uint64
	To       uint64
	Proofs   bool
}

// EpochCheck is the verification outcome for one persisted root.
type EpochCheck struct {
	Epoch    uint64      `json:"epoch"`
	Root     string      `json:"root"`
	Computed string      `json:"computed"`
	Votes    int         `json:"votes"`
	Valid    bool        `json:"valid"`
	Problem  string      `json:"problem,omitempty"`
	Proofs   []LeafProof `json:"proofs,omitempty"`
}

// LeafProof is the inclusion path of one stored receipt.
type LeafProof struct {
	Index     int                   `json:"index"`
	ReceiptID string                `json:"receipt_id"`
	Leaf      ir.Hash               `json:"leaf"`
	Steps     []lockchain.ProofStep `json:"steps"`
}

// VerifyReport is the verify command's output.
type VerifyReport struct {
	From   uint64       `json:"from"`
	To     uint64       `json:"to"`
	Idle   []uint64     `json:"idle"`
	Epochs []EpochCheck `json:"epochs"`
	Valid  bool         `json:"valid"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify persisted lockchain roots and votes",
		Long: `Check every root persisted for epochs in [from, to]: each stored leaf
must match its receipt, the root must equal the Merkle root rebuilt from
those leaves, and the quorum proof must hold distinct, valid votes for
that epoch. Epochs without a root are reported as idle; cycles that
commit no receipts persist nothing.

With --proofs the report includes the inclusion path of every receipt.

Exit codes:
  0 - all checks passed
  1 - a leaf, root or vote check failed
  2 - database missing or unreadable

Example:
  cadence verify --db ./roots.db
  cadence verify --db ./roots.db --from 0 --to 12`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to lockchain SQLite database (required)")
	cmd.Flags().Uint64Var(&opts.From, "from", 0, "first epoch")
	cmd.Flags().Uint64Var(&opts.To, "to", 0, "last epoch (default: latest)")
	cmd.Flags().BoolVar(&opts.Proofs, "proofs", false, "include receipt inclusion proofs")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runVerify(cmd *cobra.Command, opts *VerifyOptions) error {
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
	if empty {
		_ = formatter.Error(ErrCodeVerify, "no roots persisted", nil)
		return NewExitError(ExitFailure, "no roots persisted")
	}

	report, err := verifyRange(ctx, st, opts.From, to, opts.Proofs)
	if err != nil {
		_ = formatter.Error(ErrCodeStorage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "verification aborted", err)
	}

	if err := formatter.Render(report, func(w io.Writer) { printReport(w, report) }); err != nil {
		return err
	}
	if !report.Valid {
		return NewExitError(ExitFailure, "lockchain verification failed")
	}
	return nil
}

func verifyRange(ctx context.Context, st *store.Store, from, to uint64, withProofs bool) (VerifyReport, error) {
	report := VerifyReport{From: from, To: to, Idle: []uint64{}, Epochs: []EpochCheck{}, Valid: true}

	roots, err := st.GetRootsRange(ctx, from, to)
	if err != nil {
		return report, err
	}

	continuous, err := st.VerifyContinuity(ctx, from, to)
	if err != nil {
		return report, err
	}
	if !continuous {
		report.Idle = idleEpochs(roots, from, to)
	}

	for _, entry := range roots {
		check, err := verifyEpoch(ctx, st, entry, withProofs)
		if err != nil {
			return report, err
		}
		report.Valid = report.Valid && check.Valid
		report.Epochs = append(report.Epochs, check)
	}
	return report, nil
}

// idleEpochs lists the epochs in [from, to] without a root. roots is
// sorted by epoch.
func idleEpochs(roots []store.RootEntry, from, to uint64) []uint64 {
	idle := []uint64{}
	next := from
	for _, r := range roots {
		for ; next < r.Epoch; next++ {
			idle = append(idle, next)
		}
		next = r.Epoch + 1
	}
	for ; next <= to; next++ {
		idle = append(idle, next)
		if next == to { // to may be MaxUint64
			break
		}
	}
	return idle
}

// verifyEpoch rebuilds entry's tree from its stored leaves and checks the
// root and every vote against it.
func verifyEpoch(ctx context.Context, st *store.Store, entry store.RootEntry, withProofs bool) (EpochCheck, error) {
	records, err := st.ReadReceipts(ctx, entry.Epoch)
	if err != nil {
		return EpochCheck{}, fmt.Errorf("epoch %d: %w", entry.Epoch, err)
	}

	tree := lockchain.NewMerkleTree()
	for _, rec := range records {
		if h, err := ir.ReceiptHash(rec.Receipt); err != nil || h != rec.LeafHash {
			return epochFailure(entry, ir.Hash{}, fmt.Sprintf("leaf %d does not match its receipt", rec.LeafIndex)), nil
		}
		tree.AddLeaf(rec.LeafHash)
	}

	computed := tree.Root()
	if computed != entry.Root {
		return epochFailure(entry, computed, "root mismatch"), nil
	}
	if problem := checkVotes(entry); problem != "" {
		return epochFailure(entry, computed, problem), nil
	}

	check := EpochCheck{
		Epoch:    entry.Epoch,
		Root:     entry.Root.String(),
		Computed: computed.String(),
		Votes:    entry.Proof.VoteCount(),
		Valid:    true,
	}
	if withProofs {
		for i, rec := range records {
			steps, err := tree.Proof(i)
			if err != nil {
				return EpochCheck{}, fmt.Errorf("epoch %d: %w", entry.Epoch, err)
			}
			if !lockchain.VerifyProof(rec.LeafHash, steps, entry.Root) {
				return epochFailure(entry, computed, fmt.Sprintf("inclusion proof for leaf %d does not verify", i)), nil
			}
			check.Proofs = append(check.Proofs, LeafProof{
				Index:     rec.LeafIndex,
				ReceiptID: rec.Receipt.ID,
				Leaf:      rec.LeafHash,
				Steps:     steps,
			})
		}
	}
	return check, nil
}

// checkVotes returns a description of the first quorum problem, or "".
// Each peer counts once and every vote must sign this epoch's root.
func checkVotes(entry store.RootEntry) string {
	seen := make(map[string]bool, len(entry.Proof.Votes))
	for _, v := range entry.Proof.Votes {
		if seen[v.PeerID] {
			return fmt.Sprintf("duplicate vote from %s", v.PeerID)
		}
		seen[v.PeerID] = true
		if v.CycleID != entry.Epoch {
			return fmt.Sprintf("vote from %s is for epoch %d", v.PeerID, v.CycleID)
		}
		if !lockchain.VerifyVote(v, entry.Root) {
			return fmt.Sprintf("invalid vote from %s", v.PeerID)
		}
	}
	if entry.Proof.Threshold > 0 && len(seen) < entry.Proof.Threshold {
		return "quorum not reached"
	}
	return ""
}

func epochFailure(entry store.RootEntry, computed ir.Hash, problem string) EpochCheck {
	return EpochCheck{
		Epoch:    entry.Epoch,
		Root:     entry.Root.String(),
		Computed: computed.String(),
		Votes:    entry.Proof.VoteCount(),
		Problem:  problem,
	}
}

func printReport(w io.Writer, r VerifyReport) {
	fmt.Fprintf(w, "Epochs %d..%d\n", r.From, r.To)
	if len(r.Idle) > 0 {
		fmt.Fprintf(w, "  - idle epochs (no receipts): %v\n", r.Idle)
	}
	for _, e := range r.Epochs {
		if !e.Valid {
			fmt.Fprintf(w, "  ✗ epoch %d: %s\n", e.Epoch, e.Problem)
			continue
		}
		fmt.Fprintf(w, "  ✓ epoch %d %s (%d votes)\n", e.Epoch, e.Root, e.Votes)
		for _, p := range e.Proofs {
			fmt.Fprintf(w, "      leaf %d %s: %d-step proof\n", p.Index, p.ReceiptID, len(p.Steps))
		}
	}
	if r.Valid {
		fmt.Fprintln(w, "OK")
		return
	}
	fmt.Fprintln(w, "FAILED")
}
