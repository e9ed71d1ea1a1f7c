package lockchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/roach88/cadence/internal/ir"
)

// ErrQuorumNotReached is the sentinel matched by every QuorumError.
var ErrQuorumNotReached = errors.New("quorum not reached")

// ErrInvalidQuorum reports a threshold outside 1..members.
var ErrInvalidQuorum = errors.New("invalid quorum configuration")

// voteNamespace scopes deterministic vote IDs.
var voteNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte(ir.DomainVote))

// QuorumError reports how many votes were collected against the threshold.
type QuorumError struct {
	CycleID uint64
	Got     int
	Need    int
}

func (e *QuorumError) Error() string {
	return fmt.Sprintf("quorum not reached for epoch %d: %d of %d votes", e.CycleID, e.Got, e.Need)
}

// Is makes errors.Is(err, ErrQuorumNotReached) match.
func (e *QuorumError) Is(target error) bool {
	return target == ErrQuorumNotReached
}

// Voter signs a Merkle root for one epoch.
type Voter interface {
	PeerID() string
	Vote(ctx context.Context, root ir.Hash, cycleID uint64) (ir.Vote, error)
}

// LocalVoter signs in-process with a deterministic domain-separated hash
// of (peer, root, epoch). It stands in for a remote peer in tests and
// single-node deployments.
type LocalVoter struct {
	ID string
}

// PeerID implements Voter.
func (v LocalVoter) PeerID() string {
	return v.ID
}

// Vote implements Voter.
func (v LocalVoter) Vote(ctx context.Context, root ir.Hash, cycleID uint64) (ir.Vote, error) {
	if err := ctx.Err(); err != nil {
		return ir.Vote{}, err
	}
	msg := voteMessage(v.ID, root, cycleID)
	return ir.Vote{
		ID:        uuid.NewSHA1(voteNamespace, msg).String(),
		PeerID:    v.ID,
		CycleID:   cycleID,
		Signature: ir.HashWithDomain(ir.DomainVote, msg).String(),
	}, nil
}

// VerifyVote reports whether a LocalVoter signature matches.
func VerifyVote(v ir.Vote, root ir.Hash) bool {
	msg := voteMessage(v.PeerID, root, v.CycleID)
	return v.Signature == ir.HashWithDomain(ir.DomainVote, msg).String()
}

func voteMessage(peer string, root ir.Hash, cycleID uint64) []byte {
	msg := make([]byte, 0, len(peer)+1+64+1+20)
	msg = append(msg, peer...)
	msg = append(msg, '|')
	msg = append(msg, root.String()...)
	msg = append(msg, '|')
	msg = strconv.AppendUint(msg, cycleID, 10)
	return msg
}

// QuorumManager collects votes from self and peers until the threshold
// is met. Self always votes first; peers are asked in configuration
// order, so proofs are deterministic for a given membership.
type QuorumManager struct {
	selfID    string
	threshold int
	voters    []Voter
	logger    *slog.Logger
}

// NewQuorumManager creates a manager over self plus voters.
// Returns ErrInvalidQuorum if threshold is not within 1..len(voters)+1.
func NewQuorumManager(selfID string, voters []Voter, threshold int, logger *slog.Logger) (*QuorumManager, error) {
	members := len(voters) + 1
	if threshold < 1 || threshold > members {
		return nil, fmt.Errorf("%w: threshold %d with %d members", ErrInvalidQuorum, threshold, members)
	}
	if selfID == "" {
		return nil, fmt.Errorf("%w: empty self peer id", ErrInvalidQuorum)
	}
	if logger == nil {
		logger = slog.Default()
	}
	all := make([]Voter, 0, members)
	all = append(all, LocalVoter{ID: selfID})
	all = append(all, voters...)
	return &QuorumManager{
		selfID:    selfID,
		threshold: threshold,
		voters:    all,
		logger:    logger,
	}, nil
}

// LocalPeers wraps peer IDs as in-process voters.
func LocalPeers(peers []string) []Voter {
	voters := make([]Voter, len(peers))
	for i, p := range peers {
		voters[i] = LocalVoter{ID: p}
	}
	return voters
}

// Threshold returns the number of votes required.
func (q *QuorumManager) Threshold() int {
	return q.threshold
}

// Members returns the number of voters including self.
func (q *QuorumManager) Members() int {
	return len(q.voters)
}

// AchieveConsensus asks voters in order until threshold votes are held.
//
// A voter that fails is logged and skipped. Returns a *QuorumError when
// every voter has been asked without reaching the threshold, or the
// context error if ctx ends first.
func (q *QuorumManager) AchieveConsensus(ctx context.Context, root ir.Hash, cycleID uint64) (ir.QuorumProof, error) {
	proof := ir.QuorumProof{
		CycleID:   cycleID,
		Root:      root.String(),
		Threshold: q.threshold,
	}
	for _, v := range q.voters {
		if len(proof.Votes) >= q.threshold {
			break
		}
		if err := ctx.Err(); err != nil {
			return ir.QuorumProof{}, fmt.Errorf("consensus for epoch %d: %w", cycleID, err)
		}
		vote, err := v.Vote(ctx, root, cycleID)
		if err != nil {
			q.logger.Warn("peer vote failed",
				"peer", v.PeerID(),
				"epoch", cycleID,
				"error", err)
			continue
		}
		proof.Votes = append(proof.Votes, vote)
	}
	if len(proof.Votes) < q.threshold {
		return ir.QuorumProof{}, &QuorumError{CycleID: cycleID, Got: len(proof.Votes), Need: q.threshold}
	}
	return proof, nil
}
