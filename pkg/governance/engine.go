package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	govmodels "github.com/capsulenet/govern/pkg/db/models/governance"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the transactional persistence contract the engine runs on.
// Implementations must guarantee that mutations made inside InTx commit
// atomically, that GetProposalForUpdate serializes concurrent mutators of the
// same proposal, and that UpsertVote enforces at most one row per
// (proposal_id, voter_id) at the storage layer.
type Store interface {
	// InTx runs fn inside a transaction. The context passed to fn carries
	// the transaction; all Store calls made with it join the transaction.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	InsertProposal(ctx context.Context, p *govmodels.Proposal) error
	GetProposal(ctx context.Context, id uuid.UUID) (*govmodels.Proposal, error)
	// GetProposalForUpdate re-reads the proposal with a row lock so two
	// concurrent lifecycle transitions cannot both apply.
	GetProposalForUpdate(ctx context.Context, id uuid.UUID) (*govmodels.Proposal, error)
	UpdateProposal(ctx context.Context, p *govmodels.Proposal) error
	ListProposals(ctx context.Context, f ProposalFilter) ([]*govmodels.Proposal, error)

	UpsertVote(ctx context.Context, v *govmodels.Vote) (*govmodels.Vote, error)
	GetVote(ctx context.Context, proposalID uuid.UUID, voterID string) (*govmodels.Vote, error)
	ListVotes(ctx context.Context, proposalID uuid.UUID) ([]*govmodels.Vote, error)
	// TallyVotes recomputes the six-value aggregate from the vote rows.
	TallyVotes(ctx context.Context, proposalID uuid.UUID) (govmodels.Tally, error)

	// ListDueProposals returns IDs of ACTIVE proposals whose voting window
	// ended at or before asOf, oldest deadline first, capped at limit.
	ListDueProposals(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error)
}

// EventPublisher delivers best-effort governance event notifications.
// *redis.Client satisfies this; a nil publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, message interface{})
}

// Service is the engine surface consumed by the HTTP layer.
type Service interface {
	CreateProposal(ctx context.Context, in CreateProposalInput) (*govmodels.Proposal, error)
	GetProposal(ctx context.Context, id uuid.UUID) (*govmodels.Proposal, error)
	ListProposals(ctx context.Context, f ProposalFilter) ([]*govmodels.Proposal, error)
	Activate(ctx context.Context, in ActivateInput) (*govmodels.Proposal, error)
	CastVote(ctx context.Context, in CastVoteInput) (*govmodels.Vote, error)
	GetVote(ctx context.Context, proposalID uuid.UUID, voterID string) (*govmodels.Vote, error)
	ListVotes(ctx context.Context, proposalID uuid.UUID) ([]*govmodels.Vote, error)
	Withdraw(ctx context.Context, proposalID uuid.UUID, requesterID string) (*govmodels.Proposal, error)
	CloseVoting(ctx context.Context, proposalID uuid.UUID) (*govmodels.Proposal, error)
	MarkExecuted(ctx context.Context, proposalID uuid.UUID, success bool, result string) (*govmodels.Proposal, error)
	Recalculate(ctx context.Context, proposalID uuid.UUID) error
	Sweep(ctx context.Context) (int, error)
}

// Engine owns the proposal lifecycle state machine, the vote ledger rules and
// tally aggregation. All shared mutable proposal state flows through it;
// request handlers never write tally or status fields directly.
type Engine struct {
	store  Store
	logger *zap.Logger

	// Events, when set, receives proposal/vote notifications. Best-effort.
	Events EventPublisher

	// SweepBatchLimit caps proposals processed per sweep cycle so a large
	// overdue backlog cannot make a cycle overrun unboundedly.
	SweepBatchLimit int

	// SweepWorkers bounds concurrent closures within one sweep.
	SweepWorkers int

	now func() time.Time
}

var _ Service = (*Engine)(nil)

// NewEngine returns an Engine over the given store.
func NewEngine(store Store, logger *zap.Logger) *Engine {
	return &Engine{
		store:           store,
		logger:          logger,
		SweepBatchLimit: 256,
		SweepWorkers:    8,
		now:             time.Now,
	}
}

// CreateProposalInput carries the fields a proposer supplies at creation.
type CreateProposalInput struct {
	Title       string
	Description string
	Type        govmodels.ProposalType
	Payload     json.RawMessage
	ProposerID  string

	// Optional overrides; defaults apply when nil.
	QuorumPercentage  *float64
	ApprovalThreshold *float64
}

// ActivateInput opens a DRAFT proposal for voting.
type ActivateInput struct {
	ProposalID          uuid.UUID
	VotingPeriod        time.Duration
	TotalEligibleWeight float64
	AIAnalysis          string

	// RequesterID, when set, must match the proposer. Privileged callers
	// (admins) leave it empty.
	RequesterID string
}

// CastVoteInput records or updates one voter's position.
type CastVoteInput struct {
	ProposalID uuid.UUID
	VoterID    string
	Decision   govmodels.VoteDecision
	Weight     float64
	Reasoning  string
}

// ProposalFilter selects proposals for listing.
type ProposalFilter struct {
	Status *govmodels.ProposalStatus
	Limit  int
	Offset int
}

// CreateProposal stores a new DRAFT proposal with zeroed tallies.
func (e *Engine) CreateProposal(ctx context.Context, in CreateProposalInput) (*govmodels.Proposal, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.ProposerID == "" {
		return nil, fmt.Errorf("%w: proposer id is required", ErrValidation)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown proposal type %q", ErrValidation, in.Type)
	}

	quorum := govmodels.DefaultQuorumPercentage
	if in.QuorumPercentage != nil {
		quorum = *in.QuorumPercentage
	}
	threshold := govmodels.DefaultApprovalThreshold
	if in.ApprovalThreshold != nil {
		threshold = *in.ApprovalThreshold
	}
	if quorum < 0 || quorum > 1 {
		return nil, fmt.Errorf("%w: quorum_percentage must be in [0,1]", ErrValidation)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: approval_threshold must be in [0,1]", ErrValidation)
	}

	payload := in.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	now := e.now().UTC()
	p := &govmodels.Proposal{
		ID:                uuid.New(),
		Title:             in.Title,
		Description:       in.Description,
		Type:              in.Type,
		Status:            govmodels.StatusDraft,
		Payload:           payload,
		ProposerID:        in.ProposerID,
		QuorumPercentage:  quorum,
		ApprovalThreshold: threshold,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := e.store.InsertProposal(ctx, p); err != nil {
		return nil, err
	}

	proposalsCreatedTotal.Inc()
	e.publish(ctx, "governance:proposal.created", proposalEvent("proposal.created", p))

	return p, nil
}

// GetProposal returns a proposal by ID.
func (e *Engine) GetProposal(ctx context.Context, id uuid.UUID) (*govmodels.Proposal, error) {
	return e.store.GetProposal(ctx, id)
}

// ListProposals returns proposals matching the filter.
func (e *Engine) ListProposals(ctx context.Context, f ProposalFilter) ([]*govmodels.Proposal, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *f.Status)
	}
	return e.store.ListProposals(ctx, f)
}

// Activate transitions a DRAFT proposal to ACTIVE, stamps the voting window
// and snapshots the electorate's total eligible weight (the quorum
// denominator for the rest of the proposal's life).
func (e *Engine) Activate(ctx context.Context, in ActivateInput) (*govmodels.Proposal, error) {
	if in.VotingPeriod <= 0 {
		return nil, fmt.Errorf("%w: voting period must be positive", ErrValidation)
	}
	if in.TotalEligibleWeight < 0 {
		return nil, fmt.Errorf("%w: total eligible weight must not be negative", ErrValidation)
	}

	var out *govmodels.Proposal
	err := e.store.InTx(ctx, func(ctx context.Context) error {
		p, err := e.store.GetProposalForUpdate(ctx, in.ProposalID)
		if err != nil {
			return err
		}
		if in.RequesterID != "" && p.ProposerID != in.RequesterID {
			return fmt.Errorf("%w: only the proposer may activate", ErrUnauthorized)
		}
		if p.Status != govmodels.StatusDraft {
			return fmt.Errorf("%w: cannot activate proposal in status %s", ErrInvalidTransition, p.Status)
		}

		now := e.now().UTC()
		ends := now.Add(in.VotingPeriod)
		p.Status = govmodels.StatusActive
		p.VotingStartsAt = &now
		p.VotingEndsAt = &ends
		p.TotalEligibleWeight = in.TotalEligibleWeight
		if in.AIAnalysis != "" {
			p.AIAnalysis = in.AIAnalysis
		}
		p.UpdatedAt = now

		if err := e.store.UpdateProposal(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, "governance:proposal.activated", proposalEvent("proposal.activated", out))
	e.logger.Info("proposal activated",
		zap.String("proposal_id", out.ID.String()),
		zap.Time("voting_ends_at", *out.VotingEndsAt),
		zap.Float64("total_eligible_weight", out.TotalEligibleWeight))

	return out, nil
}

// CastVote records a voter's position on an ACTIVE proposal, or updates the
// existing record when the voter has already voted (revote). The vote write
// and the tally recomputation commit in one transaction, so no reader ever
// observes one without the other.
func (e *Engine) CastVote(ctx context.Context, in CastVoteInput) (*govmodels.Vote, error) {
	if !in.Decision.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, in.Decision)
	}
	if in.VoterID == "" {
		return nil, fmt.Errorf("%w: voter id is required", ErrValidation)
	}
	if in.Weight < 0 {
		return nil, fmt.Errorf("%w: weight must not be negative", ErrValidation)
	}

	var out *govmodels.Vote
	err := e.store.InTx(ctx, func(ctx context.Context) error {
		p, err := e.store.GetProposalForUpdate(ctx, in.ProposalID)
		if err != nil {
			return err
		}
		if p.Status != govmodels.StatusActive {
			return fmt.Errorf("%w: proposal status is %s", ErrProposalNotActive, p.Status)
		}
		now := e.now().UTC()
		if p.VotingEndsAt != nil && now.After(*p.VotingEndsAt) {
			return fmt.Errorf("%w: voting window closed", ErrProposalNotActive)
		}

		v := &govmodels.Vote{
			ID:         uuid.New(),
			ProposalID: in.ProposalID,
			VoterID:    in.VoterID,
			Decision:   in.Decision,
			Weight:     in.Weight,
			Reasoning:  in.Reasoning,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		stored, err := e.store.UpsertVote(ctx, v)
		if err != nil {
			return err
		}

		// Full recompute, never incremental: a revote replaces the voter's
		// previous contribution instead of adding to it.
		tally, err := e.store.TallyVotes(ctx, in.ProposalID)
		if err != nil {
			return err
		}
		p.ApplyTally(tally)
		p.UpdatedAt = now
		if err := e.store.UpdateProposal(ctx, p); err != nil {
			return err
		}

		out = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	votesCastTotal.WithLabelValues(string(out.Decision)).Inc()
	e.publish(ctx, "governance:vote.cast", voteEvent("vote.cast", out))

	return out, nil
}

// GetVote returns the voter's vote on the proposal, if any.
func (e *Engine) GetVote(ctx context.Context, proposalID uuid.UUID, voterID string) (*govmodels.Vote, error) {
	return e.store.GetVote(ctx, proposalID, voterID)
}

// ListVotes returns all votes on a proposal ordered by creation time.
func (e *Engine) ListVotes(ctx context.Context, proposalID uuid.UUID) ([]*govmodels.Vote, error) {
	return e.store.ListVotes(ctx, proposalID)
}

// Withdraw moves a DRAFT or ACTIVE proposal to WITHDRAWN. Proposer-only;
// bypasses the quorum/threshold computation.
func (e *Engine) Withdraw(ctx context.Context, proposalID uuid.UUID, requesterID string) (*govmodels.Proposal, error) {
	var out *govmodels.Proposal
	err := e.store.InTx(ctx, func(ctx context.Context) error {
		p, err := e.store.GetProposalForUpdate(ctx, proposalID)
		if err != nil {
			return err
		}
		if p.ProposerID != requesterID {
			return fmt.Errorf("%w: only the proposer may withdraw", ErrUnauthorized)
		}
		switch p.Status {
		case govmodels.StatusDraft, govmodels.StatusActive:
			// withdrawable
		default:
			return fmt.Errorf("%w: cannot withdraw proposal in status %s", ErrInvalidTransition, p.Status)
		}

		p.Status = govmodels.StatusWithdrawn
		p.UpdatedAt = e.now().UTC()
		if err := e.store.UpdateProposal(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	proposalsClosedTotal.WithLabelValues(string(govmodels.StatusWithdrawn)).Inc()
	e.publish(ctx, "governance:proposal.closed", proposalEvent("proposal.closed", out))

	return out, nil
}

// CloseVoting evaluates quorum and approval for an ACTIVE proposal and moves
// it to PASSED, REJECTED or EXPIRED. Calling it on an already-closed proposal
// is a no-op returning the existing terminal state, which makes the
// user-triggered path and the sweeper safe to race.
func (e *Engine) CloseVoting(ctx context.Context, proposalID uuid.UUID) (*govmodels.Proposal, error) {
	p, _, err := e.closeVoting(ctx, proposalID)
	return p, err
}

// closeVoting reports whether this call applied the terminal transition, so
// the sweeper can count actual closures and not no-ops it raced on.
func (e *Engine) closeVoting(ctx context.Context, proposalID uuid.UUID) (*govmodels.Proposal, bool, error) {
	var out *govmodels.Proposal
	var closed bool
	err := e.store.InTx(ctx, func(ctx context.Context) error {
		p, err := e.store.GetProposalForUpdate(ctx, proposalID)
		if err != nil {
			return err
		}

		switch p.Status {
		case govmodels.StatusActive:
			// fall through to outcome computation
		case govmodels.StatusDraft:
			return fmt.Errorf("%w: cannot close voting on a draft", ErrInvalidTransition)
		case govmodels.StatusPassed, govmodels.StatusRejected, govmodels.StatusExpired,
			govmodels.StatusWithdrawn, govmodels.StatusExecuted, govmodels.StatusFailed:
			// Already closed: no-op, return current state untouched.
			out = p
			return nil
		default:
			return fmt.Errorf("%w: unknown status %s", ErrInvalidTransition, p.Status)
		}

		// Defensive recompute before deciding, guarding against any missed
		// post-vote trigger.
		tally, err := e.store.TallyVotes(ctx, proposalID)
		if err != nil {
			return err
		}
		p.ApplyTally(tally)

		p.Status = decideOutcome(p)
		p.UpdatedAt = e.now().UTC()
		if err := e.store.UpdateProposal(ctx, p); err != nil {
			return err
		}
		out = p
		closed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if closed {
		proposalsClosedTotal.WithLabelValues(string(out.Status)).Inc()
		e.publish(ctx, "governance:proposal.closed", proposalEvent("proposal.closed", out))
		e.logger.Info("voting closed",
			zap.String("proposal_id", out.ID.String()),
			zap.String("status", string(out.Status)),
			zap.Float64("participation_weight", out.ParticipationWeight()),
			zap.Float64("total_eligible_weight", out.TotalEligibleWeight))
	}

	return out, closed, nil
}

// decideOutcome computes the terminal voting status from the proposal's
// tallies. Quorum uses weight, not raw counts. The approval ratio excludes
// ABSTAIN weight from both numerator and denominator: abstentions count
// toward quorum but not toward approval or rejection.
func decideOutcome(p *govmodels.Proposal) govmodels.ProposalStatus {
	// A proposal with no known electorate cannot pass.
	if p.TotalEligibleWeight <= 0 {
		return govmodels.StatusExpired
	}
	if p.ParticipationWeight() < p.QuorumPercentage*p.TotalEligibleWeight {
		return govmodels.StatusExpired
	}

	decided := p.WeightFor + p.WeightAgainst
	if decided <= 0 {
		// All abstentions: quorum met, nothing approved.
		return govmodels.StatusRejected
	}
	if p.WeightFor/decided >= p.ApprovalThreshold {
		return govmodels.StatusPassed
	}
	return govmodels.StatusRejected
}

// MarkExecuted records the external executor's outcome for a PASSED proposal.
// The payload itself is never interpreted here; the executor reports success
// or failure explicitly.
func (e *Engine) MarkExecuted(ctx context.Context, proposalID uuid.UUID, success bool, result string) (*govmodels.Proposal, error) {
	var out *govmodels.Proposal
	err := e.store.InTx(ctx, func(ctx context.Context) error {
		p, err := e.store.GetProposalForUpdate(ctx, proposalID)
		if err != nil {
			return err
		}
		if p.Status != govmodels.StatusPassed {
			return fmt.Errorf("%w: cannot record execution for proposal in status %s", ErrInvalidTransition, p.Status)
		}

		now := e.now().UTC()
		p.ExecutedAt = &now
		p.ExecutionResult = result
		if success {
			p.Status = govmodels.StatusExecuted
		} else {
			p.Status = govmodels.StatusFailed
		}
		p.UpdatedAt = now

		if err := e.store.UpdateProposal(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	executionsRecordedTotal.WithLabelValues(string(out.Status)).Inc()
	e.publish(ctx, "governance:proposal.executed", proposalEvent("proposal.executed", out))

	return out, nil
}

// Recalculate rebuilds the proposal's tallies from the vote ledger. Safe to
// run repeatedly; identical ledger state yields identical tallies.
func (e *Engine) Recalculate(ctx context.Context, proposalID uuid.UUID) error {
	return e.store.InTx(ctx, func(ctx context.Context) error {
		p, err := e.store.GetProposalForUpdate(ctx, proposalID)
		if err != nil {
			return err
		}
		tally, err := e.store.TallyVotes(ctx, proposalID)
		if err != nil {
			return err
		}
		p.ApplyTally(tally)
		p.UpdatedAt = e.now().UTC()
		return e.store.UpdateProposal(ctx, p)
	})
}

// publish sends a best-effort event notification when a publisher is wired.
func (e *Engine) publish(ctx context.Context, channel string, payload any) {
	if e.Events == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		e.logger.Warn("failed to marshal governance event", zap.String("channel", channel), zap.Error(err))
		return
	}
	e.Events.Publish(ctx, channel, string(b))
}
