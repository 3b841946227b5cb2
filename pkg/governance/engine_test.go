package governance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	govmodels "github.com/capsulenet/govern/pkg/db/models/governance"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeStore is an in-memory Store. Like the real store, it enforces at most
// one vote row per (proposal_id, voter_id), hands out copies so engine
// mutations only land via UpdateProposal, and rolls every write of a failed
// InTx back.
type fakeStore struct {
	mu        sync.Mutex
	proposals map[uuid.UUID]*govmodels.Proposal
	votes     map[uuid.UUID]map[string]*govmodels.Vote

	// txMu serializes transactions so a failed one restores exactly the
	// state it started from.
	txMu sync.Mutex

	// failTally makes TallyVotes fail for specific proposals.
	failTally map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		proposals: make(map[uuid.UUID]*govmodels.Proposal),
		votes:     make(map[uuid.UUID]map[string]*govmodels.Vote),
		failTally: make(map[uuid.UUID]bool),
	}
}

func (s *fakeStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	proposals, votes := s.snapshot()
	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.proposals = proposals
		s.votes = votes
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *fakeStore) snapshot() (map[uuid.UUID]*govmodels.Proposal, map[uuid.UUID]map[string]*govmodels.Vote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposals := make(map[uuid.UUID]*govmodels.Proposal, len(s.proposals))
	for id, p := range s.proposals {
		cp := *p
		proposals[id] = &cp
	}
	votes := make(map[uuid.UUID]map[string]*govmodels.Vote, len(s.votes))
	for pid, byVoter := range s.votes {
		inner := make(map[string]*govmodels.Vote, len(byVoter))
		for voter, v := range byVoter {
			cv := *v
			inner[voter] = &cv
		}
		votes[pid] = inner
	}
	return proposals, votes
}

func (s *fakeStore) InsertProposal(_ context.Context, p *govmodels.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.proposals[p.ID] = &cp
	return nil
}

func (s *fakeStore) GetProposal(_ context.Context, id uuid.UUID) (*govmodels.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, ErrProposalNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) GetProposalForUpdate(ctx context.Context, id uuid.UUID) (*govmodels.Proposal, error) {
	return s.GetProposal(ctx, id)
}

func (s *fakeStore) UpdateProposal(_ context.Context, p *govmodels.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[p.ID]; !ok {
		return ErrProposalNotFound
	}
	cp := *p
	s.proposals[p.ID] = &cp
	return nil
}

func (s *fakeStore) ListProposals(_ context.Context, f ProposalFilter) ([]*govmodels.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*govmodels.Proposal, 0)
	for _, p := range s.proposals {
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) UpsertVote(_ context.Context, v *govmodels.Vote) (*govmodels.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byVoter, ok := s.votes[v.ProposalID]
	if !ok {
		byVoter = make(map[string]*govmodels.Vote)
		s.votes[v.ProposalID] = byVoter
	}
	if prev, exists := byVoter[v.VoterID]; exists {
		// Revote: the existing row is updated in place.
		prev.Decision = v.Decision
		prev.Weight = v.Weight
		prev.Reasoning = v.Reasoning
		prev.UpdatedAt = v.UpdatedAt
		cp := *prev
		return &cp, nil
	}
	cp := *v
	byVoter[v.VoterID] = &cp
	out := cp
	return &out, nil
}

func (s *fakeStore) GetVote(_ context.Context, proposalID uuid.UUID, voterID string) (*govmodels.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.votes[proposalID][voterID]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, ErrVoteNotFound
}

func (s *fakeStore) ListVotes(_ context.Context, proposalID uuid.UUID) ([]*govmodels.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*govmodels.Vote, 0)
	for _, v := range s.votes[proposalID] {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) TallyVotes(_ context.Context, proposalID uuid.UUID) (govmodels.Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTally[proposalID] {
		return govmodels.Tally{}, fmt.Errorf("tally: %w: induced failure", ErrStoreUnavailable)
	}
	var t govmodels.Tally
	for _, v := range s.votes[proposalID] {
		switch v.Decision {
		case govmodels.DecisionFor:
			t.VotesFor++
			t.WeightFor += v.Weight
		case govmodels.DecisionAgainst:
			t.VotesAgainst++
			t.WeightAgainst += v.Weight
		case govmodels.DecisionAbstain:
			t.VotesAbstain++
			t.WeightAbstain += v.Weight
		}
	}
	return t, nil
}

func (s *fakeStore) ListDueProposals(_ context.Context, asOf time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type due struct {
		id   uuid.UUID
		ends time.Time
	}
	dues := make([]due, 0)
	for _, p := range s.proposals {
		if p.Status == govmodels.StatusActive && p.VotingEndsAt != nil && !p.VotingEndsAt.After(asOf) {
			dues = append(dues, due{id: p.ID, ends: *p.VotingEndsAt})
		}
	}
	sort.Slice(dues, func(i, j int) bool { return dues[i].ends.Before(dues[j].ends) })
	out := make([]uuid.UUID, 0, len(dues))
	for _, d := range dues {
		if len(out) >= limit {
			break
		}
		out = append(out, d.id)
	}
	return out, nil
}

var _ Store = (*fakeStore)(nil)

func newTestEngine(t *testing.T) (*Engine, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	e := NewEngine(store, zaptest.NewLogger(t))
	return e, store
}

// createActive seeds an ACTIVE proposal with the given electorate snapshot
// and a one-hour voting window.
func createActive(t *testing.T, e *Engine, totalWeight float64) *govmodels.Proposal {
	t.Helper()
	ctx := context.Background()
	p, err := e.CreateProposal(ctx, CreateProposalInput{
		Title:      "raise overlay fee",
		Type:       govmodels.TypePolicy,
		ProposerID: "alice",
	})
	require.NoError(t, err)
	p, err = e.Activate(ctx, ActivateInput{
		ProposalID:          p.ID,
		VotingPeriod:        time.Hour,
		TotalEligibleWeight: totalWeight,
	})
	require.NoError(t, err)
	return p
}

func castVote(t *testing.T, e *Engine, id uuid.UUID, voter string, d govmodels.VoteDecision, weight float64) {
	t.Helper()
	_, err := e.CastVote(context.Background(), CastVoteInput{
		ProposalID: id,
		VoterID:    voter,
		Decision:   d,
		Weight:     weight,
	})
	require.NoError(t, err)
}

func TestCreateProposalDefaults(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	p, err := e.CreateProposal(ctx, CreateProposalInput{
		Title:      "adjust trust decay",
		Type:       govmodels.TypeTrust,
		ProposerID: "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, govmodels.StatusDraft, p.Status)
	assert.Equal(t, govmodels.DefaultQuorumPercentage, p.QuorumPercentage)
	assert.Equal(t, govmodels.DefaultApprovalThreshold, p.ApprovalThreshold)
	assert.Equal(t, "{}", string(p.Payload))
	assert.Nil(t, p.VotingEndsAt)
	assert.Zero(t, p.TotalEligibleWeight)
}

func TestCreateProposalValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateProposalInput
	}{
		{"missing title", CreateProposalInput{Type: govmodels.TypePolicy, ProposerID: "alice"}},
		{"missing proposer", CreateProposalInput{Title: "t", Type: govmodels.TypePolicy}},
		{"unknown type", CreateProposalInput{Title: "t", Type: "BOGUS", ProposerID: "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.CreateProposal(ctx, tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	badQuorum := 1.5
	_, err := e.CreateProposal(ctx, CreateProposalInput{
		Title: "t", Type: govmodels.TypePolicy, ProposerID: "alice",
		QuorumPercentage: &badQuorum,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestActivate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	p, err := e.CreateProposal(ctx, CreateProposalInput{
		Title: "t", Type: govmodels.TypeSystem, ProposerID: "alice",
	})
	require.NoError(t, err)

	activated, err := e.Activate(ctx, ActivateInput{
		ProposalID:          p.ID,
		VotingPeriod:        2 * time.Hour,
		TotalEligibleWeight: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, govmodels.StatusActive, activated.Status)
	require.NotNil(t, activated.VotingStartsAt)
	require.NotNil(t, activated.VotingEndsAt)
	assert.Equal(t, 2*time.Hour, activated.VotingEndsAt.Sub(*activated.VotingStartsAt))
	assert.Equal(t, float64(100), activated.TotalEligibleWeight)

	// A second activation must be rejected: ACTIVE is not DRAFT.
	_, err = e.Activate(ctx, ActivateInput{
		ProposalID: p.ID, VotingPeriod: time.Hour, TotalEligibleWeight: 100,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestActivateProposerAuthorization(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	p, err := e.CreateProposal(ctx, CreateProposalInput{
		Title: "t", Type: govmodels.TypePolicy, ProposerID: "alice",
	})
	require.NoError(t, err)

	_, err = e.Activate(ctx, ActivateInput{
		ProposalID: p.ID, VotingPeriod: time.Hour, TotalEligibleWeight: 100,
		RequesterID: "mallory",
	})
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Proposers may activate their own proposal.
	activated, err := e.Activate(ctx, ActivateInput{
		ProposalID: p.ID, VotingPeriod: time.Hour, TotalEligibleWeight: 100,
		RequesterID: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, govmodels.StatusActive, activated.Status)
}

func TestActivateValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Activate(ctx, ActivateInput{ProposalID: uuid.New(), VotingPeriod: 0})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.Activate(ctx, ActivateInput{
		ProposalID: uuid.New(), VotingPeriod: time.Hour, TotalEligibleWeight: -1,
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.Activate(ctx, ActivateInput{
		ProposalID: uuid.New(), VotingPeriod: time.Hour, TotalEligibleWeight: 10,
	})
	assert.ErrorIs(t, err, ErrProposalNotFound)
}

func TestCastVoteUpdatesTallies(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := createActive(t, e, 100)

	castVote(t, e, p.ID, "bob", govmodels.DecisionFor, 20)
	castVote(t, e, p.ID, "carol", govmodels.DecisionAgainst, 5)
	castVote(t, e, p.ID, "dave", govmodels.DecisionAbstain, 3)

	got, err := e.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.VotesFor)
	assert.Equal(t, int64(1), got.VotesAgainst)
	assert.Equal(t, int64(1), got.VotesAbstain)
	assert.Equal(t, float64(20), got.WeightFor)
	assert.Equal(t, float64(5), got.WeightAgainst)
	assert.Equal(t, float64(3), got.WeightAbstain)
	assert.Equal(t, float64(28), got.ParticipationWeight())
}

func TestRevoteReplacesPreviousContribution(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := createActive(t, e, 100)

	castVote(t, e, p.ID, "bob", govmodels.DecisionAgainst, 30)
	castVote(t, e, p.ID, "bob", govmodels.DecisionFor, 30)

	got, err := e.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.VotesFor)
	assert.Equal(t, int64(0), got.VotesAgainst)
	assert.Equal(t, float64(30), got.WeightFor)
	assert.Equal(t, float64(0), got.WeightAgainst)

	// Exactly one ledger row for the voter.
	votes, err := e.ListVotes(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, govmodels.DecisionFor, votes[0].Decision)
}

func TestCastVoteAbortsWhenTallyFails(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	p := createActive(t, e, 100)
	castVote(t, e, p.ID, "carol", govmodels.DecisionAgainst, 5)

	store.failTally[p.ID] = true
	_, err := e.CastVote(ctx, CastVoteInput{
		ProposalID: p.ID, VoterID: "bob", Decision: govmodels.DecisionFor, Weight: 20,
	})
	require.ErrorIs(t, err, ErrStoreUnavailable)

	// The vote row must not survive the aborted transaction.
	_, err = e.GetVote(ctx, p.ID, "bob")
	assert.ErrorIs(t, err, ErrVoteNotFound)

	// Tallies still reflect only the committed vote.
	got, err := e.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.VotesFor)
	assert.Equal(t, float64(0), got.WeightFor)
	assert.Equal(t, int64(1), got.VotesAgainst)
	assert.Equal(t, float64(5), got.WeightAgainst)

	// Once the store recovers the same cast succeeds.
	store.failTally[p.ID] = false
	castVote(t, e, p.ID, "bob", govmodels.DecisionFor, 20)
	got, err = e.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(20), got.WeightFor)
}

func TestCastVoteRejections(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	draft, err := e.CreateProposal(ctx, CreateProposalInput{
		Title: "t", Type: govmodels.TypePolicy, ProposerID: "alice",
	})
	require.NoError(t, err)

	_, err = e.CastVote(ctx, CastVoteInput{
		ProposalID: draft.ID, VoterID: "bob", Decision: govmodels.DecisionFor, Weight: 1,
	})
	assert.ErrorIs(t, err, ErrProposalNotActive)

	active := createActive(t, e, 100)

	_, err = e.CastVote(ctx, CastVoteInput{
		ProposalID: active.ID, VoterID: "bob", Decision: "MAYBE", Weight: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidDecision)

	_, err = e.CastVote(ctx, CastVoteInput{
		ProposalID: active.ID, VoterID: "", Decision: govmodels.DecisionFor, Weight: 1,
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.CastVote(ctx, CastVoteInput{
		ProposalID: active.ID, VoterID: "bob", Decision: govmodels.DecisionFor, Weight: -1,
	})
	assert.ErrorIs(t, err, ErrValidation)

	// Past the deadline the proposal may still read ACTIVE (sweeper hasn't
	// run yet), but votes must be refused.
	e.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = e.CastVote(ctx, CastVoteInput{
		ProposalID: active.ID, VoterID: "bob", Decision: govmodels.DecisionFor, Weight: 1,
	})
	assert.ErrorIs(t, err, ErrProposalNotActive)
}

func TestCloseVotingOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		totalWeight float64
		votes       map[string]struct {
			d govmodels.VoteDecision
			w float64
		}
		expected govmodels.ProposalStatus
	}{
		{
			name:        "quorum met and approved",
			totalWeight: 100,
			votes: map[string]struct {
				d govmodels.VoteDecision
				w float64
			}{
				"bob":   {govmodels.DecisionFor, 35},
				"carol": {govmodels.DecisionAgainst, 5},
			},
			expected: govmodels.StatusPassed,
		},
		{
			name:        "quorum missed expires",
			totalWeight: 100,
			votes: map[string]struct {
				d govmodels.VoteDecision
				w float64
			}{
				"bob": {govmodels.DecisionFor, 5},
			},
			expected: govmodels.StatusExpired,
		},
		{
			name:        "quorum met but rejected",
			totalWeight: 100,
			votes: map[string]struct {
				d govmodels.VoteDecision
				w float64
			}{
				"bob":   {govmodels.DecisionFor, 10},
				"carol": {govmodels.DecisionAgainst, 40},
			},
			expected: govmodels.StatusRejected,
		},
		{
			name:        "no votes at all expires",
			totalWeight: 100,
			votes:       nil,
			expected:    govmodels.StatusExpired,
		},
		{
			name:        "all abstentions meet quorum but reject",
			totalWeight: 100,
			votes: map[string]struct {
				d govmodels.VoteDecision
				w float64
			}{
				"bob":   {govmodels.DecisionAbstain, 20},
				"carol": {govmodels.DecisionAbstain, 20},
			},
			expected: govmodels.StatusRejected,
		},
		{
			name:        "abstentions count toward quorum only",
			totalWeight: 100,
			votes: map[string]struct {
				d govmodels.VoteDecision
				w float64
			}{
				"bob":   {govmodels.DecisionFor, 6},
				"carol": {govmodels.DecisionAgainst, 4},
				"dave":  {govmodels.DecisionAbstain, 25},
			},
			// participation 35 >= 30; ratio 6/10 >= 0.5
			expected: govmodels.StatusPassed,
		},
		{
			name:        "exact threshold passes",
			totalWeight: 100,
			votes: map[string]struct {
				d govmodels.VoteDecision
				w float64
			}{
				"bob":   {govmodels.DecisionFor, 20},
				"carol": {govmodels.DecisionAgainst, 20},
			},
			expected: govmodels.StatusPassed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			ctx := context.Background()
			p := createActive(t, e, tt.totalWeight)
			for voter, v := range tt.votes {
				castVote(t, e, p.ID, voter, v.d, v.w)
			}

			closed, err := e.CloseVoting(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, closed.Status)
		})
	}
}

func TestCloseVotingZeroElectorateExpires(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := createActive(t, e, 0)

	castVote(t, e, p.ID, "bob", govmodels.DecisionFor, 10)

	closed, err := e.CloseVoting(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, govmodels.StatusExpired, closed.Status)
}

func TestCloseVotingIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := createActive(t, e, 100)
	castVote(t, e, p.ID, "bob", govmodels.DecisionFor, 40)

	first, err := e.CloseVoting(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, govmodels.StatusPassed, first.Status)

	// Closing again is a no-op that returns the existing terminal state.
	second, err := e.CloseVoting(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestCloseVotingOnDraftFails(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p, err := e.CreateProposal(ctx, CreateProposalInput{
		Title: "t", Type: govmodels.TypePolicy, ProposerID: "alice",
	})
	require.NoError(t, err)

	_, err = e.CloseVoting(ctx, p.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWithdraw(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := createActive(t, e, 100)

	_, err := e.Withdraw(ctx, p.ID, "mallory")
	assert.ErrorIs(t, err, ErrUnauthorized)

	withdrawn, err := e.Withdraw(ctx, p.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, govmodels.StatusWithdrawn, withdrawn.Status)

	// WITHDRAWN is terminal.
	_, err = e.Withdraw(ctx, p.ID, "alice")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = e.CastVote(ctx, CastVoteInput{
		ProposalID: p.ID, VoterID: "bob", Decision: govmodels.DecisionFor, Weight: 1,
	})
	assert.ErrorIs(t, err, ErrProposalNotActive)
}

func TestMarkExecuted(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	p := createActive(t, e, 100)
	castVote(t, e, p.ID, "bob", govmodels.DecisionFor, 40)
	_, err := e.CloseVoting(ctx, p.ID)
	require.NoError(t, err)

	executed, err := e.MarkExecuted(ctx, p.ID, true, "applied policy change")
	require.NoError(t, err)
	assert.Equal(t, govmodels.StatusExecuted, executed.Status)
	require.NotNil(t, executed.ExecutedAt)
	assert.Equal(t, "applied policy change", executed.ExecutionResult)

	// EXECUTED is terminal: a second report must fail.
	_, err = e.MarkExecuted(ctx, p.ID, false, "double report")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkExecutedFailure(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	p := createActive(t, e, 100)
	castVote(t, e, p.ID, "bob", govmodels.DecisionFor, 40)
	_, err := e.CloseVoting(ctx, p.ID)
	require.NoError(t, err)

	failed, err := e.MarkExecuted(ctx, p.ID, false, "executor timeout")
	require.NoError(t, err)
	assert.Equal(t, govmodels.StatusFailed, failed.Status)
}

func TestMarkExecutedRequiresPassed(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := createActive(t, e, 100)

	_, err := e.MarkExecuted(ctx, p.ID, true, "too early")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := createActive(t, e, 100)
	castVote(t, e, p.ID, "bob", govmodels.DecisionFor, 12)
	castVote(t, e, p.ID, "carol", govmodels.DecisionAgainst, 7)

	require.NoError(t, e.Recalculate(ctx, p.ID))
	first, err := e.GetProposal(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, e.Recalculate(ctx, p.ID))
	second, err := e.GetProposal(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, first.VotesFor, second.VotesFor)
	assert.Equal(t, first.WeightFor, second.WeightFor)
	assert.Equal(t, first.WeightAgainst, second.WeightAgainst)
	assert.Equal(t, float64(12), second.WeightFor)
	assert.Equal(t, float64(7), second.WeightAgainst)
}

func TestListProposalsFilter(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_ = createActive(t, e, 100)
	_, err := e.CreateProposal(ctx, CreateProposalInput{
		Title: "still a draft", Type: govmodels.TypePolicy, ProposerID: "alice",
	})
	require.NoError(t, err)

	active := govmodels.StatusActive
	got, err := e.ListProposals(ctx, ProposalFilter{Status: &active})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, govmodels.StatusActive, got[0].Status)

	bogus := govmodels.ProposalStatus("BOGUS")
	_, err = e.ListProposals(ctx, ProposalFilter{Status: &bogus})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetVote(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	p := createActive(t, e, 100)

	_, err := e.GetVote(ctx, p.ID, "bob")
	assert.True(t, errors.Is(err, ErrVoteNotFound))

	castVote(t, e, p.ID, "bob", govmodels.DecisionAbstain, 2)
	v, err := e.GetVote(ctx, p.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, govmodels.DecisionAbstain, v.Decision)
	assert.Equal(t, float64(2), v.Weight)
}
