package governance

import (
	"time"

	"github.com/google/uuid"
)

const VotesTableName = "votes"

// VoteDecision is a voter's position on a proposal.
type VoteDecision string

const (
	DecisionFor     VoteDecision = "FOR"
	DecisionAgainst VoteDecision = "AGAINST"
	DecisionAbstain VoteDecision = "ABSTAIN"
)

// Valid reports whether d is a known decision.
func (d VoteDecision) Valid() bool {
	switch d {
	case DecisionFor, DecisionAgainst, DecisionAbstain:
		return true
	}
	return false
}

// Vote is one voter's position on one proposal. At most one row exists per
// (proposal_id, voter_id) pair, enforced by the storage layer's primary key
// rather than application checks. A second cast by the same voter updates the
// row in place (revote): decision, reasoning and weight are replaced and
// updated_at advances, created_at stays at first cast.
type Vote struct {
	ID         uuid.UUID    `json:"id"`
	ProposalID uuid.UUID    `json:"proposal_id"`
	VoterID    string       `json:"voter_id"`
	Decision   VoteDecision `json:"decision"`
	// Weight is the voter's weight captured at the most recent cast or
	// revote. It is supplied by the external weight provider and treated
	// as opaque here.
	Weight    float64   `json:"weight"`
	Reasoning string    `json:"reasoning,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
