package governance

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const ProposalsTableName = "proposals"

// ProposalStatus is the lifecycle state of a proposal. The set is closed:
// handlers switch exhaustively so a new status is a compile-time-visible change.
type ProposalStatus string

const (
	StatusDraft     ProposalStatus = "DRAFT"
	StatusActive    ProposalStatus = "ACTIVE"
	StatusPassed    ProposalStatus = "PASSED"
	StatusRejected  ProposalStatus = "REJECTED"
	StatusWithdrawn ProposalStatus = "WITHDRAWN"
	StatusExpired   ProposalStatus = "EXPIRED"
	StatusExecuted  ProposalStatus = "EXECUTED"
	StatusFailed    ProposalStatus = "FAILED"
)

// Valid reports whether s is a known proposal status.
func (s ProposalStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusPassed, StatusRejected,
		StatusWithdrawn, StatusExpired, StatusExecuted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a state that no transition may leave.
// PASSED is not terminal: it still admits the execute() transition.
func (s ProposalStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusWithdrawn, StatusExpired, StatusExecuted, StatusFailed:
		return true
	case StatusDraft, StatusActive, StatusPassed:
		return false
	}
	return false
}

// Closed reports whether voting has concluded for a proposal in state s.
func (s ProposalStatus) Closed() bool {
	return s != StatusDraft && s != StatusActive
}

// ProposalType categorizes a proposal. Informational only: it does not
// change the voting math.
type ProposalType string

const (
	TypePolicy         ProposalType = "POLICY"
	TypeSystem         ProposalType = "SYSTEM"
	TypeOverlay        ProposalType = "OVERLAY"
	TypeCapsule        ProposalType = "CAPSULE"
	TypeTrust          ProposalType = "TRUST"
	TypeConstitutional ProposalType = "CONSTITUTIONAL"
)

// Valid reports whether t is a known proposal type.
func (t ProposalType) Valid() bool {
	switch t {
	case TypePolicy, TypeSystem, TypeOverlay, TypeCapsule, TypeTrust, TypeConstitutional:
		return true
	}
	return false
}

// Default quorum and approval fractions applied at creation when the caller
// does not override them.
const (
	DefaultQuorumPercentage  = 0.30
	DefaultApprovalThreshold = 0.50
)

// Proposal is the durable governance entity. Tallies on the proposal are the
// single source of truth for quorum/threshold decisions; they are recomputed
// from the votes table inside the same transaction as every vote mutation.
//
// votes_* hold raw per-voter counts; weight_* hold the authoritative weighted
// sums. total_eligible_weight is a snapshot taken at activation and is never
// recomputed afterwards, even if the electorate's aggregate weight drifts.
type Proposal struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        ProposalType    `json:"type"`
	Status      ProposalStatus  `json:"status"`
	Payload     json.RawMessage `json:"payload"` // opaque action descriptor, never interpreted here
	ProposerID  string          `json:"proposer_id"`

	VotingStartsAt *time.Time `json:"voting_starts_at,omitempty"`
	VotingEndsAt   *time.Time `json:"voting_ends_at,omitempty"`

	QuorumPercentage  float64 `json:"quorum_percentage"`
	ApprovalThreshold float64 `json:"approval_threshold"`

	VotesFor     int64 `json:"votes_for"`
	VotesAgainst int64 `json:"votes_against"`
	VotesAbstain int64 `json:"votes_abstain"`

	WeightFor           float64 `json:"weight_for"`
	WeightAgainst       float64 `json:"weight_against"`
	WeightAbstain       float64 `json:"weight_abstain"`
	TotalEligibleWeight float64 `json:"total_eligible_weight"`

	// AIAnalysis is an advisory annotation from the external Ghost Council
	// collaborator. Stored and returned verbatim, display-only.
	AIAnalysis string `json:"ai_analysis,omitempty"`

	ExecutedAt      *time.Time `json:"executed_at,omitempty"`
	ExecutionResult string     `json:"execution_result,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParticipationWeight is the weighted turnout used for the quorum check.
func (p *Proposal) ParticipationWeight() float64 {
	return p.WeightFor + p.WeightAgainst + p.WeightAbstain
}

// ApplyTally writes a recomputed tally onto the proposal.
func (p *Proposal) ApplyTally(t Tally) {
	p.VotesFor = t.VotesFor
	p.VotesAgainst = t.VotesAgainst
	p.VotesAbstain = t.VotesAbstain
	p.WeightFor = t.WeightFor
	p.WeightAgainst = t.WeightAgainst
	p.WeightAbstain = t.WeightAbstain
}

// Tally is the six-value aggregate recomputed from the vote ledger.
// It is a pure function of the votes table: recomputing twice with no
// intervening vote mutation yields identical values.
type Tally struct {
	VotesFor      int64   `json:"votes_for"`
	VotesAgainst  int64   `json:"votes_against"`
	VotesAbstain  int64   `json:"votes_abstain"`
	WeightFor     float64 `json:"weight_for"`
	WeightAgainst float64 `json:"weight_against"`
	WeightAbstain float64 `json:"weight_abstain"`
}
