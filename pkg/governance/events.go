package governance

import (
	"time"

	govmodels "github.com/capsulenet/govern/pkg/db/models/governance"
)

// Event is the JSON envelope published to Redis and relayed over WebSocket.
type Event struct {
	Type       string    `json:"type"`
	ProposalID string    `json:"proposal_id"`
	Timestamp  time.Time `json:"timestamp"`

	// Proposal fields present on proposal.* events.
	Status              govmodels.ProposalStatus `json:"status,omitempty"`
	Title               string                   `json:"title,omitempty"`
	VotesFor            int64                    `json:"votes_for,omitempty"`
	VotesAgainst        int64                    `json:"votes_against,omitempty"`
	VotesAbstain        int64                    `json:"votes_abstain,omitempty"`
	WeightFor           float64                  `json:"weight_for,omitempty"`
	WeightAgainst       float64                  `json:"weight_against,omitempty"`
	WeightAbstain       float64                  `json:"weight_abstain,omitempty"`
	TotalEligibleWeight float64                  `json:"total_eligible_weight,omitempty"`

	// Vote fields present on vote.* events. The voter's identity is not
	// broadcast; dashboards only need the aggregate movement.
	Decision govmodels.VoteDecision `json:"decision,omitempty"`
	Weight   float64                `json:"weight,omitempty"`
}

func proposalEvent(kind string, p *govmodels.Proposal) Event {
	return Event{
		Type:                kind,
		ProposalID:          p.ID.String(),
		Timestamp:           p.UpdatedAt,
		Status:              p.Status,
		Title:               p.Title,
		VotesFor:            p.VotesFor,
		VotesAgainst:        p.VotesAgainst,
		VotesAbstain:        p.VotesAbstain,
		WeightFor:           p.WeightFor,
		WeightAgainst:       p.WeightAgainst,
		WeightAbstain:       p.WeightAbstain,
		TotalEligibleWeight: p.TotalEligibleWeight,
	}
}

func voteEvent(kind string, v *govmodels.Vote) Event {
	return Event{
		Type:       kind,
		ProposalID: v.ProposalID.String(),
		Timestamp:  v.UpdatedAt,
		Decision:   v.Decision,
		Weight:     v.Weight,
	}
}
