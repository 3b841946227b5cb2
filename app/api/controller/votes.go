package controller

import (
	"net/http"
	"strconv"

	govmodels "github.com/capsulenet/govern/pkg/db/models/governance"
	"github.com/capsulenet/govern/pkg/governance"
	"github.com/go-jose/go-jose/v4/json"
)

// voterWeight derives the caller's voting weight from the X-Trust-Score
// header stamped by the trust gateway. The score rides the request because
// weight is captured at cast time, not looked up later.
func voterWeight(r *http.Request) (float64, bool) {
	raw := r.Header.Get("X-Trust-Score")
	if raw == "" {
		return 0, false
	}
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil || score < 0 {
		return 0, false
	}
	return governance.TrustCurveWeight(score), true
}

// HandleVoteCast records or updates the caller's vote on a proposal.
func (c *Controller) HandleVoteCast(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	voter := c.currentUser(r)
	if voter == "" {
		c.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	weight, ok := voterWeight(r)
	if !ok {
		c.writeError(w, http.StatusBadRequest, "missing or invalid X-Trust-Score header")
		return
	}

	var in struct {
		Decision  string `json:"decision"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	v, err := c.App.Engine.CastVote(r.Context(), governance.CastVoteInput{
		ProposalID: id,
		VoterID:    voter,
		Decision:   govmodels.VoteDecision(in.Decision),
		Weight:     weight,
		Reasoning:  in.Reasoning,
	})
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, v)
}

// HandleVotesList returns every vote on a proposal in cast order.
func (c *Controller) HandleVotesList(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	votes, err := c.App.Engine.ListVotes(r.Context(), id)
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": votes,
		"count": len(votes),
	})
}

// HandleMyVote returns the caller's own vote on a proposal.
func (c *Controller) HandleMyVote(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	voter := c.currentUser(r)
	if voter == "" {
		c.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	v, err := c.App.Engine.GetVote(r.Context(), id, voter)
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, v)
}
