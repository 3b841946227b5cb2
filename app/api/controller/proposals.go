package controller

import (
	"net/http"
	"time"

	govmodels "github.com/capsulenet/govern/pkg/db/models/governance"
	"github.com/capsulenet/govern/pkg/governance"
	"encoding/json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// proposalID extracts and parses the {id} path variable.
func proposalID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

// HandleProposalsList returns proposals newest-first, optionally filtered by
// ?status=, with limit/offset pagination.
func (c *Controller) HandleProposalsList(w http.ResponseWriter, r *http.Request) {
	page, err := parsePageSpec(r)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := governance.ProposalFilter{Limit: page.Limit, Offset: page.Offset}
	if v := r.URL.Query().Get("status"); v != "" {
		status := govmodels.ProposalStatus(v)
		if !status.Valid() {
			c.writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = &status
	}

	proposals, err := c.App.Engine.ListProposals(r.Context(), filter)
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":  proposals,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// HandleProposalCreate registers a new DRAFT proposal. The proposer identity
// comes from the session, never from the request body.
func (c *Controller) HandleProposalCreate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title             string          `json:"title"`
		Description       string          `json:"description"`
		Type              string          `json:"type"`
		Payload           json.RawMessage `json:"payload"`
		QuorumPercentage  *float64        `json:"quorum_percentage"`
		ApprovalThreshold *float64        `json:"approval_threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	proposer := c.currentUser(r)
	if proposer == "" {
		c.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p, err := c.App.Engine.CreateProposal(r.Context(), governance.CreateProposalInput{
		Title:             in.Title,
		Description:       in.Description,
		Type:              govmodels.ProposalType(in.Type),
		Payload:           in.Payload,
		ProposerID:        proposer,
		QuorumPercentage:  in.QuorumPercentage,
		ApprovalThreshold: in.ApprovalThreshold,
	})
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	c.writeJSON(w, http.StatusCreated, p)
}

// HandleProposalDetail returns a single proposal with its current tallies.
func (c *Controller) HandleProposalDetail(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	p, err := c.App.Engine.GetProposal(r.Context(), id)
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, p)
}

// HandleProposalActivate opens a DRAFT proposal for voting. The caller
// supplies the voting period and the electorate weight snapshot. Admins may
// activate any proposal; everyone else only their own.
func (c *Controller) HandleProposalActivate(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	var in struct {
		VotingPeriodSeconds int64   `json:"voting_period_seconds"`
		TotalEligibleWeight float64 `json:"total_eligible_weight"`
		AIAnalysis          string  `json:"ai_analysis"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	requester := c.currentUser(r)
	if c.ValidateToken(r) || c.ValidateRole(r, "admin") {
		requester = ""
	}

	p, err := c.App.Engine.Activate(r.Context(), governance.ActivateInput{
		ProposalID:          id,
		VotingPeriod:        time.Duration(in.VotingPeriodSeconds) * time.Second,
		TotalEligibleWeight: in.TotalEligibleWeight,
		AIAnalysis:          in.AIAnalysis,
		RequesterID:         requester,
	})
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, p)
}

// HandleProposalWithdraw retires a proposal; only its proposer may do so.
func (c *Controller) HandleProposalWithdraw(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	p, err := c.App.Engine.Withdraw(r.Context(), id, c.currentUser(r))
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, p)
}

// HandleProposalClose forces outcome evaluation without waiting for the
// sweeper. Safe to call on an already-closed proposal.
func (c *Controller) HandleProposalClose(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	p, err := c.App.Engine.CloseVoting(r.Context(), id)
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, p)
}

// HandleProposalExecution records the external executor's outcome for a
// PASSED proposal.
func (c *Controller) HandleProposalExecution(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	var in struct {
		Success bool   `json:"success"`
		Result  string `json:"result"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		c.writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	p, err := c.App.Engine.MarkExecuted(r.Context(), id, in.Success, in.Result)
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, p)
}

// HandleProposalRecalculate rebuilds a proposal's tallies from the vote
// ledger. Operational tool; the result is identical unless the denormalized
// tallies had drifted.
func (c *Controller) HandleProposalRecalculate(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	if err := c.App.Engine.Recalculate(r.Context(), id); err != nil {
		c.writeEngineError(w, err)
		return
	}

	p, err := c.App.Engine.GetProposal(r.Context(), id)
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, p)
}
