package governance

import "errors"

// Error taxonomy for the governance core. Every error kind maps to a distinct,
// stable code so client UIs can discriminate "voting has closed" from "you are
// not authorized" without string matching.
var (
	// ErrProposalNotFound indicates the referenced proposal does not exist.
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrVoteNotFound indicates the voter has no vote on the proposal.
	ErrVoteNotFound = errors.New("vote not found")

	// ErrInvalidTransition indicates the attempted state change violates the
	// proposal state machine. Callers should re-fetch current state.
	ErrInvalidTransition = errors.New("invalid proposal state transition")

	// ErrProposalNotActive indicates a vote was attempted outside the ACTIVE
	// voting window.
	ErrProposalNotActive = errors.New("proposal is not open for voting")

	// ErrInvalidDecision indicates the decision is not FOR, AGAINST or ABSTAIN.
	ErrInvalidDecision = errors.New("invalid vote decision")

	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates a role/ownership check failed, e.g. a
	// non-proposer attempting withdrawal.
	ErrUnauthorized = errors.New("not authorized")

	// ErrStoreUnavailable indicates a transient storage failure. Safe to
	// retry with backoff; the sweeper retries on its next cycle.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ErrorCode returns the stable wire code for err, or "INTERNAL" when the
// error is not part of the taxonomy.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrProposalNotFound):
		return "PROPOSAL_NOT_FOUND"
	case errors.Is(err, ErrVoteNotFound):
		return "VOTE_NOT_FOUND"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrProposalNotActive):
		return "PROPOSAL_NOT_ACTIVE"
	case errors.Is(err, ErrInvalidDecision):
		return "INVALID_DECISION"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_FAILED"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}
