package controller

import (
	"errors"
	"net/http"

	"github.com/capsulenet/govern/pkg/governance"
	"github.com/go-jose/go-jose/v4/json"
)

// writeJSON writes a JSON response
func (c *Controller) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (c *Controller) writeError(w http.ResponseWriter, statusCode int, message string) {
	c.writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeEngineError maps an engine error to an HTTP status and a stable
// machine-readable code alongside the message.
func (c *Controller) writeEngineError(w http.ResponseWriter, err error) {
	c.writeJSON(w, statusFor(err), map[string]string{
		"error": err.Error(),
		"code":  governance.ErrorCode(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, governance.ErrProposalNotFound),
		errors.Is(err, governance.ErrVoteNotFound):
		return http.StatusNotFound
	case errors.Is(err, governance.ErrInvalidTransition),
		errors.Is(err, governance.ErrProposalNotActive):
		return http.StatusConflict
	case errors.Is(err, governance.ErrValidation),
		errors.Is(err, governance.ErrInvalidDecision):
		return http.StatusBadRequest
	case errors.Is(err, governance.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, governance.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
