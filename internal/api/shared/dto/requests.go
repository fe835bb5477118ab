package dto

import (
	"encoding/json"

	"github.com/feral-file/card-registry/internal/auth"
	"github.com/feral-file/card-registry/internal/domain"
)

// SimulationRequest is the body of POST /api/v1/simulations
type SimulationRequest struct {
	Method domain.Method   `json:"method" binding:"required"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// InvocationRequest is the body of POST /api/v1/invocations
type InvocationRequest struct {
	Method domain.Method        `json:"method" binding:"required"`
	Args   json.RawMessage      `json:"args,omitempty"`
	Auth   []auth.Authorization `json:"auth,omitempty"`
}
