package host

import (
	"encoding/json"

	"github.com/feral-file/card-registry/internal/auth"
	"github.com/feral-file/card-registry/internal/domain"
)

// Call names a registry method and its JSON arguments
type Call struct {
	Method domain.Method   `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Invocation is a call together with the signed authorizations it carries
type Invocation struct {
	Call
	Auth []auth.Authorization `json:"auth,omitempty"`
}

// Receipt describes the outcome of an invocation or simulation
type Receipt struct {
	InvocationID  string           `json:"invocation_id"`
	Contract      string           `json:"contract"`
	Method        domain.Method    `json:"method"`
	Result        json.RawMessage  `json:"result,omitempty"`
	Events        []domain.Event   `json:"events"`
	RequiredAuths []domain.Address `json:"required_auths,omitempty"`
	Simulated     bool             `json:"simulated"`
}

type initializeArgs struct {
	Admin string `json:"admin"`
}

type adminMintArgs struct {
	To  string `json:"to"`
	URI string `json:"uri"`
}

type publicMintArgs struct {
	To string `json:"to"`
}

type transferArgs struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID uint64 `json:"token_id"`
}

type tokenArgs struct {
	TokenID uint64 `json:"token_id"`
}
