package dto

import "github.com/feral-file/card-registry/internal/domain"

// SupplyResponse represents the number of minted tokens
type SupplyResponse struct {
	TotalSupply uint64 `json:"total_supply"`
}

// OwnerResponse represents the current owner of a token
type OwnerResponse struct {
	TokenID uint64         `json:"token_id"`
	Owner   domain.Address `json:"owner"`
}

// TokenURIResponse represents the metadata pointer of a token
type TokenURIResponse struct {
	TokenID    uint64  `json:"token_id"`
	URI        string  `json:"uri"`
	GatewayURL *string `json:"gateway_url,omitempty"` // only when resolve=true and a gateway answered
}

// NonceResponse represents the authorization nonce state of an address
type NonceResponse struct {
	Address   domain.Address `json:"address"`
	Nonce     uint64         `json:"nonce"`
	NextNonce uint64         `json:"next_nonce"`
}

// HealthResponse represents the liveness of the API
type HealthResponse struct {
	Status   string `json:"status"`
	Contract string `json:"contract"`
}
