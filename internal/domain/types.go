package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Address is an account address in EIP-55 checksummed hex form
type Address string

// ParseAddress validates a hex address and returns its checksummed form
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return "", fmt.Errorf("%w: malformed address %q", ErrInvalidArgument, s)
	}
	return Address(common.HexToAddress(s).Hex()), nil
}

// MustParseAddress is like ParseAddress but panics on malformed input
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// Equal reports whether both addresses refer to the same account
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}

func (a Address) String() string {
	return string(a)
}

// Method names a callable registry operation
type Method string

const (
	MethodInitialize  Method = "initialize"
	MethodAdminMint   Method = "admin_mint"
	MethodPublicMint  Method = "public_mint"
	MethodTransfer    Method = "transfer"
	MethodOwnerOf     Method = "owner_of"
	MethodTokenURI    Method = "token_uri"
	MethodTotalSupply Method = "total_supply"
)

// Methods lists every callable method in a stable order
var Methods = []Method{
	MethodInitialize,
	MethodAdminMint,
	MethodPublicMint,
	MethodTransfer,
	MethodOwnerOf,
	MethodTokenURI,
	MethodTotalSupply,
}

// Valid checks if the method is exposed by the registry
func (m Method) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// IsReadOnly reports whether the method never writes state
func (m Method) IsReadOnly() bool {
	return m == MethodOwnerOf || m == MethodTokenURI || m == MethodTotalSupply
}

// EventType represents the type of registry event
type EventType string

const (
	EventTypeInitialized EventType = "initialized"
	EventTypeMint        EventType = "mint"
	EventTypeTransfer    EventType = "transfer"
)

// Event is a state change recorded by a committed invocation.
// This is the standard format published to NATS.
type Event struct {
	ID           string    `json:"id"`                 // ULID, also used as the JetStream message ID
	Contract     string    `json:"contract"`           // registry instance identifier
	InvocationID string    `json:"invocation_id"`      // invocation that produced the event
	Type         EventType `json:"event_type"`         // initialized, mint, transfer
	TokenID      *uint64   `json:"token_id,omitempty"` // empty for initialized
	Admin        *Address  `json:"admin,omitempty"`    // only for initialized
	From         *Address  `json:"from,omitempty"`     // only for transfer
	To           *Address  `json:"to,omitempty"`       // recipient for mint and transfer
	URI          string    `json:"uri,omitempty"`      // only for mint
	Timestamp    time.Time `json:"timestamp"`
}
