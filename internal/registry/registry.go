package registry

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/feral-file/card-registry/internal/domain"
)

// Public mint metadata, assigned round-robin by token id
const (
	DragonURI  = "ipfs://QmUYrFddXf4SpEXWAp6RpSm6XZmwxiDRKLNixt58nuhwAo"
	MageURI    = "ipfs://QmbZEqRXpz35zfXkyhAoPAfZLZLZmr1rDSXKbtuS5UhNPm"
	WarriorURI = "ipfs://QmdwASjP4qiyhvn6vJrDr2P3sudJ45KLtiariQmdqQAG9g"
)

// PublicMintURIs is indexed by token_id % 3
var PublicMintURIs = [3]string{DragonURI, MageURI, WarriorURI}

// PublicMintURI returns the metadata URI a public mint assigns to tokenID
func PublicMintURI(tokenID uint64) string {
	return PublicMintURIs[tokenID%uint64(len(PublicMintURIs))]
}

// Storage is the key-value capability the registry runs against
type Storage interface {
	Has(ctx context.Context, key DataKey) (bool, error)
	Get(ctx context.Context, key DataKey) (string, bool, error)
	Set(ctx context.Context, key DataKey, value string) error
}

// Authorizer answers whether an address authorized the current invocation
type Authorizer interface {
	// RequireAuth returns an error wrapping domain.ErrUnauthorized when addr did not authorize
	RequireAuth(ctx context.Context, addr domain.Address) error
}

// EventSink collects events produced by the current invocation
type EventSink interface {
	Emit(event domain.Event)
}

// Env bundles the host capabilities of a single invocation
type Env interface {
	Storage
	Authorizer
	EventSink
}

// Registry is the token registry state machine bound to one invocation environment.
// Every operation checks all of its preconditions before its first write, and the
// host discards the writes of any call that returns an error.
type Registry struct {
	env Env
}

// New binds a registry to an invocation environment
func New(env Env) *Registry {
	return &Registry{env: env}
}

// Initialize sets the admin and starts the supply at zero
func (r *Registry) Initialize(ctx context.Context, admin domain.Address) error {
	exists, err := r.env.Has(ctx, AdminKey())
	if err != nil {
		return fmt.Errorf("failed to read admin: %w", err)
	}
	if exists {
		return domain.ErrAlreadyInitialized
	}

	if err := r.env.Set(ctx, AdminKey(), admin.String()); err != nil {
		return fmt.Errorf("failed to write admin: %w", err)
	}
	if err := r.env.Set(ctx, TotalSupplyKey(), formatUint(0)); err != nil {
		return fmt.Errorf("failed to write total supply: %w", err)
	}

	r.env.Emit(domain.Event{
		Type:  domain.EventTypeInitialized,
		Admin: &admin,
	})
	return nil
}

// AdminMint mints the next token to `to` with a caller-chosen URI.
// The stored admin must authorize the call.
func (r *Registry) AdminMint(ctx context.Context, to domain.Address, uri string) (uint64, error) {
	return r.mint(ctx, mintRequest{
		to:         to,
		authorizer: func(admin domain.Address) domain.Address { return admin },
		uri:        func(uint64) string { return uri },
	})
}

// PublicMint mints the next token to `to`, who must authorize the call.
// The URI cycles through PublicMintURIs.
func (r *Registry) PublicMint(ctx context.Context, to domain.Address) error {
	_, err := r.mint(ctx, mintRequest{
		to:         to,
		authorizer: func(domain.Address) domain.Address { return to },
		uri:        PublicMintURI,
	})
	return err
}

// Transfer moves tokenID from `from` to `to`; `from` must authorize and own it
func (r *Registry) Transfer(ctx context.Context, from, to domain.Address, tokenID uint64) error {
	if err := r.env.RequireAuth(ctx, from); err != nil {
		return err
	}

	owner, err := r.OwnerOf(ctx, tokenID)
	if err != nil {
		return err
	}
	if !owner.Equal(from) {
		return fmt.Errorf("%w: token %d", domain.ErrNotOwner, tokenID)
	}

	if err := r.env.Set(ctx, OwnerKey(tokenID), to.String()); err != nil {
		return fmt.Errorf("failed to write owner: %w", err)
	}

	r.env.Emit(domain.Event{
		Type:    domain.EventTypeTransfer,
		TokenID: &tokenID,
		From:    &from,
		To:      &to,
	})
	return nil
}

// OwnerOf returns the current owner of tokenID
func (r *Registry) OwnerOf(ctx context.Context, tokenID uint64) (domain.Address, error) {
	raw, ok, err := r.env.Get(ctx, OwnerKey(tokenID))
	if err != nil {
		return "", fmt.Errorf("failed to read owner: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: token %d", domain.ErrTokenNotFound, tokenID)
	}
	return domain.Address(raw), nil
}

// TokenURI returns the metadata URI of tokenID
func (r *Registry) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	uri, ok, err := r.env.Get(ctx, URIKey(tokenID))
	if err != nil {
		return "", fmt.Errorf("failed to read uri: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: token %d", domain.ErrTokenNotFound, tokenID)
	}
	return uri, nil
}

// TotalSupply returns the number of minted tokens, 0 if never set
func (r *Registry) TotalSupply(ctx context.Context) (uint64, error) {
	return r.totalSupply(ctx)
}

type mintRequest struct {
	to domain.Address
	// authorizer picks the address that must authorize the mint, given the stored admin
	authorizer func(admin domain.Address) domain.Address
	uri        func(tokenID uint64) string
}

func (r *Registry) mint(ctx context.Context, req mintRequest) (uint64, error) {
	admin, ok, err := r.env.Get(ctx, AdminKey())
	if err != nil {
		return 0, fmt.Errorf("failed to read admin: %w", err)
	}
	if !ok {
		return 0, domain.ErrNotInitialized
	}

	if err := r.env.RequireAuth(ctx, req.authorizer(domain.Address(admin))); err != nil {
		return 0, err
	}

	tokenID, err := r.totalSupply(ctx)
	if err != nil {
		return 0, err
	}
	if tokenID == math.MaxUint64 {
		return 0, domain.ErrSupplyExhausted
	}

	exists, err := r.env.Has(ctx, OwnerKey(tokenID))
	if err != nil {
		return 0, fmt.Errorf("failed to read owner: %w", err)
	}
	if exists {
		return 0, fmt.Errorf("%w: token %d", domain.ErrTokenAlreadyExists, tokenID)
	}

	uri := req.uri(tokenID)
	if err := r.env.Set(ctx, OwnerKey(tokenID), req.to.String()); err != nil {
		return 0, fmt.Errorf("failed to write owner: %w", err)
	}
	if err := r.env.Set(ctx, URIKey(tokenID), uri); err != nil {
		return 0, fmt.Errorf("failed to write uri: %w", err)
	}
	if err := r.env.Set(ctx, TotalSupplyKey(), formatUint(tokenID+1)); err != nil {
		return 0, fmt.Errorf("failed to write total supply: %w", err)
	}

	to := req.to
	r.env.Emit(domain.Event{
		Type:    domain.EventTypeMint,
		TokenID: &tokenID,
		To:      &to,
		URI:     uri,
	})
	return tokenID, nil
}

func (r *Registry) totalSupply(ctx context.Context) (uint64, error) {
	raw, ok, err := r.env.Get(ctx, TotalSupplyKey())
	if err != nil {
		return 0, fmt.Errorf("failed to read total supply: %w", err)
	}
	if !ok {
		return 0, nil
	}
	supply, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt total supply %q: %w", raw, err)
	}
	return supply, nil
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
