package executor

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/feral-file/card-registry/internal/adapter"
	"github.com/feral-file/card-registry/internal/api/shared/dto"
	"github.com/feral-file/card-registry/internal/domain"
	"github.com/feral-file/card-registry/internal/host"
	"github.com/feral-file/card-registry/internal/logger"
	"github.com/feral-file/card-registry/internal/uri"
)

// Executor is the interface for the API executor
//
//go:generate mockgen -source=executor.go -destination=../../../mocks/mock_api_executor.go -package=mocks -mock_names=Executor=MockAPIExecutor
type Executor interface {
	// TotalSupply returns the number of minted tokens
	TotalSupply(ctx context.Context) (*dto.SupplyResponse, error)

	// OwnerOf returns the owner of a token
	OwnerOf(ctx context.Context, tokenID uint64) (*dto.OwnerResponse, error)

	// TokenURI returns the metadata URI of a token, optionally resolved to a gateway URL
	TokenURI(ctx context.Context, tokenID uint64, resolve bool) (*dto.TokenURIResponse, error)

	// Nonce returns the authorization nonce state of an address
	Nonce(ctx context.Context, address domain.Address) (*dto.NonceResponse, error)

	// Simulate runs a call without committing it
	Simulate(ctx context.Context, req dto.SimulationRequest) (*host.Receipt, error)

	// Invoke executes a signed call
	Invoke(ctx context.Context, req dto.InvocationRequest) (*host.Receipt, error)
}

type executor struct {
	invoker  host.Invoker
	resolver uri.Resolver
	json     adapter.JSON
}

func NewExecutor(invoker host.Invoker, resolver uri.Resolver, jsonAdapter adapter.JSON) Executor {
	return &executor{invoker: invoker, resolver: resolver, json: jsonAdapter}
}

type tokenQuery struct {
	TokenID uint64 `json:"token_id"`
}

func (e *executor) TotalSupply(ctx context.Context) (*dto.SupplyResponse, error) {
	var supply uint64
	if err := e.read(ctx, domain.MethodTotalSupply, nil, &supply); err != nil {
		return nil, err
	}
	return &dto.SupplyResponse{TotalSupply: supply}, nil
}

func (e *executor) OwnerOf(ctx context.Context, tokenID uint64) (*dto.OwnerResponse, error) {
	var owner domain.Address
	if err := e.read(ctx, domain.MethodOwnerOf, tokenQuery{TokenID: tokenID}, &owner); err != nil {
		return nil, err
	}
	return &dto.OwnerResponse{TokenID: tokenID, Owner: owner}, nil
}

func (e *executor) TokenURI(ctx context.Context, tokenID uint64, resolve bool) (*dto.TokenURIResponse, error) {
	var tokenURI string
	if err := e.read(ctx, domain.MethodTokenURI, tokenQuery{TokenID: tokenID}, &tokenURI); err != nil {
		return nil, err
	}

	resp := &dto.TokenURIResponse{TokenID: tokenID, URI: tokenURI}
	if !resolve || e.resolver == nil {
		return resp, nil
	}

	// A gateway outage should not hide the on-chain URI
	gatewayURL, err := e.resolver.Resolve(ctx, tokenURI)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to resolve token URI", zap.Uint64("token_id", tokenID), zap.Error(err))
		return resp, nil
	}
	resp.GatewayURL = &gatewayURL

	return resp, nil
}

func (e *executor) Nonce(ctx context.Context, address domain.Address) (*dto.NonceResponse, error) {
	nonce, err := e.invoker.Nonce(ctx, address)
	if err != nil {
		return nil, err
	}

	next := nonce
	if nonce < math.MaxUint64 {
		next = nonce + 1
	}
	return &dto.NonceResponse{Address: address, Nonce: nonce, NextNonce: next}, nil
}

func (e *executor) Simulate(ctx context.Context, req dto.SimulationRequest) (*host.Receipt, error) {
	return e.invoker.Simulate(ctx, host.Call{Method: req.Method, Args: req.Args})
}

func (e *executor) Invoke(ctx context.Context, req dto.InvocationRequest) (*host.Receipt, error) {
	return e.invoker.Invoke(ctx, &host.Invocation{
		Call: host.Call{Method: req.Method, Args: req.Args},
		Auth: req.Auth,
	})
}

// read serves a read-only method through simulation and decodes its result into out
func (e *executor) read(ctx context.Context, method domain.Method, args any, out any) error {
	call := host.Call{Method: method}
	if args != nil {
		raw, err := e.json.Marshal(args)
		if err != nil {
			return fmt.Errorf("failed to marshal %s args: %w", method, err)
		}
		call.Args = raw
	}

	receipt, err := e.invoker.Simulate(ctx, call)
	if err != nil {
		return err
	}

	if err := e.json.Unmarshal(receipt.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
