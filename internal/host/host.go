package host

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/card-registry/internal/adapter"
	"github.com/feral-file/card-registry/internal/auth"
	"github.com/feral-file/card-registry/internal/domain"
	"github.com/feral-file/card-registry/internal/logger"
	"github.com/feral-file/card-registry/internal/messaging"
	"github.com/feral-file/card-registry/internal/registry"
	"github.com/feral-file/card-registry/internal/schema"
	"github.com/feral-file/card-registry/internal/store"
)

// Invoker executes registry calls
//
//go:generate mockgen -source=host.go -destination=../mocks/host.go -package=mocks -mock_names=Invoker=MockInvoker
type Invoker interface {
	// Invoke verifies the signed authorizations, runs the call in one transaction
	// and publishes its events once committed. Read-only methods take no authorizations.
	Invoke(ctx context.Context, inv *Invocation) (*Receipt, error)
	// Simulate runs the call without committing, treating every authorization as granted
	Simulate(ctx context.Context, call Call) (*Receipt, error)
	// Nonce returns the last authorization nonce used by address, 0 if none
	Nonce(ctx context.Context, address domain.Address) (uint64, error)
}

// Config holds the host configuration
type Config struct {
	// Contract identifies the registry instance; it namespaces storage keys,
	// signed payloads and event subjects
	Contract string
}

// Host supplies storage, authorization and event delivery to the registry
type Host struct {
	contract  string
	store     store.Store
	codec     *auth.Codec
	json      adapter.JSON
	clock     adapter.Clock
	publisher messaging.Publisher

	// writeMu serializes invocations within this process; exclusive store
	// transactions serialize them across processes
	writeMu sync.Mutex
	// publishMu orders event publishing by commit, outside writeMu
	publishMu sync.Mutex
}

// New creates a host
func New(cfg Config, st store.Store, codec *auth.Codec, jsonAdapter adapter.JSON, clock adapter.Clock, publisher messaging.Publisher) *Host {
	return &Host{
		contract:  cfg.Contract,
		store:     st,
		codec:     codec,
		json:      jsonAdapter,
		clock:     clock,
		publisher: publisher,
	}
}

func (h *Host) Invoke(ctx context.Context, inv *Invocation) (*Receipt, error) {
	if inv == nil {
		return nil, fmt.Errorf("%w: empty invocation", domain.ErrInvalidArgument)
	}
	if err := schema.ValidateArgs(inv.Method, inv.Args); err != nil {
		return nil, err
	}

	// Reads change nothing, so they take no writer slot and consume no nonce
	if inv.Method.IsReadOnly() {
		if len(inv.Auth) > 0 {
			return nil, fmt.Errorf("%w: %s takes no authorization", domain.ErrInvalidArgument, inv.Method)
		}
		return h.execute(ctx, inv.Call, &recordingAuthorizer{})
	}

	signers, err := h.verifySignatures(inv)
	if err != nil {
		return nil, err
	}

	receipt, err := h.commit(ctx, inv, signers)
	if err != nil {
		return nil, err
	}
	defer h.publishMu.Unlock()

	h.publishEvents(ctx, receipt.Events)

	return receipt, nil
}

// commit runs inv in one exclusive transaction. On success it returns holding
// publishMu, taken before writeMu is released, so events leave in commit order
// while the next writer proceeds.
func (h *Host) commit(ctx context.Context, inv *Invocation, signers []domain.Address) (*Receipt, error) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	txn, err := h.store.Begin(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Discard()

	for _, a := range inv.Auth {
		if err := h.consumeNonce(ctx, txn, a.Address, a.Nonce); err != nil {
			return nil, err
		}
	}

	env := newTxnEnv(txn, h.contract, &signedAuthorizer{signers: signers})
	result, err := h.dispatch(ctx, registry.New(env), inv.Call)
	if err != nil {
		logger.DebugCtx(ctx, "Invocation rejected", zap.String("method", string(inv.Method)), zap.Error(err))
		return nil, err
	}

	receipt, err := h.newReceipt(inv.Method, result, env.events)
	if err != nil {
		return nil, err
	}

	if err := txn.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invocation: %w", err)
	}

	logger.InfoCtx(ctx, "Invocation committed",
		zap.String("invocation_id", receipt.InvocationID),
		zap.String("method", string(inv.Method)),
		zap.Int("events", len(receipt.Events)))

	h.publishMu.Lock()
	return receipt, nil
}

func (h *Host) Simulate(ctx context.Context, call Call) (*Receipt, error) {
	if err := schema.ValidateArgs(call.Method, call.Args); err != nil {
		return nil, err
	}

	recorder := &recordingAuthorizer{}
	receipt, err := h.execute(ctx, call, recorder)
	if err != nil {
		return nil, err
	}
	receipt.RequiredAuths = recorder.required
	receipt.Simulated = true

	return receipt, nil
}

// execute runs call against a transaction that is always discarded
func (h *Host) execute(ctx context.Context, call Call, authorizer registry.Authorizer) (*Receipt, error) {
	txn, err := h.store.Begin(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Discard()

	env := newTxnEnv(txn, h.contract, authorizer)
	result, err := h.dispatch(ctx, registry.New(env), call)
	if err != nil {
		return nil, err
	}

	return h.newReceipt(call.Method, result, env.events)
}

func (h *Host) Nonce(ctx context.Context, address domain.Address) (uint64, error) {
	txn, err := h.store.Begin(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Discard()

	return h.lastNonce(ctx, txn, address)
}

// verifySignatures checks every authorization against the invocation payload
// and returns the verified addresses
func (h *Host) verifySignatures(inv *Invocation) ([]domain.Address, error) {
	signers := make([]domain.Address, 0, len(inv.Auth))
	for i, a := range inv.Auth {
		addr, err := domain.ParseAddress(a.Address.String())
		if err != nil {
			return nil, err
		}
		for _, seen := range signers {
			if seen.Equal(addr) {
				return nil, fmt.Errorf("%w: duplicate authorization for %s", domain.ErrInvalidArgument, addr)
			}
		}

		a.Address = addr
		payload := auth.Payload{
			Contract: h.contract,
			Method:   inv.Method,
			Args:     inv.Args,
		}
		if err := h.codec.Verify(payload, a); err != nil {
			return nil, err
		}

		inv.Auth[i].Address = addr
		signers = append(signers, addr)
	}
	return signers, nil
}

func (h *Host) nonceKey(address domain.Address) string {
	return h.contract + "/auth/nonce/" + address.String()
}

func (h *Host) lastNonce(ctx context.Context, txn store.Txn, address domain.Address) (uint64, error) {
	raw, ok, err := txn.Get(ctx, h.nonceKey(address))
	if err != nil {
		return 0, fmt.Errorf("failed to read nonce: %w", err)
	}
	if !ok {
		return 0, nil
	}
	nonce, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt nonce %q for %s: %w", raw, address, err)
	}
	return nonce, nil
}

// consumeNonce requires nonce to be greater than the last one used by address and records it
func (h *Host) consumeNonce(ctx context.Context, txn store.Txn, address domain.Address, nonce uint64) error {
	last, err := h.lastNonce(ctx, txn, address)
	if err != nil {
		return err
	}
	if nonce <= last {
		return fmt.Errorf("%w: %s used %d, got %d", domain.ErrInvalidNonce, address, last, nonce)
	}
	if err := txn.Set(ctx, h.nonceKey(address), strconv.FormatUint(nonce, 10)); err != nil {
		return fmt.Errorf("failed to write nonce: %w", err)
	}
	return nil
}

func (h *Host) newReceipt(method domain.Method, result any, events []domain.Event) (*Receipt, error) {
	receipt := &Receipt{
		InvocationID: uuid.New().String(),
		Contract:     h.contract,
		Method:       method,
		Events:       make([]domain.Event, 0, len(events)),
	}

	if result != nil {
		raw, err := h.json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		receipt.Result = raw
	}

	now := h.clock.Now()
	for _, e := range events {
		e.ID = ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
		e.Contract = h.contract
		e.InvocationID = receipt.InvocationID
		e.Timestamp = now
		receipt.Events = append(receipt.Events, e)
	}

	return receipt, nil
}

// publishEvents delivers committed events. Failures are logged only,
// the invocation is already durable.
func (h *Host) publishEvents(ctx context.Context, events []domain.Event) {
	for i := range events {
		if err := h.publisher.PublishEvent(ctx, &events[i]); err != nil {
			logger.ErrorCtx(ctx, err,
				zap.String("message", "Failed to publish event"),
				zap.String("event_id", events[i].ID),
				zap.String("event_type", string(events[i].Type)))
		}
	}
}
