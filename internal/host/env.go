package host

import (
	"context"
	"fmt"

	"github.com/feral-file/card-registry/internal/domain"
	"github.com/feral-file/card-registry/internal/registry"
	"github.com/feral-file/card-registry/internal/store"
)

// txnEnv runs registry operations against one store transaction.
// Data keys live under "{contract}/" so several registries can share a backend.
type txnEnv struct {
	txn        store.Txn
	prefix     string
	authorizer registry.Authorizer
	events     []domain.Event
}

func newTxnEnv(txn store.Txn, contract string, authorizer registry.Authorizer) *txnEnv {
	return &txnEnv{
		txn:        txn,
		prefix:     contract + "/",
		authorizer: authorizer,
	}
}

func (e *txnEnv) Has(ctx context.Context, key registry.DataKey) (bool, error) {
	return e.txn.Has(ctx, e.prefix+key.String())
}

func (e *txnEnv) Get(ctx context.Context, key registry.DataKey) (string, bool, error) {
	return e.txn.Get(ctx, e.prefix+key.String())
}

func (e *txnEnv) Set(ctx context.Context, key registry.DataKey, value string) error {
	return e.txn.Set(ctx, e.prefix+key.String(), value)
}

func (e *txnEnv) RequireAuth(ctx context.Context, addr domain.Address) error {
	return e.authorizer.RequireAuth(ctx, addr)
}

func (e *txnEnv) Emit(event domain.Event) {
	e.events = append(e.events, event)
}

// signedAuthorizer accepts exactly the addresses whose signatures were verified
type signedAuthorizer struct {
	signers []domain.Address
}

func (a *signedAuthorizer) RequireAuth(_ context.Context, addr domain.Address) error {
	for _, s := range a.signers {
		if s.Equal(addr) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrUnauthorized, addr)
}

// recordingAuthorizer accepts every address and remembers which ones were asked for
type recordingAuthorizer struct {
	required []domain.Address
}

func (a *recordingAuthorizer) RequireAuth(_ context.Context, addr domain.Address) error {
	for _, r := range a.required {
		if r.Equal(addr) {
			return nil
		}
	}
	a.required = append(a.required, addr)
	return nil
}
