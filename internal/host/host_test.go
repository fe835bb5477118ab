package host_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/card-registry/internal/adapter"
	"github.com/feral-file/card-registry/internal/auth"
	"github.com/feral-file/card-registry/internal/domain"
	"github.com/feral-file/card-registry/internal/host"
	"github.com/feral-file/card-registry/internal/mocks"
	"github.com/feral-file/card-registry/internal/registry"
	"github.com/feral-file/card-registry/internal/store"
)

const contract = "main"

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type testHost struct {
	*host.Host
	store     store.Store
	codec     *auth.Codec
	publisher *mocks.MockPublisher

	mu        sync.Mutex
	published []domain.Event
}

func setupHost(t *testing.T) *testHost {
	t.Helper()
	ctrl := gomock.NewController(t)

	st, err := store.Open(store.Config{Driver: store.DriverMemory})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(now).AnyTimes()

	th := &testHost{
		store:     st,
		codec:     auth.NewCodec(adapter.NewJSON(), adapter.NewJCS()),
		publisher: mocks.NewMockPublisher(ctrl),
	}
	th.publisher.EXPECT().
		PublishEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *domain.Event) error {
			th.mu.Lock()
			defer th.mu.Unlock()
			th.published = append(th.published, *e)
			return nil
		}).
		AnyTimes()

	th.Host = host.New(host.Config{Contract: contract}, st, th.codec, adapter.NewJSON(), clock, th.publisher)
	return th
}

func newSigner(t *testing.T) *auth.Signer {
	t.Helper()
	s, err := auth.GenerateSigner()
	require.NoError(t, err)
	return s
}

// invocation builds a call signed by each signer with the given nonce
func (th *testHost) invocation(t *testing.T, method domain.Method, args string, nonce uint64, signers ...*auth.Signer) *host.Invocation {
	t.Helper()
	inv := &host.Invocation{Call: host.Call{Method: method, Args: json.RawMessage(args)}}
	for _, s := range signers {
		a, err := s.Authorize(th.codec, auth.Payload{
			Contract: contract,
			Method:   method,
			Args:     json.RawMessage(args),
			Nonce:    nonce,
		})
		require.NoError(t, err)
		inv.Auth = append(inv.Auth, a)
	}
	return inv
}

func (th *testHost) initialize(t *testing.T, admin domain.Address) {
	t.Helper()
	_, err := th.Invoke(context.Background(), th.invocation(t, domain.MethodInitialize, `{"admin":"`+admin.String()+`"}`, 0))
	require.NoError(t, err)
}

func (th *testHost) read(t *testing.T, method domain.Method, args string) json.RawMessage {
	t.Helper()
	receipt, err := th.Simulate(context.Background(), host.Call{Method: method, Args: json.RawMessage(args)})
	require.NoError(t, err)
	return receipt.Result
}

func (th *testHost) events() []domain.Event {
	th.mu.Lock()
	defer th.mu.Unlock()
	return append([]domain.Event(nil), th.published...)
}

func TestInvoke_Lifecycle(t *testing.T) {
	th := setupHost(t)
	ctx := context.Background()
	admin := newSigner(t)
	user := newSigner(t)
	friend := newSigner(t)

	receipt, err := th.Invoke(ctx, th.invocation(t, domain.MethodInitialize, `{"admin":"`+admin.Address().String()+`"}`, 0))
	require.NoError(t, err)
	assert.Nil(t, receipt.Result)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, domain.EventTypeInitialized, receipt.Events[0].Type)

	receipt, err = th.Invoke(ctx, th.invocation(t, domain.MethodAdminMint,
		`{"to":"`+user.Address().String()+`","uri":"ipfs://custom"}`, 1, admin))
	require.NoError(t, err)
	assert.JSONEq(t, `0`, string(receipt.Result))

	receipt, err = th.Invoke(ctx, th.invocation(t, domain.MethodPublicMint,
		`{"to":"`+user.Address().String()+`"}`, 1, user))
	require.NoError(t, err)
	assert.Nil(t, receipt.Result)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, registry.MageURI, receipt.Events[0].URI)

	_, err = th.Invoke(ctx, th.invocation(t, domain.MethodTransfer,
		`{"from":"`+user.Address().String()+`","to":"`+friend.Address().String()+`","token_id":1}`, 2, user))
	require.NoError(t, err)

	assert.JSONEq(t, `2`, string(th.read(t, domain.MethodTotalSupply, ``)))
	assert.JSONEq(t, `"`+user.Address().String()+`"`, string(th.read(t, domain.MethodOwnerOf, `{"token_id":0}`)))
	assert.JSONEq(t, `"`+friend.Address().String()+`"`, string(th.read(t, domain.MethodOwnerOf, `{"token_id":1}`)))
	assert.JSONEq(t, `"ipfs://custom"`, string(th.read(t, domain.MethodTokenURI, `{"token_id":0}`)))
	assert.JSONEq(t, `"`+registry.MageURI+`"`, string(th.read(t, domain.MethodTokenURI, `{"token_id":1}`)))

	nonce, err := th.Nonce(ctx, user.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), nonce)

	nonce, err = th.Nonce(ctx, admin.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)

	published := th.events()
	require.Len(t, published, 4)
	types := []domain.EventType{}
	for _, e := range published {
		types = append(types, e.Type)
		assert.NotEmpty(t, e.ID)
		assert.NotEmpty(t, e.InvocationID)
		assert.Equal(t, contract, e.Contract)
		assert.Equal(t, now, e.Timestamp)
	}
	assert.Equal(t, []domain.EventType{
		domain.EventTypeInitialized,
		domain.EventTypeMint,
		domain.EventTypeMint,
		domain.EventTypeTransfer,
	}, types)
}

func TestInvoke_FailuresLeaveStateUntouched(t *testing.T) {
	admin := newSigner(t)
	user := newSigner(t)
	stranger := newSigner(t)

	tests := []struct {
		name    string
		build   func(t *testing.T, th *testHost) *host.Invocation
		wantErr error
	}{
		{
			name: "admin mint signed by stranger",
			build: func(t *testing.T, th *testHost) *host.Invocation {
				return th.invocation(t, domain.MethodAdminMint, `{"to":"`+user.Address().String()+`","uri":"ipfs://x"}`, 1, stranger)
			},
			wantErr: domain.ErrUnauthorized,
		},
		{
			name: "admin mint without authorization",
			build: func(t *testing.T, th *testHost) *host.Invocation {
				return th.invocation(t, domain.MethodAdminMint, `{"to":"`+user.Address().String()+`","uri":"ipfs://x"}`, 1)
			},
			wantErr: domain.ErrUnauthorized,
		},
		{
			name: "public mint signed for another recipient",
			build: func(t *testing.T, th *testHost) *host.Invocation {
				return th.invocation(t, domain.MethodPublicMint, `{"to":"`+user.Address().String()+`"}`, 1, stranger)
			},
			wantErr: domain.ErrUnauthorized,
		},
		{
			name: "transfer of missing token",
			build: func(t *testing.T, th *testHost) *host.Invocation {
				return th.invocation(t, domain.MethodTransfer,
					`{"from":"`+user.Address().String()+`","to":"`+stranger.Address().String()+`","token_id":9}`, 1, user)
			},
			wantErr: domain.ErrTokenNotFound,
		},
		{
			name: "second initialize",
			build: func(t *testing.T, th *testHost) *host.Invocation {
				return th.invocation(t, domain.MethodInitialize, `{"admin":"`+stranger.Address().String()+`"}`, 1, stranger)
			},
			wantErr: domain.ErrAlreadyInitialized,
		},
		{
			name: "tampered args",
			build: func(t *testing.T, th *testHost) *host.Invocation {
				inv := th.invocation(t, domain.MethodPublicMint, `{"to":"`+user.Address().String()+`"}`, 1, user)
				inv.Args = json.RawMessage(`{"to":"` + stranger.Address().String() + `"}`)
				return inv
			},
			wantErr: domain.ErrInvalidSignature,
		},
		{
			name: "duplicate authorization",
			build: func(t *testing.T, th *testHost) *host.Invocation {
				inv := th.invocation(t, domain.MethodPublicMint, `{"to":"`+user.Address().String()+`"}`, 1, user)
				inv.Auth = append(inv.Auth, inv.Auth[0])
				return inv
			},
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name: "schema violation",
			build: func(t *testing.T, th *testHost) *host.Invocation {
				return th.invocation(t, domain.MethodPublicMint, `{"to":"nobody"}`, 1, user)
			},
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name: "unknown method",
			build: func(t *testing.T, th *testHost) *host.Invocation {
				return th.invocation(t, domain.Method("burn"), `{}`, 1, user)
			},
			wantErr: domain.ErrUnknownMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := setupHost(t)
			ctx := context.Background()
			th.initialize(t, admin.Address())
			before := len(th.events())

			_, err := th.Invoke(ctx, tt.build(t, th))
			assert.ErrorIs(t, err, tt.wantErr)

			assert.JSONEq(t, `0`, string(th.read(t, domain.MethodTotalSupply, ``)))
			assert.Len(t, th.events(), before)

			for _, s := range []*auth.Signer{admin, user, stranger} {
				nonce, err := th.Nonce(ctx, s.Address())
				require.NoError(t, err)
				assert.Zero(t, nonce, "failed invocation must not consume a nonce")
			}
		})
	}
}

func TestInvoke_ReplayRejected(t *testing.T) {
	th := setupHost(t)
	ctx := context.Background()
	admin := newSigner(t)
	user := newSigner(t)
	th.initialize(t, admin.Address())

	inv := th.invocation(t, domain.MethodPublicMint, `{"to":"`+user.Address().String()+`"}`, 5, user)
	_, err := th.Invoke(ctx, inv)
	require.NoError(t, err)

	_, err = th.Invoke(ctx, th.invocation(t, domain.MethodPublicMint, `{"to":"`+user.Address().String()+`"}`, 5, user))
	assert.ErrorIs(t, err, domain.ErrInvalidNonce)

	_, err = th.Invoke(ctx, th.invocation(t, domain.MethodPublicMint, `{"to":"`+user.Address().String()+`"}`, 4, user))
	assert.ErrorIs(t, err, domain.ErrInvalidNonce)

	_, err = th.Invoke(ctx, th.invocation(t, domain.MethodPublicMint, `{"to":"`+user.Address().String()+`"}`, 6, user))
	require.NoError(t, err)

	assert.JSONEq(t, `2`, string(th.read(t, domain.MethodTotalSupply, ``)))
}

func TestInvoke_MintBeforeInitialize(t *testing.T) {
	th := setupHost(t)
	user := newSigner(t)

	_, err := th.Invoke(context.Background(), th.invocation(t, domain.MethodPublicMint, `{"to":"`+user.Address().String()+`"}`, 1, user))
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.Empty(t, th.events())
}

func TestInvoke_PublishFailureKeepsCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	st, err := store.Open(store.Config{Driver: store.DriverMemory})
	require.NoError(t, err)
	defer st.Close()

	publisher := mocks.NewMockPublisher(ctrl)
	publisher.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(errors.New("nats down"))

	h := host.New(host.Config{Contract: contract}, st, auth.NewCodec(adapter.NewJSON(), adapter.NewJCS()), adapter.NewJSON(), adapter.NewClock(), publisher)

	admin := newSigner(t)
	receipt, err := h.Invoke(context.Background(), &host.Invocation{Call: host.Call{
		Method: domain.MethodInitialize,
		Args:   json.RawMessage(`{"admin":"` + admin.Address().String() + `"}`),
	}})
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)

	_, err = h.Invoke(context.Background(), &host.Invocation{Call: host.Call{
		Method: domain.MethodInitialize,
		Args:   json.RawMessage(`{"admin":"` + admin.Address().String() + `"}`),
	}})
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized)
}

func TestSimulate(t *testing.T) {
	th := setupHost(t)
	ctx := context.Background()
	admin := newSigner(t)
	user := newSigner(t)
	th.initialize(t, admin.Address())
	before := len(th.events())

	receipt, err := th.Simulate(ctx, host.Call{
		Method: domain.MethodAdminMint,
		Args:   json.RawMessage(`{"to":"` + user.Address().String() + `","uri":"ipfs://x"}`),
	})
	require.NoError(t, err)
	assert.True(t, receipt.Simulated)
	assert.JSONEq(t, `0`, string(receipt.Result))
	assert.Equal(t, []domain.Address{admin.Address()}, receipt.RequiredAuths)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, domain.EventTypeMint, receipt.Events[0].Type)

	// nothing committed or published
	assert.JSONEq(t, `0`, string(th.read(t, domain.MethodTotalSupply, ``)))
	assert.Len(t, th.events(), before)

	receipt, err = th.Simulate(ctx, host.Call{
		Method: domain.MethodTransfer,
		Args:   json.RawMessage(`{"from":"` + user.Address().String() + `","to":"` + admin.Address().String() + `","token_id":0}`),
	})
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	assert.Nil(t, receipt)

	receipt, err = th.Simulate(ctx, host.Call{Method: domain.MethodOwnerOf, Args: json.RawMessage(`{"token_id":0}`)})
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	assert.Nil(t, receipt)
}

func TestSimulate_ReadsNeedNoAuthorization(t *testing.T) {
	th := setupHost(t)

	receipt, err := th.Simulate(context.Background(), host.Call{Method: domain.MethodTotalSupply})
	require.NoError(t, err)
	assert.JSONEq(t, `0`, string(receipt.Result))
	assert.Empty(t, receipt.RequiredAuths)
}

func TestContractsAreIsolated(t *testing.T) {
	ctrl := gomock.NewController(t)
	st, err := store.Open(store.Config{Driver: store.DriverMemory})
	require.NoError(t, err)
	defer st.Close()

	publisher := mocks.NewMockPublisher(ctrl)
	publisher.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	codec := auth.NewCodec(adapter.NewJSON(), adapter.NewJCS())

	a := host.New(host.Config{Contract: "a"}, st, codec, adapter.NewJSON(), adapter.NewClock(), publisher)
	b := host.New(host.Config{Contract: "b"}, st, codec, adapter.NewJSON(), adapter.NewClock(), publisher)

	admin := newSigner(t)
	initialize := &host.Invocation{Call: host.Call{
		Method: domain.MethodInitialize,
		Args:   json.RawMessage(`{"admin":"` + admin.Address().String() + `"}`),
	}}

	_, err = a.Invoke(context.Background(), initialize)
	require.NoError(t, err)
	_, err = b.Invoke(context.Background(), initialize)
	require.NoError(t, err)

	// a signature for contract a is not valid on contract b
	args := json.RawMessage(`{"to":"` + admin.Address().String() + `","uri":"ipfs://x"}`)
	authz, err := admin.Authorize(codec, auth.Payload{Contract: "a", Method: domain.MethodAdminMint, Args: args, Nonce: 1})
	require.NoError(t, err)

	_, err = b.Invoke(context.Background(), &host.Invocation{
		Call: host.Call{Method: domain.MethodAdminMint, Args: args},
		Auth: []auth.Authorization{authz},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	_, err = a.Invoke(context.Background(), &host.Invocation{
		Call: host.Call{Method: domain.MethodAdminMint, Args: args},
		Auth: []auth.Authorization{authz},
	})
	require.NoError(t, err)
}

func TestInvoke_ConcurrentMintsGetDistinctIDs(t *testing.T) {
	th := setupHost(t)
	admin := newSigner(t)
	th.initialize(t, admin.Address())

	const workers = 8
	var wg sync.WaitGroup
	ids := make(chan uint64, workers)
	for i := 0; i < workers; i++ {
		user := newSigner(t)
		inv := th.invocation(t, domain.MethodPublicMint, `{"to":"`+user.Address().String()+`"}`, 1, user)
		wg.Add(1)
		go func() {
			defer wg.Done()
			receipt, err := th.Invoke(context.Background(), inv)
			if assert.NoError(t, err) && assert.Len(t, receipt.Events, 1) {
				ids <- *receipt.Events[0].TokenID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uint64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "token %d minted twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
	assert.JSONEq(t, `8`, string(th.read(t, domain.MethodTotalSupply, ``)))
}

func TestInvoke_AdminMintEmptyURI(t *testing.T) {
	th := setupHost(t)
	admin := newSigner(t)
	user := newSigner(t)
	th.initialize(t, admin.Address())

	receipt, err := th.Invoke(context.Background(), th.invocation(t, domain.MethodAdminMint,
		`{"to":"`+user.Address().String()+`","uri":""}`, 1, admin))
	require.NoError(t, err)
	assert.JSONEq(t, `0`, string(receipt.Result))

	assert.JSONEq(t, `""`, string(th.read(t, domain.MethodTokenURI, `{"token_id":0}`)))
}

func TestInvoke_SignatureBindsExactTokenID(t *testing.T) {
	th := setupHost(t)
	admin := newSigner(t)
	user := newSigner(t)
	th.initialize(t, admin.Address())

	// Both ids round to the same float64
	inv := th.invocation(t, domain.MethodTransfer,
		`{"from":"`+user.Address().String()+`","to":"`+admin.Address().String()+`","token_id":9007199254740993}`, 1, user)
	inv.Args = json.RawMessage(`{"from":"` + user.Address().String() + `","to":"` + admin.Address().String() + `","token_id":9007199254740992}`)

	_, err := th.Invoke(context.Background(), inv)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestInvoke_ReadMethods(t *testing.T) {
	th := setupHost(t)
	ctx := context.Background()
	admin := newSigner(t)
	user := newSigner(t)
	th.initialize(t, admin.Address())
	_, err := th.Invoke(ctx, th.invocation(t, domain.MethodPublicMint, `{"to":"`+user.Address().String()+`"}`, 1, user))
	require.NoError(t, err)
	before := len(th.events())

	receipt, err := th.Invoke(ctx, th.invocation(t, domain.MethodOwnerOf, `{"token_id":0}`, 0))
	require.NoError(t, err)
	assert.False(t, receipt.Simulated)
	assert.JSONEq(t, `"`+user.Address().String()+`"`, string(receipt.Result))
	assert.Empty(t, receipt.Events)

	receipt, err = th.Invoke(ctx, th.invocation(t, domain.MethodTotalSupply, ``, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(receipt.Result))

	_, err = th.Invoke(ctx, th.invocation(t, domain.MethodTokenURI, `{"token_id":0}`, 2, user))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	// reads never consume a nonce
	nonce, err := th.Nonce(ctx, user.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
	assert.Len(t, th.events(), before)
}

func TestInvoke_PublishDoesNotBlockNextCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	st, err := store.Open(store.Config{Driver: store.DriverMemory})
	require.NoError(t, err)
	defer st.Close()

	release := make(chan struct{})
	var mu sync.Mutex
	var minted []uint64

	publisher := mocks.NewMockPublisher(ctrl)
	publisher.EXPECT().
		PublishEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *domain.Event) error {
			if e.Type != domain.EventTypeMint {
				return nil
			}
			if *e.TokenID == 0 {
				<-release
			}
			mu.Lock()
			defer mu.Unlock()
			minted = append(minted, *e.TokenID)
			return nil
		}).
		AnyTimes()

	codec := auth.NewCodec(adapter.NewJSON(), adapter.NewJCS())
	h := host.New(host.Config{Contract: contract}, st, codec, adapter.NewJSON(), adapter.NewClock(), publisher)
	th := &testHost{Host: h, store: st, codec: codec}

	admin := newSigner(t)
	first := newSigner(t)
	second := newSigner(t)
	th.initialize(t, admin.Address())

	var wg sync.WaitGroup
	for _, s := range []*auth.Signer{first, second} {
		inv := th.invocation(t, domain.MethodPublicMint, `{"to":"`+s.Address().String()+`"}`, 1, s)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := th.Invoke(context.Background(), inv)
			assert.NoError(t, err)
		}()
		if s == first {
			// token 0 is committed and its publish is parked
			require.Eventually(t, func() bool {
				receipt, err := th.Simulate(context.Background(), host.Call{Method: domain.MethodTotalSupply})
				return err == nil && string(receipt.Result) == `1`
			}, 5*time.Second, 10*time.Millisecond)
		}
	}

	require.Eventually(t, func() bool {
		receipt, err := th.Simulate(context.Background(), host.Call{Method: domain.MethodTotalSupply})
		return err == nil && string(receipt.Result) == `2`
	}, 5*time.Second, 10*time.Millisecond)

	close(release)
	wg.Wait()

	assert.Equal(t, []uint64{0, 1}, minted)
}
