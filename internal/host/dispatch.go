package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/feral-file/card-registry/internal/domain"
	"github.com/feral-file/card-registry/internal/registry"
)

// dispatch decodes the call arguments and runs the matching registry operation.
// The returned value is the operation's result, nil for operations without one.
func (h *Host) dispatch(ctx context.Context, reg *registry.Registry, call Call) (any, error) {
	switch call.Method {
	case domain.MethodInitialize:
		var args initializeArgs
		if err := h.decodeArgs(call, &args); err != nil {
			return nil, err
		}
		admin, err := domain.ParseAddress(args.Admin)
		if err != nil {
			return nil, err
		}
		return nil, reg.Initialize(ctx, admin)

	case domain.MethodAdminMint:
		var args adminMintArgs
		if err := h.decodeArgs(call, &args); err != nil {
			return nil, err
		}
		to, err := domain.ParseAddress(args.To)
		if err != nil {
			return nil, err
		}
		tokenID, err := reg.AdminMint(ctx, to, args.URI)
		if err != nil {
			return nil, err
		}
		return tokenID, nil

	case domain.MethodPublicMint:
		var args publicMintArgs
		if err := h.decodeArgs(call, &args); err != nil {
			return nil, err
		}
		to, err := domain.ParseAddress(args.To)
		if err != nil {
			return nil, err
		}
		return nil, reg.PublicMint(ctx, to)

	case domain.MethodTransfer:
		var args transferArgs
		if err := h.decodeArgs(call, &args); err != nil {
			return nil, err
		}
		from, err := domain.ParseAddress(args.From)
		if err != nil {
			return nil, err
		}
		to, err := domain.ParseAddress(args.To)
		if err != nil {
			return nil, err
		}
		return nil, reg.Transfer(ctx, from, to, args.TokenID)

	case domain.MethodOwnerOf:
		var args tokenArgs
		if err := h.decodeArgs(call, &args); err != nil {
			return nil, err
		}
		owner, err := reg.OwnerOf(ctx, args.TokenID)
		if err != nil {
			return nil, err
		}
		return owner, nil

	case domain.MethodTokenURI:
		var args tokenArgs
		if err := h.decodeArgs(call, &args); err != nil {
			return nil, err
		}
		uri, err := reg.TokenURI(ctx, args.TokenID)
		if err != nil {
			return nil, err
		}
		return uri, nil

	case domain.MethodTotalSupply:
		supply, err := reg.TotalSupply(ctx)
		if err != nil {
			return nil, err
		}
		return supply, nil
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMethod, call.Method)
}

func (h *Host) decodeArgs(call Call, v any) error {
	raw := call.Args
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := h.json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s args: %v", domain.ErrInvalidArgument, call.Method, err)
	}
	return nil
}
