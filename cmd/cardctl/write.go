package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feral-file/card-registry/internal/auth"
	"github.com/feral-file/card-registry/internal/domain"
	"github.com/feral-file/card-registry/internal/host"
	"github.com/feral-file/card-registry/internal/logger"
)

func (c *cli) initializeCommand() *cobra.Command {
	var admin string
	cmd := &cobra.Command{
		Use:   "initialize",
		Short: "Set the registry admin (once)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if admin == "" {
				signer, err := c.signer()
				if err != nil {
					return fmt.Errorf("--admin or a signing key is required: %w", err)
				}
				admin = signer.Address().String()
			}
			return c.invoke(cmd.Context(), domain.MethodInitialize, map[string]any{"admin": admin})
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "Admin address (default signer address)")
	return cmd
}

func (c *cli) adminMintCommand() *cobra.Command {
	var to, uri string
	cmd := &cobra.Command{
		Use:   "admin-mint",
		Short: "Mint the next token with a chosen URI, signed by the admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.invoke(cmd.Context(), domain.MethodAdminMint, map[string]any{"to": to, "uri": uri})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Recipient address")
	cmd.Flags().StringVar(&uri, "uri", "", "Token metadata URI")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("uri")
	return cmd
}

func (c *cli) publicMintCommand() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "public-mint",
		Short: "Mint the next token to the signer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				signer, err := c.signer()
				if err != nil {
					return err
				}
				to = signer.Address().String()
			}
			return c.invoke(cmd.Context(), domain.MethodPublicMint, map[string]any{"to": to})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Recipient address (default signer address)")
	return cmd
}

func (c *cli) transferCommand() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "transfer <token-id>",
		Short: "Transfer a token owned by the signer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			if from == "" {
				signer, err := c.signer()
				if err != nil {
					return err
				}
				from = signer.Address().String()
			}
			return c.invoke(cmd.Context(), domain.MethodTransfer, map[string]any{
				"from":     from,
				"to":       to,
				"token_id": tokenID,
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Current owner (default signer address)")
	cmd.Flags().StringVar(&to, "to", "", "Recipient address")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// invoke simulates the call to learn who must authorize it, signs for those
// addresses with the configured key and commits it
func (c *cli) invoke(ctx context.Context, method domain.Method, args map[string]any) error {
	h, err := c.open(ctx)
	if err != nil {
		return err
	}

	raw, err := c.json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}
	call := host.Call{Method: method, Args: raw}

	simulated, err := h.Simulate(ctx, call)
	if err != nil {
		return err
	}

	inv := &host.Invocation{Call: call}
	if len(simulated.RequiredAuths) > 0 {
		authorization, err := c.authorize(ctx, h, call, simulated.RequiredAuths)
		if err != nil {
			return err
		}
		inv.Auth = []auth.Authorization{authorization}
	}

	receipt, err := h.Invoke(ctx, inv)
	if err != nil {
		return err
	}
	return c.print(receipt)
}

func (c *cli) authorize(ctx context.Context, h *host.Host, call host.Call, required []domain.Address) (auth.Authorization, error) {
	signer, err := c.signer()
	if err != nil {
		return auth.Authorization{}, err
	}
	for _, addr := range required {
		if !addr.Equal(signer.Address()) {
			return auth.Authorization{}, fmt.Errorf("%w: %s must authorize this call, key belongs to %s",
				domain.ErrUnauthorized, addr, signer.Address())
		}
	}

	nonce := c.flags.Nonce
	if nonce == 0 {
		last, err := h.Nonce(ctx, signer.Address())
		if err != nil {
			return auth.Authorization{}, err
		}
		nonce = last + 1
	}

	logger.DebugCtx(ctx, "Signing invocation",
		zap.String("method", string(call.Method)),
		zap.String("address", signer.Address().String()),
		zap.Uint64("nonce", nonce))

	return signer.Authorize(c.codec, auth.Payload{
		Contract: c.cfg.Contract.ID,
		Method:   call.Method,
		Args:     call.Args,
		Nonce:    nonce,
	})
}
