package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/feral-file/card-registry/internal/api/shared/executor"
	"github.com/feral-file/card-registry/internal/domain"
)

func (c *cli) ownerOfCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "owner-of <token-id>",
		Short: "Show the owner of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			exec, err := c.executor(cmd)
			if err != nil {
				return err
			}
			resp, err := exec.OwnerOf(cmd.Context(), tokenID)
			if err != nil {
				return err
			}
			return c.print(resp)
		},
	}
}

func (c *cli) tokenURICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token-uri <token-id>",
		Short: "Show the metadata URI of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			exec, err := c.executor(cmd)
			if err != nil {
				return err
			}
			resp, err := exec.TokenURI(cmd.Context(), tokenID, false)
			if err != nil {
				return err
			}
			return c.print(resp)
		},
	}
}

func (c *cli) totalSupplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "total-supply",
		Short: "Show the number of minted tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := c.executor(cmd)
			if err != nil {
				return err
			}
			resp, err := exec.TotalSupply(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(resp)
		},
	}
}

func (c *cli) nonceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "nonce [address]",
		Short: "Show the last authorization nonce used by an address (default signer)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var address domain.Address
			if len(args) == 1 {
				parsed, err := domain.ParseAddress(args[0])
				if err != nil {
					return err
				}
				address = parsed
			} else {
				signer, err := c.signer()
				if err != nil {
					return err
				}
				address = signer.Address()
			}

			exec, err := c.executor(cmd)
			if err != nil {
				return err
			}
			resp, err := exec.Nonce(cmd.Context(), address)
			if err != nil {
				return err
			}
			return c.print(resp)
		},
	}
}

func (c *cli) executor(cmd *cobra.Command) (executor.Executor, error) {
	h, err := c.open(cmd.Context())
	if err != nil {
		return nil, err
	}
	return executor.NewExecutor(h, nil, c.json), nil
}

func parseTokenID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid token id %q", domain.ErrInvalidArgument, s)
	}
	return id, nil
}
