package main

import (
	"github.com/spf13/cobra"

	"github.com/feral-file/card-registry/internal/auth"
	"github.com/feral-file/card-registry/internal/domain"
)

type keyPair struct {
	Address    domain.Address `json:"address"`
	PrivateKey string         `json:"private_key"`
}

func (c *cli) keygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := auth.GenerateSigner()
			if err != nil {
				return err
			}
			return c.print(keyPair{
				Address:    signer.Address(),
				PrivateKey: signer.PrivateKeyHex(),
			})
		},
	}
}
