package auth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/feral-file/card-registry/internal/domain"
)

// RecoverAddress returns the address whose key produced signature over message.
// V may be 0/1 or 27/28.
func RecoverAddress(message []byte, signature string) (domain.Address, error) {
	raw, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if len(raw) != crypto.SignatureLength {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", domain.ErrInvalidSignature, crypto.SignatureLength, len(raw))
	}

	sig := make([]byte, len(raw))
	copy(sig, raw)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	return domain.Address(crypto.PubkeyToAddress(*pub).Hex()), nil
}

// Verify checks that authz carries a valid signature of p by authz.Address
func (c *Codec) Verify(p Payload, authz Authorization) error {
	p.Address = authz.Address
	p.Nonce = authz.Nonce

	message, err := c.Encode(p)
	if err != nil {
		return err
	}

	signer, err := RecoverAddress(message, authz.Signature)
	if err != nil {
		return err
	}
	if !signer.Equal(authz.Address) {
		return fmt.Errorf("%w: signed by %s, claimed %s", domain.ErrInvalidSignature, signer, authz.Address)
	}
	return nil
}
