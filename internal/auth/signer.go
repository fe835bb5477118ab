package auth

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/feral-file/card-registry/internal/domain"
)

// Signer holds a secp256k1 key and produces EIP-191 personal signatures
type Signer struct {
	key     *ecdsa.PrivateKey
	address domain.Address
}

// GenerateSigner creates a signer with a fresh random key
func GenerateSigner() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newSigner(key), nil
}

// NewSigner loads a hex encoded private key, with or without 0x prefix
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: bad private key: %v", domain.ErrInvalidArgument, err)
	}
	return newSigner(key), nil
}

func newSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: domain.Address(crypto.PubkeyToAddress(key.PublicKey).Hex()),
	}
}

// Address returns the account controlled by the signer
func (s *Signer) Address() domain.Address {
	return s.address
}

// PrivateKeyHex returns the 0x prefixed private key
func (s *Signer) PrivateKeyHex() string {
	return hexutil.Encode(crypto.FromECDSA(s.key))
}

// Sign returns a 65 byte hex signature over the EIP-191 hash of message, V in {27, 28}
func (s *Signer) Sign(message []byte) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// Authorize signs p on behalf of the signer's address
func (s *Signer) Authorize(codec *Codec, p Payload) (Authorization, error) {
	p.Address = s.address
	message, err := codec.Encode(p)
	if err != nil {
		return Authorization{}, err
	}

	sig, err := s.Sign(message)
	if err != nil {
		return Authorization{}, err
	}

	return Authorization{
		Address:   s.address,
		Nonce:     p.Nonce,
		Signature: sig,
	}, nil
}
