package domain

import "errors"

var (
	// ErrAlreadyInitialized is returned when initialize runs on a registry that already has an admin
	ErrAlreadyInitialized = errors.New("contract has already been initialized")

	// ErrNotInitialized is returned when an operation needs state that only initialize writes
	ErrNotInitialized = errors.New("contract has not been initialized")

	// ErrUnauthorized is returned when the required address did not authorize the invocation
	ErrUnauthorized = errors.New("authorization required")

	// ErrTokenAlreadyExists is returned when attempting to mint a token that already exists
	ErrTokenAlreadyExists = errors.New("token ID already exists")

	// ErrTokenNotFound is returned when a token is not found
	ErrTokenNotFound = errors.New("token does not exist")

	// ErrNotOwner is returned when the transfer source does not own the token
	ErrNotOwner = errors.New("'from' address is not the owner")

	// ErrSupplyExhausted is returned when no further token ID can be allocated
	ErrSupplyExhausted = errors.New("token supply exhausted")

	// ErrInvalidArgument is returned when call arguments are malformed
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownMethod is returned when a call names a method the registry does not expose
	ErrUnknownMethod = errors.New("unknown method")

	// ErrInvalidNonce is returned when an authorization nonce was already used
	ErrInvalidNonce = errors.New("invalid authorization nonce")

	// ErrInvalidSignature is returned when an authorization signature does not match its address
	ErrInvalidSignature = errors.New("invalid signature")
)
