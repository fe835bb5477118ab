package registry

import (
	"fmt"
	"strconv"
)

// KeyKind tags the variant of a DataKey
type KeyKind uint8

const (
	KeyAdmin KeyKind = iota + 1
	KeyTotalSupply
	KeyOwner
	KeyURI
)

const (
	adminKeyName       = "admin"
	totalSupplyKeyName = "total_supply"
	ownerKeyPrefix     = "owner/"
	uriKeyPrefix       = "uri/"
)

// DataKey addresses one entry of registry state.
// TokenID is only meaningful for KeyOwner and KeyURI.
type DataKey struct {
	Kind    KeyKind
	TokenID uint64
}

func AdminKey() DataKey {
	return DataKey{Kind: KeyAdmin}
}

func TotalSupplyKey() DataKey {
	return DataKey{Kind: KeyTotalSupply}
}

func OwnerKey(tokenID uint64) DataKey {
	return DataKey{Kind: KeyOwner, TokenID: tokenID}
}

func URIKey(tokenID uint64) DataKey {
	return DataKey{Kind: KeyURI, TokenID: tokenID}
}

// String returns the storage encoding of the key
func (k DataKey) String() string {
	switch k.Kind {
	case KeyAdmin:
		return adminKeyName
	case KeyTotalSupply:
		return totalSupplyKeyName
	case KeyOwner:
		return ownerKeyPrefix + strconv.FormatUint(k.TokenID, 10)
	case KeyURI:
		return uriKeyPrefix + strconv.FormatUint(k.TokenID, 10)
	default:
		return fmt.Sprintf("unknown/%d", k.Kind)
	}
}
