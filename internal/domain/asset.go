package domain

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Asset identifies a single non-fungible item: a collection contract
// reference plus a token id within it.
type Asset struct {
	Collection common.Address `json:"collection"`
	TokenID    uint64         `json:"token_id"`
}

// String renders the asset as "collection/tokenID" for logs.
func (a Asset) String() string {
	return fmt.Sprintf("%s/%d", a.Collection.Hex(), a.TokenID)
}

// LivenessKey derives the deterministic uniqueness key for this asset.
// Keccak256(collection || tokenID-big-endian). Two distinct assets never
// collide short of a hash break.
func (a Asset) LivenessKey() common.Hash {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], a.TokenID)
	return common.BytesToHash(crypto.Keccak256(a.Collection.Bytes(), id[:]))
}

// IsZero reports whether the collection reference is the zero address.
func (a Asset) IsZero() bool {
	return a.Collection == (common.Address{})
}
