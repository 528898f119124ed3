package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

var selectorMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// Selector returns the Starknet entry point selector for a function name:
// keccak256 of the name truncated to 250 bits.
func Selector(name string) *big.Int {
	h := new(big.Int).SetBytes(crypto.Keccak256([]byte(name)))
	return h.And(h, selectorMask)
}

// ShortString encodes an ASCII string of at most 31 bytes as a felt.
func ShortString(s string) *big.Int {
	return new(big.Int).SetBytes([]byte(s))
}
