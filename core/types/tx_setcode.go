package types

import "bytes"

// EIP-7702 set-code constants.
const (
	// AuthMagic prefixes the authorization signing hash:
	// keccak256(0x05 || rlp([chain_id, address, nonce])).
	AuthMagic byte = 0x05

	// PerAuthBaseCost is charged for every authorization entry.
	PerAuthBaseCost uint64 = 12500

	// PerEmptyAccountCost is the surcharge for an authorization that
	// targets an account not yet in the state.
	PerEmptyAccountCost uint64 = 25000
)

// DelegationPrefix opens every EIP-7702 delegation designator. An EOA
// whose code is exactly this prefix plus an address executes that
// address's code.
var DelegationPrefix = []byte{0xef, 0x01, 0x00}

// ParseDelegation reads a delegation designator: exactly the 3-byte
// prefix followed by a 20-byte target. The second return is false for
// any other code.
func ParseDelegation(b []byte) (Address, bool) {
	if len(b) != len(DelegationPrefix)+AddressLength || !bytes.HasPrefix(b, DelegationPrefix) {
		return Address{}, false
	}
	return BytesToAddress(b[len(DelegationPrefix):]), true
}

// AddressToDelegation builds the designator 0xef0100 || addr.
func AddressToDelegation(addr Address) []byte {
	return append(append([]byte(nil), DelegationPrefix...), addr[:]...)
}

// HasDelegationPrefix reports whether code opens with the designator
// prefix.
func HasDelegationPrefix(code []byte) bool {
	return bytes.HasPrefix(code, DelegationPrefix)
}
