// Package deployer materializes instances from a fixed payload template,
// either at nonce-derived addresses (direct) or at salt-derived addresses
// (deterministic, CREATE2 semantics). The address derivation is a pure
// function so callers can predict an address before submitting anything.
package deployer

import (
	"context"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Salt is the caller-chosen 256-bit value that parameterizes deterministic
// deployment.
type Salt [32]byte

// Hex returns the lowercase hex encoding of the salt without a 0x prefix.
func (s Salt) Hex() string { return hex.EncodeToString(s[:]) }

// SaltFromHex parses a salt from hex, with or without a 0x prefix.
func SaltFromHex(h string) (Salt, error) {
	var s Salt
	if len(h) >= 2 && h[0] == '0' && (h[1] == 'x' || h[1] == 'X') {
		h = h[2:]
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return s, err
	}
	copy(s[32-len(b):], b)
	return s, nil
}

// SaltFromString derives a salt by hashing an arbitrary label with keccak256.
// Useful for human-memorable salts ("UNIQUE_SALT") on the CLI.
func SaltFromString(label string) Salt {
	return Salt(crypto.Keccak256Hash([]byte(label)))
}

// Deployer constructs instances from a template fixed at construction time.
// The template is never caller-suppliable.
type Deployer interface {
	// Identity returns the deployer identity that address derivation is
	// bound to.
	Identity() common.Address

	// PredictAddress returns the address a deterministic deployment with the
	// given salt would materialize at. Pure: no state is consulted beyond
	// the deployer's fixed identity and template.
	PredictAddress(salt Salt) common.Address

	// DeployDeterministic materializes an instance at the salt-derived
	// address. Fails with domain.ErrAddressOccupied when a live instance
	// already holds that address, and with domain.ErrDeployFailed when
	// construction itself fails.
	DeployDeterministic(ctx context.Context, salt Salt) (common.Address, error)

	// Deploy materializes an instance at a nonce-derived address.
	Deploy(ctx context.Context) (common.Address, error)

	// Release marks the instance at addr as gone so the address may be
	// reoccupied by a later deterministic deployment with the same salt.
	Release(addr common.Address)

	// Occupy marks addr as holding a live instance. Used to rehydrate
	// deployer state from a durable store; implementations whose occupancy
	// is already durable treat it as a no-op.
	Occupy(addr common.Address)
}

// DeriveAddress computes the deterministic deployment address for
// (deployerIdentity, salt, initCodeHash) per CREATE2:
//
//	keccak256(0xff ++ deployer ++ salt ++ initCodeHash)[12:]
//
// Identical inputs always yield the identical address.
func DeriveAddress(deployer common.Address, salt Salt, initCodeHash common.Hash) common.Address {
	return crypto.CreateAddress2(deployer, salt, initCodeHash.Bytes())
}

// TemplateHash returns keccak256 of the template init code.
func TemplateHash(initCode []byte) common.Hash {
	return crypto.Keccak256Hash(initCode)
}
