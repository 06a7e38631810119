package deployer

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/zjrosen/registrar/internal/log"
	"github.com/zjrosen/registrar/internal/registry/domain"
)

// LocalFactory is an in-process Deployer. It tracks occupancy of every
// address it has materialized, which is what makes salt reuse detectable:
// a second deterministic deployment with the same salt derives the same
// address and collides, while reuse after Release succeeds.
type LocalFactory struct {
	identity     common.Address
	initCode     []byte
	initCodeHash common.Hash

	mu       sync.Mutex
	occupied map[common.Address]struct{}
	nonce    uint64
}

// NewLocalFactory creates a local factory bound to identity and the fixed
// template init code. The template must be non-empty; constructing instances
// from an empty template is a construction failure by definition.
func NewLocalFactory(identity common.Address, initCode []byte) (*LocalFactory, error) {
	if len(initCode) == 0 {
		return nil, fmt.Errorf("%w: empty template init code", domain.ErrDeployFailed)
	}
	return &LocalFactory{
		identity:     identity,
		initCode:     initCode,
		initCodeHash: TemplateHash(initCode),
		occupied:     make(map[common.Address]struct{}),
	}, nil
}

// Identity returns the factory's deployer identity.
func (f *LocalFactory) Identity() common.Address { return f.identity }

// PredictAddress derives the deterministic address for salt without touching
// factory state.
func (f *LocalFactory) PredictAddress(salt Salt) common.Address {
	return DeriveAddress(f.identity, salt, f.initCodeHash)
}

// DeployDeterministic materializes an instance at the salt-derived address.
func (f *LocalFactory) DeployDeterministic(_ context.Context, salt Salt) (common.Address, error) {
	addr := f.PredictAddress(salt)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.occupied[addr]; exists {
		return common.Address{}, fmt.Errorf("%w: %s", domain.ErrAddressOccupied, addr.Hex())
	}

	f.occupied[addr] = struct{}{}
	log.Debug(log.CatDeploy, "deterministic deploy", "address", addr.Hex(), "salt", salt.Hex())
	return addr, nil
}

// Deploy materializes an instance at the next free nonce-derived address.
// Occupied slots are skipped: after rehydration the nonce restarts at zero,
// so earlier nonce-derived addresses may already hold live instances.
func (f *LocalFactory) Deploy(_ context.Context) (common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		addr := crypto.CreateAddress(f.identity, f.nonce)
		f.nonce++
		if _, exists := f.occupied[addr]; exists {
			continue
		}
		f.occupied[addr] = struct{}{}
		log.Debug(log.CatDeploy, "direct deploy", "address", addr.Hex(), "nonce", f.nonce-1)
		return addr, nil
	}
}

// Release frees addr for reoccupation. Releasing an unknown address is a
// no-op.
func (f *LocalFactory) Release(addr common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.occupied, addr)
}

// Occupy marks addr as holding a live instance. The factory's occupancy map
// is process-local, so a registry backed by a durable store rehydrates it
// through here on startup.
func (f *LocalFactory) Occupy(addr common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.occupied[addr] = struct{}{}
}

// Occupied reports whether a live instance holds addr.
func (f *LocalFactory) Occupied(addr common.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.occupied[addr]
	return ok
}

var _ Deployer = (*LocalFactory)(nil)
