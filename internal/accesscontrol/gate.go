// Package accesscontrol provides the single-owner gate for administrative
// registry operations.
package accesscontrol

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zjrosen/registrar/internal/registry/domain"
)

// Gate holds the single mutable owner identity. Every gated operation calls
// Authorize at its top; the calling convention is a typed error, never a
// boolean.
type Gate struct {
	mu    sync.RWMutex
	owner common.Address
}

// NewGate creates a gate owned by the initializing identity.
func NewGate(owner common.Address) *Gate {
	return &Gate{owner: owner}
}

// Owner returns the current owner identity.
func (g *Gate) Owner() common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.owner
}

// Authorize returns domain.ErrUnauthorized unless caller is the owner. A
// renounced gate (zero owner) authorizes nobody.
func (g *Gate) Authorize(caller common.Address) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.owner == (common.Address{}) || caller != g.owner {
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, caller.Hex())
	}
	return nil
}

// Transfer hands ownership to a new identity. Only the current owner may
// transfer.
func (g *Gate) Transfer(caller, newOwner common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owner == (common.Address{}) || caller != g.owner {
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, caller.Hex())
	}
	g.owner = newOwner
	return nil
}

// Renounce sets the owner to the zero address, permanently disabling gated
// operations.
func (g *Gate) Renounce(caller common.Address) error {
	return g.Transfer(caller, common.Address{})
}
