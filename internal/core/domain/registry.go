package domain

import (
	"fmt"
	"sync"
	"time"
)

// Registry is the persisted metadata of one deployed seller registry.
type Registry struct {
	ID          string
	Owner       Address
	SellerCount uint64
	CreatedAt   time.Time
}

// SellerRegistered is published after a seller is appended.
type SellerRegistered struct {
	RegistryID   string
	Index        uint64
	Seller       Address
	Owner        Address
	RegisteredAt time.Time
}

// SellerRegistry is an owner-gated, append-only list of sellers indexed
// from 1. Writes are serialized; reads share the lock.
type SellerRegistry struct {
	mu      sync.RWMutex
	owner   Address
	sellers []Address // sellers[i] holds index i+1
}

func NewSellerRegistry(owner Address) (*SellerRegistry, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("%w: owner must not be the zero address", ErrInvalidAddress)
	}
	return &SellerRegistry{owner: owner}, nil
}

// Owner never changes after construction, so no lock is taken.
func (r *SellerRegistry) Owner() Address {
	return r.owner
}

// RegisterSeller appends seller and returns its index. Nothing is mutated
// when caller is not the owner or seller is the zero address.
func (r *SellerRegistry) RegisterSeller(caller, seller Address) (uint64, error) {
	if seller.IsZero() {
		return 0, fmt.Errorf("%w: seller must not be the zero address", ErrInvalidAddress)
	}
	if caller != r.owner {
		return 0, &AuthorizationError{Caller: caller, Owner: r.owner}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sellers = append(r.sellers, seller)
	return uint64(len(r.sellers)), nil
}

// Sellers returns the seller at index, or ZeroAddress when the index was
// never assigned. Index 0 is never assigned.
func (r *SellerRegistry) Sellers(index uint64) Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index == 0 || index > uint64(len(r.sellers)) {
		return ZeroAddress
	}
	return r.sellers[index-1]
}

func (r *SellerRegistry) SellerCount() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.sellers))
}
