package port

import (
	"context"

	"github.com/rl1809/reseller/internal/core/domain"
)

type RegistryRepository interface {
	// CreateRegistry persists a new registry, returns domain.ErrRegistryExists on a duplicate ID
	CreateRegistry(ctx context.Context, registry domain.Registry) error

	// GetRegistry retrieves registry metadata, returns nil if the registry does not exist
	GetRegistry(ctx context.Context, registryID string) (*domain.Registry, error)

	// AppendSeller checks the caller against the owner and assigns the next index atomically
	AppendSeller(ctx context.Context, registryID string, caller, seller domain.Address) (uint64, error)

	// GetSeller returns the seller at index, or domain.ZeroAddress if unassigned
	GetSeller(ctx context.Context, registryID string, index uint64) (domain.Address, error)
}
