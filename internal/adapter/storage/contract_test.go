package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/reseller/internal/core/domain"
	"github.com/rl1809/reseller/internal/port"
)

var (
	ownerAddr   = domain.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	sellerOne   = domain.MustParseAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	sellerTwo   = domain.MustParseAddress("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
	outsiderAdr = domain.MustParseAddress("0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb")
)

func newTestRegistry(t *testing.T, repo port.RegistryRepository) string {
	t.Helper()

	id := uuid.NewString()
	err := repo.CreateRegistry(context.Background(), domain.Registry{
		ID:        id,
		Owner:     ownerAddr,
		CreatedAt: time.Now().Truncate(time.Millisecond),
	})
	require.NoError(t, err)
	return id
}

// testRepositoryContract runs the behaviour every backend must share.
func testRepositoryContract(t *testing.T, repo port.RegistryRepository) {
	ctx := context.Background()

	t.Run("OwnerIsDeployer", func(t *testing.T) {
		id := newTestRegistry(t, repo)

		reg, err := repo.GetRegistry(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, reg)
		require.Equal(t, ownerAddr, reg.Owner)
		require.Zero(t, reg.SellerCount)
	})

	t.Run("DuplicateRegistry", func(t *testing.T) {
		id := newTestRegistry(t, repo)

		err := repo.CreateRegistry(ctx, domain.Registry{ID: id, Owner: outsiderAdr, CreatedAt: time.Now()})
		require.ErrorIs(t, err, domain.ErrRegistryExists)

		reg, err := repo.GetRegistry(ctx, id)
		require.NoError(t, err)
		require.Equal(t, ownerAddr, reg.Owner)
	})

	t.Run("UnknownRegistry", func(t *testing.T) {
		reg, err := repo.GetRegistry(ctx, "missing-"+uuid.NewString())
		require.NoError(t, err)
		require.Nil(t, reg)

		_, err = repo.AppendSeller(ctx, "missing-"+uuid.NewString(), ownerAddr, sellerOne)
		require.ErrorIs(t, err, domain.ErrRegistryNotFound)

		_, err = repo.GetSeller(ctx, "missing-"+uuid.NewString(), 1)
		require.ErrorIs(t, err, domain.ErrRegistryNotFound)
	})

	t.Run("SequentialIndexes", func(t *testing.T) {
		id := newTestRegistry(t, repo)

		idx, err := repo.AppendSeller(ctx, id, ownerAddr, sellerOne)
		require.NoError(t, err)
		require.EqualValues(t, 1, idx)

		idx, err = repo.AppendSeller(ctx, id, ownerAddr, sellerTwo)
		require.NoError(t, err)
		require.EqualValues(t, 2, idx)

		got, err := repo.GetSeller(ctx, id, 1)
		require.NoError(t, err)
		require.Equal(t, sellerOne, got)

		got, err = repo.GetSeller(ctx, id, 2)
		require.NoError(t, err)
		require.Equal(t, sellerTwo, got)

		got, err = repo.GetSeller(ctx, id, 0)
		require.NoError(t, err)
		require.Equal(t, domain.ZeroAddress, got)

		got, err = repo.GetSeller(ctx, id, 5)
		require.NoError(t, err)
		require.Equal(t, domain.ZeroAddress, got)

		reg, err := repo.GetRegistry(ctx, id)
		require.NoError(t, err)
		require.EqualValues(t, 2, reg.SellerCount)
	})

	t.Run("NonOwnerRejected", func(t *testing.T) {
		id := newTestRegistry(t, repo)

		_, err := repo.AppendSeller(ctx, id, outsiderAdr, sellerOne)
		require.ErrorIs(t, err, domain.ErrUnauthorized)

		var authErr *domain.AuthorizationError
		require.True(t, errors.As(err, &authErr))
		require.Equal(t, outsiderAdr, authErr.Caller)

		got, err := repo.GetSeller(ctx, id, 1)
		require.NoError(t, err)
		require.Equal(t, domain.ZeroAddress, got)

		reg, err := repo.GetRegistry(ctx, id)
		require.NoError(t, err)
		require.Zero(t, reg.SellerCount)
	})

	t.Run("ZeroSellerRejected", func(t *testing.T) {
		id := newTestRegistry(t, repo)

		_, err := repo.AppendSeller(ctx, id, ownerAddr, domain.ZeroAddress)
		require.ErrorIs(t, err, domain.ErrInvalidAddress)
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		id := newTestRegistry(t, repo)
		total := 20

		var wg sync.WaitGroup
		indexes := make(chan uint64, total)
		for i := 0; i < total; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				idx, err := repo.AppendSeller(ctx, id, ownerAddr, sellerOne)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				indexes <- idx
			}()
		}
		wg.Wait()
		close(indexes)

		seen := make(map[uint64]bool)
		for idx := range indexes {
			require.False(t, seen[idx], "index %d assigned twice", idx)
			seen[idx] = true
		}
		for i := 1; i <= total; i++ {
			require.True(t, seen[uint64(i)], "index %d skipped", i)
		}
	})
}
