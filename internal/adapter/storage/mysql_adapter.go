package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/reseller/internal/core/domain"
)

const mysqlErrDuplicateEntry = 1062

//go:embed schema.sql
var schemaSQL string

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// Migrate creates the tables if they do not exist yet.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) CreateRegistry(ctx context.Context, registry domain.Registry) error {
	if registry.Owner.IsZero() {
		return fmt.Errorf("%w: owner must not be the zero address", domain.ErrInvalidAddress)
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO registries (id, owner, seller_count, created_at)
		VALUES (?, ?, 0, ?)`,
		registry.ID, registry.Owner.Hex(), registry.CreatedAt.UTC(),
	)
	if isDuplicateEntry(err) {
		return domain.ErrRegistryExists
	}
	if err != nil {
		return fmt.Errorf("insert registry: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetRegistry(ctx context.Context, registryID string) (*domain.Registry, error) {
	var (
		reg   domain.Registry
		owner string
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, owner, seller_count, created_at
		FROM registries WHERE id = ?`, registryID,
	).Scan(&reg.ID, &owner, &reg.SellerCount, &reg.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}

	if reg.Owner, err = domain.ParseAddress(owner); err != nil {
		return nil, fmt.Errorf("decode owner: %w", err)
	}
	return &reg, nil
}

// AppendSeller locks the registry row for the duration of the transaction,
// so concurrent appends to one registry are serialized by MySQL.
func (m *MySQLAdapter) AppendSeller(ctx context.Context, registryID string, caller, seller domain.Address) (uint64, error) {
	if seller.IsZero() {
		return 0, fmt.Errorf("%w: seller must not be the zero address", domain.ErrInvalidAddress)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		owner string
		count uint64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT owner, seller_count FROM registries
		WHERE id = ? FOR UPDATE`, registryID,
	).Scan(&owner, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrRegistryNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock registry: %w", err)
	}

	ownerAddr, err := domain.ParseAddress(owner)
	if err != nil {
		return 0, fmt.Errorf("decode owner: %w", err)
	}
	if caller != ownerAddr {
		return 0, &domain.AuthorizationError{Caller: caller, Owner: ownerAddr}
	}

	index := count + 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sellers (registry_id, seller_index, address, created_at)
		VALUES (?, ?, ?, ?)`,
		registryID, index, seller.Hex(), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert seller: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE registries SET seller_count = ? WHERE id = ?`,
		index, registryID,
	)
	if err != nil {
		return 0, fmt.Errorf("update registry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return index, nil
}

func (m *MySQLAdapter) GetSeller(ctx context.Context, registryID string, index uint64) (domain.Address, error) {
	var address sql.NullString
	err := m.db.QueryRowContext(ctx, `
		SELECT s.address
		FROM registries r
		LEFT JOIN sellers s ON s.registry_id = r.id AND s.seller_index = ?
		WHERE r.id = ?`, index, registryID,
	).Scan(&address)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.ZeroAddress, domain.ErrRegistryNotFound
	}
	if err != nil {
		return domain.ZeroAddress, fmt.Errorf("query seller: %w", err)
	}
	if !address.Valid {
		return domain.ZeroAddress, nil
	}

	return domain.ParseAddress(address.String)
}

// RecordSellerRegistered journals an event. Replays of the same index are
// ignored.
func (m *MySQLAdapter) RecordSellerRegistered(ctx context.Context, event domain.SellerRegistered) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT IGNORE INTO seller_events (registry_id, seller_index, seller, owner, registered_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.RegistryID, event.Index, event.Seller.Hex(), event.Owner.Hex(), event.RegisteredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert seller event: %w", err)
	}
	return nil
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry
}
