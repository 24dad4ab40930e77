package ports

import (
	"context"
	"errors"

	"github.com/tdex-network/vaultd/internal/core/domain"
)

// ErrCacheCorrupted is returned by a TransactionCache whose content can't be
// decrypted or decoded anymore. The only recovery is to purge it.
var ErrCacheCorrupted = errors.New("transaction cache is corrupted")

// TransactionCache is the secondary store holding the transaction records of
// every wallet and a redundant copy of the primary vault blob.
type TransactionCache interface {
	// ReplaceForWallet atomically drops all records of the wallet and stores
	// the given ones.
	ReplaceForWallet(
		ctx context.Context, walletID string, records []domain.TxRecord,
	) error
	// LoadForWallet returns the records of the wallet in insertion order.
	LoadForWallet(ctx context.Context, walletID string) ([]domain.TxRecord, error)
	// SetSnapshot stores the given entries in a single write, an empty value
	// removes the entry.
	SetSnapshot(ctx context.Context, entries map[string]string) error
	GetSnapshot(ctx context.Context, key string) (string, error)
	// Purge drops every record and snapshot entry.
	Purge(ctx context.Context) error
	Close() error
}
