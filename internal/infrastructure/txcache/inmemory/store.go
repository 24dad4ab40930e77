package inmemorytxcache

import (
	"context"
	"sync"

	"github.com/tdex-network/vaultd/internal/core/domain"
	"github.com/tdex-network/vaultd/internal/core/ports"
)

type txCache struct {
	lock      *sync.RWMutex
	records   map[string][]domain.TxRecord
	snapshots map[string]string
}

// NewTransactionCache returns a TransactionCache that keeps everything in
// memory.
func NewTransactionCache() ports.TransactionCache {
	return &txCache{
		lock:      &sync.RWMutex{},
		records:   make(map[string][]domain.TxRecord),
		snapshots: make(map[string]string),
	}
}

func (c *txCache) ReplaceForWallet(
	_ context.Context, walletID string, records []domain.TxRecord,
) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if len(records) <= 0 {
		delete(c.records, walletID)
		return nil
	}
	c.records[walletID] = append([]domain.TxRecord{}, records...)
	return nil
}

func (c *txCache) LoadForWallet(
	_ context.Context, walletID string,
) ([]domain.TxRecord, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return append([]domain.TxRecord{}, c.records[walletID]...), nil
}

func (c *txCache) SetSnapshot(
	_ context.Context, entries map[string]string,
) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	for k, v := range entries {
		if v == "" {
			delete(c.snapshots, k)
			continue
		}
		c.snapshots[k] = v
	}
	return nil
}

func (c *txCache) GetSnapshot(_ context.Context, key string) (string, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.snapshots[key], nil
}

func (c *txCache) Purge(_ context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.records = make(map[string][]domain.TxRecord)
	c.snapshots = make(map[string]string)
	return nil
}

func (c *txCache) Close() error {
	return nil
}
