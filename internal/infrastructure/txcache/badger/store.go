package badgertxcache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/vaultd/internal/core/domain"
	"github.com/tdex-network/vaultd/internal/core/ports"
	"github.com/timshannon/badgerhold/v4"
)

const (
	cacheDirname = "cache"

	gcInterval     = 30 * time.Minute
	indexCacheSize = 16 << 20
)

type txRecord struct {
	ID       string `badgerhold:"key"`
	WalletID string `badgerhold:"index"`
	Seq      int
	Internal *bool
	Index    *int
	Tx       domain.Transaction
}

type snapshotEntry struct {
	Key   string `badgerhold:"key"`
	Value string
}

type txCache struct {
	store *badgerhold.Store
	quit  chan struct{}
}

// NewTransactionCache opens the cache in a dedicated directory under
// baseDbDir, encrypted with deviceKey. An empty baseDbDir makes the cache in
// memory only.
// If the cache can't be opened, ie. deviceKey doesn't match the one it was
// created with or its files are damaged, it is recreated from scratch.
func NewTransactionCache(
	baseDbDir string, deviceKey []byte, logger badger.Logger,
) (ports.TransactionCache, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, cacheDirname)
	}

	store, err := createDb(dbDir, deviceKey, logger)
	// A wrong device key or damaged files: the cache is only a copy, start
	// over.
	if err != nil && len(dbDir) > 0 {
		log.WithError(err).Warn("transaction cache is unreadable, recreating it")
		if err := os.RemoveAll(dbDir); err != nil {
			return nil, err
		}
		store, err = createDb(dbDir, deviceKey, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	c := &txCache{store, make(chan struct{})}
	if len(dbDir) > 0 {
		go c.runGC()
	}
	return c, nil
}

func (c *txCache) ReplaceForWallet(
	_ context.Context, walletID string, records []domain.TxRecord,
) error {
	return c.store.Badger().Update(func(txn *badger.Txn) error {
		query := badgerhold.Where("WalletID").Eq(walletID).Index("WalletID")
		if err := c.store.TxDeleteMatching(txn, &txRecord{}, query); err != nil {
			return err
		}
		for i, r := range records {
			id := uuid.New().String()
			record := &txRecord{
				ID:       id,
				WalletID: walletID,
				Seq:      i,
				Internal: r.Internal,
				Index:    r.Index,
				Tx:       r.Tx,
			}
			if err := c.store.TxInsert(txn, id, record); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *txCache) LoadForWallet(
	_ context.Context, walletID string,
) ([]domain.TxRecord, error) {
	query := badgerhold.Where("WalletID").Eq(walletID).Index("WalletID").
		SortBy("Seq")

	var found []txRecord
	if err := c.store.Find(&found, query); err != nil {
		return nil, err
	}

	records := make([]domain.TxRecord, 0, len(found))
	for _, r := range found {
		records = append(records, domain.TxRecord{
			WalletID: r.WalletID,
			Internal: r.Internal,
			Index:    r.Index,
			Tx:       r.Tx,
		})
	}
	return records, nil
}

func (c *txCache) SetSnapshot(
	_ context.Context, entries map[string]string,
) error {
	return c.store.Badger().Update(func(txn *badger.Txn) error {
		for k, v := range entries {
			if v == "" {
				err := c.store.TxDelete(txn, k, snapshotEntry{})
				if err != nil && err != badgerhold.ErrNotFound {
					return err
				}
				continue
			}
			if err := c.store.TxUpsert(
				txn, k, &snapshotEntry{Key: k, Value: v},
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *txCache) GetSnapshot(_ context.Context, key string) (string, error) {
	var entry snapshotEntry
	if err := c.store.Get(key, &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return entry.Value, nil
}

func (c *txCache) Purge(_ context.Context) error {
	return c.store.Badger().DropAll()
}

func (c *txCache) Close() error {
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
	return c.store.Close()
}

func (c *txCache) runGC() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.quit:
			return
		case <-ticker.C:
			if err := c.store.Badger().RunValueLogGC(0.5); err != nil &&
				err != badger.ErrNoRewrite {
				log.Error(err)
			}
		}
	}
}

func createDb(
	dbDir string, deviceKey []byte, logger badger.Logger,
) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
		opts = opts.WithEncryptionKey(deviceKey).
			WithIndexCacheSize(indexCacheSize)
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          json.Marshal,
		Decoder:          decode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}

// decode flags any value that can't be decoded as cache corruption.
func decode(data []byte, value interface{}) error {
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("%w: %s", ports.ErrCacheCorrupted, err)
	}
	return nil
}
