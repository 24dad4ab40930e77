package boltsecretstore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/tdex-network/vaultd/internal/core/ports"
	"go.etcd.io/bbolt"
)

const (
	// DefaultFilename is the name of the db file created in the datadir.
	DefaultFilename = "vault.db"

	openTimeout = time.Second
)

var rootBucketName = []byte("root")

type boltSecretStore struct {
	db *bbolt.DB
}

// NewSecretStore opens (or creates) the bolt db file in datadir and returns
// it wrapped in a SecretStore.
func NewSecretStore(datadir, filename string) (ports.SecretStore, error) {
	if err := os.MkdirAll(datadir, 0700); err != nil {
		return nil, err
	}
	if filename == "" {
		filename = DefaultFilename
	}

	db, err := bbolt.Open(
		filepath.Join(datadir, filename), 0600,
		&bbolt.Options{Timeout: openTimeout},
	)
	if err != nil {
		return nil, err
	}

	// If the store's bucket doesn't exist, create it.
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &boltSecretStore{db}, nil
}

func (s *boltSecretStore) Get(_ context.Context, key string) (string, error) {
	if len(key) <= 0 {
		return "", ErrMissingDataKey
	}

	var value string
	if err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(rootBucketName)
		if bucket == nil {
			return ErrRootBucketNotFound
		}
		// bolt values are only valid for the life of the tx.
		value = string(bucket.Get([]byte(key)))
		return nil
	}); err != nil {
		return "", translateErr(err)
	}
	return value, nil
}

func (s *boltSecretStore) Set(ctx context.Context, key, value string) error {
	return s.Apply(ctx, map[string]string{key: value}, nil)
}

func (s *boltSecretStore) Remove(ctx context.Context, key string) error {
	return s.Apply(ctx, nil, []string{key})
}

func (s *boltSecretStore) Apply(
	_ context.Context, set map[string]string, remove []string,
) error {
	for k := range set {
		if len(k) <= 0 {
			return ErrMissingDataKey
		}
	}
	for _, k := range remove {
		if len(k) <= 0 {
			return ErrMissingDataKey
		}
	}

	return translateErr(s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(rootBucketName)
		if bucket == nil {
			return ErrRootBucketNotFound
		}
		for k, v := range set {
			if err := bucket.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		for _, k := range remove {
			if err := bucket.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (s *boltSecretStore) Close() error {
	return s.db.Close()
}

func translateErr(err error) error {
	if err == bbolt.ErrDatabaseNotOpen {
		return ErrStoreClosed
	}
	return err
}
