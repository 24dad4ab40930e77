package vault

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/vaultd/internal/core/domain"
	"github.com/tdex-network/vaultd/internal/core/ports"
	"github.com/tdex-network/vaultd/pkg/stats"
)

const saveFailedAlertTitle = "Vault not saved"

// SaveToDisk persists the in-memory vault, encrypted if a password is set.
// Concurrent saves are serialized. A failing save is retried with a backoff
// growing with the attempt number and the number of pending saves. Once the
// attempts are exhausted the user is alerted and ErrSaveFailed is returned.
func (s *Service) SaveToDisk(ctx context.Context) error {
	atomic.AddInt32(&s.pendingSaves, 1)
	defer atomic.AddInt32(&s.pendingSaves, -1)

	if err := s.storageLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.storageLock.Release(1)

	return s.persist(ctx)
}

// persist runs the save attempts. The storage lock must be held.
func (s *Service) persist(ctx context.Context) error {
	if s.State() != StateReady {
		return ErrVaultNotLoaded
	}

	var err error
	for attempt := 1; attempt <= s.maxSaveAttempts; attempt++ {
		if err = s.save(ctx); err == nil {
			stats.Saves.Inc()
			return nil
		}
		if attempt == s.maxSaveAttempts {
			break
		}

		stats.SaveRetries.Inc()
		pending := atomic.LoadInt32(&s.pendingSaves)
		if pending < 1 {
			pending = 1
		}
		delay := s.saveRetryDelay * time.Duration(attempt) * time.Duration(pending)
		log.WithError(err).WithField("attempt", attempt).Warnf(
			"failed to save vault, retrying in %s", delay,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	stats.SaveFailures.Inc()
	log.WithError(err).Error("vault could not be saved")
	s.alerter.Alert(ctx, saveFailedAlertTitle, fmt.Sprintf(
		"Your changes may not have been persisted after %d attempts: %s",
		s.maxSaveAttempts, err,
	))
	return fmt.Errorf("%w: %s", ErrSaveFailed, err)
}

type walletRecords struct {
	walletID string
	records  []domain.TxRecord
}

func (s *Service) save(ctx context.Context) error {
	wallets, records, metadata, password, err := s.serializeVault()
	if err != nil {
		return err
	}

	s.writeCache(ctx, records)

	plaintext, err := payload{&wallets, metadata}.serialize()
	if err != nil {
		return err
	}

	entries := map[string]string{dataKey: plaintext, encryptedFlagKey: ""}
	if password != "" {
		encoded, err := s.encryptIntoBuckets(ctx, plaintext, password)
		if err != nil {
			return err
		}
		entries[dataKey] = encoded
		entries[encryptedFlagKey] = encryptedFlagValue
		if err := s.store.Apply(ctx, entries, nil); err != nil {
			return err
		}
	} else {
		if err := s.store.Apply(
			ctx, map[string]string{dataKey: plaintext}, []string{encryptedFlagKey},
		); err != nil {
			return err
		}
	}

	if err := s.cache.SetSnapshot(ctx, entries); err != nil {
		log.WithError(err).Warn("failed to mirror vault into cache snapshot")
		s.handleCacheErr(ctx, err)
	}
	return nil
}

// serializeVault returns the stored form of every wallet, their transaction
// records and a copy of the tx metadata, plus the active password.
func (s *Service) serializeVault() (
	[]string, []walletRecords, map[string]domain.TxMetadata, string, error,
) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.vault == nil {
		return nil, nil, nil, "", ErrVaultNotLoaded
	}

	wallets := make([]string, 0, len(s.vault.Wallets))
	records := make([]walletRecords, 0, len(s.vault.Wallets))
	for _, w := range s.vault.Wallets {
		buf, err := s.registry.ToSerializable(w)
		if err != nil {
			return nil, nil, nil, "", err
		}
		wallets = append(wallets, string(buf))
		records = append(records, walletRecords{w.ID(), w.TxRecords()})
	}

	metadata := make(map[string]domain.TxMetadata, len(s.vault.TxMetadata))
	for txid, md := range s.vault.TxMetadata {
		metadata[txid] = md
	}
	return wallets, records, metadata, s.password, nil
}

// writeCache replaces the cached records of every wallet. A corrupted cache
// is purged and written again once, other failures are only logged.
func (s *Service) writeCache(ctx context.Context, records []walletRecords) {
	for retried := false; ; retried = true {
		err := s.replaceRecords(ctx, records)
		if err == nil {
			return
		}
		s.handleCacheErr(ctx, err)
		if retried || !errors.Is(err, ports.ErrCacheCorrupted) {
			return
		}
	}
}

func (s *Service) replaceRecords(ctx context.Context, records []walletRecords) error {
	for _, r := range records {
		if err := s.cache.ReplaceForWallet(ctx, r.walletID, r.records); err != nil {
			return err
		}
	}
	return nil
}

// encryptIntoBuckets re-reads the stored buckets and returns them encoded,
// with the plaintext encrypted into the bucket of password.
func (s *Service) encryptIntoBuckets(
	ctx context.Context, plaintext, password string,
) (string, error) {
	data, encrypted, err := s.readBuckets(ctx)
	if err != nil {
		return "", err
	}
	if !encrypted {
		data = ""
	}
	buckets, err := loadBuckets(data)
	if err != nil {
		return "", err
	}
	newBuckets, err := s.buckets.reencrypt(buckets, plaintext, password)
	if err != nil {
		return "", err
	}
	return encodeBuckets(newBuckets)
}

// readBuckets reads the current primary content through the breaker.
// Unlike loads, saves never fall back to the snapshot.
func (s *Service) readBuckets(ctx context.Context) (string, bool, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		data, err := s.store.Get(ctx, dataKey)
		if err != nil {
			return nil, err
		}
		flag, err := s.store.Get(ctx, encryptedFlagKey)
		if err != nil {
			return nil, err
		}
		return &primaryContent{data: data, encrypted: isFlagSet(flag)}, nil
	})
	if err != nil {
		return "", false, err
	}
	p := res.(*primaryContent)
	return p.data, p.encrypted, nil
}
