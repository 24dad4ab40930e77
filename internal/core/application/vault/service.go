package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/vaultd/internal/core/domain"
	"github.com/tdex-network/vaultd/internal/core/ports"
	"github.com/tdex-network/vaultd/pkg/cipher"
	"github.com/tdex-network/vaultd/pkg/circuitbreaker"
	"github.com/tdex-network/vaultd/pkg/stats"
	"golang.org/x/sync/semaphore"
)

const (
	dataKey               = "data"
	encryptedFlagKey      = "data_encrypted"
	legacyLightningKey    = "lndhub"
	encryptedFlagValue    = "1"
	secretStoreBreakerKey = "secretstore"
)

// State is the lifecycle state of the vault service.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateDecrypting
	StateHydrating
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateDecrypting:
		return "decrypting"
	case StateHydrating:
		return "hydrating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Service owns the in-memory vault and is the only component reading and
// writing its persisted forms.
type Service struct {
	store    ports.SecretStore
	cache    ports.TransactionCache
	alerter  ports.Alerter
	registry *domain.Registry
	breaker  *gobreaker.CircuitBreaker
	buckets  *bucketManager

	maxSaveAttempts int
	saveRetryDelay  time.Duration

	// storageLock serializes loads and saves, pendingSaves counts the saves
	// running or waiting for it.
	storageLock  *semaphore.Weighted
	pendingSaves int32

	lock     *sync.RWMutex
	state    State
	vault    *domain.Vault
	password string
}

// NewService returns a vault service in idle state. LoadFromDisk or Unlock
// must be called before operating on wallets.
func NewService(config Config) (*Service, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.withDefaults()

	codec, err := cipher.NewCodec(config.ScryptParams)
	if err != nil {
		return nil, fmt.Errorf("invalid scrypt params: %w", err)
	}

	config.Registry.OnFallback(func(walletType string) {
		stats.WalletTypeFallbacks.WithLabelValues(walletType).Inc()
	})

	return &Service{
		store:    config.SecretStore,
		cache:    config.TxCache,
		alerter:  config.Alerter,
		registry: config.Registry,
		breaker: circuitbreaker.NewCircuitBreaker(
			secretStoreBreakerKey, config.BreakerMaxFailures,
		),
		buckets:         newBucketManager(codec),
		maxSaveAttempts: config.MaxSaveAttempts,
		saveRetryDelay:  config.SaveRetryDelay,
		storageLock:     semaphore.NewWeighted(1),
		lock:            &sync.RWMutex{},
		state:           StateIdle,
	}, nil
}

func (s *Service) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

// LoadFromDisk reads, decrypts if needed, and hydrates the persisted vault.
// The password is required only if the storage is encrypted. A wrong
// password leaves the service untouched.
func (s *Service) LoadFromDisk(ctx context.Context, password string) error {
	if err := s.storageLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.storageLock.Release(1)

	return s.load(ctx, password)
}

func (s *Service) load(ctx context.Context, password string) error {
	prevState := s.State()
	s.setState(StateLoading)

	p, err := s.readPrimary(ctx)
	if err != nil {
		s.failLoad(prevState)
		stats.Loads.WithLabelValues("unreadable").Inc()
		return err
	}

	plaintext := p.data
	if p.encrypted {
		if password == "" {
			s.setState(prevState)
			return ErrPasswordRequired
		}

		s.setState(StateDecrypting)
		buckets, err := loadBuckets(p.data)
		if err != nil {
			s.failLoad(prevState)
			stats.Loads.WithLabelValues("unreadable").Inc()
			return fmt.Errorf("%w: %s", ErrStorageUnreadable, err)
		}
		if plaintext, _, err = s.buckets.findAndDecrypt(buckets, password); err != nil {
			s.setState(prevState)
			stats.Loads.WithLabelValues("invalid_password").Inc()
			return err
		}
	} else {
		password = ""
	}

	s.setState(StateHydrating)
	vault, err := s.hydrate(ctx, plaintext, domain.HydrateOpts{
		LegacyLightningEndpoint: p.lightningEndpoint,
	})
	if err != nil {
		if !errors.Is(err, ErrVaultNotFound) {
			s.failLoad(prevState)
			stats.Loads.WithLabelValues("failed").Inc()
			return err
		}
		vault = domain.NewVault()
	}

	s.lock.Lock()
	s.vault = vault
	s.password = password
	s.state = StateReady
	s.lock.Unlock()

	if err != nil {
		stats.Loads.WithLabelValues("not_found").Inc()
		return err
	}

	stats.Loads.WithLabelValues("ok").Inc()
	log.WithField("wallets", len(vault.Wallets)).Debug("vault loaded")
	return nil
}

type primaryContent struct {
	data              string
	encrypted         bool
	lightningEndpoint string
}

// readPrimary reads the vault from the secret store or, if that fails, from
// the cache snapshot.
func (s *Service) readPrimary(ctx context.Context) (*primaryContent, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		data, err := s.store.Get(ctx, dataKey)
		if err != nil {
			return nil, err
		}
		flag, err := s.store.Get(ctx, encryptedFlagKey)
		if err != nil {
			return nil, err
		}
		endpoint, err := s.store.Get(ctx, legacyLightningKey)
		if err != nil {
			return nil, err
		}
		return &primaryContent{data, isFlagSet(flag), endpoint}, nil
	})
	if err == nil {
		return res.(*primaryContent), nil
	}

	log.WithError(err).Warn(
		"secret store is unreadable, falling back to cache snapshot",
	)

	p, snapshotErr := s.readSnapshot(ctx)
	if snapshotErr != nil {
		return nil, fmt.Errorf(
			"%w: %s, snapshot: %s", ErrStorageUnreadable, err, snapshotErr,
		)
	}
	stats.SnapshotFallbacks.Inc()
	return p, nil
}

func (s *Service) readSnapshot(ctx context.Context) (*primaryContent, error) {
	data, err := s.cache.GetSnapshot(ctx, dataKey)
	if err != nil {
		s.handleCacheErr(ctx, err)
		return nil, err
	}
	if data == "" {
		return nil, fmt.Errorf("snapshot is empty")
	}
	flag, err := s.cache.GetSnapshot(ctx, encryptedFlagKey)
	if err != nil {
		s.handleCacheErr(ctx, err)
		return nil, err
	}
	endpoint, err := s.cache.GetSnapshot(ctx, legacyLightningKey)
	if err != nil {
		s.handleCacheErr(ctx, err)
		return nil, err
	}
	return &primaryContent{data, isFlagSet(flag), endpoint}, nil
}

// hydrate turns a plaintext payload into a vault. Wallets failing hydration
// are dropped, the others get their cached transactions merged back.
func (s *Service) hydrate(
	ctx context.Context, plaintext string, opts domain.HydrateOpts,
) (*domain.Vault, error) {
	p, err := parsePayload(plaintext)
	if err != nil {
		return nil, err
	}

	vault := domain.NewVault()
	for txid, md := range p.TxMetadata {
		vault.TxMetadata[txid] = md
	}

	for i, raw := range *p.Wallets {
		wallet, err := s.registry.FromSerialized([]byte(raw), opts)
		if err != nil {
			log.WithError(err).WithField("index", i).Warn(
				"dropping wallet that failed hydration",
			)
			stats.WalletsDropped.Inc()
			continue
		}

		records, err := s.cache.LoadForWallet(ctx, wallet.ID())
		if err != nil {
			s.handleCacheErr(ctx, err)
		} else {
			wallet.MergeTxRecords(records)
		}

		if err := vault.AddWallet(wallet); err != nil {
			log.WithField("index", i).Debug("skipping duplicated wallet")
		}
	}
	return vault, nil
}

// handleCacheErr purges the cache if err reports it as corrupted, the
// primary vault is never affected.
func (s *Service) handleCacheErr(ctx context.Context, err error) {
	if !errors.Is(err, ports.ErrCacheCorrupted) {
		log.WithError(err).Warn("transaction cache is unavailable")
		return
	}

	log.WithError(err).Warn("transaction cache is corrupted, purging it")
	if err := s.cache.Purge(ctx); err != nil {
		log.WithError(err).Warn("failed to purge transaction cache")
		return
	}
	stats.CachePurges.Inc()
}

// failLoad keeps an already loaded vault usable, otherwise marks the
// service as failed. A later LoadFromDisk can be retried in both cases.
func (s *Service) failLoad(prevState State) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if prevState == StateReady && s.vault != nil {
		s.state = StateReady
		return
	}
	s.vault = nil
	s.password = ""
	s.state = StateFailed
	s.buckets.forget()
}

func (s *Service) setState(state State) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state = state
}

func isFlagSet(flag string) bool {
	return flag != "" && flag != "0" && flag != "false"
}
