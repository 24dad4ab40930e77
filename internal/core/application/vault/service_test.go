package vault_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/vaultd/internal/core/application/vault"
	"github.com/tdex-network/vaultd/internal/core/domain"
	"github.com/tdex-network/vaultd/internal/core/ports"
	inmemorysecretstore "github.com/tdex-network/vaultd/internal/infrastructure/secretstore/inmemory"
	inmemorytxcache "github.com/tdex-network/vaultd/internal/infrastructure/txcache/inmemory"
	"github.com/tdex-network/vaultd/pkg/cipher"
	"github.com/tdex-network/vaultd/pkg/stats"
	"github.com/thanhpk/randstr"
	"golang.org/x/sync/errgroup"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon about"
	testZpub = "zpub6rFR7y4Q2AijBEqTUquhVz398htDFrtymD9xYYfG1m4wAcvPhXNfE3EfH1r1ADqtfSdVCToUG868RvUUkgDKf31mGDtKsAYz2oz2AGutZYs"
)

var ctx = context.Background()

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"plaintext", ""},
		{"encrypted", randstr.Hex(8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := inmemorysecretstore.NewSecretStore()
			cache := inmemorytxcache.NewTransactionCache()
			svc := newTestService(t, store, cache)

			requireFreshInstall(t, svc)
			wallets := addTestWallets(t, svc)
			err := svc.SetTxMetadata("txid", domain.TxMetadata{Memo: "rent"})
			require.NoError(t, err)

			if tt.password != "" {
				err = svc.EncryptStorage(ctx, tt.password)
			} else {
				err = svc.SaveToDisk(ctx)
			}
			require.NoError(t, err)

			restored := newTestService(t, store, cache)
			err = restored.LoadFromDisk(ctx, tt.password)
			require.NoError(t, err)
			require.Equal(t, vault.StateReady, restored.State())

			got, err := restored.Wallets()
			require.NoError(t, err)
			require.Len(t, got, len(wallets))
			for i, w := range wallets {
				require.Equal(t, w.ID(), got[i].ID())
				require.Equal(t, w.Base().Label, got[i].Base().Label)
				require.Equal(t, w.Base().Secret, got[i].Base().Secret)
				require.Equal(t, w.Base().Type, got[i].Base().Type)
				require.Equal(t, w.Transactions(), got[i].Transactions())
			}

			md, ok := restored.TxMetadata("txid")
			require.True(t, ok)
			require.Equal(t, "rent", md.Memo)

			balance, err := restored.Balance()
			require.NoError(t, err)
			require.Equal(t, "0.5", balance.String())
		})
	}
}

func TestFailingLoad(t *testing.T) {
	store := inmemorysecretstore.NewSecretStore()
	cache := inmemorytxcache.NewTransactionCache()
	password := randstr.Hex(8)

	svc := newTestService(t, store, cache)
	requireFreshInstall(t, svc)
	addTestWallets(t, svc)
	require.NoError(t, svc.EncryptStorage(ctx, password))

	restored := newTestService(t, store, cache)

	err := restored.LoadFromDisk(ctx, "")
	require.ErrorIs(t, err, vault.ErrPasswordRequired)
	require.Equal(t, vault.StateIdle, restored.State())

	err = restored.LoadFromDisk(ctx, "wrong")
	require.ErrorIs(t, err, vault.ErrInvalidPassword)
	require.Equal(t, vault.StateIdle, restored.State())

	_, err = restored.Wallets()
	require.ErrorIs(t, err, vault.ErrVaultNotLoaded)
	require.ErrorIs(t, restored.SaveToDisk(ctx), vault.ErrVaultNotLoaded)
}

func TestWrongPasswordIdempotence(t *testing.T) {
	store := inmemorysecretstore.NewSecretStore()
	svc := newTestService(t, store, inmemorytxcache.NewTransactionCache())

	requireFreshInstall(t, svc)
	addTestWallets(t, svc)
	require.NoError(t, svc.EncryptStorage(ctx, "pw"))

	before, err := store.Get(ctx, "data")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		err := svc.LoadFromDisk(ctx, randstr.Hex(8))
		require.ErrorIs(t, err, vault.ErrInvalidPassword)

		after, err := store.Get(ctx, "data")
		require.NoError(t, err)
		require.Equal(t, before, after)
	}

	// the service keeps the vault loaded before the wrong attempts.
	require.Equal(t, vault.StateReady, svc.State())
	wallets, err := svc.Wallets()
	require.NoError(t, err)
	require.Len(t, wallets, 3)
}

func TestDecoyIsolation(t *testing.T) {
	store := inmemorysecretstore.NewSecretStore()
	cache := inmemorytxcache.NewTransactionCache()
	svc := newTestService(t, store, cache)

	requireFreshInstall(t, svc)
	original := addTestWallets(t, svc)
	require.NoError(t, svc.EncryptStorage(ctx, "A"))

	bucketsA := readBuckets(t, store)
	require.Len(t, bucketsA, 1)

	err := svc.CreateFakeStorage(ctx, "A")
	require.ErrorIs(t, err, vault.ErrPasswordInUse)

	err = svc.CreateFakeStorage(ctx, "B")
	require.NoError(t, err)
	wallets, err := svc.Wallets()
	require.NoError(t, err)
	require.Empty(t, wallets)

	decoy, err := domain.NewLegacyWallet("decoy", randstr.Hex(16))
	require.NoError(t, err)
	require.NoError(t, svc.AddWallet(decoy))
	require.NoError(t, svc.SaveToDisk(ctx))

	buckets := readBuckets(t, store)
	require.Len(t, buckets, 2)
	require.Equal(t, bucketsA[0], buckets[0])

	inUse, err := svc.IsPasswordInUse(ctx, "B")
	require.NoError(t, err)
	require.True(t, inUse)

	restored := newTestService(t, store, cache)
	require.NoError(t, restored.LoadFromDisk(ctx, "A"))
	requireWalletIDs(t, restored, original...)

	require.NoError(t, restored.LoadFromDisk(ctx, "B"))
	requireWalletIDs(t, restored, decoy)
}

func TestConcurrentSaves(t *testing.T) {
	store := inmemorysecretstore.NewSecretStore()
	cache := inmemorytxcache.NewTransactionCache()
	svc := newTestService(t, store, cache)

	requireFreshInstall(t, svc)
	addTestWallets(t, svc)
	require.NoError(t, svc.EncryptStorage(ctx, "A"))
	require.NoError(t, svc.CreateFakeStorage(ctx, "B"))
	require.Len(t, readBuckets(t, store), 2)

	numOfSaves := 10
	eg := &errgroup.Group{}
	for i := 0; i < numOfSaves; i++ {
		i := i
		eg.Go(func() error {
			if err := svc.SetTxMetadata(
				fmt.Sprintf("tx%d", i), domain.TxMetadata{Memo: "memo"},
			); err != nil {
				return err
			}
			return svc.SaveToDisk(ctx)
		})
	}
	require.NoError(t, eg.Wait())

	require.Len(t, readBuckets(t, store), 2)

	restored := newTestService(t, store, cache)
	require.NoError(t, restored.LoadFromDisk(ctx, "B"))
	for i := 0; i < numOfSaves; i++ {
		_, ok := restored.TxMetadata(fmt.Sprintf("tx%d", i))
		require.True(t, ok)
	}
	require.NoError(t, restored.LoadFromDisk(ctx, "A"))
	wallets, err := restored.Wallets()
	require.NoError(t, err)
	require.Len(t, wallets, 3)
}

func TestEncryptDecryptStorage(t *testing.T) {
	store := inmemorysecretstore.NewSecretStore()
	svc := newTestService(t, store, inmemorytxcache.NewTransactionCache())

	requireFreshInstall(t, svc)
	w1, err := domain.NewLegacyWallet("m1", "w1")
	require.NoError(t, err)
	require.NoError(t, svc.AddWallet(w1))
	require.NoError(t, svc.SaveToDisk(ctx))

	encrypted, err := svc.StorageIsEncrypted(ctx)
	require.NoError(t, err)
	require.False(t, encrypted)

	require.NoError(t, svc.EncryptStorage(ctx, "pw"))
	require.ErrorIs(t, svc.EncryptStorage(ctx, "pw"), vault.ErrStorageAlreadyEncrypted)
	require.Len(t, readBuckets(t, store), 1)

	encrypted, err = svc.StorageIsEncrypted(ctx)
	require.NoError(t, err)
	require.True(t, encrypted)

	require.ErrorIs(t, svc.DecryptStorage(ctx, "wrong"), vault.ErrInvalidPassword)
	require.NoError(t, svc.DecryptStorage(ctx, "pw"))

	flag, err := store.Get(ctx, "data_encrypted")
	require.NoError(t, err)
	require.Empty(t, flag)

	data, err := store.Get(ctx, "data")
	require.NoError(t, err)
	require.Contains(t, data, `"wallets"`)

	requireWalletIDs(t, svc, w1)
	wallets, err := svc.Wallets()
	require.NoError(t, err)
	require.Equal(t, "m1", wallets[0].Base().Label)
	require.ErrorIs(t, svc.DecryptStorage(ctx, "pw"), vault.ErrStorageNotEncrypted)
}

func TestChangePassword(t *testing.T) {
	store := inmemorysecretstore.NewSecretStore()
	cache := inmemorytxcache.NewTransactionCache()
	svc := newTestService(t, store, cache)

	requireFreshInstall(t, svc)
	original := addTestWallets(t, svc)
	require.NoError(t, svc.EncryptStorage(ctx, "A"))
	require.NoError(t, svc.CreateFakeStorage(ctx, "B"))

	restored := newTestService(t, store, cache)
	require.NoError(t, restored.LoadFromDisk(ctx, "A"))
	restored.Lock()
	require.Equal(t, vault.StateIdle, restored.State())
	require.NoError(t, restored.LoadFromDisk(ctx, "A"))

	err := restored.ChangePassword(ctx, "wrong", "C")
	require.ErrorIs(t, err, vault.ErrInvalidPassword)
	err = restored.ChangePassword(ctx, "A", "B")
	require.ErrorIs(t, err, vault.ErrPasswordInUse)
	require.NoError(t, restored.ChangePassword(ctx, "A", "C"))

	require.Len(t, readBuckets(t, store), 2)

	other := newTestService(t, store, cache)
	require.ErrorIs(t, other.LoadFromDisk(ctx, "A"), vault.ErrInvalidPassword)
	require.NoError(t, other.LoadFromDisk(ctx, "C"))
	requireWalletIDs(t, other, original...)
	require.NoError(t, other.LoadFromDisk(ctx, "B"))
	requireWalletIDs(t, other)
}

func TestUnlock(t *testing.T) {
	store := inmemorysecretstore.NewSecretStore()
	cache := inmemorytxcache.NewTransactionCache()
	svc := newTestService(t, store, cache)

	requireFreshInstall(t, svc)
	original := addTestWallets(t, svc)

	t.Run("plaintext", func(t *testing.T) {
		require.NoError(t, svc.SaveToDisk(ctx))

		prompt := &mockPrompt{}
		restored := newTestService(t, store, cache)
		require.NoError(t, restored.Unlock(ctx, prompt))
		requireWalletIDs(t, restored, original...)
		prompt.AssertNotCalled(t, "PromptPassword", mock.Anything, mock.Anything)
	})

	t.Run("encrypted", func(t *testing.T) {
		require.NoError(t, svc.EncryptStorage(ctx, "pw"))

		prompt := &mockPrompt{}
		prompt.On("PromptPassword", mock.Anything, 1).Return("wrong", nil)
		prompt.On("PromptPassword", mock.Anything, 2).Return("", nil)
		prompt.On("PromptPassword", mock.Anything, 3).Return("pw", nil)

		restored := newTestService(t, store, cache)
		require.NoError(t, restored.Unlock(ctx, prompt))
		requireWalletIDs(t, restored, original...)
		prompt.AssertNumberOfCalls(t, "PromptPassword", 3)
	})

	t.Run("prompt gives up", func(t *testing.T) {
		prompt := &mockPrompt{}
		prompt.On("PromptPassword", mock.Anything, mock.Anything).
			Return("", context.Canceled)

		restored := newTestService(t, store, cache)
		require.ErrorIs(t, restored.Unlock(ctx, prompt), context.Canceled)
		require.Equal(t, vault.StateIdle, restored.State())
	})
}

func TestPrimaryFallback(t *testing.T) {
	store := inmemorysecretstore.NewSecretStore()
	cache := inmemorytxcache.NewTransactionCache()
	svc := newTestService(t, store, cache)

	requireFreshInstall(t, svc)
	original := addTestWallets(t, svc)
	require.NoError(t, svc.EncryptStorage(ctx, "pw"))

	failingStore := &mockSecretStore{}
	failingStore.On("Get", mock.Anything, mock.Anything).
		Return("", fmt.Errorf("secure store unavailable"))

	t.Run("snapshot", func(t *testing.T) {
		before := testutil.ToFloat64(stats.SnapshotFallbacks)

		restored := newTestService(t, failingStore, cache)
		require.NoError(t, restored.LoadFromDisk(ctx, "pw"))
		requireWalletIDs(t, restored, original...)
		require.Equal(t, before+1, testutil.ToFloat64(stats.SnapshotFallbacks))
	})

	t.Run("unreadable", func(t *testing.T) {
		restored := newTestService(
			t, failingStore, inmemorytxcache.NewTransactionCache(),
		)
		err := restored.LoadFromDisk(ctx, "pw")
		require.ErrorIs(t, err, vault.ErrStorageUnreadable)
		require.Equal(t, vault.StateFailed, restored.State())
	})
}

func TestFailingReload(t *testing.T) {
	store := inmemorysecretstore.NewSecretStore()
	svc := newTestService(t, store, inmemorytxcache.NewTransactionCache())

	requireFreshInstall(t, svc)
	original := addTestWallets(t, svc)
	require.NoError(t, svc.SaveToDisk(ctx))

	require.NoError(t, store.Apply(ctx, map[string]string{
		"data":           "not a bucket array",
		"data_encrypted": "1",
	}, nil))

	t.Run("loaded vault is kept", func(t *testing.T) {
		err := svc.LoadFromDisk(ctx, "pw")
		require.ErrorIs(t, err, vault.ErrStorageUnreadable)
		require.Equal(t, vault.StateReady, svc.State())
		requireWalletIDs(t, svc, original...)
	})

	t.Run("nothing loaded", func(t *testing.T) {
		restored := newTestService(t, store, inmemorytxcache.NewTransactionCache())
		err := restored.LoadFromDisk(ctx, "pw")
		require.ErrorIs(t, err, vault.ErrStorageUnreadable)
		require.Equal(t, vault.StateFailed, restored.State())

		extra, err := domain.NewLegacyWallet("extra", randstr.Hex(16))
		require.NoError(t, err)
		require.ErrorIs(t, restored.AddWallet(extra), vault.ErrVaultNotLoaded)
		require.ErrorIs(t, restored.SaveToDisk(ctx), vault.ErrVaultNotLoaded)
	})

	// the kept vault can still be saved, overwriting the broken content.
	require.NoError(t, svc.SaveToDisk(ctx))
	restored := newTestService(t, store, inmemorytxcache.NewTransactionCache())
	require.NoError(t, restored.LoadFromDisk(ctx, ""))
	requireWalletIDs(t, restored, original...)
}

func TestCacheCorruption(t *testing.T) {
	store := inmemorysecretstore.NewSecretStore()
	svc := newTestService(t, store, inmemorytxcache.NewTransactionCache())

	requireFreshInstall(t, svc)
	addTestWallets(t, svc)
	require.NoError(t, svc.SaveToDisk(ctx))

	cache := &mockTxCache{}
	cache.On("LoadForWallet", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: bad record", ports.ErrCacheCorrupted))
	cache.On("ReplaceForWallet", mock.Anything, mock.Anything, mock.Anything).
		Return(ports.ErrCacheCorrupted).Once()
	cache.On("ReplaceForWallet", mock.Anything, mock.Anything, mock.Anything).
		Return(nil)
	cache.On("SetSnapshot", mock.Anything, mock.Anything).Return(nil)
	cache.On("Purge", mock.Anything).Return(nil)

	before := testutil.ToFloat64(stats.CachePurges)

	restored := newTestService(t, store, cache)
	require.NoError(t, restored.LoadFromDisk(ctx, ""))
	wallets, err := restored.Wallets()
	require.NoError(t, err)
	require.Len(t, wallets, 3)

	require.NoError(t, restored.SaveToDisk(ctx))

	// one purge per corrupted read while loading, one for the first write.
	cache.AssertNumberOfCalls(t, "Purge", 4)
	require.Equal(t, before+4, testutil.ToFloat64(stats.CachePurges))
	cache.AssertNumberOfCalls(t, "ReplaceForWallet", 4)
}

func TestHydrationErrorsAreIsolated(t *testing.T) {
	store := inmemorysecretstore.NewSecretStore()
	legacy := `{"type":"legacy","label":"ok","secret":"secret"}`
	badWatchOnly := `{"type":"watchOnly","label":"bad","secret":"zpub` + testZpub[5:] + `"}`
	unknown := `{"type":"fancyNewWallet","label":"future","secret":"other"}`
	duplicated := `{"type":"legacy","label":"dup","secret":"secret"}`

	buf, err := json.Marshal(map[string]interface{}{
		"wallets":     []string{legacy, badWatchOnly, unknown, duplicated},
		"tx_metadata": map[string]interface{}{},
	})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "data", string(buf)))

	dropped := testutil.ToFloat64(stats.WalletsDropped)
	fallbacks := testutil.ToFloat64(
		stats.WalletTypeFallbacks.WithLabelValues("fancyNewWallet"),
	)

	svc := newTestService(t, store, inmemorytxcache.NewTransactionCache())
	require.NoError(t, svc.LoadFromDisk(ctx, ""))

	wallets, err := svc.Wallets()
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	require.Equal(t, "ok", wallets[0].Base().Label)
	require.Equal(t, "fancyNewWallet", wallets[1].Base().Type)

	require.Equal(t, dropped+1, testutil.ToFloat64(stats.WalletsDropped))
	require.Equal(t, fallbacks+1, testutil.ToFloat64(
		stats.WalletTypeFallbacks.WithLabelValues("fancyNewWallet"),
	))

	// the unknown type survives a save.
	require.NoError(t, svc.SaveToDisk(ctx))
	data, err := store.Get(ctx, "data")
	require.NoError(t, err)
	require.Contains(t, data, "fancyNewWallet")
}

func TestLegacyLightningEndpoint(t *testing.T) {
	store := inmemorysecretstore.NewSecretStore()
	cache := inmemorytxcache.NewTransactionCache()
	svc := newTestService(t, store, cache)

	requireFreshInstall(t, svc)
	ln, err := domain.NewLightningCustodianWallet("ln", "lndhub://login:pass", "")
	require.NoError(t, err)
	require.NoError(t, svc.AddWallet(ln))
	require.NoError(t, svc.SaveToDisk(ctx))
	require.NoError(t, svc.SetLegacyLightningEndpoint(ctx, "https://legacy.hub"))

	restored := newTestService(t, store, cache)
	require.NoError(t, restored.LoadFromDisk(ctx, ""))
	w, err := restored.Wallet(ln.ID())
	require.NoError(t, err)
	require.Equal(t, "https://legacy.hub", w.(*domain.LightningCustodianWallet).BaseURI)

	require.NoError(t, svc.SetLegacyLightningEndpoint(ctx, ""))
	restored = newTestService(t, store, cache)
	require.NoError(t, restored.LoadFromDisk(ctx, ""))
	w, err = restored.Wallet(ln.ID())
	require.NoError(t, err)
	require.True(t, w.(*domain.LightningCustodianWallet).Inert())
}

func TestSaveExhaustion(t *testing.T) {
	store := &mockSecretStore{}
	store.On("Get", mock.Anything, mock.Anything).Return("", nil)
	store.On("Apply", mock.Anything, mock.Anything, mock.Anything).
		Return(fmt.Errorf("disk full"))

	alerter := &mockAlerter{}
	alerter.On("Alert", mock.Anything, mock.Anything, mock.Anything).Return()

	svc, err := vault.NewService(vault.Config{
		SecretStore:     store,
		TxCache:         inmemorytxcache.NewTransactionCache(),
		Alerter:         alerter,
		ScryptParams:    testScryptParams,
		MaxSaveAttempts: 3,
		SaveRetryDelay:  time.Millisecond,
	})
	require.NoError(t, err)

	requireFreshInstall(t, svc)
	addTestWallets(t, svc)

	err = svc.SaveToDisk(ctx)
	require.ErrorIs(t, err, vault.ErrSaveFailed)
	store.AssertNumberOfCalls(t, "Apply", 3)
	alerter.AssertNumberOfCalls(t, "Alert", 1)
}

func TestLoadWaitsForSave(t *testing.T) {
	inner := inmemorysecretstore.NewSecretStore()
	store := &blockingSecretStore{
		SecretStore: inner,
		applying:    make(chan struct{}),
		release:     make(chan struct{}),
	}
	cache := inmemorytxcache.NewTransactionCache()
	svc := newTestService(t, store, cache)

	requireFreshInstall(t, svc)
	original := addTestWallets(t, svc)

	saved := make(chan error, 1)
	go func() { saved <- svc.SaveToDisk(ctx) }()
	<-store.applying

	loaded := make(chan error, 1)
	go func() { loaded <- svc.LoadFromDisk(ctx, "") }()

	select {
	case <-loaded:
		t.Fatal("load completed while a save was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	require.NoError(t, <-saved)
	require.NoError(t, <-loaded)
	requireWalletIDs(t, svc, original...)
}

var testScryptParams = cipher.Params{N: 1 << 10, R: 8, P: 1}

func newTestService(
	t *testing.T, store ports.SecretStore, cache ports.TransactionCache,
) *vault.Service {
	alerter := &mockAlerter{}
	alerter.On("Alert", mock.Anything, mock.Anything, mock.Anything).Return()

	svc, err := vault.NewService(vault.Config{
		SecretStore:    store,
		TxCache:        cache,
		Alerter:        alerter,
		ScryptParams:   testScryptParams,
		SaveRetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return svc
}

func requireFreshInstall(t *testing.T, svc *vault.Service) {
	err := svc.LoadFromDisk(ctx, "")
	require.ErrorIs(t, err, vault.ErrVaultNotFound)
	require.Equal(t, vault.StateReady, svc.State())
}

func addTestWallets(t *testing.T, svc *vault.Service) []domain.Wallet {
	legacy, err := domain.NewLegacyWallet(randstr.String(8), randstr.Hex(32))
	require.NoError(t, err)
	legacy.Balance = 50000000
	legacy.Txs = []domain.Transaction{{Hash: randstr.Hex(32), Value: 50000000}}

	hd, err := domain.NewHDWallet(
		domain.HDSegwitBech32Type, randstr.String(8), testMnemonic, "",
	)
	require.NoError(t, err)
	hd.External = map[int][]domain.Transaction{
		0: {{Hash: randstr.Hex(32), Value: 1000}},
	}
	hd.Internal = map[int][]domain.Transaction{
		1: {{Hash: randstr.Hex(32), Value: -500}},
	}

	watchOnly, err := domain.NewWatchOnlyWallet(randstr.String(8), testZpub)
	require.NoError(t, err)

	wallets := []domain.Wallet{legacy, hd, watchOnly}
	for _, w := range wallets {
		require.NoError(t, svc.AddWallet(w))
	}
	return wallets
}

func requireWalletIDs(t *testing.T, svc *vault.Service, expected ...domain.Wallet) {
	wallets, err := svc.Wallets()
	require.NoError(t, err)
	require.Len(t, wallets, len(expected))
	for i, w := range expected {
		require.Equal(t, w.ID(), wallets[i].ID())
	}
}

func readBuckets(t *testing.T, store ports.SecretStore) []string {
	data, err := store.Get(ctx, "data")
	require.NoError(t, err)

	var buckets []string
	require.NoError(t, json.Unmarshal([]byte(data), &buckets))
	return buckets
}
