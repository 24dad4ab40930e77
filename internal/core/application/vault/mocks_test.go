package vault_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/vaultd/internal/core/domain"
	"github.com/tdex-network/vaultd/internal/core/ports"
)

// **** SecretStore ****

type mockSecretStore struct {
	mock.Mock
}

func (m *mockSecretStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockSecretStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *mockSecretStore) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockSecretStore) Apply(
	ctx context.Context, set map[string]string, remove []string,
) error {
	args := m.Called(ctx, set, remove)
	return args.Error(0)
}

func (m *mockSecretStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// blockingSecretStore wraps a SecretStore and blocks Apply calls until
// released.
type blockingSecretStore struct {
	ports.SecretStore
	applying chan struct{}
	release  chan struct{}
}

func (s *blockingSecretStore) Apply(
	ctx context.Context, set map[string]string, remove []string,
) error {
	s.applying <- struct{}{}
	<-s.release
	return s.SecretStore.Apply(ctx, set, remove)
}

// **** TransactionCache ****

type mockTxCache struct {
	mock.Mock
}

func (m *mockTxCache) ReplaceForWallet(
	ctx context.Context, walletID string, records []domain.TxRecord,
) error {
	args := m.Called(ctx, walletID, records)
	return args.Error(0)
}

func (m *mockTxCache) LoadForWallet(
	ctx context.Context, walletID string,
) ([]domain.TxRecord, error) {
	args := m.Called(ctx, walletID)

	var res []domain.TxRecord
	if a := args.Get(0); a != nil {
		res = a.([]domain.TxRecord)
	}
	return res, args.Error(1)
}

func (m *mockTxCache) SetSnapshot(
	ctx context.Context, entries map[string]string,
) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *mockTxCache) GetSnapshot(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockTxCache) Purge(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockTxCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

// **** Alerter ****

type mockAlerter struct {
	mock.Mock
}

func (m *mockAlerter) Alert(ctx context.Context, title, message string) {
	m.Called(ctx, title, message)
}

// **** PasswordPrompt ****

type mockPrompt struct {
	mock.Mock
}

func (m *mockPrompt) PromptPassword(ctx context.Context, attempt int) (string, error) {
	args := m.Called(ctx, attempt)
	return args.String(0), args.Error(1)
}
