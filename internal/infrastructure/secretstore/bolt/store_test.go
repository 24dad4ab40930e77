package boltsecretstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	boltsecretstore "github.com/tdex-network/vaultd/internal/infrastructure/secretstore/bolt"
)

var ctx = context.Background()

func TestSecretStore(t *testing.T) {
	datadir := t.TempDir()

	store, err := boltsecretstore.NewSecretStore(datadir, "")
	require.NoError(t, err)

	value, err := store.Get(ctx, "data")
	require.NoError(t, err)
	require.Empty(t, value)

	err = store.Set(ctx, "data", `{"wallets":[]}`)
	require.NoError(t, err)

	err = store.Apply(ctx, map[string]string{
		"data":           `["bucket"]`,
		"data_encrypted": "1",
	}, nil)
	require.NoError(t, err)

	value, err = store.Get(ctx, "data")
	require.NoError(t, err)
	require.Equal(t, `["bucket"]`, value)

	err = store.Apply(ctx, map[string]string{"data": "{}"}, []string{"data_encrypted"})
	require.NoError(t, err)

	value, err = store.Get(ctx, "data_encrypted")
	require.NoError(t, err)
	require.Empty(t, value)

	err = store.Remove(ctx, "data")
	require.NoError(t, err)

	// content survives a reopen.
	err = store.Set(ctx, "lndhub", "https://hub")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = boltsecretstore.NewSecretStore(datadir, "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	value, err = store.Get(ctx, "lndhub")
	require.NoError(t, err)
	require.Equal(t, "https://hub", value)
	value, err = store.Get(ctx, "data")
	require.NoError(t, err)
	require.Empty(t, value)
}

func TestFailingSecretStore(t *testing.T) {
	store, err := boltsecretstore.NewSecretStore(t.TempDir(), "")
	require.NoError(t, err)

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "")
		require.ErrorIs(t, err, boltsecretstore.ErrMissingDataKey)

		err = store.Apply(ctx, map[string]string{"": "v"}, nil)
		require.ErrorIs(t, err, boltsecretstore.ErrMissingDataKey)

		err = store.Remove(ctx, "")
		require.ErrorIs(t, err, boltsecretstore.ErrMissingDataKey)
	})

	t.Run("closed", func(t *testing.T) {
		require.NoError(t, store.Close())

		_, err := store.Get(ctx, "data")
		require.ErrorIs(t, err, boltsecretstore.ErrStoreClosed)

		err = store.Set(ctx, "data", "v")
		require.ErrorIs(t, err, boltsecretstore.ErrStoreClosed)
	})
}
