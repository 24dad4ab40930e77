package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/tdex-network/vaultd/internal/config"
	"github.com/tdex-network/vaultd/internal/core/application/vault"
	"github.com/tdex-network/vaultd/internal/core/ports"
	boltsecretstore "github.com/tdex-network/vaultd/internal/infrastructure/secretstore/bolt"
	badgertxcache "github.com/tdex-network/vaultd/internal/infrastructure/txcache/badger"
	inmemorytxcache "github.com/tdex-network/vaultd/internal/infrastructure/txcache/inmemory"
	"github.com/tdex-network/vaultd/pkg/cipher"
	"github.com/tdex-network/vaultd/pkg/stats"
)

const (
	datadirFlagName  = "datadir"
	passwordFlagName = "password"
)

var (
	datadirFlag = &cli.StringFlag{
		Name:  datadirFlagName,
		Usage: "the directory where the vault is stored",
	}
	passwordFlag = &cli.StringFlag{
		Name:    passwordFlagName,
		Usage:   "the vault password, prompted if missing and the vault is encrypted",
		EnvVars: []string{"VAULT_PASSWORD"},
	}
)

func main() {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "vault"
	app.Usage = "Command line interface to manage an encrypted multi-wallet vault"
	app.Flags = []cli.Flag{datadirFlag, passwordFlag}
	app.Before = initConfig
	app.After = dumpStats
	app.Commands = append(
		app.Commands,
		&status,
		&wallet,
		&encrypt,
		&decrypt,
		&fake,
		&changepassword,
		&lndhub,
		&memo,
	)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func initConfig(ctx *cli.Context) error {
	// The flag wins over the env var.
	if datadir := ctx.String(datadirFlagName); datadir != "" {
		if err := os.Setenv("VAULT_DATADIR", datadir); err != nil {
			return err
		}
	}
	if err := config.InitConfig(); err != nil {
		return err
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))
	return nil
}

func dumpStats(_ *cli.Context) error {
	path := config.GetString(config.StatsFileKey)
	if path == "" {
		return nil
	}
	return stats.DumpPrometheusDefaults(path)
}

// getService opens the stores in the configured datadir and returns the vault
// service built on top of them, not loaded yet.
func getService() (*vault.Service, func(), error) {
	dbDir := config.GetDbDir()

	store, err := boltsecretstore.NewSecretStore(dbDir, boltsecretstore.DefaultFilename)
	if err != nil {
		return nil, nil, err
	}

	txCache := getTxCache(dbDir)

	cleanup := func() {
		if err := txCache.Close(); err != nil {
			log.WithError(err).Warn("error while closing transaction cache")
		}
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("error while closing secret store")
		}
	}

	svc, err := vault.NewService(vault.Config{
		SecretStore: store,
		TxCache:     txCache,
		Alerter:     logAlerter{},
		ScryptParams: cipher.Params{
			N: config.GetInt(config.ScryptNKey),
			R: cipher.DefaultParams.R,
			P: cipher.DefaultParams.P,
		},
		MaxSaveAttempts:    config.GetInt(config.SaveMaxAttemptsKey),
		SaveRetryDelay:     config.GetDuration(config.SaveRetryDelayKey),
		BreakerMaxFailures: config.GetUint32(config.BreakerMaxFailuresKey),
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return svc, cleanup, nil
}

// getTxCache never fails, the cache only holds copies and the vault must stay
// reachable without it.
func getTxCache(dbDir string) ports.TransactionCache {
	if config.GetBool(config.CacheInMemoryKey) {
		return inmemorytxcache.NewTransactionCache()
	}

	deviceKey, err := badgertxcache.LoadOrCreateDeviceKey(
		filepath.Join(config.GetDatadir(), badgertxcache.DeviceKeyFilename),
	)
	if err == nil {
		var txCache ports.TransactionCache
		txCache, err = badgertxcache.NewTransactionCache(
			dbDir, deviceKey, log.StandardLogger(),
		)
		if err == nil {
			return txCache
		}
	}

	log.WithError(err).Warn(
		"transaction cache is not available, using an in-memory one",
	)
	return inmemorytxcache.NewTransactionCache()
}

// getUnlockedService returns a service with the vault loaded, prompting for
// the password if needed.
func getUnlockedService(ctx *cli.Context) (*vault.Service, func(), error) {
	svc, cleanup, err := getService()
	if err != nil {
		return nil, nil, err
	}

	if err := unlock(ctx, svc); err != nil {
		cleanup()
		return nil, nil, err
	}

	return svc, cleanup, nil
}

// unlock loads the vault. A missing vault is not an error, the service is
// ready with an empty one.
func unlock(ctx *cli.Context, svc *vault.Service) error {
	if err := svc.Unlock(ctx.Context, getPrompt(ctx)); err != nil {
		if !errors.Is(err, vault.ErrVaultNotFound) {
			return err
		}
		log.Debug("no vault found, starting from an empty one")
	}
	return nil
}

func getPrompt(ctx *cli.Context) ports.PasswordPrompt {
	if pwd := ctx.String(passwordFlagName); pwd != "" {
		return staticPrompt(pwd)
	}
	return terminalPrompt{}
}

func save(ctx context.Context, svc *vault.Service) error {
	if err := svc.SaveToDisk(ctx); err != nil {
		return err
	}
	fmt.Println("Done")
	return nil
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func fatal(err error) {
	var e *invalidUsageError
	if errors.As(err, &e) {
		_ = cli.ShowCommandHelp(e.ctx, e.command)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[vault] %v\n", err)
	}
	os.Exit(1)
}
