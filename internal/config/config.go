package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory where the vault, the
	// transaction cache and its device key are stored
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// SaveMaxAttemptsKey is the number of attempts made to persist the vault
	// before alerting the user
	SaveMaxAttemptsKey = "SAVE_MAX_ATTEMPTS"
	// SaveRetryDelayKey is the base delay between two save attempts, it's
	// multiplied by the attempt number and the number of pending saves
	SaveRetryDelayKey = "SAVE_RETRY_DELAY"
	// ScryptNKey is the scrypt cost parameter used to encrypt new buckets
	ScryptNKey = "SCRYPT_N"
	// CacheInMemoryKey keeps the transaction cache in memory only
	CacheInMemoryKey = "CACHE_IN_MEMORY"
	// BreakerMaxFailuresKey is the number of consecutive secret store read
	// failures after which reads are served by the cache snapshot only
	BreakerMaxFailuresKey = "BREAKER_MAX_FAILURES"
	// StatsFileKey is the path of the file where metrics are dumped on exit,
	// if set
	StatsFileKey = "STATS_FILE"

	DbLocation = "db"

	minScryptN = 1 << 10
	maxScryptN = 1 << 18
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("vaultd", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("VAULT")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(SaveMaxAttemptsKey, 5)
	vip.SetDefault(SaveRetryDelayKey, 200*time.Millisecond)
	vip.SetDefault(ScryptNKey, 1<<15)
	vip.SetDefault(CacheInMemoryKey, false)
	vip.SetDefault(BreakerMaxFailuresKey, 3)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetUint32(key string) uint32 {
	return vip.GetUint32(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDbDir returns the directory of the vault databases.
func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if GetInt(SaveMaxAttemptsKey) < 1 {
		return fmt.Errorf("%s must be greater than 0", SaveMaxAttemptsKey)
	}
	if GetDuration(SaveRetryDelayKey) < 0 {
		return fmt.Errorf("%s must not be negative", SaveRetryDelayKey)
	}

	n := GetInt(ScryptNKey)
	if n < minScryptN || n > maxScryptN || n&(n-1) != 0 {
		return fmt.Errorf(
			"%s must be a power of 2 in range [%d, %d]",
			ScryptNKey, minScryptN, maxScryptN,
		)
	}

	return nil
}

func initDatadir() error {
	return makeDirectoryIfNotExists(GetDbDir())
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0700)
	}
	return nil
}
