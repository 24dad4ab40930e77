package stats

import (
	"bufio"
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Saves counts the completed vault saves.
	Saves = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vault",
		Name:      "saves_total",
		Help:      "Number of vault saves persisted to the secret store.",
	})
	// SaveRetries counts the failed save attempts that were retried.
	SaveRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vault",
		Name:      "save_retries_total",
		Help:      "Number of save attempts retried after a write failure.",
	})
	// SaveFailures counts the saves given up after too many attempts.
	SaveFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vault",
		Name:      "save_failures_total",
		Help:      "Number of saves given up after exhausting all attempts.",
	})
	// Loads counts the vault loads, by outcome.
	Loads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vault",
		Name:      "loads_total",
		Help:      "Number of vault loads by outcome.",
	}, []string{"outcome"})
	// SnapshotFallbacks counts the loads served by the cache snapshot.
	SnapshotFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vault",
		Name:      "snapshot_fallbacks_total",
		Help:      "Number of loads that fell back to the cache snapshot.",
	})
	// WalletsDropped counts the wallets dropped during hydration.
	WalletsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vault",
		Name:      "wallets_dropped_total",
		Help:      "Number of wallets that failed hydration and were dropped.",
	})
	// WalletTypeFallbacks counts wallets hydrated as legacy because of an
	// unknown or missing type.
	WalletTypeFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vault",
		Name:      "wallet_type_fallbacks_total",
		Help:      "Number of wallets with an unknown type hydrated as legacy.",
	}, []string{"type"})
	// CachePurges counts the purges of the transaction cache.
	CachePurges = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vault",
		Name:      "cache_purges_total",
		Help:      "Number of times the transaction cache was purged.",
	})
)

func init() {
	prometheus.MustRegister(
		Saves, SaveRetries, SaveFailures, Loads, SnapshotFallbacks,
		WalletsDropped, WalletTypeFallbacks, CachePurges,
	)
}

// DumpPrometheusDefaults appends the default Prometheus metrics to the file
// at path.
func DumpPrometheusDefaults(path string) error {
	file, err := os.OpenFile(
		path,
		os.O_APPEND|os.O_CREATE|os.O_RDWR,
		0644,
	)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	metricFamily, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, v := range metricFamily {
		_, err := writer.WriteString(v.String() + "\n")
		if err != nil {
			return err
		}
	}

	return writer.Flush()
}
