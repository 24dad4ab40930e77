package vault

import (
	"fmt"
	"time"

	"github.com/tdex-network/vaultd/internal/core/domain"
	"github.com/tdex-network/vaultd/internal/core/ports"
	"github.com/tdex-network/vaultd/pkg/cipher"
)

const (
	DefaultMaxSaveAttempts = 5
	DefaultSaveRetryDelay  = 200 * time.Millisecond
)

// Config holds the collaborators and tunables of the vault service.
// Zero values of the optional fields are replaced with defaults.
type Config struct {
	SecretStore ports.SecretStore
	TxCache     ports.TransactionCache
	Alerter     ports.Alerter
	// Registry defaults to domain.NewDefaultRegistry().
	Registry *domain.Registry

	ScryptParams       cipher.Params
	MaxSaveAttempts    int
	SaveRetryDelay     time.Duration
	BreakerMaxFailures uint32
}

func (c *Config) validate() error {
	if c.SecretStore == nil {
		return fmt.Errorf("missing secret store")
	}
	if c.TxCache == nil {
		return fmt.Errorf("missing transaction cache")
	}
	if c.Alerter == nil {
		return fmt.Errorf("missing alerter")
	}
	if c.MaxSaveAttempts < 0 {
		return fmt.Errorf("max save attempts must not be negative")
	}
	if c.SaveRetryDelay < 0 {
		return fmt.Errorf("save retry delay must not be negative")
	}
	return nil
}

func (c *Config) withDefaults() {
	if c.Registry == nil {
		c.Registry = domain.NewDefaultRegistry()
	}
	if c.ScryptParams == (cipher.Params{}) {
		c.ScryptParams = cipher.DefaultParams
	}
	if c.MaxSaveAttempts == 0 {
		c.MaxSaveAttempts = DefaultMaxSaveAttempts
	}
	if c.SaveRetryDelay == 0 {
		c.SaveRetryDelay = DefaultSaveRetryDelay
	}
}
