package ports

import "context"

// SecretStore is the key/value store holding the primary vault blob and its
// flags. Get returns an empty string for missing keys.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Apply sets and removes the given keys in a single atomic write.
	Apply(ctx context.Context, set map[string]string, remove []string) error
	Close() error
}
