package inmemorysecretstore

import (
	"context"
	"sync"

	"github.com/tdex-network/vaultd/internal/core/ports"
)

type secretStore struct {
	lock *sync.RWMutex
	kv   map[string]string
}

// NewSecretStore returns a SecretStore that keeps everything in memory.
func NewSecretStore() ports.SecretStore {
	return &secretStore{
		lock: &sync.RWMutex{},
		kv:   make(map[string]string),
	}
}

func (s *secretStore) Get(_ context.Context, key string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.kv[key], nil
}

func (s *secretStore) Set(ctx context.Context, key, value string) error {
	return s.Apply(ctx, map[string]string{key: value}, nil)
}

func (s *secretStore) Remove(ctx context.Context, key string) error {
	return s.Apply(ctx, nil, []string{key})
}

func (s *secretStore) Apply(
	_ context.Context, set map[string]string, remove []string,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for k, v := range set {
		s.kv[k] = v
	}
	for _, k := range remove {
		delete(s.kv, k)
	}
	return nil
}

func (s *secretStore) Close() error {
	return nil
}
