package badgertxcache

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

const (
	// DeviceKeyFilename is the name of the file holding the cache encryption
	// key in the datadir.
	DeviceKeyFilename = "cache.key"

	deviceKeyLen = 32
)

// LoadOrCreateDeviceKey reads the cache encryption key from path or, if the
// file doesn't exist or is malformed, generates and stores a new one.
// A new key makes any previous cache unreadable.
func LoadOrCreateDeviceKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil && len(key) == deviceKeyLen {
		return key, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading device key: %w", err)
	}
	if err == nil {
		log.WithField("path", path).Warn("malformed cache device key, replacing it")
	}

	key = make([]byte, deviceKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("writing device key: %w", err)
	}
	return key, nil
}
