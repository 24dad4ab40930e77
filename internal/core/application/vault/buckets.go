package vault

import (
	"encoding/json"
	"fmt"

	"github.com/tdex-network/vaultd/pkg/cipher"
)

// bucketManager encrypts and decrypts the vault buckets and remembers which
// one matched the active password. The coordinator serializes its use.
type bucketManager struct {
	codec        *cipher.Codec
	matchedIndex int
}

func newBucketManager(codec *cipher.Codec) *bucketManager {
	return &bucketManager{codec, -1}
}

// loadBuckets parses the bucket array stored in place of a plaintext vault.
func loadBuckets(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var buckets []string
	if err := json.Unmarshal([]byte(data), &buckets); err != nil {
		return nil, fmt.Errorf("malformed bucket array: %w", err)
	}
	return buckets, nil
}

func encodeBuckets(buckets []string) (string, error) {
	buf, err := json.Marshal(buckets)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// match returns the plaintext and index of the first bucket that decrypts
// with password, without recording it.
func (m *bucketManager) match(
	buckets []string, password string,
) (string, int, error) {
	for i, bucket := range buckets {
		plaintext, err := m.codec.Decrypt(cipher.DecryptOpts{
			CypherText: bucket,
			Passphrase: password,
		})
		if err == nil {
			return plaintext, i, nil
		}
	}
	return "", -1, ErrInvalidPassword
}

func (m *bucketManager) findAndDecrypt(
	buckets []string, password string,
) (string, int, error) {
	plaintext, i, err := m.match(buckets, password)
	if err != nil {
		return "", -1, err
	}
	m.matchedIndex = i
	return plaintext, i, nil
}

// reencrypt returns a copy of buckets where the bucket of password holds the
// encrypted plaintext. The slot is the recorded one if any, otherwise the one
// found by a full scan. A password matching no bucket gets a new one appended.
func (m *bucketManager) reencrypt(
	buckets []string, plaintext, password string,
) ([]string, error) {
	cypherText, err := m.codec.Encrypt(cipher.EncryptOpts{
		PlainText:  plaintext,
		Passphrase: password,
	})
	if err != nil {
		return nil, err
	}

	newBuckets := append([]string{}, buckets...)

	i := m.matchedIndex
	if i < 0 || i >= len(newBuckets) {
		if _, i, err = m.match(newBuckets, password); err != nil {
			m.matchedIndex = len(newBuckets)
			return append(newBuckets, cypherText), nil
		}
	}

	newBuckets[i] = cypherText
	m.matchedIndex = i
	return newBuckets, nil
}

func (m *bucketManager) forget() {
	m.matchedIndex = -1
}
