package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/bits"

	"golang.org/x/crypto/scrypt"
)

const (
	formatVersion = 1

	saltLen   = 32
	keyLen    = 32
	headerLen = 4
	// The header is read before the tag is checked, these bound the scrypt
	// work a corrupted or foreign cypher can trigger (at most 256MiB).
	maxLogN = 18
	maxR    = 8
	maxP    = 2
)

var (
	// ErrNullPassphrase ...
	ErrNullPassphrase = errors.New("passphrase must not be null")
	// ErrNullCypherText ...
	ErrNullCypherText = errors.New("cypher to decrypt must not be null")
	// ErrInvalidCypherText ...
	ErrInvalidCypherText = errors.New("cypher must be in base64 format")
	// ErrInvalidParams ...
	ErrInvalidParams = errors.New(
		"scrypt N must be a power of 2 in range [2, 2^18], R in [1, 8] and P in [1, 2]",
	)
	// ErrDecryptionFailed is returned when the passphrase doesn't match or the
	// cypher was not produced by this package (ie. a decoy or a corrupted
	// blob). Callers are expected to check for it explicitly.
	ErrDecryptionFailed = errors.New("unable to decrypt cypher with passphrase")
)

// Params are the scrypt cost parameters used to stretch the passphrase.
type Params struct {
	N int
	R int
	P int
}

// DefaultParams ...
var DefaultParams = Params{N: 1 << 15, R: 8, P: 1}

func (p Params) validate() error {
	if p.N <= 1 || p.N&(p.N-1) != 0 || logN(p.N) > maxLogN {
		return ErrInvalidParams
	}
	if p.R <= 0 || p.R > maxR || p.P <= 0 || p.P > maxP {
		return ErrInvalidParams
	}
	return nil
}

// EncryptOpts is the struct given to Encrypt method
type EncryptOpts struct {
	PlainText  string
	Passphrase string
}

func (o EncryptOpts) validate() error {
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// DecryptOpts is the struct given to Decrypt method
type DecryptOpts struct {
	CypherText string
	Passphrase string
}

func (o DecryptOpts) validate() error {
	if len(o.CypherText) <= 0 {
		return ErrNullCypherText
	}
	if _, err := base64.StdEncoding.DecodeString(o.CypherText); err != nil {
		return ErrInvalidCypherText
	}
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Codec encrypts and decrypts text blobs with a passphrase.
type Codec struct {
	params Params
}

// NewCodec returns a Codec that encrypts with the given scrypt params.
func NewCodec(params Params) (*Codec, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Codec{params}, nil
}

// Encrypt encrypts (with AES-256-GCM) a plaintext with the provided
// passphrase. The scrypt params and salt are prepended to the result so that
// Decrypt doesn't need to know them.
func (c *Codec) Encrypt(opts EncryptOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key, err := deriveKey([]byte(opts.Passphrase), salt, c.params)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return "", err
	}

	header := []byte{
		formatVersion, byte(logN(c.params.N)), byte(c.params.R), byte(c.params.P),
	}
	out := make([]byte, 0, headerLen+saltLen+len(nonce)+len(opts.PlainText)+gcm.Overhead())
	out = append(out, header...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(opts.PlainText), header)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt decrypts a cypher produced by Encrypt. Any cypher that can't be
// opened with the passphrase results in ErrDecryptionFailed.
func (c *Codec) Decrypt(opts DecryptOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	data, _ := base64.StdEncoding.DecodeString(opts.CypherText)
	if len(data) < headerLen+saltLen {
		return "", ErrDecryptionFailed
	}

	header := data[:headerLen]
	if header[0] != formatVersion || header[1] > maxLogN {
		return "", ErrDecryptionFailed
	}
	params := Params{N: 1 << header[1], R: int(header[2]), P: int(header[3])}
	if err := params.validate(); err != nil {
		return "", ErrDecryptionFailed
	}

	salt, rest := data[headerLen:headerLen+saltLen], data[headerLen+saltLen:]
	key, err := deriveKey([]byte(opts.Passphrase), salt, params)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return "", ErrDecryptionFailed
	}
	nonce, text := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, text, header)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

var defaultCodec = &Codec{DefaultParams}

// Encrypt encrypts with DefaultParams.
func Encrypt(opts EncryptOpts) (string, error) {
	return defaultCodec.Encrypt(opts)
}

// Decrypt ...
func Decrypt(opts DecryptOpts) (string, error) {
	return defaultCodec.Decrypt(opts)
}

func deriveKey(passphrase, salt []byte, params Params) ([]byte, error) {
	return scrypt.Key(passphrase, salt, params.N, params.R, params.P, keyLen)
}

func newGCM(key []byte) (gocipher.AEAD, error) {
	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return gocipher.NewGCM(blockCipher)
}

func logN(n int) int {
	return bits.Len(uint(n)) - 1
}
