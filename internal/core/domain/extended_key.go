package domain

import (
	"bytes"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const serializedKeyLen = 78

var errNotExtendedPubKey = errors.New("not an extended public key")

type extendedKeyVersion struct {
	kind    addressKind
	testnet bool
}

// SLIP-0132 prefixes of extended public keys. Multisig (uppercase) variants
// map to the same single-sig address kind, the script is built by the
// multisig wallet.
var extendedPubKeyPrefixes = map[string]extendedKeyVersion{
	"xpub": {p2pkh, false},
	"ypub": {p2shP2wpkh, false},
	"zpub": {p2wpkh, false},
	"Ypub": {p2shP2wpkh, false},
	"Zpub": {p2wpkh, false},
	"tpub": {p2pkh, true},
	"upub": {p2shP2wpkh, true},
	"vpub": {p2wpkh, true},
	"Upub": {p2shP2wpkh, true},
	"Vpub": {p2wpkh, true},
}

// isExtendedPubKey returns whether the string looks like an extended public
// key, without validating it.
func isExtendedPubKey(s string) bool {
	if len(s) < 4 {
		return false
	}
	_, ok := extendedPubKeyPrefixes[s[:4]]
	return ok
}

// parseExtendedPubKey validates a SLIP-0132 extended public key and returns
// it re-encoded with the standard xpub/tpub version bytes, together with the
// address kind its prefix stands for.
func parseExtendedPubKey(s string) (
	*hdkeychain.ExtendedKey, addressKind, *chaincfg.Params, error,
) {
	s = strings.TrimSpace(s)
	if !isExtendedPubKey(s) {
		return nil, 0, nil, errNotExtendedPubKey
	}
	version := extendedPubKeyPrefixes[s[:4]]

	decoded := base58.Decode(s)
	if len(decoded) != serializedKeyLen+4 {
		return nil, 0, nil, hdkeychain.ErrInvalidKeyLen
	}
	payload, checksum := decoded[:serializedKeyLen], decoded[serializedKeyLen:]
	if !bytes.Equal(chainhash.DoubleHashB(payload)[:4], checksum) {
		return nil, 0, nil, hdkeychain.ErrBadChecksum
	}

	params := &chaincfg.MainNetParams
	if version.testnet {
		params = &chaincfg.TestNet3Params
	}

	normalized := make([]byte, 0, serializedKeyLen+4)
	normalized = append(normalized, params.HDPublicKeyID[:]...)
	normalized = append(normalized, payload[4:]...)
	normalized = append(normalized, chainhash.DoubleHashB(normalized)[:4]...)

	key, err := hdkeychain.NewKeyFromString(base58.Encode(normalized))
	if err != nil {
		return nil, 0, nil, err
	}
	if key.IsPrivate() {
		return nil, 0, nil, errNotExtendedPubKey
	}
	return key, version.kind, params, nil
}
