package domain

import (
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

type addressKind int

const (
	p2pkh addressKind = iota
	p2shP2wpkh
	p2wpkh
	p2tr
)

// addressFromWIF returns the address of the given kind for a WIF encoded
// private key, or an empty string if secret is not a valid WIF.
func addressFromWIF(secret string, kind addressKind) string {
	wif, err := btcutil.DecodeWIF(secret)
	if err != nil {
		return ""
	}
	return addressFromPubKey(wif.SerializePubKey(), kind, netParamsForWIF(wif))
}

// addressFromExtendedKey derives the address at branch/index of an account
// level extended key.
func addressFromExtendedKey(
	key *hdkeychain.ExtendedKey, branch, index uint32, kind addressKind,
	params *chaincfg.Params,
) string {
	child, err := DerivationPath{branch, index}.derive(key)
	if err != nil {
		return ""
	}
	pubkey, err := child.ECPubKey()
	if err != nil {
		return ""
	}
	return addressFromPubKey(pubkey.SerializeCompressed(), kind, params)
}

func addressFromPubKey(
	pubkey []byte, kind addressKind, params *chaincfg.Params,
) string {
	var (
		addr btcutil.Address
		err  error
	)

	switch kind {
	case p2pkh:
		addr, err = btcutil.NewAddressPubKeyHash(btcutil.Hash160(pubkey), params)
	case p2wpkh:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(pubkey), params,
		)
	case p2shP2wpkh:
		var witnessAddr btcutil.Address
		witnessAddr, err = btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(pubkey), params,
		)
		if err != nil {
			return ""
		}
		var script []byte
		script, err = txscript.PayToAddrScript(witnessAddr)
		if err != nil {
			return ""
		}
		addr, err = btcutil.NewAddressScriptHash(script, params)
	case p2tr:
		pk, perr := schnorr.ParsePubKey(pubkey[1:])
		if perr != nil {
			return ""
		}
		tapKey := txscript.ComputeTaprootKeyNoScript(pk)
		addr, err = btcutil.NewAddressTaproot(
			schnorr.SerializePubKey(tapKey), params,
		)
	default:
		return ""
	}
	if err != nil {
		return ""
	}
	return addr.EncodeAddress()
}
