package domain

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

const (
	HDMultisigType = "HDmultisig"

	MultisigFormatP2WSH     = "p2wsh"
	MultisigFormatP2SHP2WSH = "p2sh-p2wsh"
	MultisigFormatP2SH      = "p2sh"
)

// ErrInvalidQuorum ...
var ErrInvalidQuorum = errors.New("multisig quorum must be in range [1, #cosigners]")

// MultisigHDWallet is a M-of-N wallet over the extended public keys of its
// cosigners. The secret is the textual wallet descriptor.
type MultisigHDWallet struct {
	BaseWallet
	TxChains

	M                          int      `json:"m"`
	Cosigners                  []string `json:"_cosigners"`
	Format                     string   `json:"format"`
	DerivationPath             string   `json:"derivationPath,omitempty"`
	NextFreeAddressIndex       int      `json:"next_free_address_index"`
	NextFreeChangeAddressIndex int      `json:"next_free_change_address_index"`
}

// NewMultisigHDWallet ...
func NewMultisigHDWallet(
	label, secret string, m int, cosigners []string,
) (*MultisigHDWallet, error) {
	if len(secret) <= 0 {
		return nil, ErrNullSecret
	}
	if m <= 0 || m > len(cosigners) {
		return nil, ErrInvalidQuorum
	}
	w := &MultisigHDWallet{
		BaseWallet: BaseWallet{Type: HDMultisigType, Label: label, Secret: secret},
		M:          m,
		Cosigners:  cosigners,
	}
	_ = w.PostHydrate(HydrateOpts{})
	return w, nil
}

func (w *MultisigHDWallet) PostHydrate(_ HydrateOpts) error {
	if w.Format == "" {
		w.Format = MultisigFormatP2WSH
	}
	return nil
}

// Address returns the next free receive address by building the sorted
// multisig script over the cosigner keys.
func (w *MultisigHDWallet) Address() string {
	if w.address != "" {
		return w.address
	}
	if w.M <= 0 || w.M > len(w.Cosigners) {
		return ""
	}

	var params *chaincfg.Params
	pubkeys := make([][]byte, 0, len(w.Cosigners))
	for _, cosigner := range w.Cosigners {
		key, _, p, err := parseExtendedPubKey(cosigner)
		if err != nil {
			return ""
		}
		child, err := DerivationPath{0, uint32(w.NextFreeAddressIndex)}.derive(key)
		if err != nil {
			return ""
		}
		pub, err := child.ECPubKey()
		if err != nil {
			return ""
		}
		params = p
		pubkeys = append(pubkeys, pub.SerializeCompressed())
	}
	sort.Slice(pubkeys, func(i, j int) bool {
		return bytes.Compare(pubkeys[i], pubkeys[j]) < 0
	})

	addrPubKeys := make([]*btcutil.AddressPubKey, 0, len(pubkeys))
	for _, pk := range pubkeys {
		a, err := btcutil.NewAddressPubKey(pk, params)
		if err != nil {
			return ""
		}
		addrPubKeys = append(addrPubKeys, a)
	}
	script, err := txscript.MultiSigScript(addrPubKeys, w.M)
	if err != nil {
		return ""
	}

	w.address = multisigAddress(script, w.Format, params)
	return w.address
}

func (w *MultisigHDWallet) SerializableCopy() Wallet {
	c := *w
	c.BaseWallet = *w.BaseWallet.stripped()
	c.TxChains = TxChains{}
	return &c
}

func (w *MultisigHDWallet) TxRecords() []TxRecord {
	return w.TxChains.records(w.ID())
}

func (w *MultisigHDWallet) MergeTxRecords(records []TxRecord) {
	w.TxChains.merge(records)
}

func (w *MultisigHDWallet) Transactions() []Transaction {
	return w.TxChains.transactions()
}

func multisigAddress(script []byte, format string, params *chaincfg.Params) string {
	var (
		addr btcutil.Address
		err  error
	)

	witnessProgram := sha256.Sum256(script)
	switch format {
	case MultisigFormatP2SH:
		addr, err = btcutil.NewAddressScriptHash(script, params)
	case MultisigFormatP2SHP2WSH:
		var wsh btcutil.Address
		wsh, err = btcutil.NewAddressWitnessScriptHash(witnessProgram[:], params)
		if err != nil {
			return ""
		}
		var redeem []byte
		redeem, err = txscript.PayToAddrScript(wsh)
		if err != nil {
			return ""
		}
		addr, err = btcutil.NewAddressScriptHash(redeem, params)
	default:
		addr, err = btcutil.NewAddressWitnessScriptHash(witnessProgram[:], params)
	}
	if err != nil {
		return ""
	}
	return addr.EncodeAddress()
}
