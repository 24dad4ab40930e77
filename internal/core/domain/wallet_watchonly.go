package domain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

const WatchOnlyType = "watchOnly"

// WatchOnlyWallet tracks either a single address or, when the secret is an
// extended public key, a whole HD account.
type WatchOnlyWallet struct {
	BaseWallet
	TxChains

	UseWithHardwareWallet bool   `json:"use_with_hardware_wallet"`
	MasterFingerprint     uint32 `json:"masterFingerprint,omitempty"`
	DerivationPath        string `json:"derivationPath,omitempty"`
	NextFreeAddressIndex  int    `json:"next_free_address_index"`

	hdKey    *hdkeychain.ExtendedKey
	hdKind   addressKind
	hdParams *chaincfg.Params
}

// NewWatchOnlyWallet ...
func NewWatchOnlyWallet(label, secret string) (*WatchOnlyWallet, error) {
	if len(secret) <= 0 {
		return nil, ErrNullSecret
	}
	w := &WatchOnlyWallet{
		BaseWallet: BaseWallet{Type: WatchOnlyType, Label: label, Secret: secret},
	}
	if err := w.PostHydrate(HydrateOpts{}); err != nil {
		return nil, err
	}
	return w, nil
}

// IsHD returns whether the wallet watches an extended public key.
func (w *WatchOnlyWallet) IsHD() bool {
	return isExtendedPubKey(w.Secret)
}

// PostHydrate validates the extended public key of HD watch-only wallets.
func (w *WatchOnlyWallet) PostHydrate(_ HydrateOpts) error {
	if !w.IsHD() {
		return nil
	}
	if _, err := w.extendedKey(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidWatchOnlyKey, err)
	}
	return nil
}

func (w *WatchOnlyWallet) Address() string {
	if w.address != "" {
		return w.address
	}
	if !w.IsHD() {
		if isValidAddress(w.Secret) {
			w.address = w.Secret
		}
		return w.address
	}

	key, err := w.extendedKey()
	if err != nil {
		return ""
	}
	w.address = addressFromExtendedKey(
		key, 0, uint32(w.NextFreeAddressIndex), w.hdKind, w.hdParams,
	)
	return w.address
}

func (w *WatchOnlyWallet) SerializableCopy() Wallet {
	c := *w
	c.BaseWallet = *w.BaseWallet.stripped()
	c.TxChains = TxChains{}
	c.hdKey = nil
	c.hdParams = nil
	return &c
}

func (w *WatchOnlyWallet) TxRecords() []TxRecord {
	if w.IsHD() {
		return w.TxChains.records(w.ID())
	}
	return w.BaseWallet.TxRecords()
}

func (w *WatchOnlyWallet) MergeTxRecords(records []TxRecord) {
	if w.IsHD() {
		w.TxChains.merge(records)
		return
	}
	w.BaseWallet.MergeTxRecords(records)
}

func (w *WatchOnlyWallet) Transactions() []Transaction {
	if w.IsHD() {
		return w.TxChains.transactions()
	}
	return w.BaseWallet.Transactions()
}

func (w *WatchOnlyWallet) extendedKey() (*hdkeychain.ExtendedKey, error) {
	if w.hdKey != nil {
		return w.hdKey, nil
	}
	key, kind, params, err := parseExtendedPubKey(w.Secret)
	if err != nil {
		return nil, err
	}
	w.hdKey, w.hdKind, w.hdParams = key, kind, params
	return key, nil
}

func isValidAddress(addr string) bool {
	for _, params := range []*chaincfg.Params{
		&chaincfg.MainNetParams, &chaincfg.TestNet3Params,
	} {
		if a, err := btcutil.DecodeAddress(addr, params); err == nil &&
			a.IsForNet(params) {
			return true
		}
	}
	return false
}
