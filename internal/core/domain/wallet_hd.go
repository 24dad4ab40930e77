package domain

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/vulpemventures/go-bip39"
)

const (
	HDLegacyP2PKHType              = "HDlegacyP2PKH"
	HDLegacyBreadwalletType        = "HDLegacyBreadwallet"
	HDSegwitP2SHType               = "HDsegwitP2SH"
	HDSegwitBech32Type             = "HDsegwitBech32"
	HDLegacyElectrumSeedP2PKHType  = "HDlegacyElectrumSeedP2PKH"
	HDSegwitElectrumSeedP2WPKHType = "HDSegwitElectrumSeedP2WPKHWallet"
	HDAezeedType                   = "HDAezeedWallet"
	SLIP39LegacyP2PKHType          = "SLIP39LegacyP2PKH"
	SLIP39SegwitP2SHType           = "SLIP39SegwitP2SH"
	SLIP39SegwitBech32Type         = "SLIP39SegwitBech32"

	// legacySecretSeparator splits secret and passphrase in wallets saved
	// before the passphrase got its own field.
	legacySecretSeparator = ":"
)

type hdProfile struct {
	path  string
	kind  addressKind
	bip39 bool
}

var hdProfiles = map[string]hdProfile{
	HDLegacyP2PKHType:              {"m/44'/0'/0'", p2pkh, true},
	HDLegacyBreadwalletType:        {"m/0'", p2pkh, true},
	HDSegwitP2SHType:               {"m/49'/0'/0'", p2shP2wpkh, true},
	HDSegwitBech32Type:             {"m/84'/0'/0'", p2wpkh, true},
	HDLegacyElectrumSeedP2PKHType:  {"m", p2pkh, false},
	HDSegwitElectrumSeedP2WPKHType: {"m/0'", p2wpkh, false},
	HDAezeedType:                   {"m/84'/0'/0'", p2wpkh, false},
	SLIP39LegacyP2PKHType:          {"m/44'/0'/0'", p2pkh, false},
	SLIP39SegwitP2SHType:           {"m/49'/0'/0'", p2shP2wpkh, false},
	SLIP39SegwitBech32Type:         {"m/84'/0'/0'", p2wpkh, false},
}

// HDWallet is a hierarchical deterministic wallet. The same structure backs
// every HD variant, the type tag selects derivation path, address kind and
// seed format.
type HDWallet struct {
	BaseWallet
	TxChains

	Passphrase                 string `json:"passphrase,omitempty"`
	DerivationPath             string `json:"derivationPath,omitempty"`
	NextFreeAddressIndex       int    `json:"next_free_address_index"`
	NextFreeChangeAddressIndex int    `json:"next_free_change_address_index"`

	xpub       string
	accountKey *hdkeychain.ExtendedKey
}

// NewHDWallet ...
func NewHDWallet(walletType, label, secret, passphrase string) (*HDWallet, error) {
	profile, ok := hdProfiles[walletType]
	if !ok {
		return nil, ErrUnknownWalletType
	}
	if len(secret) <= 0 {
		return nil, ErrNullSecret
	}
	return &HDWallet{
		BaseWallet:     BaseWallet{Type: walletType, Label: label, Secret: secret},
		Passphrase:     passphrase,
		DerivationPath: profile.path,
	}, nil
}

// ID is computed over secret and passphrase so that it doesn't change when a
// legacy "secret:passphrase" secret is split.
func (w *HDWallet) ID() string {
	if w.id == "" {
		if w.Passphrase == "" {
			w.id = hashSecret(w.Secret)
		} else {
			w.id = hashSecret(w.Secret, w.Passphrase)
		}
	}
	return w.id
}

func (w *HDWallet) PostHydrate(_ HydrateOpts) error {
	if w.Passphrase == "" && strings.Contains(w.Secret, legacySecretSeparator) {
		parts := strings.SplitN(w.Secret, legacySecretSeparator, 2)
		w.Secret = strings.TrimSpace(parts[0])
		w.Passphrase = parts[1]
	}
	if w.DerivationPath == "" {
		w.DerivationPath = hdProfiles[w.Type].path
	}
	return nil
}

// Xpub returns the account extended public key, derived lazily from a BIP39
// mnemonic. Seeds in other formats return an empty string.
func (w *HDWallet) Xpub() string {
	if w.xpub != "" {
		return w.xpub
	}

	profile := hdProfiles[w.Type]
	if !profile.bip39 || !bip39.IsMnemonicValid(w.Secret) {
		return ""
	}
	path, err := ParseDerivationPath(w.DerivationPath)
	if err != nil {
		return ""
	}

	seed := bip39.NewSeed(w.Secret, w.Passphrase)
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return ""
	}
	account, err := path.derive(master)
	if err != nil {
		return ""
	}
	pub, err := account.Neuter()
	if err != nil {
		return ""
	}

	w.accountKey = pub
	w.xpub = pub.String()
	return w.xpub
}

// Address returns the next free receive address.
func (w *HDWallet) Address() string {
	if w.address != "" {
		return w.address
	}
	if w.accountKey == nil && w.Xpub() == "" {
		return ""
	}
	w.address = addressFromExtendedKey(
		w.accountKey, 0, uint32(w.NextFreeAddressIndex), hdProfiles[w.Type].kind,
		&chaincfg.MainNetParams,
	)
	return w.address
}

func (w *HDWallet) SerializableCopy() Wallet {
	c := *w
	c.BaseWallet = *w.BaseWallet.stripped()
	c.TxChains = TxChains{}
	c.xpub = ""
	c.accountKey = nil
	return &c
}

func (w *HDWallet) TxRecords() []TxRecord {
	return w.TxChains.records(w.ID())
}

func (w *HDWallet) MergeTxRecords(records []TxRecord) {
	w.TxChains.merge(records)
}

func (w *HDWallet) Transactions() []Transaction {
	return w.TxChains.transactions()
}
