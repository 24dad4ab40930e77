package domain

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/shopspring/decimal"
)

const (
	// LegacyType is the tag of the base wallet variant. Serialized wallets
	// with an absent or unknown tag are hydrated as this variant.
	LegacyType = "legacy"
)

// Identifiable is implemented by every wallet variant.
type Identifiable interface {
	// ID returns a stable identifier derived from the wallet secret.
	ID() string
}

// Serializable is implemented by every wallet variant.
type Serializable interface {
	// SerializableCopy returns a shallow copy of the wallet without transient
	// fields (cached address, live key handles, derived helpers) and without
	// transaction lists, which are persisted in the transaction cache.
	SerializableCopy() Wallet
}

// PostHydrator is implemented by every wallet variant and is called right
// after a wallet is decoded, before it's added to the vault. Returning an
// error makes the registry drop the wallet.
type PostHydrator interface {
	PostHydrate(opts HydrateOpts) error
}

// TxHolder allows to move the transactions of a wallet in and out of the
// transaction cache.
type TxHolder interface {
	// TxRecords flattens the wallet transaction lists into cache records.
	TxRecords() []TxRecord
	// MergeTxRecords replaces the wallet transaction lists with the given
	// cached records. An empty list leaves the wallet untouched.
	MergeTxRecords(records []TxRecord)
	// Transactions returns all the wallet transactions.
	Transactions() []Transaction
}

// Wallet is the polymorphic entity owned by the vault.
type Wallet interface {
	Identifiable
	Serializable
	PostHydrator
	TxHolder

	// Base gives access to the fields shared by all variants.
	Base() *BaseWallet
	// Address returns the (lazily computed) receive address of the wallet,
	// if any can be derived without network access.
	Address() string
}

// HydrateOpts carries the environment needed by post hydration hooks.
type HydrateOpts struct {
	// LegacyLightningEndpoint is the global Lightning hub endpoint setting
	// used before endpoints were saved per wallet.
	LegacyLightningEndpoint string
}

// Transaction is the cached view of an on-chain or off-chain transaction.
type Transaction struct {
	Hash          string `json:"hash"`
	Value         int64  `json:"value"`
	Fee           int64  `json:"fee,omitempty"`
	Confirmations int64  `json:"confirmations"`
	Timestamp     int64  `json:"timestamp"`
	Memo          string `json:"memo,omitempty"`
}

// TxMetadata is the user provided metadata for a transaction id.
type TxMetadata struct {
	Memo   string `json:"memo,omitempty"`
	RawHex string `json:"rawHex,omitempty"`
}

// BaseWallet holds the fields shared by all wallet variants and is itself
// the legacy (single WIF key, P2PKH) variant.
type BaseWallet struct {
	Type                 string        `json:"type"`
	Label                string        `json:"label"`
	Secret               string        `json:"secret"`
	Balance              int64         `json:"balance"`
	UnconfirmedBalance   int64         `json:"unconfirmed_balance"`
	Txs                  []Transaction `json:"transactions,omitempty"`
	LastTxFetch          int64         `json:"_lastTxFetch"`
	LastBalanceFetch     int64         `json:"_lastBalanceFetch"`
	PreferredBalanceUnit string        `json:"preferredBalanceUnit,omitempty"`
	HideBalance          bool          `json:"hideBalance"`
	UserHasSavedExport   bool          `json:"userHasSavedExport"`

	id      string
	address string
}

// NewLegacyWallet ...
func NewLegacyWallet(label, secret string) (*BaseWallet, error) {
	if len(secret) <= 0 {
		return nil, ErrNullSecret
	}
	return &BaseWallet{Type: LegacyType, Label: label, Secret: secret}, nil
}

func (w *BaseWallet) Base() *BaseWallet {
	return w
}

func (w *BaseWallet) ID() string {
	if w.id == "" {
		w.id = hashSecret(w.Secret)
	}
	return w.id
}

// BalanceBTC returns the confirmed balance expressed in BTC.
func (w *BaseWallet) BalanceBTC() decimal.Decimal {
	return decimal.New(w.Balance, -8)
}

// Address returns the P2PKH address of the WIF secret.
func (w *BaseWallet) Address() string {
	if w.address == "" {
		w.address = addressFromWIF(w.Secret, p2pkh)
	}
	return w.address
}

func (w *BaseWallet) SerializableCopy() Wallet {
	return w.stripped()
}

func (w *BaseWallet) PostHydrate(_ HydrateOpts) error {
	if w.Type == "" {
		w.Type = LegacyType
	}
	return nil
}

func (w *BaseWallet) TxRecords() []TxRecord {
	records := make([]TxRecord, 0, len(w.Txs))
	for _, tx := range w.Txs {
		records = append(records, TxRecord{WalletID: w.ID(), Tx: tx})
	}
	return records
}

func (w *BaseWallet) MergeTxRecords(records []TxRecord) {
	_, _, flat := PartitionRecords(records)
	if len(flat) > 0 {
		w.Txs = flat
	}
}

func (w *BaseWallet) Transactions() []Transaction {
	return append([]Transaction{}, w.Txs...)
}

func (w *BaseWallet) stripped() *BaseWallet {
	c := *w
	c.Txs = nil
	c.id = ""
	c.address = ""
	return &c
}

// SegwitP2SHWallet is a single key wallet receiving on a P2SH-P2WPKH address.
type SegwitP2SHWallet struct {
	BaseWallet
}

func (w *SegwitP2SHWallet) Address() string {
	if w.address == "" {
		w.address = addressFromWIF(w.Secret, p2shP2wpkh)
	}
	return w.address
}

func (w *SegwitP2SHWallet) SerializableCopy() Wallet {
	return &SegwitP2SHWallet{*w.stripped()}
}

// SegwitBech32Wallet is a single key wallet receiving on a P2WPKH address.
type SegwitBech32Wallet struct {
	BaseWallet
}

func (w *SegwitBech32Wallet) Address() string {
	if w.address == "" {
		w.address = addressFromWIF(w.Secret, p2wpkh)
	}
	return w.address
}

func (w *SegwitBech32Wallet) SerializableCopy() Wallet {
	return &SegwitBech32Wallet{*w.stripped()}
}

// TaprootWallet is a single key wallet receiving on a key-path P2TR address.
type TaprootWallet struct {
	BaseWallet
}

func (w *TaprootWallet) Address() string {
	if w.address == "" {
		w.address = addressFromWIF(w.Secret, p2tr)
	}
	return w.address
}

func (w *TaprootWallet) SerializableCopy() Wallet {
	return &TaprootWallet{*w.stripped()}
}

func hashSecret(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte(":"))
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func netParamsForWIF(wif *btcutil.WIF) *chaincfg.Params {
	if wif.IsForNet(&chaincfg.TestNet3Params) {
		return &chaincfg.TestNet3Params
	}
	return &chaincfg.MainNetParams
}

const (
	SegwitP2SHType   = "segwitP2SH"
	SegwitBech32Type = "segwitBech32"
	TaprootType      = "taproot"
)

// NewSingleKeyWallet returns a legacy, segwit or taproot wallet for a WIF
// secret.
func NewSingleKeyWallet(walletType, label, secret string) (Wallet, error) {
	base, err := NewLegacyWallet(label, secret)
	if err != nil {
		return nil, err
	}
	base.Type = walletType

	switch walletType {
	case LegacyType:
		return base, nil
	case SegwitP2SHType:
		return &SegwitP2SHWallet{*base}, nil
	case SegwitBech32Type:
		return &SegwitBech32Wallet{*base}, nil
	case TaprootType:
		return &TaprootWallet{*base}, nil
	default:
		return nil, ErrUnknownWalletType
	}
}
