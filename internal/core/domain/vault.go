package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Vault is the in-memory collection of wallets and transaction metadata.
// Wallet IDs are unique.
type Vault struct {
	Wallets    []Wallet
	TxMetadata map[string]TxMetadata
}

// NewVault returns an empty Vault.
func NewVault() *Vault {
	return &Vault{
		Wallets:    make([]Wallet, 0),
		TxMetadata: make(map[string]TxMetadata),
	}
}

// IsZero ...
func (v *Vault) IsZero() bool {
	return len(v.Wallets) <= 0 && len(v.TxMetadata) <= 0
}

// AddWallet appends the wallet unless another one with the same ID is
// already there.
func (v *Vault) AddWallet(w Wallet) error {
	if w == nil {
		return ErrNullWallet
	}
	if _, ok := v.GetWallet(w.ID()); ok {
		return ErrWalletAlreadyExists
	}
	v.Wallets = append(v.Wallets, w)
	return nil
}

// GetWallet ...
func (v *Vault) GetWallet(id string) (Wallet, bool) {
	for _, w := range v.Wallets {
		if w.ID() == id {
			return w, true
		}
	}
	return nil, false
}

// DeleteWallet removes the wallet with the given ID, returning whether it
// was found.
func (v *Vault) DeleteWallet(id string) bool {
	for i, w := range v.Wallets {
		if w.ID() == id {
			v.Wallets = append(v.Wallets[:i], v.Wallets[i+1:]...)
			return true
		}
	}
	return false
}

// Balance returns the sum of all wallet balances in satoshis.
func (v *Vault) Balance() int64 {
	var balance int64
	for _, w := range v.Wallets {
		balance += w.Base().Balance
	}
	return balance
}

// BalanceBTC ...
func (v *Vault) BalanceBTC() decimal.Decimal {
	return decimal.New(v.Balance(), -8)
}

// WalletTransaction is a transaction tagged with the wallet it belongs to.
type WalletTransaction struct {
	Transaction
	WalletID string
}

// Transactions returns the transactions of all wallets, most recent first,
// with the memo taken from the transaction metadata when present. A limit
// <= 0 means no limit.
func (v *Vault) Transactions(limit int) []WalletTransaction {
	txs := make([]WalletTransaction, 0)
	for _, w := range v.Wallets {
		for _, tx := range w.Transactions() {
			if md, ok := v.TxMetadata[tx.Hash]; ok && md.Memo != "" {
				tx.Memo = md.Memo
			}
			txs = append(txs, WalletTransaction{tx, w.ID()})
		}
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp > txs[j].Timestamp
	})
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs
}
