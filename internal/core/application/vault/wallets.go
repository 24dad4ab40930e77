package vault

import (
	"github.com/shopspring/decimal"
	"github.com/tdex-network/vaultd/internal/core/domain"
)

// AddWallet adds the wallet to the loaded vault. Changes are persisted only
// by SaveToDisk.
func (s *Service) AddWallet(wallet domain.Wallet) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.vault == nil {
		return ErrVaultNotLoaded
	}
	return s.vault.AddWallet(wallet)
}

func (s *Service) DeleteWallet(id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.vault == nil {
		return ErrVaultNotLoaded
	}
	if !s.vault.DeleteWallet(id) {
		return domain.ErrWalletNotFound
	}
	return nil
}

// Wallets returns the wallets of the loaded vault, in order.
func (s *Service) Wallets() ([]domain.Wallet, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.vault == nil {
		return nil, ErrVaultNotLoaded
	}
	return append([]domain.Wallet{}, s.vault.Wallets...), nil
}

func (s *Service) Wallet(id string) (domain.Wallet, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.vault == nil {
		return nil, ErrVaultNotLoaded
	}
	wallet, ok := s.vault.GetWallet(id)
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return wallet, nil
}

func (s *Service) SetTxMetadata(txid string, metadata domain.TxMetadata) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.vault == nil {
		return ErrVaultNotLoaded
	}
	s.vault.TxMetadata[txid] = metadata
	return nil
}

func (s *Service) TxMetadata(txid string) (domain.TxMetadata, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.vault == nil {
		return domain.TxMetadata{}, false
	}
	md, ok := s.vault.TxMetadata[txid]
	return md, ok
}

// Balance returns the total balance of the loaded vault in BTC.
func (s *Service) Balance() (decimal.Decimal, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.vault == nil {
		return decimal.Zero, ErrVaultNotLoaded
	}
	return s.vault.BalanceBTC(), nil
}

// Transactions returns the transactions of all wallets, most recent first.
func (s *Service) Transactions(limit int) ([]domain.WalletTransaction, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.vault == nil {
		return nil, ErrVaultNotLoaded
	}
	return s.vault.Transactions(limit), nil
}
