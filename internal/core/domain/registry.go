package domain

import (
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// WalletFactory returns a zero value of a wallet variant, ready to be
// decoded into.
type WalletFactory func() Wallet

// FallbackHandler is notified when a serialized wallet has an absent or
// unknown type tag and is hydrated as legacy.
type FallbackHandler func(walletType string)

// Registry maps wallet type tags to the variant that (de)serializes them.
// New variants are added with Register without touching the dispatch.
type Registry struct {
	lock       sync.RWMutex
	factories  map[string]WalletFactory
	onFallback FallbackHandler
}

// NewRegistry returns a registry that knows only the legacy variant.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]WalletFactory)}
	r.Register(LegacyType, func() Wallet { return &BaseWallet{} })
	return r
}

// NewDefaultRegistry returns a registry with every known variant.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(SegwitP2SHType, func() Wallet { return &SegwitP2SHWallet{} })
	r.Register(SegwitBech32Type, func() Wallet { return &SegwitBech32Wallet{} })
	r.Register(TaprootType, func() Wallet { return &TaprootWallet{} })
	for walletType := range hdProfiles {
		r.Register(walletType, func() Wallet { return &HDWallet{} })
	}
	r.Register(HDMultisigType, func() Wallet { return &MultisigHDWallet{} })
	r.Register(WatchOnlyType, func() Wallet { return &WatchOnlyWallet{} })
	r.Register(LightningCustodianType, func() Wallet {
		return &LightningCustodianWallet{}
	})
	return r
}

// Register binds a type tag to a wallet factory, replacing any previous one.
func (r *Registry) Register(walletType string, factory WalletFactory) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.factories[walletType] = factory
}

// OnFallback sets the handler notified on legacy fallbacks.
func (r *Registry) OnFallback(handler FallbackHandler) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.onFallback = handler
}

// Resolve returns the factory for the given type tag. The legacy factory is
// returned for unknown tags, in which case fellBack is true.
func (r *Registry) Resolve(walletType string) (factory WalletFactory, fellBack bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if f, ok := r.factories[walletType]; ok && walletType != "" {
		return f, false
	}
	return r.factories[LegacyType], true
}

// FromSerialized hydrates a wallet from its serialized form and runs the
// variant post hydration hook. An error from the hook means the wallet must
// be dropped.
func (r *Registry) FromSerialized(raw []byte, opts HydrateOpts) (Wallet, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedWallet, err)
	}

	factory, fellBack := r.Resolve(header.Type)
	if fellBack {
		log.WithField("type", header.Type).Warn(
			"unknown wallet type, hydrating as legacy",
		)
		r.lock.RLock()
		onFallback := r.onFallback
		r.lock.RUnlock()
		if onFallback != nil {
			onFallback(header.Type)
		}
	}

	wallet := factory()
	if err := json.Unmarshal(raw, wallet); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedWallet, err)
	}
	if err := wallet.PostHydrate(opts); err != nil {
		return nil, err
	}
	return wallet, nil
}

// ToSerializable returns the stored representation of a wallet, without
// transient fields and transactions.
func (r *Registry) ToSerializable(wallet Wallet) ([]byte, error) {
	if wallet == nil {
		return nil, ErrNullWallet
	}
	return json.Marshal(wallet.SerializableCopy())
}
