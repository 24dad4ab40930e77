package domain

import "errors"

var (
	// ErrWalletAlreadyExists is returned when adding a wallet whose ID is
	// already held by the vault.
	ErrWalletAlreadyExists = errors.New("wallet already exists")
	// ErrWalletNotFound ...
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrNullWallet ...
	ErrNullWallet = errors.New("wallet must not be null")
	// ErrNullSecret ...
	ErrNullSecret = errors.New("wallet secret must not be null")
	// ErrMalformedWallet is returned when a serialized wallet is not a JSON
	// object.
	ErrMalformedWallet = errors.New("serialized wallet is malformed")
	// ErrInvalidWatchOnlyKey is returned by the watch-only post hydration hook
	// when the extended public key can't be parsed. The wallet is dropped.
	ErrInvalidWatchOnlyKey = errors.New("watch-only extended public key is not valid")
	// ErrUnknownWalletType ...
	ErrUnknownWalletType = errors.New("unknown wallet type")

	// ErrNullDerivationPath ...
	ErrNullDerivationPath = errors.New("derivation path must not be null")
	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = errors.New(
		"path must not start or end with a '/' and " +
			"can optionally start with 'm/' for absolute paths",
	)
)
