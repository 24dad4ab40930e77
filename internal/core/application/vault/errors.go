package vault

import "errors"

var (
	// ErrStorageUnreadable is returned when neither the secret store nor the
	// cache snapshot can be read. The load can be retried later.
	ErrStorageUnreadable = errors.New("vault storage is unreadable")
	// ErrPasswordRequired ...
	ErrPasswordRequired = errors.New("vault storage is encrypted, password is required")
	// ErrInvalidPassword is returned when no bucket decrypts with the given
	// password.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrVaultNotFound is returned when the storage holds no vault. The
	// service is left ready with an empty vault, as for a fresh install.
	ErrVaultNotFound = errors.New("vault not found")
	// ErrSaveFailed is returned when a save exhausted all its attempts.
	ErrSaveFailed = errors.New("vault could not be saved")
	// ErrVaultNotLoaded ...
	ErrVaultNotLoaded = errors.New("vault is not loaded")
	// ErrNullPassword ...
	ErrNullPassword = errors.New("password must not be null")
	// ErrStorageNotEncrypted ...
	ErrStorageNotEncrypted = errors.New("vault storage is not encrypted")
	// ErrStorageAlreadyEncrypted ...
	ErrStorageAlreadyEncrypted = errors.New("vault storage is already encrypted")
	// ErrPasswordInUse is returned when a password already unlocks one of the
	// buckets.
	ErrPasswordInUse = errors.New("password is already in use")
)
