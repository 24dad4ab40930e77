package vault

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/vaultd/internal/core/domain"
	"github.com/tdex-network/vaultd/internal/core/ports"
)

// StorageIsEncrypted returns whether the persisted vault is encrypted.
func (s *Service) StorageIsEncrypted(ctx context.Context) (bool, error) {
	p, err := s.readPrimary(ctx)
	if err != nil {
		return false, err
	}
	return p.encrypted, nil
}

// IsPasswordInUse returns whether password decrypts any of the stored
// buckets.
func (s *Service) IsPasswordInUse(ctx context.Context, password string) (bool, error) {
	if err := s.storageLock.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer s.storageLock.Release(1)

	return s.isPasswordInUse(ctx, password)
}

func (s *Service) isPasswordInUse(ctx context.Context, password string) (bool, error) {
	if password == "" {
		return false, ErrNullPassword
	}
	p, err := s.readPrimary(ctx)
	if err != nil {
		return false, err
	}
	if !p.encrypted {
		return false, nil
	}
	buckets, err := loadBuckets(p.data)
	if err != nil {
		return false, err
	}
	if _, _, err := s.buckets.match(buckets, password); err != nil {
		return false, nil
	}
	return true, nil
}

// EncryptStorage encrypts the loaded plaintext vault with password, making it
// the first bucket.
func (s *Service) EncryptStorage(ctx context.Context, password string) error {
	if password == "" {
		return ErrNullPassword
	}
	if err := s.storageLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.storageLock.Release(1)

	s.lock.Lock()
	if s.state != StateReady {
		s.lock.Unlock()
		return ErrVaultNotLoaded
	}
	if s.password != "" {
		s.lock.Unlock()
		return ErrStorageAlreadyEncrypted
	}
	s.password = password
	s.buckets.forget()
	s.lock.Unlock()

	if err := s.persist(ctx); err != nil {
		s.setPassword("")
		return err
	}
	log.Info("vault storage encrypted")
	return nil
}

// DecryptStorage stores the loaded vault in plaintext, dropping every bucket,
// and loads it back. The encrypted flag is removed together with the
// plaintext write.
func (s *Service) DecryptStorage(ctx context.Context, password string) error {
	if err := s.storageLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.storageLock.Release(1)

	s.lock.Lock()
	if s.state != StateReady {
		s.lock.Unlock()
		return ErrVaultNotLoaded
	}
	if s.password == "" {
		s.lock.Unlock()
		return ErrStorageNotEncrypted
	}
	if s.password != password {
		s.lock.Unlock()
		return ErrInvalidPassword
	}
	s.password = ""
	s.buckets.forget()
	s.lock.Unlock()

	if err := s.persist(ctx); err != nil {
		s.setPassword(password)
		return err
	}

	s.lock.Lock()
	s.vault = nil
	s.lock.Unlock()

	log.Info("vault storage decrypted")
	return s.load(ctx, "")
}

// CreateFakeStorage adds a decoy bucket holding an empty vault under
// password, and switches the service to it. The other buckets are left
// untouched.
func (s *Service) CreateFakeStorage(ctx context.Context, password string) error {
	if err := s.storageLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.storageLock.Release(1)

	encrypted, err := s.StorageIsEncrypted(ctx)
	if err != nil {
		return err
	}
	if !encrypted {
		return ErrStorageNotEncrypted
	}
	inUse, err := s.isPasswordInUse(ctx, password)
	if err != nil {
		return err
	}
	if inUse {
		return ErrPasswordInUse
	}

	s.lock.Lock()
	prevVault, prevPassword, prevState := s.vault, s.password, s.state
	s.vault = domain.NewVault()
	s.password = password
	s.state = StateReady
	s.buckets.forget()
	s.lock.Unlock()

	if err := s.persist(ctx); err != nil {
		s.lock.Lock()
		s.vault, s.password, s.state = prevVault, prevPassword, prevState
		s.buckets.forget()
		s.lock.Unlock()
		return err
	}
	return nil
}

// ChangePassword re-encrypts the bucket of oldPassword with newPassword.
func (s *Service) ChangePassword(
	ctx context.Context, oldPassword, newPassword string,
) error {
	if newPassword == "" {
		return ErrNullPassword
	}
	if err := s.storageLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.storageLock.Release(1)

	s.lock.RLock()
	state, password := s.state, s.password
	s.lock.RUnlock()

	if state != StateReady {
		return ErrVaultNotLoaded
	}
	if password == "" {
		return ErrStorageNotEncrypted
	}
	if password != oldPassword {
		return ErrInvalidPassword
	}
	inUse, err := s.isPasswordInUse(ctx, newPassword)
	if err != nil {
		return err
	}
	if inUse {
		return ErrPasswordInUse
	}

	// Pin the slot of the old password, the new one matches no bucket yet.
	data, _, err := s.readBuckets(ctx)
	if err != nil {
		return err
	}
	buckets, err := loadBuckets(data)
	if err != nil {
		return err
	}
	if _, _, err := s.buckets.findAndDecrypt(buckets, oldPassword); err != nil {
		return err
	}

	s.setPassword(newPassword)
	if err := s.persist(ctx); err != nil {
		s.setPassword(oldPassword)
		s.buckets.forget()
		return err
	}
	return nil
}

// Lock drops the in-memory vault and password, waiting for any running load
// or save to complete.
func (s *Service) Lock() {
	// Acquire fails only for a cancelled context.
	_ = s.storageLock.Acquire(context.Background(), 1)
	defer s.storageLock.Release(1)

	s.lock.Lock()
	defer s.lock.Unlock()

	s.vault = nil
	s.password = ""
	s.state = StateIdle
	s.buckets.forget()
}

// Unlock loads the vault, prompting for the password as long as the storage
// is encrypted and the given one is wrong.
func (s *Service) Unlock(ctx context.Context, prompt ports.PasswordPrompt) error {
	encrypted, err := s.StorageIsEncrypted(ctx)
	if err != nil {
		return err
	}
	if !encrypted {
		return s.LoadFromDisk(ctx, "")
	}

	for attempt := 1; ; attempt++ {
		password, err := prompt.PromptPassword(ctx, attempt)
		if err != nil {
			return err
		}
		err = s.LoadFromDisk(ctx, password)
		if errors.Is(err, ErrInvalidPassword) || errors.Is(err, ErrPasswordRequired) {
			log.WithField("attempt", attempt).Debug("wrong password")
			continue
		}
		return err
	}
}

// SetLegacyLightningEndpoint stores the global Lightning hub endpoint used by
// custodial wallets that don't have one of their own. An empty uri removes
// it.
func (s *Service) SetLegacyLightningEndpoint(ctx context.Context, uri string) error {
	var err error
	if uri == "" {
		err = s.store.Remove(ctx, legacyLightningKey)
	} else {
		err = s.store.Set(ctx, legacyLightningKey, uri)
	}
	if err != nil {
		return err
	}

	if err := s.cache.SetSnapshot(
		ctx, map[string]string{legacyLightningKey: uri},
	); err != nil {
		log.WithError(err).Warn("failed to mirror lightning endpoint into cache snapshot")
		s.handleCacheErr(ctx, err)
	}
	return nil
}

func (s *Service) setPassword(password string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.password = password
}
