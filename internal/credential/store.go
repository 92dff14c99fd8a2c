package credential

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"alertrelay/internal/logger"
	"alertrelay/internal/storage"
	"alertrelay/pkg/models"
)

// ErrRegistration marks failures that leave the relay without a usable credential.
var ErrRegistration = errors.New("device registration failed")

// DefaultSuffix is appended to the random part of a new device id.
const DefaultSuffix = "-Xiaomi-2107113SI"

// Registrar issues and activates device credentials.
type Registrar interface {
	Register(ctx context.Context, id models.DeviceIdentity) (models.Credential, error)
	AuthenticateDevice(ctx context.Context, id models.DeviceIdentity, cred models.Credential) error
}

// Store owns the device identity and its credential.
type Store struct {
	store     storage.Store
	registrar Registrar
	suffix    string
	newID     func() string
}

// New creates a credential store.
func New(st storage.Store, reg Registrar, suffix string) *Store {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return &Store{
		store:     st,
		registrar: reg,
		suffix:    suffix,
		newID:     randomHex16,
	}
}

func randomHex16() string {
	u := uuid.New()
	return hex.EncodeToString(u[:8])
}

// EnsureIdentity returns the persisted identity, generating one on first use.
func (s *Store) EnsureIdentity(ctx context.Context) (models.DeviceIdentity, error) {
	var id models.DeviceIdentity
	err := s.store.Load(ctx, storage.KeyIdentity, &id)
	if err == nil && id.AndroidID != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return models.DeviceIdentity{}, fmt.Errorf("load identity: %w", err)
	}

	id = models.DeviceIdentity{AndroidID: s.newID() + s.suffix}
	if err := s.store.Save(ctx, storage.KeyIdentity, id); err != nil {
		return models.DeviceIdentity{}, fmt.Errorf("save identity: %w", err)
	}
	logger.Infof("Generated device id %s", id.AndroidID)
	return id, nil
}

// EnsureCredential returns the persisted credential or registers the device.
// A new credential is persisted only after both registration and device
// authentication succeed.
func (s *Store) EnsureCredential(ctx context.Context, id models.DeviceIdentity) (models.Credential, error) {
	var cred models.Credential
	err := s.store.Load(ctx, storage.KeyCredential, &cred)
	if err == nil && cred.Valid() {
		logger.Infof("Using cached credential token=%s", cred.Token)
		return cred, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return models.Credential{}, fmt.Errorf("load credential: %w", err)
	}

	logger.Infof("No credential stored, registering device %s", id.AndroidID)
	cred, err = s.registrar.Register(ctx, id)
	if err != nil {
		return models.Credential{}, fmt.Errorf("%w: register: %v", ErrRegistration, err)
	}
	if err := s.registrar.AuthenticateDevice(ctx, id, cred); err != nil {
		return models.Credential{}, fmt.Errorf("%w: device auth: %v", ErrRegistration, err)
	}
	if err := s.store.Save(ctx, storage.KeyCredential, cred); err != nil {
		return models.Credential{}, fmt.Errorf("save credential: %w", err)
	}
	logger.Infof("Registered device, token=%s", cred.Token)
	return cred, nil
}

// Reset forgets identity, credential and subscriptions.
func (s *Store) Reset(ctx context.Context) error {
	return storage.Reset(ctx, s.store)
}
