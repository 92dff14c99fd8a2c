package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no record exists under the key.
var ErrNotFound = errors.New("record not found")

// Record keys persisted by the relay.
const (
	KeyIdentity      = "identity"
	KeyCredential    = "credential"
	KeySubscriptions = "subscriptions"
)

// Keys lists every record key the relay owns.
var Keys = []string{KeyIdentity, KeyCredential, KeySubscriptions}

// Store persists small named JSON records.
type Store interface {
	Load(ctx context.Context, key string, v interface{}) error
	Save(ctx context.Context, key string, v interface{}) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Reset deletes every relay record from st.
func Reset(ctx context.Context, st Store) error {
	var errs []error
	for _, key := range Keys {
		if err := st.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
