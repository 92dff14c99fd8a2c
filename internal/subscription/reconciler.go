package subscription

import (
	"context"
	"errors"
	"fmt"

	"alertrelay/internal/logger"
	"alertrelay/internal/storage"
	"alertrelay/pkg/models"
)

// Topics used by the first-run handshake.
const (
	TopicAll      = "*"
	TopicSentinel = "1"
)

// Backend changes the device's topic subscriptions.
type Backend interface {
	Subscribe(ctx context.Context, cred models.Credential, topics []string) error
	Unsubscribe(ctx context.Context, cred models.Credential, topics []string) error
}

// Reconciler drives the backend's subscriptions toward the configured regions.
type Reconciler struct {
	store          storage.Store
	backend        Backend
	unsubscribeAll bool
}

// NewReconciler creates a reconciler. unsubscribeAll enables the wildcard
// unsubscribe step of the first-run handshake.
func NewReconciler(st storage.Store, backend Backend, unsubscribeAll bool) *Reconciler {
	return &Reconciler{store: st, backend: backend, unsubscribeAll: unsubscribeAll}
}

// Reconcile applies the difference between the persisted and desired topic
// sets and returns the set that is persisted afterwards. Backend failures are
// returned but leave the previous set in place so the delta is retried on the
// next run.
func (r *Reconciler) Reconcile(ctx context.Context, desired models.TopicSet, cred models.Credential) (models.TopicSet, error) {
	var persisted models.TopicSet
	err := r.store.Load(ctx, storage.KeySubscriptions, &persisted)
	firstRun := errors.Is(err, storage.ErrNotFound)
	if err != nil && !firstRun {
		return models.TopicSet{}, fmt.Errorf("load subscriptions: %w", err)
	}
	persisted = models.NewTopicSet(persisted.Topics...)

	if firstRun {
		logger.Infof("No stored subscriptions, running first-run handshake")
		r.bootstrap(ctx, cred)
	}

	toRemove := persisted.Minus(desired)
	toAdd := desired.Minus(persisted)

	var errs []error
	if len(toRemove) > 0 {
		if err := r.backend.Unsubscribe(ctx, cred, toRemove); err != nil {
			logger.Errorf("Unsubscribe %v failed: %v", toRemove, err)
			errs = append(errs, fmt.Errorf("unsubscribe %v: %w", toRemove, err))
		} else {
			logger.Infof("Unsubscribed removed topics %v", toRemove)
		}
	}
	if len(toAdd) > 0 {
		if err := r.backend.Subscribe(ctx, cred, toAdd); err != nil {
			logger.Errorf("Subscribe %v failed: %v", toAdd, err)
			errs = append(errs, fmt.Errorf("subscribe %v: %w", toAdd, err))
		} else {
			logger.Infof("Subscribed new topics %v", toAdd)
		}
	}
	if len(errs) > 0 {
		return persisted, errors.Join(errs...)
	}

	if !firstRun && len(toAdd) == 0 && len(toRemove) == 0 {
		logger.Debugf("Subscriptions up to date: %v", desired.Topics)
		return persisted, nil
	}
	if err := r.store.Save(ctx, storage.KeySubscriptions, desired); err != nil {
		return persisted, fmt.Errorf("save subscriptions: %w", err)
	}
	return desired, nil
}

// bootstrap clears stale backend-side topics for a device seen for the
// first time. Failures are logged only.
func (r *Reconciler) bootstrap(ctx context.Context, cred models.Credential) {
	if r.unsubscribeAll {
		if err := r.backend.Unsubscribe(ctx, cred, []string{TopicAll}); err != nil {
			logger.Warnf("First-run unsubscribe %q failed: %v", TopicAll, err)
		}
	}
	if err := r.backend.Subscribe(ctx, cred, []string{TopicSentinel}); err != nil {
		logger.Warnf("First-run subscribe %q failed: %v", TopicSentinel, err)
	}
	if err := r.backend.Unsubscribe(ctx, cred, []string{TopicSentinel}); err != nil {
		logger.Warnf("First-run unsubscribe %q failed: %v", TopicSentinel, err)
	}
}
