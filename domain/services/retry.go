package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtside/domain/entities"

	"github.com/cenkalti/backoff/v4"
)

const (
	conflictInitialInterval  = 5 * time.Millisecond
	conflictMaxInterval      = 200 * time.Millisecond
	transientInitialInterval = 50 * time.Millisecond
	transientMaxInterval     = 2 * time.Second
)

func newBackOff(ctx context.Context, initial, maxInterval time.Duration, retries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// retryOnConflict reruns op while it reports ErrVersionConflict, up to maxAttempts
// runs in total. Any other error stops immediately.
func retryOnConflict(ctx context.Context, maxAttempts int, onConflict func(), op func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, entities.ErrVersionConflict) {
			if onConflict != nil {
				onConflict()
			}
			return err
		}
		return backoff.Permanent(err)
	}, newBackOff(ctx, conflictInitialInterval, conflictMaxInterval, maxAttempts-1))

	if errors.Is(err, entities.ErrVersionConflict) {
		return fmt.Errorf("%w after %d attempts", entities.ErrRetryBudgetExhausted, attempts)
	}
	return err
}

// retryTransient reruns op on errors that are not business-rule failures
func retryTransient[T any](ctx context.Context, maxRetries int, op func() (T, error)) (T, error) {
	return backoff.RetryWithData(func() (T, error) {
		res, err := op()
		if err != nil && isPermanent(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, newBackOff(ctx, transientInitialInterval, transientMaxInterval, maxRetries))
}

// isPermanent reports errors that a retry cannot fix
func isPermanent(err error) bool {
	for _, target := range []error{
		entities.ErrInsufficientFunds,
		entities.ErrInvalidAmount,
		entities.ErrUserNotFound,
		entities.ErrUserInactive,
		entities.ErrSessionNotFound,
		entities.ErrVersionConflict,
		entities.ErrArchiveExists,
		entities.ErrInvalidTransition,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// detach returns a context that survives cancellation of parent, for work that must
// finish once a prior write has committed
func detach(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}
