package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kilianp07/carrierchain/core/store"
)

// retryInterval is the pause before the single retry of a transient failure.
var retryInterval = 100 * time.Millisecond

// withRetry runs op and retries it once when the error looks transient.
// Not-found, precondition and context errors are returned immediately.
func withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInterval
	b.MaxInterval = retryInterval * 4
	policy := backoff.WithContext(backoff.WithMaxRetries(b, 1), ctx)
	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if permanent(err) {
			return backoff.Permanent(err)
		}
		storageRetries.Inc()
		return err
	}, policy)
}

func permanent(err error) bool {
	return errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrPreconditionFailed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
