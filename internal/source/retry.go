package source

import (
	"context"
	"time"
)

// RetryPolicy bounds re-fetch attempts on transient source errors.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first (default 3)
	Backoff     time.Duration // wait between attempts (default 500ms)
}

// DefaultRetryPolicy returns the fetch retry defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 500 * time.Millisecond}
}

// retrySource wraps a Source and re-fetches on error. Context
// cancellation stops retries immediately and returns the last error.
type retrySource struct {
	inner  Source
	policy RetryPolicy
}

// WithRetry wraps src so FetchTransactions retries transient failures
// per the policy. Zero-valued policy fields fall back to defaults.
func WithRetry(src Source, policy RetryPolicy) Source {
	def := DefaultRetryPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.Backoff <= 0 {
		policy.Backoff = def.Backoff
	}
	return &retrySource{inner: src, policy: policy}
}

func (r *retrySource) FetchTransactions(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		txs, err := r.inner.FetchTransactions(ctx, from, to)
		if err == nil {
			return txs, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
		if attempt < r.policy.MaxAttempts {
			select {
			case <-ctx.Done():
				return nil, lastErr
			case <-time.After(r.policy.Backoff):
			}
		}
	}
	return nil, lastErr
}

func (r *retrySource) Close() error { return r.inner.Close() }
