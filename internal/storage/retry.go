package storage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrying retries failed writes on the wrapped store a bounded number of
// times. Reads are passed through untouched.
type Retrying struct {
	KV
	retries  uint64
	interval time.Duration
}

// WithRetry wraps kv. retries == 0 returns kv unchanged.
func WithRetry(kv KV, retries int, interval time.Duration) KV {
	if retries <= 0 {
		return kv
	}
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Retrying{KV: kv, retries: uint64(retries), interval: interval}
}

func (r *Retrying) policy(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(r.interval), r.retries), ctx)
}

func (r *Retrying) Put(ctx context.Context, key string, value []byte) error {
	return backoff.Retry(func() error {
		return r.KV.Put(ctx, key, value)
	}, r.policy(ctx))
}

func (r *Retrying) Delete(ctx context.Context, key string) error {
	return backoff.Retry(func() error {
		return r.KV.Delete(ctx, key)
	}, r.policy(ctx))
}
