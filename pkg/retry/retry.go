// Package retry implements the exponential-backoff policy used for the
// "Transient RPC" error class: network/timeout failures talking to chain
// nodes (pkg/chain) retry locally and are never surfaced to API callers.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures a bounded exponential backoff.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultPolicy is suitable for chain RPC calls: start at 500ms, cap at
// 30s between attempts, give up after 5m and return the last error.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		MaxElapsedTime:  5 * time.Minute,
	}
}

func (p Policy) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsedTime
	return backoff.WithContext(b, ctx)
}

// Do retries fn under the policy until it succeeds, the context is
// cancelled, or the elapsed-time ceiling is reached. The last error is
// returned in the latter case.
func Do(ctx context.Context, p Policy, fn func() error) error {
	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return fn()
	}, p.newBackOff(ctx))
}
