// Package retry turns config.Config's retry knobs into a
// cenkalti/backoff/v4 policy: base*2^attempt capped at 30s, per spec §6.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/erauner12/syncengine/internal/config"
)

// MaxInterval is the hard ceiling on backoff growth (spec §6).
const MaxInterval = 30 * time.Second

// Policy builds a backoff.BackOff for one queue item's retry attempts,
// bounded by cfg.MaxRetries via backoff.WithMaxRetries.
func Policy(cfg config.Config) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.RetryDelayBase
	eb.Multiplier = 2
	eb.MaxInterval = MaxInterval
	eb.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	return backoff.WithMaxRetries(eb, uint64(cfg.MaxRetries))
}

// Delay returns the delay before the (1-indexed) attempt-th retry, without
// running an actual backoff.BackOff instance. Used by the queue/push
// pipeline to report "when will this be retried" without sleeping.
func Delay(cfg config.Config, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := cfg.RetryDelayBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= MaxInterval {
			return MaxInterval
		}
	}
	if d > MaxInterval {
		d = MaxInterval
	}
	return d
}
