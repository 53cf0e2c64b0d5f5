package client

import (
	"time"

	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// Backoff computes reconnect delays: exponential doubling from a base,
// capped, over a bounded number of attempts.
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultBackoff returns the configured reconnect policy.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        config.ReconnectBase,
		Cap:         config.ReconnectCap,
		MaxAttempts: config.ReconnectMaxAttempts,
	}
}

// Delay returns the wait before the given attempt (zero-based). Attempts
// at or beyond MaxAttempts return a negative duration, signaling the
// caller to stop retrying and surface a disconnected state.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt >= b.MaxAttempts {
		return -1
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := b.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= b.Cap {
			return b.Cap
		}
	}
	if delay > b.Cap {
		return b.Cap
	}
	return delay
}
