package mqtt

import (
	"strings"
	"time"

	"github.com/cenkalti/backoff"
)

// NewBackOff builds the reconnect delay policy. policy is "constant"
// (default) or "exponential"; the exponential policy starts at delay and is
// capped at maxDelay and never gives up.
func NewBackOff(policy string, delay, maxDelay time.Duration) backoff.BackOff {
	if delay <= 0 {
		delay = 5 * time.Second
	}
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "exponential":
		if maxDelay < delay {
			maxDelay = 12 * delay
		}
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = delay
		b.MaxInterval = maxDelay
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	default:
		return backoff.NewConstantBackOff(delay)
	}
}
