// Package rate throttles credential and OTP endpoints. Login keys are
// client IPs; OTP issuance keys are email addresses.
package rate

import (
	"context"
	"time"
)

type Limiter interface {
	// Allow reports whether the call under key may proceed and, when
	// denied, how long until the window resets.
	Allow(ctx context.Context, key string, now time.Time) (bool, time.Duration, error)
}
