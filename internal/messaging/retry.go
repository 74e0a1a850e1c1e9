package messaging

import (
	"time"

	"benefitclaims/internal/types"
)

// RetryPolicy controls how far processAfter is pushed out after each
// delivery. MaxAttempts of zero means messages are retried until they
// succeed; otherwise a message that fails its MaxAttempts-th delivery is
// dead-lettered.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy matches the configuration defaults.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:   0,
	BaseDelay:     30 * time.Second,
	MaxDelay:      6 * time.Hour,
	BackoffFactor: 2.0,
}

// Delay computes the backoff after attempt prior failures:
// min(BaseDelay * BackoffFactor^attempt, MaxDelay).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= p.BackoffFactor
		if delay > float64(p.MaxDelay) {
			break
		}
	}

	d := time.Duration(delay)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d < 0 {
		// Guard against overflow
		d = p.MaxDelay
	}
	return d
}

// NextProcessAfter is the earliest time msg may be retried if the delivery
// numbered msg.DeliveryCount fails. It never moves processAfter backwards.
func (p RetryPolicy) NextProcessAfter(msg *types.Message, now time.Time) time.Time {
	next := now.Add(p.Delay(msg.DeliveryCount - 1))
	if next.Before(msg.ProcessAfter) {
		return msg.ProcessAfter
	}
	return next
}

// Exhausted reports whether a message that has just failed its
// deliveryCount-th delivery should stop being retried.
func (p RetryPolicy) Exhausted(deliveryCount int) bool {
	return p.MaxAttempts > 0 && deliveryCount >= p.MaxAttempts
}
