package storage

import "time"

// RetryPolicy shapes the backoff applied when the datastore reports a
// transient lock. Attempt 0 is the initial try; Delay(i) is slept before
// retry i+1.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy matches the behavior tuned for a single-writer
// embedded database under UI read load.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   50 * time.Millisecond,
		Multiplier:  2.0,
	}
}

// Delay returns the backoff before the given retry, growing geometrically
// from BaseDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}
