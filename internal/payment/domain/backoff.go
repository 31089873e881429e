package domain

import "time"

// BackoffPolicy decides how long to wait before retrying a failed charge.
// attempt is the failure count after the attempt that just failed, so the
// first failure asks for attempt 1.
type BackoffPolicy interface {
	NextRetryDelay(attempt int) time.Duration
}

// FixedBackoff is the default schedule: 1h, 4h, 12h, then 24h between
// attempts.
type FixedBackoff struct{}

func (FixedBackoff) NextRetryDelay(attempt int) time.Duration {
	switch attempt {
	case 1:
		return time.Hour
	case 2:
		return 4 * time.Hour
	case 3:
		return 12 * time.Hour
	default:
		return 24 * time.Hour
	}
}
