package llm

import "time"

// RetryConfig bounds how long a single endpoint is retried before the
// client moves on to the next entry in the capability's fallback chain.
type RetryConfig struct {
	// MaxAttempts is the number of tries per endpoint, including the first.
	MaxAttempts int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// BackoffMultiplier scales the delay after each failed attempt.
	BackoffMultiplier float64

	// MaxBackoff caps the delay regardless of attempt count.
	MaxBackoff time.Duration
}

// DefaultRetryConfig keeps backoff short. Generation runs while a person
// is waiting to compare candidates, so a struggling endpoint is better
// abandoned to its fallback than nursed through long delays.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       1 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        15 * time.Second,
	}
}
