package engine

import (
	"math/rand/v2"
	"time"

	"capstan/internal/config"
	v1alpha1 "capstan/pkg/apis/capstan/v1alpha1"
)

// Backoff fallbacks when neither the config file nor the Application
// policy sets a value.
const (
	defaultBaseBackoff = 5 * time.Second
	defaultMaxBackoff  = 5 * time.Minute
	defaultFactor      = 2
)

// retryParams resolves the effective backoff shape for an Application:
// the Application's own retry policy wins over the config file, which
// wins over the built-in defaults.
func retryParams(app *v1alpha1.Application, cfg config.RetryConfig) (base, max time.Duration, factor, limit int) {
	base = cfg.BaseBackoff.Std()
	max = cfg.MaxBackoff.Std()
	factor = defaultFactor
	limit = app.RetryLimit(cfg.Limit)

	if app.Spec.SyncPolicy != nil && app.Spec.SyncPolicy.Retry != nil {
		retry := app.Spec.SyncPolicy.Retry
		if b := retry.Backoff; b != nil {
			if b.Duration != nil && b.Duration.Duration > 0 {
				base = b.Duration.Duration
			}
			if b.Factor > 0 {
				factor = b.Factor
			}
			if b.MaxDuration != nil && b.MaxDuration.Duration > 0 {
				max = b.MaxDuration.Duration
			}
		}
	}

	if base <= 0 {
		base = defaultBaseBackoff
	}
	if max <= 0 {
		max = defaultMaxBackoff
	}
	if max < base {
		max = base
	}
	return base, max, factor, limit
}

// exponentialDelay computes the deterministic upper bound for the given
// attempt: base * factor^(attempt-1), capped at max.
func exponentialDelay(attempt int, base, max time.Duration, factor int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= time.Duration(factor)
		// The multiplication overflows long before any realistic attempt
		// count; treat wraparound as having hit the cap.
		if delay >= max || delay <= 0 {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// backoffFor picks the actual delay before the next attempt: a uniformly
// random point within the exponential bound (full jitter), so a burst of
// Applications failing together does not retry together.
func backoffFor(attempt int, base, max time.Duration, factor int) time.Duration {
	bound := exponentialDelay(attempt, base, max, factor)
	return time.Duration(rand.Int64N(int64(bound) + 1))
}
