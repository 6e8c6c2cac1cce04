package scraper

import (
	"log/slog"
	"time"
)

// BackoffPolicy bounds a retried operation.
type BackoffPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// RateScheduler owns request pacing for the whole run: minimum
// inter-request spacing plus retry backoff. The last-request timestamp
// lives on the instance, so pacing is shared by passing the scheduler,
// never through package state.
type RateScheduler struct {
	lastRequest time.Time
	retries     int
	metrics     *Metrics

	sleep func(time.Duration)
	now   func() time.Time
}

// NewRateScheduler builds a scheduler backed by the wall clock.
func NewRateScheduler(metrics *Metrics) *RateScheduler {
	return &RateScheduler{
		metrics: metrics,
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// Delay blocks only long enough that the elapsed time since the
// previous Delay call reaches min. Already satisfied means no sleep.
func (rs *RateScheduler) Delay(min time.Duration) {
	if !rs.lastRequest.IsZero() && min > 0 {
		if wait := min - rs.now().Sub(rs.lastRequest); wait > 0 {
			rs.sleep(wait)
		}
	}
	rs.lastRequest = rs.now()
}

// RetryWithBackoff invokes op, retrying transient failures with
// exponential backoff. A server-supplied wait hint is slept exactly
// and does not consume exponential growth. Failures that classify as
// fatal or ignorable return immediately; after MaxRetries transient
// failures the last error is returned unmodified.
func (rs *RateScheduler) RetryWithBackoff(op func() error, policy BackoffPolicy) error {
	backoffStep := 0
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if ActionFor(Classify(err)) != ActionRetry {
			return err
		}
		if attempt >= policy.MaxRetries {
			return err
		}

		rs.retries++
		if rs.metrics != nil {
			rs.metrics.IncRetries()
		}

		if hint, ok := RetryAfterHint(err); ok {
			slog.Debug("honoring rate-limit hint",
				slog.Duration("wait", hint),
				slog.Int("attempt", attempt+1),
			)
			rs.sleep(hint)
			continue
		}

		wait := rs.backoff(backoffStep, policy)
		backoffStep++
		slog.Debug("retrying after backoff",
			slog.Duration("wait", wait),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)
		rs.sleep(wait)
	}
}

// TotalRetries reports how many retry sleeps were scheduled.
func (rs *RateScheduler) TotalRetries() int {
	return rs.retries
}

func (rs *RateScheduler) backoff(step int, policy BackoffPolicy) time.Duration {
	base := policy.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if step > 30 {
		step = 30
	}
	wait := base * time.Duration(1<<step)
	if max := policy.MaxDelay; max > 0 && wait > max {
		wait = max
	}
	return wait
}
