package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryProvider retries transient failures with jittered exponential
// backoff. A schema violation is retried once since a second sample
// usually conforms.
type RetryProvider struct {
	inner Provider
	cfg   RetryConfig
	log   logrus.FieldLogger
}

func WithRetry(p Provider, cfg RetryConfig) Provider {
	return WithRetryLogger(p, cfg, nil)
}

// WithRetryLogger is WithRetry with retries logged at debug level to log.
func WithRetryLogger(p Provider, cfg RetryConfig, log logrus.FieldLogger) Provider {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RetryProvider{inner: p, cfg: cfg, log: log}
}

func (r *RetryProvider) ModelID() string { return r.inner.ModelID() }

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var (
		err         error
		resp        *Response
		invalidSeen bool
	)
	for attempt := 1; ; attempt++ {
		resp, err = r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !Retryable(err) || attempt >= r.cfg.MaxAttempts {
			return nil, err
		}
		var invalid *ErrInvalidResponse
		if errors.As(err, &invalid) {
			if invalidSeen {
				return nil, err
			}
			invalidSeen = true
		}

		wait := r.delay(attempt, err)
		r.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"wait":    wait.String(),
		}).Debug("retrying llm request")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// delay is the wait before attempt+1. A server supplied Retry-After wins
// but is still capped at MaxWait.
func (r *RetryProvider) delay(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return min(rl.RetryAfter, r.maxWait())
	}

	d := float64(r.cfg.InitialWait)
	for i := 1; i < attempt; i++ {
		d *= r.cfg.Multiplier
	}
	d = min(d, float64(r.maxWait()))
	d *= 0.8 + 0.4*rand.Float64()
	return time.Duration(d)
}

func (r *RetryProvider) maxWait() time.Duration {
	if r.cfg.MaxWait > 0 {
		return r.cfg.MaxWait
	}
	return time.Minute
}
