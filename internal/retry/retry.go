// Package retry wraps calls to the LLM gateway with exponential backoff.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Ceiling bounds every computed delay regardless of Options.MaxDelay.
const Ceiling = 60 * time.Second

type Options struct {
	MaxRetries     int           `yaml:"max-retries"`
	InitialDelay   time.Duration `yaml:"initial-delay"`
	MaxDelay       time.Duration `yaml:"max-delay"`
	Multiplier     float64       `yaml:"multiplier"`
	RateLimitFloor time.Duration `yaml:"rate-limit-floor"`
}

// DefaultOptions returns the standard backoff schedule: five retries starting
// at one second, doubling up to a minute, with a five second floor after a
// rate-limit response.
func DefaultOptions() Options {
	return Options{
		MaxRetries:     5,
		InitialDelay:   time.Second,
		MaxDelay:       60 * time.Second,
		Multiplier:     2,
		RateLimitFloor: 5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = d.InitialDelay
	}
	if o.MaxDelay <= 0 || o.MaxDelay > Ceiling {
		o.MaxDelay = Ceiling
	}
	if o.Multiplier < 1 {
		o.Multiplier = d.Multiplier
	}
	if o.RateLimitFloor <= 0 {
		o.RateLimitFloor = d.RateLimitFloor
	}
	o.RateLimitFloor = min(o.RateLimitFloor, Ceiling)
	return o
}

// Attempt describes one failed call, passed to Policy.OnRetry.
type Attempt struct {
	Label       string
	Number      int
	Err         error
	Delay       time.Duration
	RateLimited bool
}

type Policy struct {
	opts   Options
	logger *zap.Logger

	// OnRetry, if set, is called before each backoff sleep.
	OnRetry func(Attempt)

	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Policy. A nil logger disables logging.
func New(opts Options, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		opts:   opts.withDefaults(),
		logger: logger,
		sleep:  sleepContext,
	}
}

// Options returns the effective options after defaults were applied.
func (p *Policy) Options() Options {
	return p.opts
}

// WithSleep replaces the sleep function. Tests use it to record delays.
func (p *Policy) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Policy {
	cp := *p
	cp.sleep = fn
	return &cp
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op up to MaxRetries+1 times. The error from the final attempt is
// returned unchanged. A cancelled context stops the loop during backoff.
func Do[T any](ctx context.Context, p *Policy, label string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	delay := p.opts.InitialDelay
	for attempt := 0; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if attempt >= p.opts.MaxRetries {
			p.logger.Warn("retries exhausted",
				zap.String("call", label),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return zero, err
		}

		// A rate-limited wait never drops below the floor; only Ceiling bounds it.
		limited := IsRateLimit(err)
		if limited {
			delay = min(max(delay, p.opts.RateLimitFloor), Ceiling)
		} else {
			delay = min(delay, p.opts.MaxDelay)
		}

		p.logger.Info("call failed, backing off",
			zap.String("call", label),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Bool("rate_limited", limited),
			zap.Error(err))
		if p.OnRetry != nil {
			p.OnRetry(Attempt{Label: label, Number: attempt + 1, Err: err, Delay: delay, RateLimited: limited})
		}
		if serr := p.sleep(ctx, delay); serr != nil {
			return zero, serr
		}
		delay = min(time.Duration(float64(delay)*p.opts.Multiplier), p.opts.MaxDelay)
	}
}

type statusCoder interface {
	StatusCode() int
}

// IsRateLimit reports whether err looks like a quota or rate-limit response.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "quota", "resource_exhausted", "rate limit", "too many requests"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
