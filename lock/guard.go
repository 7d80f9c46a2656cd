package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// GlobalKey is the key used when every critical section should be serialized
// against every other one.
const GlobalKey = "__global__"

// ErrAcquisitionFailed is returned when a guard exhausts its attempts without
// obtaining the lock. It signals contention, not a security failure.
var ErrAcquisitionFailed = errors.New("lock acquisition failed")

var errAttemptTimedOut = errors.New("lock attempt timed out")

// Config controls the retry envelope of a [Guard].
type Config struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	Backoff        time.Duration
}

// DefaultConfig returns the guard settings used when none are supplied.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		AttemptTimeout: time.Second,
		Backoff:        50 * time.Millisecond,
	}
}

// Validate checks that every bound is positive.
func (c Config) Validate() error {
	if c.MaxAttempts <= 0 {
		return errors.New("lock MaxAttempts must be > 0")
	}
	if c.AttemptTimeout <= 0 {
		return errors.New("lock AttemptTimeout must be > 0")
	}
	if c.Backoff <= 0 {
		return errors.New("lock Backoff must be > 0")
	}
	return nil
}

// Guard runs units of work under a keyed lock from a [Registry].
type Guard struct {
	registry *Registry
	config   Config

	// OnContention, when set, is called after every attempt that timed out.
	OnContention func(key string, attempt int)
}

// NewGuard creates a guard over registry. A nil registry gets a private one.
func NewGuard(registry *Registry, cfg Config) (*Guard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Guard{registry: registry, config: cfg}, nil
}

// Registry exposes the underlying registry.
func (g *Guard) Registry() *Registry {
	return g.registry
}

// Run executes fn while holding the lock for key.
func (g *Guard) Run(ctx context.Context, key string, fn func(context.Context) error) error {
	_, err := Do(ctx, g, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do executes fn while holding the lock for key and returns its result.
//
// Each attempt waits at most AttemptTimeout for the handle, then sleeps
// Backoff before the next attempt. After MaxAttempts timeouts Do returns
// [ErrAcquisitionFailed]. The handle is released before Do returns, including
// when fn returns an error or panics.
func Do[T any](ctx context.Context, g *Guard, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if g == nil {
		return zero, errors.New("nil guard")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		return runAttempt(ctx, g, key, fn)
	}

	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(g.config.Backoff)),
		backoff.WithMaxTries(uint(g.config.MaxAttempts)), // #nosec G115 -- validated > 0
		backoff.WithNotify(func(_ error, _ time.Duration) {
			if g.OnContention != nil {
				g.OnContention(key, attempt)
			}
		}),
	)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if errors.Is(err, errAttemptTimedOut) {
		if g.OnContention != nil {
			g.OnContention(key, attempt)
		}
		return zero, fmt.Errorf("%w: key %q after %d attempts", ErrAcquisitionFailed, key, attempt)
	}
	return out, err
}

func runAttempt[T any](ctx context.Context, g *Guard, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	h := g.registry.Acquire(key)
	defer g.registry.Release(key, h)

	attemptCtx, cancel := context.WithTimeout(ctx, g.config.AttemptTimeout)
	err := h.Lock(attemptCtx)
	cancel()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, backoff.Permanent(ctxErr)
		}
		return zero, errAttemptTimedOut
	}
	defer h.Unlock()

	out, err := fn(ctx)
	if err != nil {
		return out, backoff.Permanent(err)
	}
	return out, nil
}
