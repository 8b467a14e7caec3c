package build

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stanfordssi/sats-inventory/internal/domain"
)

// ErrTryAgain is returned once retries are exhausted on a retryable failure.
// The last underlying failure stays reachable through errors.Is.
var ErrTryAgain = errors.New("build could not be completed, please try again")

// Builder is the subset of Engine the retry runner needs.
type Builder interface {
	Build(ctx context.Context, in Input) (*Result, error)
}

// Replayer returns the build a request key already produced. Implemented by *Engine.
type Replayer interface {
	Replay(ctx context.Context, requestKey string) (*Result, error)
}

// RetryPolicy bounds caller-side retries.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration // base delay for persistence failures, doubled per attempt
}

// Runner retries builds on failures that left nothing behind.
// ConcurrentConflict is retried immediately. PersistenceFailure is retried with
// backoff only when the request carries a RequestKey, since a failure reported while
// committing may still have committed and only the key makes the retry safe.
// When such a retry finds its key taken, the earlier attempt did commit and its
// build is returned as the result.
type Runner struct {
	builder Builder
	policy  RetryPolicy
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRunner wraps builder with policy.
func NewRunner(builder Builder, policy RetryPolicy) *Runner {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &Runner{builder: builder, policy: policy, sleep: sleepCtx}
}

// Build runs in through the engine, retrying per the policy.
func (r *Runner) Build(ctx context.Context, in Input) (*Result, error) {
	var (
		lastErr   error
		ambiguous bool
	)
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		res, err := r.builder.Build(ctx, in)
		if err == nil {
			return res, nil
		}
		lastErr = err

		var dup *DuplicateBuildError
		switch {
		case ambiguous && errors.As(err, &dup):
			if prior := r.replay(ctx, in.RequestKey); prior != nil {
				return prior, nil
			}
			return nil, err
		case errors.Is(err, domain.ErrConcurrentConflict):
			continue
		case errors.Is(err, domain.ErrPersistenceFailure) && in.RequestKey != "":
			ambiguous = true
			if attempt == r.policy.MaxRetries {
				continue
			}
			if serr := r.sleep(ctx, r.policy.Backoff<<attempt); serr != nil {
				return nil, fmt.Errorf("%w: %w", ErrTryAgain, err)
			}
			continue
		case errors.Is(err, domain.ErrPersistenceFailure):
			return nil, fmt.Errorf("%w: %w", ErrTryAgain, err)
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrTryAgain, lastErr)
}

func (r *Runner) replay(ctx context.Context, key string) *Result {
	rp, ok := r.builder.(Replayer)
	if !ok {
		return nil
	}
	res, err := rp.Replay(ctx, key)
	if err != nil {
		return nil
	}
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
