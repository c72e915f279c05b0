package fetcher

import (
	"context"
	"time"

	"github.com/nao1215/sitescan/internal/model"
)

// RetryPolicy bounds the retries of transient failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, the first one included.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt. It doubles for each
	// further attempt.
	BaseDelay time.Duration

	// MaxDelay caps a single wait.
	MaxDelay time.Duration
}

// Backoff returns the wait after the given failed attempt (1-based):
// BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// retryPhase is the state of one URL's attempt loop.
type retryPhase int

const (
	phaseAttempting retryPhase = iota
	phaseRetrying
	phaseSucceeded
	phaseFailed
)

func (p retryPhase) String() string {
	switch p {
	case phaseAttempting:
		return "attempting"
	case phaseRetrying:
		return "retrying"
	case phaseSucceeded:
		return "succeeded"
	case phaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// retryState is Attempting(n), Retrying(n+1), Succeeded(n) or Failed(n).
// Succeeded and Failed are terminal.
type retryState struct {
	phase   retryPhase
	attempt int
	err     *model.FetchError
}

func startRetry() retryState {
	return retryState{phase: phaseAttempting, attempt: 1}
}

// terminal reports whether no further attempts follow.
func (s retryState) terminal() bool {
	return s.phase == phaseSucceeded || s.phase == phaseFailed
}

// observe moves an Attempting state forward with the outcome of its attempt.
// Only transient errors lead to Retrying, and only while attempts remain.
func (s retryState) observe(policy RetryPolicy, err *model.FetchError) retryState {
	if s.phase != phaseAttempting {
		return s
	}
	switch {
	case err == nil:
		return retryState{phase: phaseSucceeded, attempt: s.attempt}
	case err.Kind.Transient() && s.attempt < policy.MaxAttempts:
		return retryState{phase: phaseRetrying, attempt: s.attempt + 1, err: err}
	default:
		return retryState{phase: phaseFailed, attempt: s.attempt, err: err}
	}
}

// resume turns a Retrying state back into Attempting after the backoff wait.
func (s retryState) resume() retryState {
	if s.phase != phaseRetrying {
		return s
	}
	return retryState{phase: phaseAttempting, attempt: s.attempt}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
