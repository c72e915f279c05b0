package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/nao1215/sitescan/internal/model"
)

func TestRetryPolicyBackoff(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{30, time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
			t.Parallel()
			if got := policy.Backoff(tt.attempt); got != tt.want {
				t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetryStateTransitions(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxAttempts: 3}
	timeout := &model.FetchError{Kind: model.FetchErrorTimeout}
	refused := &model.FetchError{Kind: model.FetchErrorConnectionRefused}

	t.Run("success is terminal", func(t *testing.T) {
		t.Parallel()
		s := startRetry().observe(policy, nil)
		if s.phase != phaseSucceeded || s.attempt != 1 || !s.terminal() {
			t.Errorf("state = %+v", s)
		}
	})

	t.Run("transient error retries until attempts run out", func(t *testing.T) {
		t.Parallel()
		s := startRetry()
		var phases []retryPhase
		for !s.terminal() {
			s = s.observe(policy, timeout)
			phases = append(phases, s.phase)
			s = s.resume()
		}
		want := []retryPhase{phaseRetrying, phaseRetrying, phaseFailed}
		if fmt.Sprint(phases) != fmt.Sprint(want) {
			t.Errorf("phases = %v, want %v", phases, want)
		}
		if s.attempt != 3 || s.err != timeout {
			t.Errorf("final state = %+v", s)
		}
	})

	t.Run("permanent error fails immediately", func(t *testing.T) {
		t.Parallel()
		s := startRetry().observe(policy, refused)
		if s.phase != phaseFailed || s.attempt != 1 {
			t.Errorf("state = %+v", s)
		}
	})

	t.Run("observe ignores non attempting states", func(t *testing.T) {
		t.Parallel()
		done := retryState{phase: phaseFailed, attempt: 2}
		if got := done.observe(policy, nil); got != done {
			t.Errorf("observe() changed a terminal state: %+v", got)
		}
	})
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want model.FetchErrorKind
	}{
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), model.FetchErrorTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}, model.FetchErrorDNS},
		{"dns timeout", &net.DNSError{Err: "i/o timeout", Name: "slow.invalid", IsTimeout: true}, model.FetchErrorTimeout},
		{"refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, model.FetchErrorConnectionRefused},
		{"reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, model.FetchErrorConnectionReset},
		{"canceled", context.Canceled, model.FetchErrorOther},
		{"other", errors.New("boom"), model.FetchErrorOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classify("http://example.com/", tt.err)
			if got.Kind != tt.want {
				t.Errorf("classify() kind = %s, want %s", got.Kind, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classify() does not wrap %v", tt.err)
			}
		})
	}
}
