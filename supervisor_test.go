/* gandalf - usbmuxd TCP relay daemon
 *
 * Tests for supervisor.go
 */

package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetrySucceedsEventually(t *testing.T) {
	sv := NewSupervisor("")

	attempts := 0
	err := sv.withRetry(5, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("withRetry: %s", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetryBoundsAttempts(t *testing.T) {
	sv := NewSupervisor("")

	attempts := 0
	failure := errors.New("deterministic failure")
	err := sv.withRetry(4, time.Millisecond, func() error {
		attempts++
		return failure
	})

	if !errors.Is(err, failure) {
		t.Fatalf("got err %v, want %v", err, failure)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4 (bounded by max_retries)", attempts)
	}
}

func TestWithRetryCancellationIsNotAnError(t *testing.T) {
	sv := NewSupervisor("")

	err := sv.withRetry(5, time.Millisecond, func() error {
		return context.Canceled
	})

	if err != nil {
		t.Errorf("context.Canceled should be treated as success, got %s", err)
	}
}
