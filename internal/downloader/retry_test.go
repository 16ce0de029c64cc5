package downloader

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryWithCheck(t *testing.T) {
	errTransient := errors.New("transient")
	errFatal := errors.New("fatal")

	tests := []struct {
		name      string
		results   []error
		wantErr   error
		wantCalls int
	}{
		{"first try succeeds", []error{nil}, nil, 1},
		{"succeeds on third", []error{errTransient, errTransient, nil}, nil, 3},
		{"gives up after max attempts", []error{errTransient, errTransient, errTransient, nil}, errTransient, 3},
		{"stops on non-retryable", []error{errFatal, nil}, errFatal, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}
			calls := 0
			got, err := RetryWithCheck(context.Background(), cfg, func() (int, error) {
				err := tt.results[calls]
				calls++
				return calls, err
			}, func(err error) bool { return !errors.Is(err, errFatal) })

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && got != tt.wantCalls {
				t.Errorf("result = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRetryWithCheck_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, BackoffFactor: 2}

	calls := 0
	_, err := RetryWithCheck(ctx, cfg, func() (struct{}, error) {
		calls++
		cancel()
		return struct{}{}, errors.New("again")
	}, func(error) bool { return true })

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
