package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDo_QuotaSignalRetriesWithExponentialBackoff(t *testing.T) {
	opts := RetryOptions{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second}

	var attempts []time.Time
	err := Do(context.Background(), opts, func(ctx context.Context) error {
		attempts = append(attempts, time.Now())
		return errors.New("429 too many requests")
	})

	if len(attempts) != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", len(attempts))
	}

	// esperas não-decrescentes: base×2, base×4
	gap1 := attempts[1].Sub(attempts[0])
	gap2 := attempts[2].Sub(attempts[1])
	if gap1 < 15*time.Millisecond {
		t.Fatalf("expected first backoff >= ~20ms, got %s", gap1)
	}
	if gap2 < gap1 {
		t.Fatalf("expected non-decreasing backoff, got %s then %s", gap1, gap2)
	}

	// exaustão por quota tem erro distinto e acionável
	if !IsQuotaExhausted(err) {
		t.Fatalf("expected quota-exhausted error, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exhausted") {
		t.Fatalf("expected explicit quota message, got %q", err.Error())
	}
}

func TestDo_ExponentialBackoffIsCapped(t *testing.T) {
	opts := RetryOptions{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond, MaxDelay: 30 * time.Millisecond}

	var attempts []time.Time
	_ = Do(context.Background(), opts, func(ctx context.Context) error {
		attempts = append(attempts, time.Now())
		return ErrRateLimited
	})

	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}
	// sem teto seria 40ms e 80ms; com teto as duas esperas ficam em ~30ms
	for i := 1; i < len(attempts); i++ {
		if gap := attempts[i].Sub(attempts[i-1]); gap > 70*time.Millisecond {
			t.Fatalf("backoff %d = %s exceeded the cap", i, gap)
		}
	}
}

func TestDo_TransientUsesLinearBackoff(t *testing.T) {
	opts := RetryOptions{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond}

	var attempts []time.Time
	err := Do(context.Background(), opts, func(ctx context.Context) error {
		attempts = append(attempts, time.Now())
		return errors.New("upstream hiccup")
	})

	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}
	if IsQuotaExhausted(err) {
		t.Fatalf("generic failure must not look like quota exhaustion: %v", err)
	}
	if err == nil || err.Error() != "upstream hiccup" {
		t.Fatalf("expected the last error to surface, got %v", err)
	}
}

func TestDo_SucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	err := Do(context.Background(), RetryOptions{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on 2nd attempt, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDo_ContentBlockedIsNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), RetryOptions{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return fmt.Errorf("analyze image: %w", ErrContentBlocked)
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if !errors.Is(err, ErrContentBlocked) {
		t.Fatalf("expected content-blocked error to surface as-is, got %v", err)
	}
}

func TestDo_BadCredentialsAreNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), RetryOptions{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errors.New("401 unauthorized: invalid api key")
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if err == nil {
		t.Fatalf("expected the credential error to surface")
	}
}

func TestDo_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	errc := make(chan error, 1)
	go func() {
		errc <- Do(ctx, RetryOptions{MaxAttempts: 5, BaseDelay: time.Second}, func(ctx context.Context) error {
			calls++
			return errors.New("rate limit")
		})
	}()

	time.Sleep(20 * time.Millisecond) // primeira tentativa + começo do backoff
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout: Do did not honor cancellation during backoff")
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt before cancel, got %d", calls)
	}
}

func TestDoResult_ReturnsValue(t *testing.T) {
	got, err := DoResult(context.Background(), RetryOptions{}, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("expected 42/nil, got %d/%v", got, err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{errors.New("RATE LIMIT exceeded"), KindRateLimit},
		{errors.New("quota exceeded for project"), KindRateLimit},
		{errors.New("HTTP 429"), KindRateLimit},
		{errors.New("resource exhausted"), KindRateLimit},
		{fmt.Errorf("call: %w", ErrRateLimited), KindRateLimit},
		{errors.New("blocked by safety settings"), KindContentBlocked},
		{fmt.Errorf("call: %w", ErrContentBlocked), KindContentBlocked},
		{errors.New("invalid API key provided"), KindAuth},
		{errors.New("permission denied"), KindAuth},
		{fmt.Errorf("call: %w", ErrBadCredentials), KindAuth},
		{errors.New("connection reset by peer"), KindTransient},
		{nil, KindTransient},
	}

	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
