package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
	"github.com/ahrav/go-appraise/internal/llm/transport"
)

// sleepRecorder records requested delays without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func testOptions(rec *sleepRecorder) Options {
	opts := DefaultOptions()
	opts.Sleep = rec.sleep
	return opts
}

func TestDoSucceedsOnThirdAttempt(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0

	got, err := Do(context.Background(), testOptions(rec), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &llmerrors.TransportError{Vendor: "openai", StatusCode: 503}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond}, rec.delays)
}

func TestDoCancellationIsNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "cancellation_error", err: &llmerrors.CancellationError{Op: "digest", Err: context.Canceled}},
		{name: "wrapped_context_canceled", err: errors.Join(errors.New("fetch"), context.Canceled)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &sleepRecorder{}
			calls := 0

			_, err := Do(context.Background(), testOptions(rec), func(context.Context) (int, error) {
				calls++
				return 0, tt.err
			})

			require.Error(t, err)
			assert.True(t, llmerrors.IsCancellation(err))
			assert.Equal(t, 1, calls)
			assert.Empty(t, rec.delays)
		})
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	lastErr := &llmerrors.TransportError{Vendor: "gemini", StatusCode: 500, Body: "third"}

	_, err := Do(context.Background(), testOptions(rec), func(context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, lastErr
		}
		return 0, &llmerrors.TransportError{Vendor: "gemini", StatusCode: 500}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, rec.delays, 2, "no wait after the final attempt")

	var transportErr *llmerrors.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Same(t, lastErr, transportErr)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDoRetriesParseFailures(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0

	_, err := Do(context.Background(), testOptions(rec), func(context.Context) (int, error) {
		calls++
		return 0, &llmerrors.ParseError{Message: "no text"}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoConfigurationErrorIsNotRetried(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0

	_, err := Do(context.Background(), testOptions(rec), func(context.Context) (int, error) {
		calls++
		return 0, &llmerrors.ConfigurationError{Err: llmerrors.ErrMissingCredential}
	})

	assert.ErrorIs(t, err, llmerrors.ErrMissingCredential)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestDoCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	opts := DefaultOptions()
	opts.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := Do(ctx, opts, func(context.Context) (int, error) {
		calls++
		return 0, &llmerrors.TransportError{StatusCode: 502}
	})

	var cancelErr *llmerrors.CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoAlreadyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, DefaultOptions(), func(context.Context) (int, error) {
		calls++
		return 1, nil
	})

	assert.True(t, llmerrors.IsCancellation(err))
	assert.Zero(t, calls)
}

func TestTimerSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := timerSleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestOptionsValidation(t *testing.T) {
	_, err := Do(context.Background(), Options{MaxAttempts: 0}, func(context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, errMaxAttemptsInvalid)

	_, err = NewMiddleware(Options{})
	assert.ErrorIs(t, err, errMaxAttemptsInvalid)
}

func TestDelay(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 500*time.Millisecond, opts.Delay(0))
	assert.Equal(t, time.Second, opts.Delay(1))
	assert.Equal(t, 2*time.Second, opts.Delay(2))
}

func TestMiddlewareRetriesHandler(t *testing.T) {
	rec := &sleepRecorder{}
	mw, err := NewMiddleware(testOptions(rec))
	require.NoError(t, err)

	calls := 0
	core := transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		calls++
		if calls == 1 {
			return nil, &llmerrors.TransportError{StatusCode: 500}
		}
		return &transport.Response{Text: "done"}, nil
	})

	resp, err := mw(core).Handle(context.Background(), &transport.Request{Vendor: transport.VendorGemini, UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, rec.delays)
}
