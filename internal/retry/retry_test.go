package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	sprenerrors "github.com/stevehiehn/spren/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fast() Config {
	return Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func TestDelay(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Second, cfg.Delay(0))
	assert.Equal(t, 2*time.Second, cfg.Delay(1))
	assert.Equal(t, 4*time.Second, cfg.Delay(2))
	assert.Equal(t, 8*time.Second, cfg.Delay(3))
	assert.Equal(t, 10*time.Second, cfg.Delay(4))
	assert.Equal(t, 10*time.Second, cfg.Delay(60), "large attempts must not overflow")
}

func TestDelayInitialAboveCap(t *testing.T) {
	cfg := Config{InitialDelay: 5 * time.Second, MaxDelay: time.Second}
	assert.Equal(t, time.Second, cfg.Delay(0))
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fast(), nil, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	for _, typ := range []string{sprenerrors.NetworkError, sprenerrors.RateLimited, sprenerrors.MalformedResponse} {
		t.Run(typ, func(t *testing.T) {
			calls := 0
			v, err := Do(context.Background(), fast(), nil, func(context.Context) (int, error) {
				calls++
				if calls < 3 {
					return 0, sprenerrors.NewRequestError(typ, "transient", nil)
				}
				return 42, nil
			})
			require.NoError(t, err)
			assert.Equal(t, 42, v)
			assert.Equal(t, 3, calls)
		})
	}
}

func TestDoRetriesExtractionErrors(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fast(), nil, func(context.Context) (string, error) {
		calls++
		return "", sprenerrors.NewExtractionError("no plan", "prose")
	})
	assert.True(t, sprenerrors.Is(err, sprenerrors.ExtractionError))
	assert.Equal(t, 4, calls, "one attempt plus three retries")
}

func TestDoStopsOnFatalErrors(t *testing.T) {
	fatal := []error{
		sprenerrors.NewRequestError(sprenerrors.AuthError, "bad key", nil),
		sprenerrors.NewRequestError(sprenerrors.APIError, "500", nil),
		sprenerrors.NewValidationError("unsupported version", ""),
		errors.New("plain"),
	}
	for _, fe := range fatal {
		calls := 0
		_, err := Do(context.Background(), fast(), nil, func(context.Context) (string, error) {
			calls++
			return "", fe
		})
		assert.Equal(t, fe, err)
		assert.Equal(t, 1, calls, "error %v must not be retried", fe)
	}
}

func TestDoZeroRetries(t *testing.T) {
	calls := 0
	cfg := fast()
	cfg.MaxRetries = 0
	_, err := Do(context.Background(), cfg, nil, func(context.Context) (string, error) {
		calls++
		return "", sprenerrors.NewRequestError(sprenerrors.NetworkError, "down", nil)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoAbortsWaitOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}

	start := time.Now()
	_, err := Do(ctx, cfg, nil, func(context.Context) (string, error) {
		cancel()
		return "", sprenerrors.NewRequestError(sprenerrors.NetworkError, "down", nil)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestDoLogsRetries(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	calls := 0
	_, err := Do(context.Background(), fast(), zap.New(core), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", sprenerrors.NewRequestError(sprenerrors.RateLimited, "slow down", nil)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.EqualValues(t, 1, logs.All()[0].ContextMap()["attempt"])
}
