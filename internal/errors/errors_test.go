package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeMissingCredentials, CategoryConfig, SeverityFatal, false},
		{ErrCodeSourceFailed, CategorySource, SeverityError, false},
		{ErrCodeRemoteTimeout, CategoryRemote, SeverityWarning, true},
		{ErrCodeRemoteRejected, CategoryRemote, SeverityError, false},
		{ErrCodeNoItems, CategoryValidation, SeverityError, false},
		{ErrCodeInternal, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestSyncError_IsMatchesByCode(t *testing.T) {
	// Given: a wrapped remote error
	err := fmt.Errorf("save post_12: %w", New(ErrCodeObjectNotFound, "object missing", nil))

	// Then: errors.Is matches a sentinel with the same code
	assert.True(t, stderrors.Is(err, New(ErrCodeObjectNotFound, "", nil)))
	assert.False(t, stderrors.Is(err, New(ErrCodeRemoteTimeout, "", nil)))
	assert.True(t, HasCode(err, ErrCodeObjectNotFound))
}

func TestSyncError_ErrorIncludesCause(t *testing.T) {
	err := New(ErrCodeSourceFailed, "load item", stderrors.New("db closed"))
	assert.Equal(t, "[ERR_202_SOURCE_FAILED] load item: db closed", err.Error())

	wrapped := Wrap(ErrCodeInternal, stderrors.New("plain"))
	assert.Equal(t, "[ERR_501_INTERNAL] plain", wrapped.Error())
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeMissingCredentials, "index service credentials missing", nil).
		WithSuggestion("set ALGOLIA_APPLICATION_ID and ALGOLIA_ADMIN_API_KEY")

	out := FormatForCLI(err)
	assert.Contains(t, out, "Error: index service credentials missing")
	assert.Contains(t, out, "Hint: set ALGOLIA_APPLICATION_ID")
	assert.Contains(t, out, "Code: ERR_103_MISSING_CREDENTIALS")
}

// =============================================================================
// Retry
// =============================================================================

func fastRetry() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func TestRetry_SucceedsAfterTransientError(t *testing.T) {
	// Given: a call that times out twice then succeeds
	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return RemoteError("timeout", nil)
		}
		return nil
	}

	err := Retry(context.Background(), fastRetry(), fn)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	// Given: a call rejected by the service
	attempts := 0
	fn := func() error {
		attempts++
		return New(ErrCodeRemoteRejected, "bad request", nil)
	}

	err := Retry(context.Background(), fastRetry(), fn)

	// Then: no further attempts are made
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, HasCode(err, ErrCodeRemoteRejected))
}

func TestRetry_FailsAfterMaxRetries(t *testing.T) {
	attempts := 0
	cfg := fastRetry()
	cfg.MaxRetries = 2

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return RemoteError("down", nil)
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 3, attempts)
}

func TestRetry_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, fastRetry(), func() error {
		attempts++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	attempts := 0
	got, err := RetryWithResult(context.Background(), fastRetry(), func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", RemoteError("flaky", nil)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
