package llm

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/require"
)

func TestLake_LLM_ClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want CallErrorKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, CallErrorTimeout},
		{"unauthorized", &anthropic.Error{StatusCode: http.StatusUnauthorized}, CallErrorAuth},
		{"forbidden", &anthropic.Error{StatusCode: http.StatusForbidden}, CallErrorAuth},
		{"rate limited", &anthropic.Error{StatusCode: http.StatusTooManyRequests}, CallErrorRateLimited},
		{"gateway timeout", &anthropic.Error{StatusCode: http.StatusGatewayTimeout}, CallErrorTimeout},
		{"server error", &anthropic.Error{StatusCode: http.StatusInternalServerError}, CallErrorNetwork},
		{"connection refused", fmt.Errorf("dial tcp: connection refused"), CallErrorNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cerr := classifyError(tt.err)
			require.Equal(t, tt.want, cerr.Kind)
		})
	}
}

func TestLake_LLM_IsCallError(t *testing.T) {
	t.Parallel()

	cerr := &CallError{Kind: CallErrorRateLimited, Err: fmt.Errorf("429")}
	wrapped := fmt.Errorf("completion failed: %w", cerr)

	got, ok := IsCallError(wrapped)
	require.True(t, ok)
	require.Equal(t, CallErrorRateLimited, got.Kind)

	_, ok = IsCallError(fmt.Errorf("plain error"))
	require.False(t, ok)
}

func TestLake_LLM_NewAnthropic_Defaults(t *testing.T) {
	t.Parallel()

	c := NewAnthropic(AnthropicConfig{})
	require.Equal(t, anthropic.ModelClaudeSonnet4_5_20250929, c.cfg.Model)
	require.EqualValues(t, defaultMaxTokens, c.cfg.MaxTokens)
	require.EqualValues(t, defaultMaxTries, c.cfg.MaxTries)
	require.Equal(t, defaultCallTimeout, c.cfg.CallTimeout)
}
