package fault

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeUnknown, CodeOf(eris.New("plain")))
	assert.Equal(t, CodeAuth, CodeOf(New(CodeAuth, "rejected key")))

	// Classified errors survive wrapping.
	wrapped := eris.Wrap(Wrap(CodeRateLimit, eris.New("429"), "quota exceeded"), "engine")
	assert.Equal(t, CodeRateLimit, CodeOf(wrapped))
}

func TestRetryable(t *testing.T) {
	assert.True(t, CodeRateLimit.Retryable())
	assert.True(t, CodeNetwork.Retryable())
	assert.False(t, CodeConfig.Retryable())
	assert.False(t, CodeAuth.Retryable())
	assert.False(t, CodeValidation.Retryable())
	assert.False(t, CodeUnknown.Retryable())
}

func TestFromStatus(t *testing.T) {
	cases := map[int]Code{
		401: CodeAuth,
		403: CodeAuth,
		429: CodeRateLimit,
		400: CodeValidation,
		422: CodeValidation,
		408: CodeNetwork,
		500: CodeNetwork,
		503: CodeNetwork,
		418: CodeUnknown,
	}
	for status, want := range cases {
		assert.Equal(t, want, FromStatus(status), "status %d", status)
	}
}

func TestErrorMessage(t *testing.T) {
	e := Wrap(CodeNetwork, eris.New("connection reset"), "search stage")
	assert.Contains(t, e.Error(), "NETWORK_ERROR")
	assert.Contains(t, e.Error(), "search stage")
	assert.Contains(t, e.Error(), "connection reset")
}
