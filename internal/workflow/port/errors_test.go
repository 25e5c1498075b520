package port

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503} {
		err := fmt.Errorf("call: %w", &ProviderError{Provider: "openai", StatusCode: code})
		assert.True(t, IsTransient(err), code)
	}
	for _, code := range []int{400, 401, 404, 504} {
		assert.False(t, IsTransient(&ProviderError{Provider: "openai", StatusCode: code}), code)
	}
	assert.False(t, IsTransient(errors.New("dial tcp: refused")))
}
