package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeInvalidParam:       http.StatusBadRequest,
		CodeStoryNotFound:      http.StatusNotFound,
		CodeIdentityConflict:   http.StatusConflict,
		CodeImageProviderError: http.StatusBadGateway,
		CodeGenerationFailed:   http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, New(code, "x").HTTPStatus, string(code))
	}
}

func TestWithDetailDoesNotMutatePredefined(t *testing.T) {
	e := ErrStoryNotFound.WithDetail("story abc")
	assert.Equal(t, "story abc", e.Detail)
	assert.Empty(t, ErrStoryNotFound.Detail)
}

func TestAsAppErrorUnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", ErrPageNotFound)
	assert.True(t, IsAppError(wrapped))
	assert.Equal(t, CodePageNotFound, AsAppError(wrapped).Code)

	plain := stderrors.New("boom")
	assert.False(t, IsAppError(plain))
	assert.Equal(t, CodeUnknown, AsAppError(plain).Code)
	assert.ErrorIs(t, AsAppError(plain), plain)
}
