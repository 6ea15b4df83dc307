package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestClassify_GoogleAPICodes(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{400, KindInvalidInput},
		{429, KindOverloaded},
		{500, KindUnavailable},
		{503, KindUnavailable},
		{504, KindUnavailable},
		{418, KindUnavailable}, // unknown code defaults to unavailable
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("code_%d", tt.code), func(t *testing.T) {
			raw := &googleapi.Error{Code: tt.code, Message: "upstream"}
			err := Classify("embed", raw)

			var pe *Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.want, pe.Kind)
			assert.Equal(t, "embed", pe.Op)
			assert.ErrorIs(t, err, raw)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, Classify("embed", nil))
}

func TestClassify_PassesThroughTypedErrors(t *testing.T) {
	orig := NewError(KindContract, "embed", errors.New("wrong shape"))
	got := Classify("generate", orig)
	assert.Same(t, orig, got.(*Error))
}

func TestClassify_UnknownErrorIsUnavailable(t *testing.T) {
	err := Classify("generate", errors.New("connection reset"))
	assert.True(t, IsRetryable(err))
}

func TestPredicates(t *testing.T) {
	overloaded := NewError(KindOverloaded, "embed", nil)
	unavailable := NewError(KindUnavailable, "embed", nil)
	invalid := NewError(KindInvalidInput, "embed", nil)
	contract := NewError(KindContract, "embed", nil)

	assert.True(t, IsRetryable(overloaded))
	assert.True(t, IsRetryable(unavailable))
	assert.False(t, IsRetryable(invalid))
	assert.False(t, IsRetryable(contract))

	assert.True(t, IsInvalidInput(invalid))
	assert.False(t, IsInvalidInput(overloaded))

	assert.True(t, IsContract(contract))
	assert.False(t, IsContract(unavailable))

	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestPredicates_WrappedError(t *testing.T) {
	wrapped := fmt.Errorf("embed document 7: %w", NewError(KindOverloaded, "embed", nil))
	assert.True(t, IsRetryable(wrapped))
}

func TestError_Message(t *testing.T) {
	e := NewError(KindOverloaded, "embed", errors.New("quota exceeded"))
	assert.Equal(t, "provider embed: overloaded: quota exceeded", e.Error())

	bare := NewError(KindContract, "embed", nil)
	assert.Equal(t, "provider embed: contract", bare.Error())
}
