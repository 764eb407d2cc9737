package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestWrap_Format(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "Hub", "Start", "listen")
	require.Error(t, err)
	assert.Equal(t, "Hub.Start: listen failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))
}

func TestWrap_NilPassthrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "Hub", "Start", "listen"))
	assert.NoError(t, WrapTransient(nil, "Hub", "Start", "listen"))
	assert.NoError(t, WrapInvalid(nil, "Hub", "Start", "listen"))
	assert.NoError(t, WrapFatal(nil, "Hub", "Start", "listen"))
}

func TestClassifiedWrappers(t *testing.T) {
	base := stderrors.New("boom")

	tr := WrapTransient(base, "Client", "dial", "connect")
	assert.True(t, IsTransient(tr))
	assert.False(t, IsInvalid(tr))
	assert.False(t, IsFatal(tr))

	inv := WrapInvalid(base, "Router", "route", "decode frame")
	assert.True(t, IsInvalid(inv))
	assert.False(t, IsTransient(inv))

	fat := WrapFatal(base, "Hub", "Start", "bind")
	assert.True(t, IsFatal(fat))
	assert.False(t, IsTransient(fat))
}

func TestClassificationSurvivesWrappingChain(t *testing.T) {
	inner := WrapInvalid(ErrInvalidFrame, "Router", "route", "decode")
	outer := fmt.Errorf("while handling message: %w", inner)

	assert.True(t, IsInvalid(outer))
	assert.True(t, stderrors.Is(outer, ErrInvalidFrame))

	var ce *ClassifiedError
	require.True(t, stderrors.As(outer, &ce))
	assert.Equal(t, "Router", ce.Component)
	assert.Equal(t, "route", ce.Operation)
}

func TestIsTransient_StandardErrors(t *testing.T) {
	assert.True(t, IsTransient(ErrConnectionTimeout))
	assert.True(t, IsTransient(ErrConnectionLost))
	assert.True(t, IsTransient(ErrNoConnection))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(nil))
}

func TestIsTransient_PatternMatch(t *testing.T) {
	assert.True(t, IsTransient(stderrors.New("dial tcp: connection refused")))
	assert.True(t, IsTransient(stderrors.New("i/o timeout")))
	assert.False(t, IsTransient(stderrors.New("permission denied")))
}

func TestIsInvalid_StandardErrors(t *testing.T) {
	assert.True(t, IsInvalid(ErrInvalidFrame))
	assert.True(t, IsInvalid(ErrUnknownMessage))
	assert.True(t, IsInvalid(ErrTokenInvalid))
	assert.False(t, IsInvalid(ErrConnectionLost))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorFatal, Classify(ErrMissingConfig))
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidFrame))
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("something else")))
}
