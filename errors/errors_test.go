package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport timeout", ErrTransportTimeout, true},
		{"readiness timeout", ErrReadinessTimeout, true},
		{"wrapped transport timeout", fmt.Errorf("request: %w", ErrTransportTimeout), true},
		{"context deadline", context.DeadlineExceeded, true},
		{"connection refused text", stderrors.New("sendto: connection refused"), true},
		{"no buffer space text", stderrors.New("sendto: no buffer space available"), true},
		{"validation mismatch", ErrValidationMismatch, false},
		{"build failure", ErrBuildFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(ErrProtocol))
	assert.True(t, IsInvalid(ErrValidationMismatch))
	assert.True(t, IsInvalid(fmt.Errorf("lookup: %w", ErrUnknownImplementation)))
	assert.False(t, IsInvalid(ErrTransportTimeout))
	assert.False(t, IsInvalid(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(ErrNoImplementations))
	assert.False(t, IsFatal(ErrTransportTimeout))
	assert.False(t, IsFatal(nil))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(nil))
	assert.Equal(t, ErrorTransient, Classify(ErrTransportTimeout))
	assert.Equal(t, ErrorInvalid, Classify(ErrProtocol))
	assert.Equal(t, ErrorFatal, Classify(ErrMissingConfig))
	// Unknown errors default to transient so callers may retry
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("something odd")))
}

func TestWrap(t *testing.T) {
	base := stderrors.New("boom")

	err := Wrap(base, "Manager", "Start", "spawn listener")
	require.Error(t, err)
	assert.Equal(t, "Manager.Start: spawn listener failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))

	assert.NoError(t, Wrap(nil, "Manager", "Start", "spawn listener"))
}

func TestWrapClassified(t *testing.T) {
	base := stderrors.New("boom")

	transient := WrapTransient(base, "Client", "Request", "send datagram")
	require.Error(t, transient)
	assert.True(t, IsTransient(transient))
	assert.True(t, stderrors.Is(transient, base))

	invalid := WrapInvalid(base, "Catalog", "Evaluate", "check reply")
	assert.True(t, IsInvalid(invalid))
	assert.False(t, IsTransient(invalid))

	fatal := WrapFatal(base, "Config", "Load", "parse file")
	assert.True(t, IsFatal(fatal))

	var ce *ClassifiedError
	require.True(t, stderrors.As(fatal, &ce))
	assert.Equal(t, "Config", ce.Component)
	assert.Equal(t, "Load", ce.Operation)

	assert.NoError(t, WrapTransient(nil, "a", "b", "c"))
	assert.NoError(t, WrapInvalid(nil, "a", "b", "c"))
	assert.NoError(t, WrapFatal(nil, "a", "b", "c"))
}
