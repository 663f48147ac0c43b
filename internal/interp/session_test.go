package interp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/safeexec/pkg/sandbox"
)

// fakeBackend lets session tests exercise the lifecycle and formatting
// logic without an embedded interpreter.
type fakeBackend struct {
	evalFunc func(code string) error
	calls    []string
}

func (f *fakeBackend) Eval(code string) error {
	f.calls = append(f.calls, code)
	if f.evalFunc != nil {
		return f.evalFunc(code)
	}
	return nil
}

func TestSession_ExecuteRunsValidCode(t *testing.T) {
	backend := &fakeBackend{}
	sess := newSession("s1", backend, false)

	result := sess.Execute("1 + 1")
	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	require.Len(t, backend.calls, 1)
	assert.Equal(t, "1 + 1", backend.calls[0])
}

func TestSession_ExecuteRejectsForbiddenCodeWithoutRunningBackend(t *testing.T) {
	backend := &fakeBackend{}
	sess := newSession("s1", backend, false)

	result := sess.Execute(`import "os/exec"`)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "proc-exec-import")
	assert.Empty(t, backend.calls)
}

func TestSession_ExecuteWrapsBareExpressionWhenConfigured(t *testing.T) {
	backend := &fakeBackend{}
	sess := newSession("s1", backend, true)

	sess.Execute("1 + 1")
	require.Len(t, backend.calls, 1)
	assert.Contains(t, backend.calls[0], "func() interface{}")
	assert.Contains(t, backend.calls[0], "return 1 + 1")
}

func TestSession_ExecuteDoesNotWrapDeclarations(t *testing.T) {
	backend := &fakeBackend{}
	sess := newSession("s1", backend, true)

	sess.Execute("var x = 42")
	require.Len(t, backend.calls, 1)
	assert.Equal(t, "var x = 42", backend.calls[0])
}

func TestSession_ExecuteTranslatesSecurityError(t *testing.T) {
	backend := &fakeBackend{evalFunc: func(string) error {
		return &sandbox.SecurityError{Reason: "path outside root"}
	}}
	sess := newSession("s1", backend, false)

	result := sess.Execute("surface.whatever()")
	assert.False(t, result.Success)
	assert.Equal(t, "SecurityException: path outside root", result.Error)
}

func TestSession_ExecuteTranslatesGenericError(t *testing.T) {
	backend := &fakeBackend{evalFunc: func(string) error {
		return errors.New("undefined: foo")
	}}
	sess := newSession("s1", backend, false)

	result := sess.Execute("foo()")
	assert.False(t, result.Success)
	assert.Equal(t, "EvalException: undefined: foo", result.Error)
}

func TestSession_ExecuteFlipsSuccessOnDiagnosticMarker(t *testing.T) {
	backend := &fakeBackend{evalFunc: func(string) error {
		fmt.Print("-- [E1] some compile diagnostic\n")
		return nil
	}}
	sess := newSession("s1", backend, false)

	result := sess.Execute("broken code")
	assert.False(t, result.Success)
	assert.Contains(t, result.Output, "-- [E1]")
}

func TestSession_ExecuteAfterDisposeFails(t *testing.T) {
	backend := &fakeBackend{}
	sess := newSession("s1", backend, false)
	sess.Dispose()

	result := sess.Execute("1 + 1")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "disposed")
	assert.Empty(t, backend.calls)
}

func TestSession_StatePersistsAcrossCalls(t *testing.T) {
	backend := &fakeBackend{}
	sess := newSession("s1", backend, false)

	sess.Execute("var x = 42")
	sess.Execute("x * 2")
	require.Len(t, backend.calls, 2)
	assert.Equal(t, "var x = 42", backend.calls[0])
	assert.Equal(t, "x * 2", backend.calls[1])
}

func TestSession_IDReturnsAssignedID(t *testing.T) {
	sess := newSession("abc-123", &fakeBackend{}, false)
	assert.Equal(t, "abc-123", sess.ID())
}

func TestSession_ExecuteRecoversErrorPanicFromBackend(t *testing.T) {
	backend := &fakeBackend{evalFunc: func(string) error {
		panic(&sandbox.SecurityError{Reason: "host \"evil.example\" is not in the network allowlist"})
	}}
	sess := newSession("s1", backend, false)

	result := sess.Execute("net.HTTPGet(url)")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "SecurityException")
	assert.Contains(t, result.Error, "evil.example")
}

func TestSession_ExecuteRecoversNonErrorPanicFromBackend(t *testing.T) {
	backend := &fakeBackend{evalFunc: func(string) error { panic("boom") }}
	sess := newSession("s1", backend, false)

	result := sess.Execute("x")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "internal error")
}
