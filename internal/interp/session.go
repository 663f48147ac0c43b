// Package interp implements the interpreter session lifecycle: one isolated
// embedded-interpreter instance per session, its preamble-injected
// capability surface, and the session manager that tracks named sessions.
package interp

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/safeexec/internal/validator"
	"github.com/ternarybob/safeexec/pkg/sandbox"
)

// ExecutionResult is the outcome of one Execute call.
type ExecutionResult struct {
	Success bool
	Output  string
	Error   string
}

type sessionState int

const (
	stateFresh sessionState = iota
	stateRunning
	stateIdle
	stateDisposed
)

// Backend runs one evaluation against an interpreter instance. Eval's
// implementation is responsible for nothing but running the code: output
// capture, validation, and state tracking are Session's job. This
// indirection is what keeps Session's lifecycle logic testable without an
// embedded interpreter.
type Backend interface {
	Eval(code string) error
}

// Session owns one interpreter instance (through its Backend) and one
// output buffer. State machine: fresh -> running (during one Execute) ->
// idle (after return) -> disposed (after Dispose). running is not
// re-entrant; concurrent Execute calls against the same session are
// serialized by execMu.
type Session struct {
	id      string
	backend Backend

	wrapCode         bool
	diagnosticPrefix string

	execMu sync.Mutex
	mu     sync.Mutex
	state  sessionState
}

func newSession(id string, backend Backend, wrapCode bool) *Session {
	return &Session{
		id:               id,
		backend:          backend,
		wrapCode:         wrapCode,
		diagnosticPrefix: "-- [E",
		state:            stateFresh,
	}
}

// ID returns the session's stable identifier.
func (s *Session) ID() string { return s.id }

// disposed reports whether Dispose has been called.
func (s *Session) disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateDisposed
}

// Execute validates, optionally wraps, and runs code against the session's
// interpreter, capturing stdout/stderr for the duration of the call.
func (s *Session) Execute(code string) ExecutionResult {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	s.mu.Lock()
	if s.state == stateDisposed {
		s.mu.Unlock()
		return ExecutionResult{Success: false, Error: "RuntimeException: session is disposed"}
	}
	s.state = stateRunning
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.state != stateDisposed {
			s.state = stateIdle
		}
		s.mu.Unlock()
	}()

	violations := validator.Validate(code)
	if len(violations) > 0 {
		return ExecutionResult{Success: false, Error: validator.FormatReport(violations)}
	}

	runnable := code
	if s.wrapCode && isBareExpression(code) {
		runnable = wrapExpression(code)
	}

	var evalErr error
	output := captureStdStreams(func() {
		defer func() {
			if rec := recover(); rec != nil {
				if err, ok := rec.(error); ok {
					evalErr = err
					return
				}
				evalErr = fmt.Errorf("internal error: %v", rec)
			}
		}()
		evalErr = s.backend.Eval(runnable)
	})

	if evalErr != nil {
		return ExecutionResult{Success: false, Output: output, Error: formatEvalError(evalErr)}
	}

	if containsDiagnosticMarker(output, s.diagnosticPrefix) {
		return ExecutionResult{Success: false, Output: output}
	}

	return ExecutionResult{Success: true, Output: output}
}

// Dispose transitions the session to disposed. Any Execute already holding
// execMu finishes normally; every subsequent Execute fails immediately.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateDisposed
}

func formatEvalError(err error) string {
	var secErr *sandbox.SecurityError
	if errors.As(err, &secErr) {
		return secErr.Error()
	}
	var runErr *sandbox.RuntimeError
	if errors.As(err, &runErr) {
		return runErr.Error()
	}
	return "EvalException: " + err.Error()
}
