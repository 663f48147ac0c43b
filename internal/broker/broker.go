// Package broker dispatches the sandbox's fixed tool catalog onto the
// interpreter session manager, the audit recorder, and a one-shot
// stateless execution path.
package broker

import (
	"errors"
	"fmt"

	"github.com/ternarybob/safeexec/internal/audit"
	"github.com/ternarybob/safeexec/internal/interp"
	"github.com/ternarybob/safeexec/pkg/sandbox"
)

const statelessTag = ""

// ErrSessionsDisabled is returned by the session-oriented operations when
// the broker was built with sessions turned off.
var ErrSessionsDisabled = errors.New("session tools are disabled")

// Argument describes one parameter of a tool in the catalog.
type Argument struct {
	Name string
	Type string
}

// Tool describes one entry of the fixed tool catalog.
type Tool struct {
	Name        string
	Description string
	Arguments   []Argument
}

// CallResult is the formatted outcome of dispatching one tool call.
type CallResult struct {
	Text    string
	IsError bool
}

// Broker ties together a session manager and an audit recorder. Every
// execution, stateless or in-session, flows through the same manager so
// stateless calls get the same session lifecycle and disposal guarantees
// as named sessions, just with a Delete immediately following Create.
type Broker struct {
	manager         *interp.Manager
	recorder        *audit.Recorder
	sessionsEnabled bool
}

// New builds a broker around an already-constructed session manager.
func New(manager *interp.Manager, recorder *audit.Recorder, sessionsEnabled bool) *Broker {
	return &Broker{
		manager:         manager,
		recorder:        recorder,
		sessionsEnabled: sessionsEnabled,
	}
}

// Catalog returns the fixed tool catalog, omitting the session-oriented
// tools when sessions are disabled.
func (b *Broker) Catalog() []Tool {
	tools := []Tool{
		{Name: "execute_stateless", Description: "Run a one-shot sandboxed snippet and return its formatted result.", Arguments: []Argument{{Name: "code", Type: "text"}}},
	}
	if b.sessionsEnabled {
		tools = append(tools,
			Tool{Name: "create_session", Description: "Mint a new interpreter session and return its id."},
			Tool{Name: "execute_in_session", Description: "Run a snippet in an existing session and return its formatted result.", Arguments: []Argument{{Name: "session_id", Type: "text"}, {Name: "code", Type: "text"}}},
			Tool{Name: "delete_session", Description: "Delete an existing session.", Arguments: []Argument{{Name: "session_id", Type: "text"}}},
			Tool{Name: "list_sessions", Description: "List the ids of all active sessions."},
		)
	}
	tools = append(tools, Tool{Name: "show_interface", Description: "Return the embedded description of the capability surface."})
	return tools
}

// ExecuteStateless runs code in a fresh, disposable session.
func (b *Broker) ExecuteStateless(code string) CallResult {
	id, err := b.manager.Create()
	if err != nil {
		return CallResult{Text: fmt.Sprintf("Error: %v", err), IsError: true}
	}
	defer b.manager.Delete(id)

	result, _ := b.manager.ExecuteIn(id, code)
	b.record(statelessTag, code, result)
	return toCallResult(result)
}

// CreateSession mints a new session and returns its id as the call text.
func (b *Broker) CreateSession() (CallResult, error) {
	if !b.sessionsEnabled {
		return CallResult{}, ErrSessionsDisabled
	}
	id, err := b.manager.Create()
	if err != nil {
		return CallResult{Text: fmt.Sprintf("Error: %v", err), IsError: true}, nil
	}
	return CallResult{Text: id}, nil
}

// ExecuteInSession delegates to the named session. The returned error is
// non-nil only for an unknown session id, matching the wire protocol's
// invalid-params treatment for that case.
func (b *Broker) ExecuteInSession(sessionID, code string) (CallResult, error) {
	if !b.sessionsEnabled {
		return CallResult{}, ErrSessionsDisabled
	}
	result, err := b.manager.ExecuteIn(sessionID, code)
	if err != nil {
		return CallResult{}, err
	}

	b.record(sessionID, code, result)
	return toCallResult(result), nil
}

// DeleteSession removes a session, reporting whether it existed.
func (b *Broker) DeleteSession(sessionID string) (CallResult, error) {
	if !b.sessionsEnabled {
		return CallResult{}, ErrSessionsDisabled
	}
	if b.manager.Delete(sessionID) {
		return CallResult{Text: fmt.Sprintf("Deleted session %s", sessionID)}, nil
	}
	return CallResult{Text: fmt.Sprintf("No such session: %s", sessionID), IsError: true}, nil
}

// ListSessions returns the newline-joined ids of all live sessions, or a
// sentinel message when there are none.
func (b *Broker) ListSessions() (CallResult, error) {
	if !b.sessionsEnabled {
		return CallResult{}, ErrSessionsDisabled
	}
	ids := b.manager.List()
	if len(ids) == 0 {
		return CallResult{Text: "No active sessions"}, nil
	}
	text := ids[0]
	for _, id := range ids[1:] {
		text += "\n" + id
	}
	return CallResult{Text: text}, nil
}

// ShowInterface returns the fixed capability-surface reference text.
func (b *Broker) ShowInterface() CallResult {
	return CallResult{Text: sandbox.InterfaceReference}
}

// Shutdown disposes every live session and closes the audit recorder.
func (b *Broker) Shutdown() error {
	b.manager.DisposeAll()
	return b.recorder.Close()
}

func (b *Broker) record(sessionID, code string, result interp.ExecutionResult) {
	_ = b.recorder.Record(sessionID, code, result.Output, result.Success, result.Error)
}

func toCallResult(result interp.ExecutionResult) CallResult {
	return CallResult{Text: formatResult(result.Output, result.Error), IsError: !result.Success}
}

func formatResult(output, errText string) string {
	switch {
	case output != "" && errText != "":
		return output + "\n\nError: " + errText
	case errText != "":
		return "Error: " + errText
	case output != "":
		return output
	default:
		return "(no output)"
	}
}
