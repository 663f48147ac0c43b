package interp

import "fmt"

// SessionError reports a failed lookup against the Manager, carrying the
// id that was not found so callers (the broker, transport error payloads)
// can report it without re-parsing an error string.
type SessionError struct {
	SessionID string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("no such session: %s", e.SessionID)
}
