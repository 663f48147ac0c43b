package interp

import (
	"bytes"
	"io"
	"os"
	"sync"
)

// captureStdStreams redirects the process's os.Stdout and os.Stderr to an
// in-memory buffer for the duration of fn, then restores them
// unconditionally, even if fn panics. Only one capture can be active at a
// time per process. Session.execMu serializes Execute calls within one
// session only; captureMu serializes captures across sessions, so two
// sessions executing at the same time take turns here.
var captureMu sync.Mutex

func captureStdStreams(fn func()) (captured string) {
	captureMu.Lock()
	defer captureMu.Unlock()

	origStdout, origStderr := os.Stdout, os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		fn()
		return ""
	}
	os.Stdout = w
	os.Stderr = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		io.Copy(&buf, r)
		close(done)
	}()

	defer func() {
		os.Stdout, os.Stderr = origStdout, origStderr
		w.Close()
		<-done
		r.Close()
		captured = buf.String()
	}()

	fn()
	return
}
