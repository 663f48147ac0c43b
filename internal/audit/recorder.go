// Package audit writes a record of every execution the broker runs to
// disk, as a pair of plain text files per call: the code that ran and the
// result it produced. Recording is entirely optional and switched on only
// when a record directory is configured. Writes happen off the calling
// goroutine, on a single drain worker, so record order matches execute
// order without the broker waiting on disk.
package audit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/safeexec/internal/fileutil"
)

// statelessSessionID tags calls that ran outside any session.
const statelessSessionID = "stateless"

type pendingRecord struct {
	codePath   string
	resultPath string
	code       []byte
	result     []byte
}

// Recorder writes one .code/.result file pair per recorded call. Sequence
// numbers come from an atomic counter, so two calls racing on the same
// wall-clock timestamp never collide on file name.
type Recorder struct {
	dir string
	seq uint64

	mu     sync.Mutex
	closed bool
	ch     chan pendingRecord
	done   chan struct{}

	errMu sync.Mutex
	err   error
}

// NewRecorder returns a Recorder rooted at dir, creating dir if needed and
// starting the drain worker. An empty dir disables recording: the returned
// Recorder is non-nil but Record becomes a no-op, so callers never need a
// nil check.
func NewRecorder(dir string) (*Recorder, error) {
	if dir == "" {
		return &Recorder{}, nil
	}
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	r := &Recorder{
		dir:  dir,
		ch:   make(chan pendingRecord, 64),
		done: make(chan struct{}),
	}
	go r.drain()
	return r, nil
}

// Enabled reports whether this recorder actually writes to disk.
func (r *Recorder) Enabled() bool {
	return r.dir != ""
}

// Record enqueues the code and result of one execution for writing.
// sessionID is empty for stateless calls, in which case the sentinel
// "stateless" is used in the file name instead. Write failures surface from
// Close, not here: the broker offers records and moves on.
func (r *Recorder) Record(sessionID, code, output string, success bool, execErr string) error {
	if !r.Enabled() {
		return nil
	}

	id := sessionID
	if id == "" {
		id = statelessSessionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	seq := atomic.AddUint64(&r.seq, 1)
	base := fmt.Sprintf("%s_%06d_%s", time.Now().UTC().Format("20060102T150405.000000000Z"), seq, id)

	r.ch <- pendingRecord{
		codePath:   fileutil.Join(r.dir, base+".code"),
		resultPath: fileutil.Join(r.dir, base+".result"),
		code:       []byte(code),
		result:     []byte(formatResult(output, success, execErr)),
	}
	return nil
}

func (r *Recorder) drain() {
	defer close(r.done)
	for rec := range r.ch {
		if err := fileutil.WriteFile(rec.codePath, rec.code); err != nil {
			r.keepErr(err)
			continue
		}
		if err := fileutil.WriteFile(rec.resultPath, rec.result); err != nil {
			r.keepErr(err)
		}
	}
}

func (r *Recorder) keepErr(err error) {
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.errMu.Unlock()
}

func formatResult(output string, success bool, execErr string) string {
	status := "ok"
	if !success {
		status = "error"
	}
	result := fmt.Sprintf("status: %s\n\n%s", status, output)
	if execErr != "" {
		result += fmt.Sprintf("\n\nerror: %s", execErr)
	}
	return result
}

// Close stops accepting records, waits for every enqueued record to reach
// disk, and returns the first write error encountered over the recorder's
// lifetime. Safe to call more than once.
func (r *Recorder) Close() error {
	if !r.Enabled() {
		return nil
	}

	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()

	<-r.done

	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}
