package sandbox

import "sync"

// Surface is the one concrete capability surface constructed per
// interpreter session (or per one-shot call) and bound into the top-level
// scope by the session's preamble. It is polymorphic over the three
// capability kinds by holding three concrete value types, not a common
// interface: FileSystem, ProcessPermission, and Network are unrelated types,
// each with its own allowlist shape.
//
// Surface also tracks every capability currently live under one of its
// request_* scopes, so that a Classified transform (see classified.go) can
// suspend all of them for the duration of the transform call -- the
// run-time substitute for the capture-checking purity enforcement the
// design notes describe.
type Surface struct {
	classifiedPaths []string
	strict          bool
	chat            *chatClient

	liveMu sync.Mutex
	live   []*revocable
}

// NewSurface builds a Surface bound to the given configuration: the set of
// classified paths, the strict-mode flag, and the optional chat endpoint.
func NewSurface(classifiedPaths []string, strict bool, chat *ChatConfig) *Surface {
	return &Surface{
		classifiedPaths: classifiedPaths,
		strict:          strict,
		chat:            newChatClient(chat),
	}
}

func (s *Surface) register(r *revocable) {
	s.liveMu.Lock()
	s.live = append(s.live, r)
	s.liveMu.Unlock()
}

func (s *Surface) unregister(r *revocable) {
	s.liveMu.Lock()
	for i, live := range s.live {
		if live == r {
			s.live = append(s.live[:i:i], s.live[i+1:]...)
			break
		}
	}
	s.liveMu.Unlock()
}

// suspendCapabilities revokes every capability currently live under this
// surface's request_* scopes, runs fn, then restores each capability's
// prior revocation state. A transform passed to Classified's Map/FlatMap
// runs inside this call: a closure that captured a still-live FileSystem,
// ProcessPermission, or Network from its enclosing request_* scope can no
// longer perform any operation through it while the transform itself is
// executing, which is what makes the transform "pure" as far as this
// surface can enforce without compile-time capture checking.
func (s *Surface) suspendCapabilities(fn func()) {
	s.liveMu.Lock()
	live := append([]*revocable(nil), s.live...)
	s.liveMu.Unlock()

	restores := make([]func(), len(live))
	for i, r := range live {
		restores[i] = r.suspend()
	}
	defer func() {
		for _, restore := range restores {
			restore()
		}
	}()

	fn()
}

// RequestFilesystem constructs a FileSystem capability rooted at root and
// passes it to fn, which runs synchronously. The capability is registered
// as live for the duration of the call (so a Classified transform run from
// within fn suspends it too) and revoked on every exit path from fn,
// including a panic recovered by the caller of RequestFilesystem's own
// caller (the interpreter session boundary).
func RequestFilesystem[T any](s *Surface, root string, predicate PathPredicate, fn func(*FileSystem) (T, error)) (T, error) {
	var zero T
	fs, err := newFileSystem(root, predicate, s.classifiedPaths)
	if err != nil {
		return zero, err
	}
	s.register(&fs.revocable)
	defer s.unregister(&fs.revocable)
	defer fs.revoke()
	return fn(fs)
}

// RequestExecPermission constructs a ProcessPermission capability over the
// given allowlist and passes it to fn, registering it as live for the
// duration of the call and revoking it on every exit path.
func RequestExecPermission[T any](s *Surface, commands []string, fn func(*ProcessPermission) (T, error)) (T, error) {
	p := newProcessPermission(commands, s.strict)
	s.register(&p.revocable)
	defer s.unregister(&p.revocable)
	defer p.revoke()
	return fn(p)
}

// RequestNetwork constructs a Network capability over the given host
// allowlist and passes it to fn, registering it as live for the duration of
// the call and revoking it on every exit path.
func RequestNetwork[T any](s *Surface, hosts []string, fn func(*Network) (T, error)) (T, error) {
	n := newNetwork(hosts)
	s.register(&n.revocable)
	defer s.unregister(&n.revocable)
	defer n.revoke()
	return fn(n)
}

// Classify wraps v as a Classified[T]. This is the classify(value) factory
// the capability surface exposes; it requires no live capability since it
// performs no side effect.
func Classify[T any](s *Surface, v T) Classified[T] {
	return NewClassified(v)
}

// InterfaceReference is the fixed, embedded description of the capability
// surface returned verbatim by the broker's show_interface tool.
const InterfaceReference = `Use only the capability surface below to interact with the host. Do not
attempt to reach the file system, a subprocess, or the network through any
other means; the validator rejects such attempts before your code runs, and
anything that slips past it will fail with a security error at the first
real operation.

requestFilesystem(root string, fn func(fs sandbox.FS))
requestFilesystemWhere(root string, allow func(rel string) bool, fn func(fs sandbox.FS))
  fs.Access(path string) sandbox.File
  fs.Grep(path, regex string) []sandbox.GrepMatch
  fs.GrepRecursive(dir, regex, glob string) []sandbox.GrepMatch
  fs.Find(dir, glob string) []string
  file.Exists() bool / file.IsDirectory() bool / file.Size() int64
  file.Name() string / file.Path() string / file.IsClassified() bool
  file.Read() string / file.ReadBytes() []byte / file.ReadLines() []string
  file.Write(content string) / file.Append(content string) / file.Delete()
  file.Children() []string / file.Walk(fn func(path string))
  file.ReadClassified() sandbox.ClassifiedText
  file.WriteClassified(value sandbox.ClassifiedText)

requestExecPermission(commands []string, fn func(proc sandbox.Proc))
  proc.Exec(command string, args []string, workingDir string, timeoutMs int) sandbox.ProcessResult
  proc.ExecOutput(command string, args []string) string

requestNetwork(hosts []string, fn func(net sandbox.Net))
  net.HTTPGet(url string) string
  net.HTTPPost(url, body, contentType string) string

chat(text string) string
chatClassified(text sandbox.ClassifiedText) sandbox.ClassifiedText

classify(value string) sandbox.ClassifiedText
mapClassified(value sandbox.ClassifiedText, fn func(string) string) sandbox.ClassifiedText
flatMapClassified(value sandbox.ClassifiedText, fn func(string) sandbox.ClassifiedText) sandbox.ClassifiedText

A capability is valid only inside the fn that received it. A security
denial or runtime failure aborts the snippet at the point it occurs.
Classified values never display their contents; they render as
Classified(***).`
