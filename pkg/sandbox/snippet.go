package sandbox

// This file is the snippet-facing view of the capability surface. The
// embedded interpreter binds these types and the surface's combinators into
// a session's top-level scope; their methods return bare values and panic
// with the underlying *SecurityError or *RuntimeError instead of returning
// it, so a denial anywhere inside a snippet unwinds to the session boundary
// and is captured there as a failed execution. Host-side Go callers use the
// error-returning API in filesystem.go/process.go/network.go directly.

// ClassifiedText is the string instantiation of Classified the snippet
// surface works in: classified file reads, chat, and transforms all carry it.
type ClassifiedText = Classified[string]

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// FS wraps a FileSystem capability for interpreted code.
type FS struct {
	fs *FileSystem
}

// Access resolves path against the capability root and returns a handle.
func (s FS) Access(path string) File {
	return File{entry: must(s.fs.Access(path))}
}

// Grep returns every line of path matching regex.
func (s FS) Grep(path, regex string) []GrepMatch {
	return must(s.fs.Grep(path, regex))
}

// GrepRecursive greps every file under dir whose name matches glob.
func (s FS) GrepRecursive(dir, regex, glob string) []GrepMatch {
	return must(s.fs.GrepRecursive(dir, regex, glob))
}

// Find returns the absolute paths under dir whose name matches glob.
func (s FS) Find(dir, glob string) []string {
	return must(s.fs.Find(dir, glob))
}

// File wraps a FileEntry handle for interpreted code.
type File struct {
	entry *FileEntry
}

func (f File) Exists() bool      { return must(f.entry.Exists()) }
func (f File) IsDirectory() bool { return must(f.entry.IsDirectory()) }
func (f File) Size() int64       { return must(f.entry.Size()) }
func (f File) Name() string      { return f.entry.Name() }
func (f File) Path() string      { return f.entry.Path() }
func (f File) IsClassified() bool {
	return f.entry.IsClassified()
}

func (f File) Read() string        { return must(f.entry.Read()) }
func (f File) ReadBytes() []byte   { return must(f.entry.ReadBytes()) }
func (f File) ReadLines() []string { return must(f.entry.ReadLines()) }

func (f File) Write(content string) {
	if err := f.entry.Write(content); err != nil {
		panic(err)
	}
}

func (f File) Append(content string) {
	if err := f.entry.Append(content); err != nil {
		panic(err)
	}
}

func (f File) Delete() {
	if err := f.entry.Delete(); err != nil {
		panic(err)
	}
}

func (f File) Children() []string { return must(f.entry.Children()) }

func (f File) Walk(fn func(path string)) {
	err := f.entry.Walk(func(p string) error {
		fn(p)
		return nil
	})
	if err != nil {
		panic(err)
	}
}

func (f File) ReadClassified() ClassifiedText {
	return must(f.entry.ReadClassified())
}

func (f File) WriteClassified(value ClassifiedText) {
	if err := f.entry.WriteClassified(value); err != nil {
		panic(err)
	}
}

// Proc wraps a ProcessPermission capability for interpreted code.
type Proc struct {
	perm *ProcessPermission
}

func (p Proc) Exec(command string, args []string, workingDir string, timeoutMs int) ProcessResult {
	return must(p.perm.Exec(command, args, workingDir, timeoutMs))
}

func (p Proc) ExecOutput(command string, args []string) string {
	return must(p.perm.ExecOutput(command, args))
}

// Net wraps a Network capability for interpreted code.
type Net struct {
	net *Network
}

func (n Net) HTTPGet(url string) string {
	return must(n.net.HTTPGet(url))
}

func (n Net) HTTPPost(url, body, contentType string) string {
	return must(n.net.HTTPPost(url, body, contentType))
}

// SnippetFilesystem grants a FS to fn for the dynamic extent of the call,
// with the same registration and revoke-on-return discipline as
// RequestFilesystem. A denial inside fn propagates as a panic.
func (s *Surface) SnippetFilesystem(root string, predicate PathPredicate, fn func(FS)) {
	_, err := RequestFilesystem(s, root, predicate, func(fs *FileSystem) (struct{}, error) {
		fn(FS{fs: fs})
		return struct{}{}, nil
	})
	if err != nil {
		panic(err)
	}
}

// SnippetExec grants a Proc to fn for the dynamic extent of the call.
func (s *Surface) SnippetExec(commands []string, fn func(Proc)) {
	_, err := RequestExecPermission(s, commands, func(p *ProcessPermission) (struct{}, error) {
		fn(Proc{perm: p})
		return struct{}{}, nil
	})
	if err != nil {
		panic(err)
	}
}

// SnippetNetwork grants a Net to fn for the dynamic extent of the call.
func (s *Surface) SnippetNetwork(hosts []string, fn func(Net)) {
	_, err := RequestNetwork(s, hosts, func(n *Network) (struct{}, error) {
		fn(Net{net: n})
		return struct{}{}, nil
	})
	if err != nil {
		panic(err)
	}
}

// SnippetChat is the snippet-facing chat primitive; it panics with a
// RuntimeError when the endpoint is not configured.
func (s *Surface) SnippetChat(text string) string {
	return must(s.Chat(text))
}

// SnippetChatClassified is the Classified overload of SnippetChat.
func (s *Surface) SnippetChatClassified(text ClassifiedText) ClassifiedText {
	return must(s.ChatClassified(text))
}

// SnippetMapClassified applies a pure transform under this surface's
// capability-suspension discipline.
func (s *Surface) SnippetMapClassified(c ClassifiedText, f func(string) string) ClassifiedText {
	return Map(s, c, f)
}

// SnippetFlatMapClassified is SnippetMapClassified for transforms that
// themselves produce a classified value.
func (s *Surface) SnippetFlatMapClassified(c ClassifiedText, f func(string) ClassifiedText) ClassifiedText {
	return FlatMap(s, c, f)
}
