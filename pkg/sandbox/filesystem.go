package sandbox

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/ternarybob/safeexec/internal/fileutil"
)

// PathPredicate filters candidate relative paths during Access; a nil
// predicate admits every path under the root.
type PathPredicate func(relative string) bool

// GrepMatch is one line matched by FileSystem.Grep/GrepRecursive.
type GrepMatch struct {
	Path string
	Line int
	Text string
}

// revocable backs the run-time half of capability lifetime enforcement
// described in the design notes: a request_* callback receives a pointer to
// a capability value, and on any exit from that call the capability is
// revoked. Every primitive checks the flag before acting, so a reference
// that escapes the callback (e.g. through a closure) can still exist but can
// no longer perform any operation.
type revocable struct {
	mu      sync.Mutex
	revoked bool
}

func (r *revocable) revoke() {
	r.mu.Lock()
	r.revoked = true
	r.mu.Unlock()
}

func (r *revocable) checkLive() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revoked {
		return &SecurityError{Reason: "capability used outside its granting scope"}
	}
	return nil
}

// suspend temporarily marks the capability revoked and returns a restore
// func that undoes the suspension, unless the capability had already been
// permanently revoked before the suspension began (in which case restore is
// a no-op and the capability stays dead). This is the run-time half of
// Classified transform purity enforcement: Surface.suspendCapabilities
// calls suspend on every live capability before running a transform, and
// the returned restore funcs afterward.
func (r *revocable) suspend() (restore func()) {
	r.mu.Lock()
	was := r.revoked
	r.revoked = true
	r.mu.Unlock()

	return func() {
		if was {
			return
		}
		r.mu.Lock()
		r.revoked = false
		r.mu.Unlock()
	}
}

// FileSystem is the filesystem capability: a confined root, an optional
// predicate over relative paths, and the subset of the configuration's
// classified paths relevant to this root.
type FileSystem struct {
	revocable

	root       string
	predicate  PathPredicate
	classified []string
}

// newFileSystem constructs a FileSystem rooted at root, deriving the
// relevant classified subset by intersecting configuredClassified with root
// in either direction: a classified path below the root, or an ancestor of
// the root, is kept either way. This is what prevents a "drill through"
// bypass where requesting a subtree inside a classified area would otherwise
// see no classified paths at all.
func newFileSystem(root string, predicate PathPredicate, configuredClassified []string) (*FileSystem, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	absRoot = filepath.Clean(absRoot)

	var relevant []string
	for _, cp := range configuredClassified {
		if hasPathPrefix(cp, absRoot) || hasPathPrefix(absRoot, cp) {
			relevant = append(relevant, cp)
		}
	}

	return &FileSystem{root: absRoot, predicate: predicate, classified: relevant}, nil
}

// hasPathPrefix reports whether path is prefix or equals it, respecting path
// segment boundaries (so "/secretsdir" is not considered under "/secrets").
func hasPathPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if prefix == string(filepath.Separator) {
		return strings.HasPrefix(path, prefix)
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}

// isClassified reports whether the resolved path is classified under this
// capability: equal to, or a descendant of, any entry in fs.classified.
func (fs *FileSystem) isClassified(resolved string) bool {
	for _, cp := range fs.classified {
		if hasPathPrefix(resolved, cp) {
			return true
		}
	}
	return false
}

// Access resolves path (relative to the capability's root, or absolute) and
// returns a handle, rejecting any path that escapes the root or that the
// optional predicate rejects.
func (fs *FileSystem) Access(path string) (*FileEntry, error) {
	if err := fs.checkLive(); err != nil {
		return nil, err
	}

	var resolved string
	if filepath.IsAbs(path) {
		resolved = filepath.Clean(path)
	} else {
		resolved = filepath.Clean(filepath.Join(fs.root, path))
	}

	if !hasPathPrefix(resolved, fs.root) {
		return nil, &SecurityError{Reason: fmt.Sprintf("path %q escapes capability root %q", resolved, fs.root)}
	}

	if fs.predicate != nil {
		rel, err := filepath.Rel(fs.root, resolved)
		if err != nil {
			return nil, &SecurityError{Reason: fmt.Sprintf("cannot compute relative path for %q", resolved)}
		}
		if !fs.predicate(rel) {
			return nil, &SecurityError{Reason: fmt.Sprintf("path %q rejected by capability predicate", path)}
		}
	}

	return &FileEntry{fs: fs, path: resolved}, nil
}

// Grep reads path line by line and returns every line matching regex.
func (fs *FileSystem) Grep(path string, regex string) ([]GrepMatch, error) {
	entry, err := fs.Access(path)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(regex)
	if err != nil {
		return nil, &RuntimeError{Reason: "invalid regex", Err: err}
	}
	lines, err := entry.ReadLines()
	if err != nil {
		return nil, err
	}
	var matches []GrepMatch
	for i, line := range lines {
		if re.MatchString(line) {
			matches = append(matches, GrepMatch{Path: entry.path, Line: i + 1, Text: line})
		}
	}
	return matches, nil
}

// GrepRecursive walks dir, restricts candidate files by glob applied to the
// file name, and greps each matching file.
func (fs *FileSystem) GrepRecursive(dir string, regex string, globPattern string) ([]GrepMatch, error) {
	paths, err := fs.Find(dir, globPattern)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(regex)
	if err != nil {
		return nil, &RuntimeError{Reason: "invalid regex", Err: err}
	}

	var matches []GrepMatch
	for _, p := range paths {
		entry, err := fs.Access(p)
		if err != nil {
			continue
		}
		lines, err := entry.ReadLines()
		if err != nil {
			continue
		}
		for i, line := range lines {
			if re.MatchString(line) {
				matches = append(matches, GrepMatch{Path: p, Line: i + 1, Text: line})
			}
		}
	}
	return matches, nil
}

// Find walks the subtree rooted at dir and returns absolute paths of every
// file whose base name matches globPattern. Any path under a classified
// subdirectory is skipped, even when dir itself is not classified: an
// unclassified root can still have a classified descendant (the "ancestor
// of root" case), and enumerating paths from inside it would leak exactly
// what Children is required to block.
func (fs *FileSystem) Find(dir string, globPattern string) ([]string, error) {
	entry, err := fs.Access(dir)
	if err != nil {
		return nil, err
	}
	if entry.IsClassified() {
		return nil, &SecurityError{Reason: fmt.Sprintf("path %q is classified", entry.path)}
	}

	g, err := glob.Compile(globPattern)
	if err != nil {
		return nil, &RuntimeError{Reason: "invalid glob", Err: err}
	}

	var out []string
	err = fileutil.Walk(entry.path, func(p string) error {
		if fs.isClassified(p) {
			return nil
		}
		if g.Match(filepath.Base(p)) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, &RuntimeError{Reason: "walk failed", Err: err}
	}
	return out, nil
}

// FileEntry is a handle bound to the FileSystem that produced it. Every
// operation re-checks access (liveness + classified status) at call time; a
// FileEntry must not outlive its owning FileSystem.
type FileEntry struct {
	fs   *FileSystem
	path string
}

// Path returns the resolved absolute path. A pure metadata query, permitted
// regardless of classified status.
func (e *FileEntry) Path() string { return e.path }

// Name returns the file's base name. A pure metadata query.
func (e *FileEntry) Name() string { return filepath.Base(e.path) }

// IsClassified reports whether this entry's path is classified under its
// owning capability. A pure metadata query that always succeeds.
func (e *FileEntry) IsClassified() bool { return e.fs.isClassified(e.path) }

// Exists reports whether the path exists. A pure metadata query.
func (e *FileEntry) Exists() (bool, error) {
	if err := e.fs.checkLive(); err != nil {
		return false, err
	}
	return fileutil.Exists(e.path), nil
}

// IsDirectory reports whether the path is a directory. A pure metadata
// query.
func (e *FileEntry) IsDirectory() (bool, error) {
	if err := e.fs.checkLive(); err != nil {
		return false, err
	}
	return fileutil.IsDir(e.path), nil
}

// Size returns the file size in bytes. A pure metadata query.
func (e *FileEntry) Size() (int64, error) {
	if err := e.fs.checkLive(); err != nil {
		return 0, err
	}
	return fileutil.Size(e.path)
}

func (e *FileEntry) requirePlain() error {
	if err := e.fs.checkLive(); err != nil {
		return err
	}
	if e.IsClassified() {
		return &SecurityError{Reason: fmt.Sprintf("path %q is classified: use the _classified operations", e.path)}
	}
	return nil
}

func (e *FileEntry) requireClassified() error {
	if err := e.fs.checkLive(); err != nil {
		return err
	}
	if !e.IsClassified() {
		return &SecurityError{Reason: fmt.Sprintf("path %q is not classified: use the plain operations", e.path)}
	}
	return nil
}

// Read returns the file's content as text. Fails on a classified path.
func (e *FileEntry) Read() (string, error) {
	if err := e.requirePlain(); err != nil {
		return "", err
	}
	data, err := fileutil.ReadFile(e.path)
	if err != nil {
		return "", &RuntimeError{Reason: "read failed", Err: err}
	}
	return string(data), nil
}

// ReadBytes returns the file's content as raw bytes. Fails on a classified
// path.
func (e *FileEntry) ReadBytes() ([]byte, error) {
	if err := e.requirePlain(); err != nil {
		return nil, err
	}
	data, err := fileutil.ReadFile(e.path)
	if err != nil {
		return nil, &RuntimeError{Reason: "read failed", Err: err}
	}
	return data, nil
}

// ReadLines returns the file split into lines, without trailing newlines.
// Fails on a classified path.
func (e *FileEntry) ReadLines() ([]string, error) {
	if err := e.requirePlain(); err != nil {
		return nil, err
	}
	lines, err := fileutil.ReadLines(e.path)
	if err != nil {
		return nil, &RuntimeError{Reason: "read failed", Err: err}
	}
	return lines, nil
}

// Write replaces the file's content. Fails on a classified path.
func (e *FileEntry) Write(content string) error {
	if err := e.requirePlain(); err != nil {
		return err
	}
	if err := fileutil.WriteFile(e.path, []byte(content)); err != nil {
		return &RuntimeError{Reason: "write failed", Err: err}
	}
	return nil
}

// Append adds content to the end of the file. Fails on a classified path.
func (e *FileEntry) Append(content string) error {
	if err := e.requirePlain(); err != nil {
		return err
	}
	if err := fileutil.AppendFile(e.path, []byte(content)); err != nil {
		return &RuntimeError{Reason: "append failed", Err: err}
	}
	return nil
}

// Delete removes the file. Fails on a classified path.
func (e *FileEntry) Delete() error {
	if err := e.requirePlain(); err != nil {
		return err
	}
	if err := fileutil.Remove(e.path); err != nil {
		return &RuntimeError{Reason: "delete failed", Err: err}
	}
	return nil
}

// Children lists the immediate entries of a directory. Fails on a classified
// path.
func (e *FileEntry) Children() ([]string, error) {
	if err := e.requirePlain(); err != nil {
		return nil, err
	}
	names, err := fileutil.Children(e.path)
	if err != nil {
		return nil, &RuntimeError{Reason: "list failed", Err: err}
	}
	return names, nil
}

// Walk recursively visits every regular file under this entry. Fails on a
// classified path; any classified descendant encountered during the walk is
// silently skipped rather than passed to fn, the same protection Children
// gives a single directory applied per visited path.
func (e *FileEntry) Walk(fn func(path string) error) error {
	if err := e.requirePlain(); err != nil {
		return err
	}
	if err := fileutil.Walk(e.path, func(p string) error {
		if e.fs.isClassified(p) {
			return nil
		}
		return fn(p)
	}); err != nil {
		return &RuntimeError{Reason: "walk failed", Err: err}
	}
	return nil
}

// ReadClassified reads a classified file and returns its content wrapped so
// it can never be displayed directly. Fails on a non-classified path.
func (e *FileEntry) ReadClassified() (Classified[string], error) {
	if err := e.requireClassified(); err != nil {
		return Classified[string]{}, err
	}
	data, err := fileutil.ReadFile(e.path)
	if err != nil {
		return Classified[string]{}, &RuntimeError{Reason: "read failed", Err: err}
	}
	return NewClassified(string(data)), nil
}

// WriteClassified writes a classified value to a classified file. Fails on a
// non-classified path.
func (e *FileEntry) WriteClassified(content Classified[string]) error {
	if err := e.requireClassified(); err != nil {
		return err
	}
	if err := fileutil.WriteFile(e.path, []byte(content.value)); err != nil {
		return &RuntimeError{Reason: "write failed", Err: err}
	}
	return nil
}
