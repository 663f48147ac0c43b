package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystem_AccessOutsideRootRejected(t *testing.T) {
	root := t.TempDir()
	fs, err := newFileSystem(root, nil, nil)
	require.NoError(t, err)

	_, err = fs.Access("/etc/passwd")
	require.Error(t, err)
	var secErr *SecurityError
	assert.ErrorAs(t, err, &secErr)
}

func TestFileSystem_WriteThenReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	fs, err := newFileSystem(root, nil, nil)
	require.NoError(t, err)

	entry, err := fs.Access("hello.txt")
	require.NoError(t, err)

	require.NoError(t, entry.Write("hello world"))

	got, err := entry.Read()
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestFileSystem_ClassifiedPathBlocksPlainOps(t *testing.T) {
	root := t.TempDir()
	secretDir := filepath.Join(root, "secrets")
	require.NoError(t, os.MkdirAll(secretDir, 0o755))
	secretFile := filepath.Join(secretDir, "x")
	require.NoError(t, os.WriteFile(secretFile, []byte("s"), 0o644))

	fs, err := newFileSystem(root, nil, []string{secretDir})
	require.NoError(t, err)

	entry, err := fs.Access(secretFile)
	require.NoError(t, err)

	assert.True(t, entry.IsClassified())

	_, err = entry.Read()
	require.Error(t, err)
	var secErr *SecurityError
	assert.ErrorAs(t, err, &secErr)

	classified, err := entry.ReadClassified()
	require.NoError(t, err)
	assert.Equal(t, "Classified(***)", classified.String())
}

func TestFileSystem_NonClassifiedPathBlocksClassifiedOps(t *testing.T) {
	root := t.TempDir()
	plainFile := filepath.Join(root, "plain.txt")
	require.NoError(t, os.WriteFile(plainFile, []byte("p"), 0o644))

	fs, err := newFileSystem(root, nil, []string{filepath.Join(root, "secrets")})
	require.NoError(t, err)

	entry, err := fs.Access(plainFile)
	require.NoError(t, err)

	assert.False(t, entry.IsClassified())

	_, err = entry.ReadClassified()
	require.Error(t, err)
	var secErr *SecurityError
	assert.ErrorAs(t, err, &secErr)

	content, err := entry.Read()
	require.NoError(t, err)
	assert.Equal(t, "p", content)
}

func TestFileSystem_ClassifiedAncestorOfRootStillProtectsSubtree(t *testing.T) {
	// Root is a child of the classified directory: the classified directory
	// is an ancestor of root, and must still protect the subtree.
	parent := t.TempDir()
	child := filepath.Join(parent, "child")
	require.NoError(t, os.MkdirAll(child, 0o755))
	file := filepath.Join(child, "x.txt")
	require.NoError(t, os.WriteFile(file, []byte("s"), 0o644))

	fs, err := newFileSystem(child, nil, []string{parent})
	require.NoError(t, err)

	entry, err := fs.Access(file)
	require.NoError(t, err)
	assert.True(t, entry.IsClassified())
}

func TestFileSystem_PredicateRejection(t *testing.T) {
	root := t.TempDir()
	predicate := func(rel string) bool { return rel != "blocked.txt" }
	fs, err := newFileSystem(root, predicate, nil)
	require.NoError(t, err)

	_, err = fs.Access("blocked.txt")
	require.Error(t, err)

	_, err = fs.Access("allowed.txt")
	require.NoError(t, err)
}

func TestFileSystem_RevokedCapabilityRejectsAllOps(t *testing.T) {
	root := t.TempDir()
	fs, err := newFileSystem(root, nil, nil)
	require.NoError(t, err)

	entry, err := fs.Access("file.txt")
	require.NoError(t, err)
	require.NoError(t, entry.Write("data"))

	fs.revoke()

	_, err = entry.Read()
	require.Error(t, err)
	var secErr *SecurityError
	assert.ErrorAs(t, err, &secErr)
}

func TestFileSystem_FindAndGrep(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\nfunc A() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("not go\n"), 0o644))

	fs, err := newFileSystem(root, nil, nil)
	require.NoError(t, err)

	found, err := fs.Find(".", "*.go")
	require.NoError(t, err)
	require.Len(t, found, 1)

	matches, err := fs.Grep("a.go", "func")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Line)
}

// TestFileSystem_FindSkipsClassifiedDescendant covers the root that is an
// unclassified ancestor of a classified subdirectory: Find must not
// enumerate paths from inside the classified subtree, the same protection
// Children gives a single classified directory.
func TestFileSystem_FindSkipsClassifiedDescendant(t *testing.T) {
	root := t.TempDir()
	secretDir := filepath.Join(root, "secrets")
	require.NoError(t, os.MkdirAll(secretDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "visible.go"), []byte("package a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(secretDir, "hidden.go"), []byte("package a\n"), 0o644))

	fs, err := newFileSystem(root, nil, []string{secretDir})
	require.NoError(t, err)

	found, err := fs.Find(".", "*.go")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, filepath.Join(root, "visible.go"), found[0])
}

// TestFileSystem_GrepRecursiveSkipsClassifiedDescendant is the same
// scenario exercised through GrepRecursive, which is built on Find.
func TestFileSystem_GrepRecursiveSkipsClassifiedDescendant(t *testing.T) {
	root := t.TempDir()
	secretDir := filepath.Join(root, "secrets")
	require.NoError(t, os.MkdirAll(secretDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "visible.go"), []byte("func Visible() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(secretDir, "hidden.go"), []byte("func Hidden() {}\n"), 0o644))

	fs, err := newFileSystem(root, nil, []string{secretDir})
	require.NoError(t, err)

	matches, err := fs.GrepRecursive(".", "func", "*.go")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, filepath.Join(root, "visible.go"), matches[0].Path)
}

// TestFileEntry_WalkSkipsClassifiedDescendant covers the same scenario for
// FileEntry.Walk.
func TestFileEntry_WalkSkipsClassifiedDescendant(t *testing.T) {
	root := t.TempDir()
	secretDir := filepath.Join(root, "secrets")
	require.NoError(t, os.MkdirAll(secretDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "visible.txt"), []byte("v"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(secretDir, "hidden.txt"), []byte("h"), 0o644))

	fs, err := newFileSystem(root, nil, []string{secretDir})
	require.NoError(t, err)

	entry, err := fs.Access(".")
	require.NoError(t, err)

	var visited []string
	require.NoError(t, entry.Walk(func(p string) error {
		visited = append(visited, p)
		return nil
	}))

	assert.Equal(t, []string{filepath.Join(root, "visible.txt")}, visited)
}

func TestFileSystem_RootAtFilesystemRootAdmitsAbsolutePaths(t *testing.T) {
	fs, err := newFileSystem(string(filepath.Separator), nil, nil)
	require.NoError(t, err)

	_, err = fs.Access("/etc/passwd")
	assert.NoError(t, err)
}

func TestHasPathPrefix_SegmentBoundary(t *testing.T) {
	assert.True(t, hasPathPrefix("/secrets/x", "/secrets"))
	assert.True(t, hasPathPrefix("/secrets", "/secrets"))
	assert.False(t, hasPathPrefix("/secretsdir/x", "/secrets"))
	assert.True(t, hasPathPrefix("/anything", "/"))
}
