package validator

import "regexp"

// Rule is one entry in the fixed pattern table the validator checks every
// submitted snippet against. Directive rules run against the original,
// unstripped source because their payload is syntactically a comment or a
// compiler marker; all other rules run against the stripped view.
type Rule struct {
	ID          string
	Pattern     string
	Description string
	Directive   bool

	re *regexp.Regexp
}

func (r *Rule) compiled() *regexp.Regexp {
	return r.re
}

func init() {
	for i := range rules {
		rules[i].re = regexp.MustCompile(rules[i].Pattern)
	}
}

// rules is the fixed table, grouped by category in the order violations are
// reported (rule index, then line number).
//
// The sandboxed snippet language is Go-as-interpreted-by-yaegi, so the
// forbidden references below are the Go stdlib/runtime surfaces that would
// let a snippet bypass its capability surface: direct file I/O, direct
// process spawning, direct network dialing, unsafe casts, goroutine
// spawning (the closest Go analogue to the source language's capture
// checking escapes, since an unsupervised goroutine can outlive and leak a
// capability), reflection, low-level runtime/cgo access, os.Exit and signal
// handling, build/compiler directives, and plugin-based dynamic loading.
var rules = []Rule{
	// file I/O bypass
	{ID: "file-io-os-pkg", Pattern: `\bos\.(Open|OpenFile|Create|Remove|RemoveAll|Mkdir|MkdirAll|Rename|Chmod|Chown|Chtimes|Truncate|Symlink|Link|ReadFile|WriteFile|ReadDir)\b`, Description: "direct os package file access bypasses the filesystem capability"},
	{ID: "file-io-ioutil", Pattern: `\bioutil\.(ReadFile|WriteFile|ReadDir|TempFile|TempDir)\b`, Description: "direct ioutil file access bypasses the filesystem capability"},
	{ID: "file-io-import", Pattern: `"io/ioutil"`, Description: "importing io/ioutil bypasses the filesystem capability"},

	// process bypass
	{ID: "proc-exec-import", Pattern: `"os/exec"`, Description: "importing os/exec bypasses the process-permission capability"},
	{ID: "proc-exec-pkg", Pattern: `\bexec\.(Command|CommandContext)\b`, Description: "direct process spawning bypasses the process-permission capability"},
	{ID: "proc-start-process", Pattern: `\bos\.StartProcess\b`, Description: "os.StartProcess bypasses the process-permission capability"},
	{ID: "proc-syscall-exec", Pattern: `\bsyscall\.(Exec|ForkExec|StartProcess)\b`, Description: "syscall-level process spawning bypasses the process-permission capability"},

	// network bypass
	{ID: "net-dial", Pattern: `\bnet\.(Dial|DialTimeout|Listen|ListenTCP|ListenUDP|ResolveTCPAddr|ResolveUDPAddr)\b`, Description: "direct net package use bypasses the network capability"},
	{ID: "net-http-import", Pattern: `"net/http"`, Description: "importing net/http bypasses the network capability"},
	{ID: "net-http-pkg", Pattern: `\bhttp\.(Get|Post|PostForm|Head|DefaultClient|NewRequest|Client\{)\b`, Description: "direct http package use bypasses the network capability"},

	// unchecked casts
	{ID: "unsafe-pointer-cast", Pattern: `\(\s*\*\w+\s*\)\s*\(\s*unsafe\.Pointer`, Description: "unsafe pointer cast defeats type-safety guarantees the sandbox relies on"},
	{ID: "unsafe-import", Pattern: `"unsafe"`, Description: "importing unsafe defeats type-safety guarantees the sandbox relies on"},

	// capture-checking escapes (goroutines can outlive and leak a revoked capability)
	{ID: "sys-thread", Pattern: `\bgo\s+(func\s*\(|\w+\s*\()`, Description: "spawning a goroutine can outlive and leak a capability past its granting scope"},

	// reflection
	{ID: "reflection-import", Pattern: `"reflect"`, Description: "importing reflect can be used to reach unexported capability internals"},
	{ID: "reflection-pkg", Pattern: `\breflect\.(ValueOf|TypeOf|NewAt)\b`, Description: "reflection can be used to reach unexported capability internals"},

	// "JVM internals" analogue: low-level Go runtime access
	{ID: "runtime-internals", Pattern: `\bruntime\.(SetFinalizer|Goexit|LockOSThread|UnlockOSThread)\b`, Description: "low-level runtime access is outside the sandboxed surface"},
	{ID: "runtime-debug-import", Pattern: `"runtime/debug"`, Description: "importing runtime/debug is outside the sandboxed surface"},

	// system control
	{ID: "sys-exit", Pattern: `\bos\.Exit\b`, Description: "os.Exit would terminate the hosting broker process"},
	{ID: "sys-signal-import", Pattern: `"os/signal"`, Description: "importing os/signal is outside the sandboxed surface"},
	{ID: "sys-syscall-import", Pattern: `"syscall"`, Description: "importing syscall is outside the sandboxed surface"},

	// build-tool directives (directive class: checked against unstripped text)
	{ID: "directive-go-build", Pattern: `(?m)^\s*//go:build\b`, Description: "go:build directives are not permitted in submitted code", Directive: true},
	{ID: "directive-legacy-build", Pattern: `(?m)^\s*//\s*\+build\b`, Description: "+build directives are not permitted in submitted code", Directive: true},
	{ID: "directive-go-generate", Pattern: `(?m)^\s*//go:generate\b`, Description: "go:generate directives are not permitted in submitted code", Directive: true},
	{ID: "directive-go-linkname", Pattern: `(?m)^\s*//go:linkname\b`, Description: "go:linkname directives can reach unexported runtime internals", Directive: true},
	{ID: "directive-cgo-marker", Pattern: `(?m)^\s*//\s*#cgo\b`, Description: "cgo directives are not permitted in submitted code", Directive: true},

	// class loading analogue: dynamic plugin loading
	{ID: "class-loading-plugin-import", Pattern: `"plugin"`, Description: "importing plugin allows loading arbitrary native code outside the sandbox"},
	{ID: "class-loading-plugin-pkg", Pattern: `\bplugin\.(Open|Symbol)\b`, Description: "plugin-based dynamic loading is outside the sandboxed surface"},

	// compiler internals
	{ID: "compiler-cgo-import", Pattern: `import\s+"C"`, Description: "cgo (import \"C\") escapes the interpreted sandbox entirely"},
	{ID: "compiler-go-tooling-import", Pattern: `"go/(ast|parser|types|importer|build)"`, Description: "importing Go compiler-tooling packages is outside the sandboxed surface"},
}
