package interp

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/ternarybob/safeexec/pkg/sandbox"
)

// yaegiBackend evaluates code against an embedded yaegi interpreter. One
// instance is created per Session and never shared: yaegi's top-level
// scope is exactly the persistence mechanism a session's define-then-reuse
// contract relies on.
type yaegiBackend struct {
	vm *interp.Interpreter
}

// newYaegiBackend builds an interpreter with the Go standard library
// available, binds the session's capability surface under the "sandbox"
// package name, and runs the preamble that brings the surface's members
// into the top-level scope so snippets call them directly.
func newYaegiBackend(surface *sandbox.Surface) (*yaegiBackend, error) {
	vm := interp.New(interp.Options{})
	if err := vm.Use(stdlib.Symbols); err != nil {
		return nil, err
	}
	if err := vm.Use(surfaceExports(surface)); err != nil {
		return nil, err
	}
	if _, err := vm.Eval(preamble); err != nil {
		return nil, err
	}
	return &yaegiBackend{vm: vm}, nil
}

// surfaceExports binds the capability surface to concrete, non-generic
// closures the interpreter can call. yaegi resolves host symbols through
// reflection, which cannot see uninstantiated generic functions, so each
// request_* combinator and Classified transform is exported already
// instantiated against this session's surface. The closures panic on denial
// rather than returning an error; Eval unwinds the panic back into the
// typed sandbox error so the session boundary can report it.
func surfaceExports(surface *sandbox.Surface) interp.Exports {
	return interp.Exports{
		"sandbox/sandbox": {
			"FS":             reflect.ValueOf((*sandbox.FS)(nil)),
			"File":           reflect.ValueOf((*sandbox.File)(nil)),
			"Proc":           reflect.ValueOf((*sandbox.Proc)(nil)),
			"Net":            reflect.ValueOf((*sandbox.Net)(nil)),
			"ClassifiedText": reflect.ValueOf((*sandbox.ClassifiedText)(nil)),
			"GrepMatch":      reflect.ValueOf((*sandbox.GrepMatch)(nil)),
			"ProcessResult":  reflect.ValueOf((*sandbox.ProcessResult)(nil)),

			"RequestFilesystem": reflect.ValueOf(func(root string, fn func(sandbox.FS)) {
				surface.SnippetFilesystem(root, nil, fn)
			}),
			"RequestFilesystemWhere": reflect.ValueOf(func(root string, allow func(string) bool, fn func(sandbox.FS)) {
				surface.SnippetFilesystem(root, sandbox.PathPredicate(allow), fn)
			}),
			"RequestExecPermission": reflect.ValueOf(surface.SnippetExec),
			"RequestNetwork":        reflect.ValueOf(surface.SnippetNetwork),
			"Chat":                  reflect.ValueOf(surface.SnippetChat),
			"ChatClassified":        reflect.ValueOf(surface.SnippetChatClassified),
			"Classify": reflect.ValueOf(func(v string) sandbox.ClassifiedText {
				return sandbox.Classify(surface, v)
			}),
			"MapClassified":     reflect.ValueOf(surface.SnippetMapClassified),
			"FlatMapClassified": reflect.ValueOf(surface.SnippetFlatMapClassified),
		},
	}
}

// preamble aliases the surface's members into the interpreter's top-level
// scope. It also imports fmt so short snippets can print without their own
// import block.
const preamble = `import (
	"fmt"

	"sandbox/sandbox"
)

var (
	requestFilesystem      = sandbox.RequestFilesystem
	requestFilesystemWhere = sandbox.RequestFilesystemWhere
	requestExecPermission  = sandbox.RequestExecPermission
	requestNetwork         = sandbox.RequestNetwork
	chat                   = sandbox.Chat
	chatClassified         = sandbox.ChatClassified
	classify               = sandbox.Classify
	mapClassified          = sandbox.MapClassified
	flatMapClassified      = sandbox.FlatMapClassified
)

var _ = fmt.Sprint
`

// Eval runs code, echoes a resulting expression value to stdout the way an
// interactive interpreter would, and converts a panic raised inside the
// snippet (a capability denial, a runtime failure) back into the typed
// error it was raised with.
func (b *yaegiBackend) Eval(code string) error {
	v, err := b.vm.Eval(code)
	if err != nil {
		var p interp.Panic
		if errors.As(err, &p) {
			if pe, ok := p.Value.(error); ok {
				return pe
			}
			return fmt.Errorf("panic: %v", p.Value)
		}
		return err
	}
	if v.IsValid() && v.Kind() != reflect.Func {
		fmt.Println(v)
	}
	return nil
}
