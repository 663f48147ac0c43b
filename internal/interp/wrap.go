package interp

import "strings"

// isBareExpression reports whether code looks like a single free-floating
// expression rather than a sequence of top-level declarations. Only bare
// expressions are safe to wrap in a zero-argument function: wrapping a
// declaration (var/const/func/type/import) would hide it inside the
// function's local scope and it would not survive to the next Execute call
// on the same session, breaking the define-then-reuse contract a session
// exists to provide.
func isBareExpression(code string) bool {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return false
	}
	for _, kw := range []string{"var ", "const ", "func ", "type ", "import ", "package "} {
		if strings.HasPrefix(trimmed, kw) {
			return false
		}
	}
	if strings.HasSuffix(trimmed, "}") {
		return false
	}
	if strings.Contains(trimmed, "\n") {
		return false
	}
	return true
}

// wrapExpression turns a bare expression into a call of a zero-argument
// function literal that returns the expression's value. Declarations and
// multi-line snippets are never passed here (see isBareExpression).
func wrapExpression(code string) string {
	return "func() interface{} {\nreturn " + strings.TrimSpace(code) + "\n}()"
}

// containsDiagnosticMarker reports whether any line of output begins with
// the interpreter's in-band compiler-diagnostic prefix, the signal that an
// otherwise error-free Eval call actually surfaced a compile diagnostic
// through stdout instead of returning a Go error.
func containsDiagnosticMarker(output, prefix string) bool {
	if prefix == "" {
		return false
	}
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			return true
		}
	}
	return false
}
