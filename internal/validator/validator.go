// Package validator implements the static pre-execution code validator: a
// fixed table of regular expressions that reject forbidden API references
// before a snippet ever reaches the interpreter.
package validator

import (
	"fmt"
	"strings"
)

// Violation is one rule match against the submitted code.
type Violation struct {
	RuleID      string
	Description string
	Line        int
	Snippet     string
}

// Validate checks code against the fixed rule table and returns every
// violation found, ordered by rule index then by line number. An empty
// result means the code is accepted. Validate never panics or returns an
// error: it does not parse the code, so an unparseable snippet is matched
// line by line like any other, and an empty snippet produces no violations.
func Validate(code string) []Violation {
	if code == "" {
		return nil
	}

	stripped := Strip(code)
	strippedLines := strings.Split(stripped, "\n")
	originalLines := strings.Split(code, "\n")

	var violations []Violation
	for i := range rules {
		rule := &rules[i]
		source := strippedLines
		if rule.Directive {
			source = originalLines
		}
		re := rule.compiled()
		for idx, line := range source {
			if re.MatchString(line) {
				violations = append(violations, Violation{
					RuleID:      rule.ID,
					Description: rule.Description,
					Line:        idx + 1,
					Snippet:     originalLines[idx],
				})
			}
		}
	}

	return violations
}

// FormatReport renders violations as the text surfaced in a failed
// ExecutionResult's error field: a count line, then one line per violation.
// An empty slice produces the empty string and should not be called for
// accepted code.
func FormatReport(violations []Violation) string {
	if len(violations) == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Code validation failed: %d violation(s)\n", len(violations))
	for _, v := range violations {
		fmt.Fprintf(&sb, "[%s] Line %d: %s\n%s\n", v.RuleID, v.Line, v.Description, v.Snippet)
	}
	return strings.TrimRight(sb.String(), "\n")
}
