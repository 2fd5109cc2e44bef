// Package content validates generated explanation payloads before they are
// served or persisted.
package content

import (
	"fmt"
	"unicode/utf8"

	"github.com/quicklearn/quicklearn/internal/model"
)

// Field length bounds, in characters.
const (
	MaxOneLine      = 200
	MaxExplanation  = 1000
	MaxAnalogy      = 500
	MaxExample      = 500
	MaxFormula      = 300
	MaxRevisionNote = 200
)

// Result reports whether a payload is servable. Errors enumerates every
// violated field so callers can log full diagnostics.
type Result struct {
	Valid  bool
	Errors []string
}

// Validate checks that every required field is present, non-empty, and
// within its length bound. Formula is optional and may be empty. The check
// has no side effects and never stops at the first violation.
func Validate(c model.ExplanationContent) Result {
	var errs []string

	checkRequired := func(name, value string, max int) {
		if value == "" {
			errs = append(errs, fmt.Sprintf("%s is required", name))
			return
		}
		if utf8.RuneCountInString(value) > max {
			errs = append(errs, fmt.Sprintf("%s exceeds %d characters", name, max))
		}
	}

	checkRequired("one_line", c.OneLine, MaxOneLine)
	checkRequired("explanation", c.Explanation, MaxExplanation)
	checkRequired("analogy", c.Analogy, MaxAnalogy)
	checkRequired("example", c.Example, MaxExample)
	checkRequired("revision_note", c.RevisionNote, MaxRevisionNote)

	if utf8.RuneCountInString(c.Formula) > MaxFormula {
		errs = append(errs, fmt.Sprintf("formula exceeds %d characters", MaxFormula))
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}
