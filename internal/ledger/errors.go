package ledger

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a rename references a name with no score.
var ErrNotFound = errors.New("not found")

// ValidationError lists every violated input constraint, not just the first.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}

// Invalid builds a ValidationError, or returns nil when there are no problems.
func Invalid(problems ...string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}
