package ledger

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxNameLength bounds player names, counted in characters after trimming.
const MaxNameLength = 50

var validate = validator.New()

type scoreEntry struct {
	Name  string `validate:"required,max=50"`
	Score int64  `validate:"gte=0"`
}

type nameEntry struct {
	Name string `validate:"required,max=50"`
}

// NormalizeName trims surrounding whitespace from a player name.
func NormalizeName(name string) string { return strings.TrimSpace(name) }

// NameProblems validates an already-normalized name.
func NameProblems(name string) []string {
	return problems(validate.Struct(nameEntry{Name: name}))
}

func entryProblems(name string, score int64) []string {
	return problems(validate.Struct(scoreEntry{Name: name, Score: score}))
}

// problems turns validator output into user-facing messages, one per failed field rule.
func problems(err error) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"Invalid input"}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() + "." + fe.Tag() {
		case "Name.required":
			out = append(out, "Name is required and must be a non-empty string")
		case "Name.max":
			out = append(out, "Name must be "+strconv.Itoa(MaxNameLength)+" characters or less")
		case "Score.gte":
			out = append(out, "Score cannot be negative")
		default:
			out = append(out, fe.Field()+" is invalid")
		}
	}
	return out
}
