package diet

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Greedy: first '[' to last ']'.
var arrayPattern = regexp.MustCompile(`\[[\s\S]*\]`)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Interpret extracts suggestions from a structured completion. It never
// fails: unusable output yields the defaults tagged with the reason.
func Interpret(raw string) Interpretation {
	match := arrayPattern.FindString(raw)
	if match == "" {
		return fallback("no JSON array found in response")
	}

	var parsed []Suggestion
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return fallback(fmt.Sprintf("invalid JSON array: %v", err))
	}
	if len(parsed) == 0 {
		return fallback("empty suggestion list")
	}

	out := make([]Suggestion, 0, len(parsed))
	for i, s := range parsed {
		s := Suggestion{
			Title:       strings.TrimSpace(s.Title),
			Description: strings.TrimSpace(s.Description),
			Category:    Category(strings.ToLower(strings.TrimSpace(string(s.Category)))),
		}
		if err := validate.Struct(s); err != nil {
			return fallback(fmt.Sprintf("suggestion %d: %v", i, err))
		}
		out = append(out, s)
	}

	return Interpretation{Suggestions: out, Source: SourceParsed}
}

func fallback(reason string) Interpretation {
	return Interpretation{
		Suggestions: DefaultSuggestions(),
		Source:      SourceFallback,
		Reason:      reason,
	}
}
