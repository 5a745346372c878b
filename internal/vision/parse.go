package vision

import (
	"strings"

	"github.com/vbonduro/parkadmin/internal/domain"
)

// ParseLine parses one "field | value" line. It returns nil for preamble,
// unknown fields and empty values.
func ParseLine(line string) *Suggestion {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-* ")

	name, value, ok := strings.Cut(line, "|")
	if !ok {
		return nil
	}

	field, err := domain.ParseField(strings.TrimSpace(name))
	if err != nil {
		return nil
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &Suggestion{Field: field, Value: value}
}

// ParseResponse parses a model response, one suggestion per line. When a
// field appears twice the first value wins.
func ParseResponse(raw string) []Suggestion {
	suggestions := make([]Suggestion, 0)
	seen := make(map[domain.Field]bool)

	for _, line := range strings.Split(raw, "\n") {
		s := ParseLine(line)
		if s == nil || seen[s.Field] {
			continue
		}
		seen[s.Field] = true
		suggestions = append(suggestions, *s)
	}

	return suggestions
}
