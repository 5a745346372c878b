package vision

import (
	"context"
	"io"
	"strings"

	"github.com/vbonduro/parkadmin/internal/domain"
)

// AnalysisPrompt is the shared prompt used by all vision adapters.
var AnalysisPrompt = buildPrompt()

func buildPrompt() string {
	var b strings.Builder
	b.WriteString("This photo shows a street parking sign. Read it and fill in whatever you can of the fields below.\n")
	b.WriteString("Respond in plain text, one field per line, format: field | value\n")
	b.WriteString("Use the field names exactly as written and omit fields the sign does not show.\n")
	b.WriteString("Fields:\n")
	for _, f := range domain.EditableFields {
		b.WriteString("- ")
		b.WriteString(string(f))
		b.WriteString("\n")
	}
	return b.String()
}

type VisionAnalyzer interface {
	Analyze(ctx context.Context, r io.Reader, mimeType string) (*AnalysisResult, error)
}

type AnalysisResult struct {
	Suggestions []Suggestion
	RawResponse string
}

// Suggestion is a proposed value for one editable field.
type Suggestion struct {
	Field domain.Field
	Value string
}
