package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vbonduro/parkadmin/internal/domain"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected *Suggestion
	}{
		{
			name:     "label and value",
			line:     "Road Name | Oak Street",
			expected: &Suggestion{Field: domain.FieldRoadName, Value: "Oak Street"},
		},
		{
			name:     "column name",
			line:     "maximum_stay | 2 hours",
			expected: &Suggestion{Field: domain.FieldMaxStay, Value: "2 hours"},
		},
		{
			name:     "bulleted line",
			line:     "- Times Of Operation | Mon-Sat 8.30am-6.30pm",
			expected: &Suggestion{Field: domain.FieldTimes, Value: "Mon-Sat 8.30am-6.30pm"},
		},
		{
			name:     "value containing a pipe",
			line:     "Notes | no return | within 1 hour",
			expected: &Suggestion{Field: domain.FieldNotes, Value: "no return | within 1 hour"},
		},
		{
			name:     "unknown field",
			line:     "Colour | red",
			expected: nil,
		},
		{
			name:     "empty value",
			line:     "Postcode |   ",
			expected: nil,
		},
		{
			name:     "no separator",
			line:     "Here is what the sign says:",
			expected: nil,
		},
		{
			name:     "whitespace only",
			line:     "   ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLine(tt.line))
		})
	}
}

func TestParseResponse(t *testing.T) {
	raw := `Here is what I can read:
Restriction Type | Pay and display
Controlled Parking Zone | CPZ B
Restriction Type | Permit holders only

Maximum Stay | 4 hours`

	assert.Equal(t, []Suggestion{
		{Field: domain.FieldRestrictionType, Value: "Pay and display"},
		{Field: domain.FieldZone, Value: "CPZ B"},
		{Field: domain.FieldMaxStay, Value: "4 hours"},
	}, ParseResponse(raw))
}

func TestParseResponseEmpty(t *testing.T) {
	assert.Empty(t, ParseResponse(""))
	assert.NotNil(t, ParseResponse(""))
}

func TestAnalysisPromptListsEveryField(t *testing.T) {
	for _, f := range domain.EditableFields {
		assert.Contains(t, AnalysisPrompt, string(f))
	}
}
