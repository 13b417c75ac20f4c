package research

import (
	"fmt"

	"github.com/fyrsmithlabs/landmarkd/internal/landmark"
)

// suggestedQueryCount is how many follow-ups every response carries.
const suggestedQueryCount = 3

// genericSuggestions backfill when the landmark record is missing or a
// metadata field is unknown.
var genericSuggestions = []string{
	"What is the architectural style of this landmark?",
	"When was this landmark designated?",
	"Who was the architect of this landmark?",
	"What are some similar landmarks in New York City?",
	"What is the historical significance of this landmark?",
}

// suggestQueries produces exactly suggestedQueryCount follow-up queries
// from deterministic templates keyed off the landmark's metadata. No
// model call is involved.
func suggestQueries(rec *landmark.Record) []string {
	var out []string

	if rec != nil {
		name := rec.ID
		if rec.Name != nil {
			name = *rec.Name
		}
		if rec.Style != nil && rec.Borough != nil {
			out = append(out, fmt.Sprintf("What other %s buildings are landmarked in %s?", *rec.Style, *rec.Borough))
		} else if rec.Style != nil {
			out = append(out, fmt.Sprintf("What other NYC landmarks share the %s style?", *rec.Style))
		} else if rec.Borough != nil {
			out = append(out, fmt.Sprintf("What other landmarks are designated in %s?", *rec.Borough))
		}
		if rec.DesignationDate != nil {
			decade := (rec.DesignationDate.Year() / 10) * 10
			out = append(out, fmt.Sprintf("What led to the wave of landmark designations in the %ds?", decade))
		}
		out = append(out, fmt.Sprintf("What is the preservation history of %s?", name))
	}

	for _, g := range genericSuggestions {
		if len(out) >= suggestedQueryCount {
			break
		}
		out = append(out, g)
	}
	return out[:suggestedQueryCount]
}
