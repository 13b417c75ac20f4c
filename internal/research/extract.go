package research

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/landmarkd/internal/landmark"
)

// lpcIDPattern matches Landmarks Preservation Commission ids like
// LP-00073 anywhere in free text.
var lpcIDPattern = regexp.MustCompile(`LP-\d{5}`)

// extractCitedLandmarks scans generated text for landmark ids and for
// names of landmarks already in the fetched context. Matching is
// deliberately naive (regex plus case-insensitive substring); nothing
// here is NLP.
func extractCitedLandmarks(text string, known []landmark.Record) []string {
	seen := make(map[string]bool)
	var ids []string

	for _, id := range lpcIDPattern.FindAllString(text, -1) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	lower := strings.ToLower(text)
	for _, rec := range known {
		if seen[rec.ID] || rec.Name == nil || *rec.Name == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(*rec.Name)) {
			seen[rec.ID] = true
			ids = append(ids, rec.ID)
		}
	}
	return ids
}
