package landmark

import (
	"strings"
	"time"
)

// The metadata API is inconsistent about field naming across endpoints and
// API revisions. Each canonical field carries an ordered list of known
// aliases; normalization takes the first alias present in the raw record.
// A field absent under every alias stays nil on the Record.
var fieldAliases = map[string][]string{
	"id":               {"lpcId", "objectId", "lpcNumber"},
	"name":             {"name", "lpcName", "landmarkName"},
	"borough":          {"borough", "boroughName"},
	"neighborhood":     {"neighborhood", "neighborhoodName"},
	"style":            {"style", "parentStyle", "architecturalStyle"},
	"designation_date": {"dateDesignated", "designationDate"},
	"photo_url":        {"photoUrl", "primaryPhotoUrl", "photoArchiveUrl"},
}

// lookupAlias returns the first alias value present in raw, with a flag
// reporting whether any alias matched.
func lookupAlias(raw map[string]any, canonical string) (any, bool) {
	for _, alias := range fieldAliases[canonical] {
		if v, ok := raw[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// stringAlias resolves canonical to a *string, nil when absent.
func stringAlias(raw map[string]any, canonical string) *string {
	v, ok := lookupAlias(raw, canonical)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// normalizeRecord builds a canonical Record from a raw API response.
// Returns false when the record carries no identity under any alias.
func normalizeRecord(raw map[string]any) (Record, bool) {
	idv, ok := lookupAlias(raw, "id")
	if !ok {
		return Record{}, false
	}
	id, ok := idv.(string)
	if !ok || id == "" {
		return Record{}, false
	}

	rec := Record{
		ID:           id,
		Name:         stringAlias(raw, "name"),
		Borough:      stringAlias(raw, "borough"),
		Neighborhood: stringAlias(raw, "neighborhood"),
		Style:        stringAlias(raw, "style"),
		PhotoURL:     stringAlias(raw, "photo_url"),
	}

	if s := stringAlias(raw, "designation_date"); s != nil {
		if t, err := parseDate(*s); err == nil {
			rec.DesignationDate = &t
		}
	}

	return rec, true
}

// parseDate accepts the ISO timestamp and date-only forms the API emits.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
