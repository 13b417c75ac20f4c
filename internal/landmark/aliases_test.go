package landmark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRecord_AliasPrecedence(t *testing.T) {
	// lpcId outranks objectId, which outranks lpcNumber.
	raw := map[string]any{
		"lpcId":     "LP-00073",
		"objectId":  "73",
		"lpcNumber": "LP-73",
		"name":      "Flatiron Building",
	}

	rec, ok := normalizeRecord(raw)
	require.True(t, ok)
	assert.Equal(t, "LP-00073", rec.ID, "lpcId should win over the other id aliases")
}

func TestNormalizeRecord_FallbackAliases(t *testing.T) {
	raw := map[string]any{
		"objectId":         "LP-00073",
		"lpcName":          "Flatiron Building",
		"boroughName":      "Manhattan",
		"neighborhoodName": "Flatiron District",
		"parentStyle":      "Beaux-Arts",
		"photoArchiveUrl":  "https://example.org/flatiron.jpg",
	}

	rec, ok := normalizeRecord(raw)
	require.True(t, ok)
	assert.Equal(t, "LP-00073", rec.ID)
	require.NotNil(t, rec.Name)
	assert.Equal(t, "Flatiron Building", *rec.Name)
	require.NotNil(t, rec.Borough)
	assert.Equal(t, "Manhattan", *rec.Borough)
	require.NotNil(t, rec.Neighborhood)
	assert.Equal(t, "Flatiron District", *rec.Neighborhood)
	require.NotNil(t, rec.Style)
	assert.Equal(t, "Beaux-Arts", *rec.Style)
	require.NotNil(t, rec.PhotoURL)
	assert.Equal(t, "https://example.org/flatiron.jpg", *rec.PhotoURL)
}

func TestNormalizeRecord_MissingFieldsStayNil(t *testing.T) {
	rec, ok := normalizeRecord(map[string]any{"lpcId": "LP-01234"})
	require.True(t, ok)
	assert.Nil(t, rec.Name, "absent fields should stay nil, not empty")
	assert.Nil(t, rec.Borough)
	assert.Nil(t, rec.Neighborhood)
	assert.Nil(t, rec.Style)
	assert.Nil(t, rec.PhotoURL)
	assert.Nil(t, rec.DesignationDate)
}

func TestNormalizeRecord_EmptyStringIsNotNil(t *testing.T) {
	rec, ok := normalizeRecord(map[string]any{
		"lpcId": "LP-01234",
		"name":  "",
	})
	require.True(t, ok)
	require.NotNil(t, rec.Name, "an explicitly empty field is present, not missing")
	assert.Equal(t, "", *rec.Name)
}

func TestNormalizeRecord_NoIdentity(t *testing.T) {
	_, ok := normalizeRecord(map[string]any{"name": "Mystery Building"})
	assert.False(t, ok, "a record without any id alias has no identity")

	_, ok = normalizeRecord(map[string]any{"lpcId": ""})
	assert.False(t, ok, "an empty id is no identity")

	_, ok = normalizeRecord(map[string]any{"lpcId": 73})
	assert.False(t, ok, "a non-string id is no identity")
}

func TestNormalizeRecord_DesignationDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"timestamp with zone", "1966-09-20T00:00:00Z", time.Date(1966, 9, 20, 0, 0, 0, 0, time.UTC)},
		{"timestamp without zone", "1966-09-20T00:00:00", time.Date(1966, 9, 20, 0, 0, 0, 0, time.UTC)},
		{"date only", "1966-09-20", time.Date(1966, 9, 20, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := normalizeRecord(map[string]any{
				"lpcId":          "LP-00073",
				"dateDesignated": tt.in,
			})
			require.True(t, ok)
			require.NotNil(t, rec.DesignationDate)
			assert.True(t, tt.want.Equal(*rec.DesignationDate))
		})
	}

	t.Run("unparseable date stays nil", func(t *testing.T) {
		rec, ok := normalizeRecord(map[string]any{
			"lpcId":          "LP-00073",
			"dateDesignated": "September 1966",
		})
		require.True(t, ok)
		assert.Nil(t, rec.DesignationDate)
	})
}
