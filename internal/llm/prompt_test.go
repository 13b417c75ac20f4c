package llm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/landmarkd/internal/landmark"
	"github.com/fyrsmithlabs/landmarkd/internal/memory"
	"github.com/fyrsmithlabs/landmarkd/internal/vectorsearch"
)

func strptr(s string) *string { return &s }

func flatironRecord() *landmark.Record {
	designated := time.Date(1966, 9, 20, 0, 0, 0, 0, time.UTC)
	return &landmark.Record{
		ID:              "LP-00073",
		Name:            strptr("Flatiron Building"),
		Borough:         strptr("Manhattan"),
		Style:           strptr("Beaux-Arts"),
		DesignationDate: &designated,
	}
}

func passage(id, text string, score float64) vectorsearch.Passage {
	return vectorsearch.Passage{
		ChunkID: id,
		Text:    text,
		Title:   "Designation Report",
		Page:    3,
		Score:   score,
	}
}

func TestBuildPrompt_Sections(t *testing.T) {
	p := BuildPrompt(PromptInput{
		Query:    "Tell me about the Flatiron Building",
		Landmark: flatironRecord(),
		Passages: []vectorsearch.Passage{
			passage("c1", "Completed in 1902 to a design by Daniel Burnham.", 0.91),
		},
	}, 0)

	assert.Equal(t, researchInstructions, p.System)
	assert.Contains(t, p.User, "LANDMARK INFORMATION:")
	assert.Contains(t, p.User, "Name: Flatiron Building")
	assert.Contains(t, p.User, "Borough: Manhattan")
	assert.Contains(t, p.User, "Designation Date: September 20, 1966")
	assert.Contains(t, p.User, "RELEVANT PASSAGES:")
	assert.Contains(t, p.User, "PASSAGE 1 [Source: Designation Report, Page: 3, Relevance: 0.91]")
	assert.Contains(t, p.User, `"Tell me about the Flatiron Building"`)
	assert.NotContains(t, p.User, "PREVIOUS CONVERSATION:", "no history means no conversation block")
}

func TestBuildPrompt_HistorySwitchesInstructions(t *testing.T) {
	p := BuildPrompt(PromptInput{
		Query: "What about its steel frame?",
		History: []memory.Turn{
			{Query: "Tell me about the Flatiron Building", Report: "The Flatiron Building..."},
		},
	}, 0)

	assert.Equal(t, conversationInstructions, p.System)
	assert.Contains(t, p.User, "PREVIOUS CONVERSATION:")
	assert.Contains(t, p.User, "USER QUERY 1: Tell me about the Flatiron Building")
	assert.Contains(t, p.User, "ASSISTANT RESPONSE 1: The Flatiron Building...")
}

func TestBuildPrompt_TrimsLowestScoredPassagesFirst(t *testing.T) {
	// Passages arrive sorted by descending score; the budget forces a trim
	// and the tail must go first.
	long := strings.Repeat("architectural history ", 100)
	in := PromptInput{
		Query: "flatiron",
		Passages: []vectorsearch.Passage{
			passage("best", long, 0.95),
			passage("middle", long, 0.80),
			passage("worst", long, 0.65),
		},
	}

	// Budget fits roughly two passages plus the template.
	budget := approxTokens(long)*2 + 300
	p := BuildPrompt(in, budget)

	assert.Equal(t, 2, p.PassagesKept)
	assert.Contains(t, p.User, "Relevance: 0.95")
	assert.Contains(t, p.User, "Relevance: 0.80")
	assert.NotContains(t, p.User, "Relevance: 0.65", "the lowest-scored passage should be trimmed first")
}

func TestBuildPrompt_TrimsOldestTurnsAfterPassages(t *testing.T) {
	long := strings.Repeat("previous discussion ", 100)
	in := PromptInput{
		Query: "follow-up",
		Passages: []vectorsearch.Passage{
			passage("c1", long, 0.9),
		},
		History: []memory.Turn{
			{Query: "oldest", Report: long},
			{Query: "newest", Report: long},
		},
	}

	// Too small for everything; passages and then the oldest turn go.
	budget := approxTokens(long) + 300
	p := BuildPrompt(in, budget)

	assert.Equal(t, 0, p.PassagesKept, "passages should be exhausted before history is touched")
	assert.Equal(t, 1, p.TurnsKept)
	assert.Contains(t, p.User, "USER QUERY 1: newest", "the newest turn survives trimming")
	assert.NotContains(t, p.User, "oldest")
}

func TestBuildPrompt_NewestTurnNeverDropped(t *testing.T) {
	long := strings.Repeat("previous discussion ", 100)
	in := PromptInput{
		Query: "follow-up",
		History: []memory.Turn{
			{Query: "oldest", Report: long},
			{Query: "newest", Report: long},
		},
	}

	// Too small for even a single turn; the newest one still survives.
	p := BuildPrompt(in, 50)

	assert.Equal(t, 1, p.TurnsKept, "trimming must stop at the newest turn")
	assert.Contains(t, p.User, "USER QUERY 1: newest")
	assert.NotContains(t, p.User, "oldest")
	assert.Equal(t, conversationInstructions, p.System)
}

func TestBuildPrompt_QueryNeverDropped(t *testing.T) {
	// Even an absurdly small budget keeps the query.
	p := BuildPrompt(PromptInput{Query: "flatiron"}, 1)
	assert.Contains(t, p.User, "flatiron")
}

func TestBuildPrompt_MissingLandmarkFieldsOmitted(t *testing.T) {
	p := BuildPrompt(PromptInput{
		Query:    "q",
		Landmark: &landmark.Record{ID: "LP-00073"},
	}, 0)

	require.Contains(t, p.User, "ID: LP-00073")
	assert.NotContains(t, p.User, "Name:", "nil fields should not render")
	assert.NotContains(t, p.User, "Borough:")
}

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 0, approxTokens(""))
	assert.Equal(t, 1, approxTokens("abc"))
	assert.Equal(t, 1, approxTokens("abcd"))
	assert.Equal(t, 2, approxTokens("abcde"))
}
