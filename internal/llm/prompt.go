package llm

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/landmarkd/internal/landmark"
	"github.com/fyrsmithlabs/landmarkd/internal/memory"
	"github.com/fyrsmithlabs/landmarkd/internal/vectorsearch"
)

// DefaultInputBudget is the approximate token budget for the assembled
// prompt. Anything over it is trimmed before the request goes out.
const DefaultInputBudget = 6000

// System instructions for the two conversation modes.
const (
	researchInstructions = `You are tasked with creating an educational research report about NYC landmarks.
Focus on providing accurate, well-structured information based on the provided context.
Cite relevant passages when appropriate using [Source: Name, Page: X] format.`

	conversationInstructions = `You must build on the previous conversation and provide a coherent continuation.
Focus on answering the new query while maintaining context from the previous exchanges.`
)

// PromptInput carries everything that feeds the prompt.
type PromptInput struct {
	Query    string
	Landmark *landmark.Record
	Passages []vectorsearch.Passage
	History  []memory.Turn
}

// Prompt is an assembled system+user message pair ready to send.
type Prompt struct {
	System string
	User   string

	// PassagesKept and TurnsKept report what survived trimming.
	PassagesKept int
	TurnsKept    int
}

// approxTokens estimates the token count of s. Four characters per token
// is close enough for budget enforcement against a hosted model.
func approxTokens(s string) int {
	return (len(s) + 3) / 4
}

// BuildPrompt assembles the prompt and enforces the token budget. When
// the assembled prompt would exceed budget, the lowest-relevance passages
// go first, then the oldest conversation turns. The query itself and the
// newest turn are never dropped.
func BuildPrompt(in PromptInput, budget int) Prompt {
	if budget <= 0 {
		budget = DefaultInputBudget
	}

	passages := append([]vectorsearch.Passage(nil), in.Passages...)
	history := append([]memory.Turn(nil), in.History...)

	for {
		p := render(in.Query, in.Landmark, passages, history)
		if approxTokens(p.System)+approxTokens(p.User) <= budget {
			return p
		}
		// Passages arrive sorted by descending score, so the tail is the
		// least relevant.
		if len(passages) > 0 {
			passages = passages[:len(passages)-1]
			continue
		}
		if len(history) > 1 {
			history = history[1:]
			continue
		}
		// Only the newest turn (or nothing) remains; send as-is and let
		// the model's own input limit be the final arbiter.
		return p
	}
}

func render(query string, rec *landmark.Record, passages []vectorsearch.Passage, history []memory.Turn) Prompt {
	var b strings.Builder

	if rec != nil {
		b.WriteString("LANDMARK INFORMATION:\n")
		fmt.Fprintf(&b, "ID: %s\n", rec.ID)
		if rec.Name != nil {
			fmt.Fprintf(&b, "Name: %s\n", *rec.Name)
		}
		if rec.Borough != nil {
			fmt.Fprintf(&b, "Borough: %s\n", *rec.Borough)
		}
		if rec.Style != nil {
			fmt.Fprintf(&b, "Architectural Style: %s\n", *rec.Style)
		}
		if rec.DesignationDate != nil {
			fmt.Fprintf(&b, "Designation Date: %s\n", rec.DesignationDate.Format("January 2, 2006"))
		}
		b.WriteString("\n")
	}

	if len(passages) > 0 {
		b.WriteString("RELEVANT PASSAGES:\n")
		for i, p := range passages {
			title := p.Title
			if title == "" {
				title = "Unknown"
			}
			page := "N/A"
			if p.Page > 0 {
				page = fmt.Sprintf("%d", p.Page)
			}
			fmt.Fprintf(&b, "PASSAGE %d [Source: %s, Page: %s, Relevance: %.2f]:\n%s\n\n",
				i+1, title, page, p.Score, p.Text)
		}
	}

	if len(history) > 0 {
		b.WriteString("PREVIOUS CONVERSATION:\n")
		for i, turn := range history {
			fmt.Fprintf(&b, "USER QUERY %d: %s\n", i+1, turn.Query)
			fmt.Fprintf(&b, "ASSISTANT RESPONSE %d: %s\n\n", i+1, turn.Report)
		}
	}

	system := researchInstructions
	if len(history) > 0 {
		system = conversationInstructions
	}

	user := fmt.Sprintf(`You are an expert on NYC landmarks and architecture, tasked with creating a detailed research report based on the following query: %q

CONTEXT INFORMATION:
%s
USER QUERY: %s

Your response should be a well-structured, educational research report that:
1. Directly addresses the query with accurate information
2. Synthesizes information from multiple sources
3. Highlights architectural, historical, and cultural significance
4. Cites relevant passages when appropriate
5. Is formatted in clear paragraphs with appropriate headings
6. Uses a professional, educational tone suitable for a heritage organization

Respond with a comprehensive research report formatted in markdown.`, query, b.String(), query)

	return Prompt{
		System:       system,
		User:         user,
		PassagesKept: len(passages),
		TurnsKept:    len(history),
	}
}
