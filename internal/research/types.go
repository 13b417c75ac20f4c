package research

import (
	"errors"
	"time"
)

// ErrInvalidRequest is returned for malformed generate requests.
var ErrInvalidRequest = errors.New("invalid research request")

// Request is one research query.
type Request struct {
	Query          string   `json:"query"`
	LandmarkID     string   `json:"landmarkId,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
	IncludeImages  *bool    `json:"includeImages,omitempty"`
	MaxSources     int      `json:"maxSources,omitempty"`
	Filters        *Filters `json:"filters,omitempty"`
}

// Filters optionally scopes the research to landmarks matching metadata
// criteria.
type Filters struct {
	Borough      string `json:"borough,omitempty"`
	Style        string `json:"style,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
}

// Source is one cited source document in a response.
type Source struct {
	SourceID   string  `json:"sourceId"`
	Title      string  `json:"title,omitempty"`
	Content    string  `json:"content"`
	Page       int     `json:"page,omitempty"`
	LandmarkID string  `json:"landmarkId,omitempty"`
	Relevance  float64 `json:"relevanceScore"`
}

// Image is one landmark image with caption.
type Image struct {
	URL        string `json:"url"`
	Caption    string `json:"caption,omitempty"`
	Year       int    `json:"year,omitempty"`
	Source     string `json:"source,omitempty"`
	Historical bool   `json:"isHistorical"`
}

// RelatedLandmark is an id/name pair for a landmark cited alongside the
// primary one.
type RelatedLandmark struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Response is the generated research report with its supporting material.
type Response struct {
	ConversationID   string            `json:"conversationId"`
	Query            string            `json:"query"`
	Report           string            `json:"report"`
	Timestamp        time.Time         `json:"timestamp"`
	Sources          []Source          `json:"sources"`
	Images           []Image           `json:"images"`
	LandmarkID       string            `json:"landmarkId,omitempty"`
	LandmarkName     string            `json:"landmarkName,omitempty"`
	RelatedLandmarks []RelatedLandmark `json:"relatedLandmarks"`
	SuggestedQueries []string          `json:"suggestedQueries"`
	Warnings         []string          `json:"warnings,omitempty"`
}
