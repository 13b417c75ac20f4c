// Package research implements the orchestration pipeline: gather
// passages and landmark metadata, assemble the prompt with prior
// conversation turns, call the hosted model, extract citations, and
// persist the exchange.
package research

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/landmarkd/internal/landmark"
	"github.com/fyrsmithlabs/landmarkd/internal/llm"
	"github.com/fyrsmithlabs/landmarkd/internal/memory"
	"github.com/fyrsmithlabs/landmarkd/internal/vectorsearch"
)

const (
	defaultMaxSources  = 5
	maxSourcesCap      = 20
	relatedLandmarkCap = 5
)

// Searcher is the semantic-search dependency.
type Searcher interface {
	Search(ctx context.Context, q vectorsearch.Query) ([]vectorsearch.Passage, error)
}

// MetadataFetcher is the landmark metadata dependency.
type MetadataFetcher interface {
	GetLandmark(ctx context.Context, id string) (*landmark.Record, error)
	Photos(ctx context.Context, id string) ([]landmark.Photo, error)
}

// Generator is the hosted-model dependency.
type Generator interface {
	GenerateReport(ctx context.Context, in llm.PromptInput) (string, error)
}

// Options configures the research service.
type Options struct {
	MinScore      float64
	TopK          int
	MemoryEnabled bool
}

// Service composes the clients and the memory store into one
// request/response cycle. Failures in metadata fetches degrade the
// response; failures in search or generation abort it.
type Service struct {
	search Searcher
	meta   MetadataFetcher
	gen    Generator
	store  memory.Store
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewService builds the research service from concrete dependencies.
func NewService(search Searcher, meta MetadataFetcher, gen Generator, store memory.Store, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MinScore == 0 {
		opts.MinScore = 0.6
	}
	if opts.TopK == 0 {
		opts.TopK = 10
	}
	return &Service{
		search: search,
		meta:   meta,
		gen:    gen,
		store:  store,
		opts:   opts,
		logger: logger.Named("research"),
		now:    time.Now,
	}
}

// GenerateReport runs the full pipeline for one request.
func (s *Service) GenerateReport(ctx context.Context, req Request) (*Response, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	maxSources := req.MaxSources
	if maxSources <= 0 {
		maxSources = defaultMaxSources
	}
	if maxSources > maxSourcesCap {
		maxSources = maxSourcesCap
	}
	includeImages := true
	if req.IncludeImages != nil {
		includeImages = *req.IncludeImages
	}

	start := s.now()
	conversationID, history := s.loadConversation(ctx, req.ConversationID)

	logger := s.logger.With(zap.String("conversation_id", conversationID))
	logger.Info("generating research report",
		zap.String("landmark_id", req.LandmarkID),
		zap.Int("history_turns", len(history)))

	var warnings []string

	// A landmark id in the query text is as good as one in the request.
	landmarkID := req.LandmarkID
	if landmarkID == "" {
		landmarkID = lpcIDPattern.FindString(req.Query)
	}

	passages, err := s.fetchPassages(ctx, req.Query, landmarkID, req.Filters)
	if err != nil {
		return nil, err
	}

	var primary *landmark.Record
	if landmarkID != "" {
		primary, err = s.meta.GetLandmark(ctx, landmarkID)
		if err != nil {
			// Passage-only context still yields a usable report.
			logger.Warn("metadata fetch failed, degrading to passage-only context",
				zap.String("landmark_id", landmarkID),
				zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("landmark metadata for %s was unavailable", landmarkID))
			primary = nil
		}
	}

	report, err := s.gen.GenerateReport(ctx, llm.PromptInput{
		Query:    req.Query,
		Landmark: primary,
		Passages: passages,
		History:  history,
	})
	if err != nil {
		return nil, err
	}

	known := contextRecords(primary, passages)
	citedIDs := extractCitedLandmarks(report, known)
	if landmarkID != "" && !contains(citedIDs, landmarkID) {
		citedIDs = append(citedIDs, landmarkID)
	}

	resp := &Response{
		ConversationID:   conversationID,
		Query:            req.Query,
		Report:           report,
		Timestamp:        s.now(),
		Sources:          prepareSources(passages, maxSources),
		Images:           []Image{},
		LandmarkID:       landmarkID,
		RelatedLandmarks: s.relatedLandmarks(ctx, citedIDs, landmarkID),
		SuggestedQueries: suggestQueries(primary),
		Warnings:         warnings,
	}
	if primary != nil && primary.Name != nil {
		resp.LandmarkName = *primary.Name
	}

	if includeImages {
		if imageID := primaryImageID(landmarkID, citedIDs); imageID != "" {
			resp.Images = s.fetchImages(ctx, imageID)
		}
	}

	s.persistTurn(ctx, conversationID, newTurn(req.Query, report, citedIDs, s.now()))

	logger.Info("research report generated",
		zap.Duration("elapsed", s.now().Sub(start)),
		zap.Int("sources", len(resp.Sources)),
		zap.Int("cited_landmarks", len(citedIDs)))

	return resp, nil
}

// History returns the stored turns of a conversation as per-turn
// responses.
func (s *Service) History(ctx context.Context, conversationID string) ([]Response, error) {
	if !s.opts.MemoryEnabled {
		return nil, memory.ErrConversationNotFound
	}
	conv, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	out := make([]Response, 0, len(conv.Turns))
	for _, turn := range conv.Turns {
		out = append(out, Response{
			ConversationID:   conversationID,
			Query:            turn.Query,
			Report:           turn.Report,
			Timestamp:        turn.Timestamp,
			Sources:          []Source{},
			Images:           []Image{},
			RelatedLandmarks: []RelatedLandmark{},
			SuggestedQueries: []string{},
		})
	}
	return out, nil
}

// DeleteConversation evicts the conversation. Deleting an absent id
// succeeds.
func (s *Service) DeleteConversation(ctx context.Context, conversationID string) error {
	if !s.opts.MemoryEnabled {
		return nil
	}
	return s.store.Delete(ctx, conversationID)
}

// loadConversation resolves the conversation id and prior turns. A
// missing id gets a fresh one; an unknown or expired id starts clean.
func (s *Service) loadConversation(ctx context.Context, id string) (string, []memory.Turn) {
	if id == "" {
		id = uuid.NewString()
	}
	if !s.opts.MemoryEnabled {
		return id, nil
	}
	conv, err := s.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, memory.ErrConversationNotFound) {
			s.logger.Warn("failed to read conversation history",
				zap.String("conversation_id", id),
				zap.Error(err))
		}
		return id, nil
	}
	return id, conv.Turns
}

// fetchPassages runs the semantic search and applies the relevance
// floor. Search failure is fatal: without passages there is no report.
func (s *Service) fetchPassages(ctx context.Context, query, landmarkID string, filters *Filters) ([]vectorsearch.Passage, error) {
	results, err := s.search.Search(ctx, vectorsearch.Query{
		Text:       query,
		LandmarkID: landmarkID,
		TopK:       s.opts.TopK,
		MinScore:   s.opts.MinScore,
		Filters:    searchFilters(filters),
	})
	if err != nil {
		return nil, err
	}

	// The floor is enforced here regardless of what upstream honored.
	passages := results[:0]
	for _, p := range results {
		if p.Score >= s.opts.MinScore {
			passages = append(passages, p)
		}
	}
	return passages, nil
}

// searchFilters maps the request's metadata filters onto upstream
// filter keys, dropping empty values.
func searchFilters(f *Filters) map[string]string {
	if f == nil {
		return nil
	}
	out := make(map[string]string, 3)
	if f.Borough != "" {
		out["borough"] = f.Borough
	}
	if f.Style != "" {
		out["style"] = f.Style
	}
	if f.Neighborhood != "" {
		out["neighborhood"] = f.Neighborhood
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// relatedLandmarks resolves names for cited landmarks other than the
// primary one. Lookups are best-effort.
func (s *Service) relatedLandmarks(ctx context.Context, citedIDs []string, primaryID string) []RelatedLandmark {
	related := []RelatedLandmark{}
	for _, id := range citedIDs {
		if id == primaryID || len(related) >= relatedLandmarkCap {
			continue
		}
		rec, err := s.meta.GetLandmark(ctx, id)
		if err != nil || rec.Name == nil {
			continue
		}
		related = append(related, RelatedLandmark{ID: id, Name: *rec.Name})
	}
	return related
}

// fetchImages loads photo-archive entries for the landmark. Best-effort.
func (s *Service) fetchImages(ctx context.Context, landmarkID string) []Image {
	photos, err := s.meta.Photos(ctx, landmarkID)
	if err != nil {
		s.logger.Warn("failed to fetch landmark photos",
			zap.String("landmark_id", landmarkID),
			zap.Error(err))
		return []Image{}
	}
	images := make([]Image, 0, len(photos))
	for _, p := range photos {
		images = append(images, Image{
			URL:        p.URL,
			Caption:    p.Caption,
			Year:       p.Year,
			Source:     p.Source,
			Historical: p.Historical,
		})
	}
	return images
}

// persistTurn writes the exchange into memory. A write failure is logged
// but does not fail the response that was already generated.
func (s *Service) persistTurn(ctx context.Context, conversationID string, turn memory.Turn) {
	if !s.opts.MemoryEnabled {
		return
	}
	if err := s.store.Append(ctx, conversationID, turn); err != nil {
		s.logger.Error("failed to persist conversation turn",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}
}

// newTurn builds a memory turn for one exchange.
func newTurn(query, report string, landmarkIDs []string, at time.Time) memory.Turn {
	return memory.Turn{
		Query:       query,
		Report:      report,
		Timestamp:   at,
		LandmarkIDs: landmarkIDs,
	}
}

// prepareSources de-duplicates passages by source id, orders them by
// descending relevance, and caps the list.
func prepareSources(passages []vectorsearch.Passage, maxSources int) []Source {
	sorted := append([]vectorsearch.Passage(nil), passages...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	seen := make(map[string]bool)
	sources := []Source{}
	for _, p := range sorted {
		if len(sources) >= maxSources {
			break
		}
		if seen[p.ChunkID] {
			continue
		}
		seen[p.ChunkID] = true
		sources = append(sources, Source{
			SourceID:   p.ChunkID,
			Title:      p.Title,
			Content:    p.Text,
			Page:       p.Page,
			LandmarkID: p.LandmarkID,
			Relevance:  p.Score,
		})
	}
	return sources
}

// contextRecords collects every landmark record the pipeline knows about
// for citation matching.
func contextRecords(primary *landmark.Record, passages []vectorsearch.Passage) []landmark.Record {
	var records []landmark.Record
	if primary != nil {
		records = append(records, *primary)
	}
	seen := make(map[string]bool)
	for _, p := range passages {
		if p.LandmarkID == "" || seen[p.LandmarkID] || (primary != nil && p.LandmarkID == primary.ID) {
			continue
		}
		seen[p.LandmarkID] = true
		records = append(records, landmark.Record{ID: p.LandmarkID})
	}
	return records
}

// primaryImageID picks the landmark whose photos accompany the report.
func primaryImageID(requestID string, citedIDs []string) string {
	if requestID != "" {
		return requestID
	}
	if len(citedIDs) > 0 {
		return citedIDs[0]
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
