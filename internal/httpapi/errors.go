package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/landmarkd/internal/landmark"
	"github.com/fyrsmithlabs/landmarkd/internal/llm"
	"github.com/fyrsmithlabs/landmarkd/internal/memory"
	"github.com/fyrsmithlabs/landmarkd/internal/research"
	"github.com/fyrsmithlabs/landmarkd/internal/vectorsearch"
)

// Machine-readable error kinds in error payloads.
const (
	KindValidation       = "validation"
	KindNotFound         = "not_found"
	KindUnavailable      = "upstream_unavailable"
	KindGenerationFailed = "generation_failed"
	KindInternal         = "internal"
)

// ErrorResponse is the structured error payload. Upstream stack traces
// never reach clients.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the error kind and message.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errorJSON(c echo.Context, status int, kind, message string) error {
	return c.JSON(status, ErrorResponse{Error: ErrorBody{Kind: kind, Message: message}})
}

// mapError translates pipeline errors into structured HTTP responses.
func (s *Server) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, research.ErrInvalidRequest):
		return errorJSON(c, http.StatusBadRequest, KindValidation, err.Error())
	case errors.Is(err, memory.ErrConversationNotFound):
		return errorJSON(c, http.StatusNotFound, KindNotFound, "conversation not found")
	case errors.Is(err, landmark.ErrLandmarkNotFound):
		return errorJSON(c, http.StatusNotFound, KindNotFound, "landmark not found")
	case errors.Is(err, vectorsearch.ErrSearchUnavailable):
		return errorJSON(c, http.StatusBadGateway, KindUnavailable, "semantic search is unavailable")
	case errors.Is(err, vectorsearch.ErrSearchRejected):
		// The upstream refused the query; this is a server-side
		// configuration problem, not an outage.
		s.logger.Error("semantic search rejected the query", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, KindInternal, "internal error")
	case errors.Is(err, landmark.ErrMetadataUnavailable):
		return errorJSON(c, http.StatusBadGateway, KindUnavailable, "landmark metadata is unavailable")
	case errors.Is(err, llm.ErrGenerationFailed):
		return errorJSON(c, http.StatusBadGateway, KindGenerationFailed, "report generation failed")
	default:
		s.logger.Error("unhandled request error", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, KindInternal, "internal error")
	}
}
