package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/indexing"
	"github.com/advrag/ragd/internal/vectordb"
)

type indexPushRequest struct {
	DoReset bool `json:"do_reset"`
}

// handleIndexPush embeds the project's chunks into its vector collection.
func (s *Server) handleIndexPush(c echo.Context) error {
	var req indexPushRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p := currentProject(c)
	count, err := s.svc.Indexing.Push(c.Request().Context(), p, req.DoReset)
	if err != nil {
		if errors.Is(err, indexing.ErrNoChunks) {
			return c.JSON(http.StatusBadRequest, signalResponse(SignalVectorDBInsertError, envelope{
				"detail": "Project has no processed chunks. Run processing first.",
			}))
		}
		s.logger.Error("index push failed",
			zap.String("project", p.UUID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, signalResponse(SignalVectorDBInsertError, nil))
	}
	return c.JSON(http.StatusOK, signalResponse(SignalVectorDBInsertSuccess, envelope{
		"inserted_items_count": count,
	}))
}

// handleIndexInfo describes the project's vector collection.
func (s *Server) handleIndexInfo(c echo.Context) error {
	info, err := s.svc.Indexing.Info(c.Request().Context(), currentProject(c))
	if err != nil {
		if errors.Is(err, vectordb.ErrCollectionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Collection not found. Push the index first.")
		}
		return err
	}
	return c.JSON(http.StatusOK, signalResponse(SignalVectorDBCollectionRetrieved, envelope{
		"collection_info": info,
	}))
}

// SearchRequest carries a query for search and answer endpoints.
type SearchRequest struct {
	Text     string     `json:"text" validate:"required"`
	Limit    int        `json:"limit" validate:"omitempty,min=1"`
	ChatUUID *uuid.UUID `json:"chat_uuid"`
}

// handleSearch returns the nearest documents to the query text.
func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	p := currentProject(c)
	results, err := s.svc.RAG.SearchCollection(c.Request().Context(), p, req.Text, req.Limit)
	if err != nil {
		s.logger.Error("vector search failed",
			zap.String("project", p.UUID.String()),
			zap.Error(err))
		return c.JSON(http.StatusBadRequest, signalResponse(SignalVectorDBSearchError, nil))
	}
	return c.JSON(http.StatusOK, signalResponse(SignalVectorDBSearchSuccess, envelope{
		"results": results,
	}))
}

// handleAnswer runs the full question answering pipeline. With a
// chat_uuid the exchange is appended to the conversation history.
func (s *Server) handleAnswer(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	p := currentProject(c)
	u := currentUser(c)
	answer, err := s.svc.RAG.AnswerQuestion(c.Request().Context(), p, req.Text, req.Limit, req.ChatUUID, &u.ID)
	if err != nil {
		s.logger.Error("answering failed",
			zap.String("project", p.UUID.String()),
			zap.Error(err))
		return c.JSON(http.StatusBadRequest, signalResponse(SignalRAGAnswerError, nil))
	}
	return c.JSON(http.StatusOK, signalResponse(SignalRAGAnswerSuccess, envelope{
		"answer":      answer.Answer,
		"full_answer": answer.FullAnswer,
	}))
}
