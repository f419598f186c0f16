package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/vytor/recall/internal/errors"
	"github.com/vytor/recall/internal/logger"
	"github.com/vytor/recall/internal/models"
)

// reviewItemRequest defers rating parsing so a bad grade fails only its own item.
type reviewItemRequest struct {
	CardID int64           `json:"card_id"`
	Rating json.RawMessage `json:"rating"`
}

type submitReviewsRequest struct {
	CardID  *int64              `json:"card_id" validate:"omitempty,gt=0"`
	Rating  json.RawMessage     `json:"rating"`
	Reviews []reviewItemRequest `json:"reviews"`
}

// dueQuery.Limit of zero returns the whole ranked due set.
type dueQuery struct {
	Limit int `query:"limit" validate:"gte=0,lte=1000"`
}

func parseRating(raw json.RawMessage) (models.Rating, bool) {
	var rating models.Rating
	if len(raw) == 0 || json.Unmarshal(raw, &rating) != nil {
		return 0, false
	}
	return rating, true
}

func (s *Server) handleSubmitReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFromContext(ctx)

	var req submitReviewsRequest
	if err := s.decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	now := s.Now()

	switch {
	case req.Reviews != nil:
		items := make([]models.ReviewItem, len(req.Reviews))
		for i, it := range req.Reviews {
			// An unparseable grade stays zero and is rejected per item.
			rating, _ := parseRating(it.Rating)
			items[i] = models.ReviewItem{CardID: it.CardID, Rating: rating}
		}
		res, err := s.Reviews.SubmitReviews(ctx, tenantID, items, now)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case req.CardID != nil:
		rating, ok := parseRating(req.Rating)
		if !ok {
			handleError(w, r, errors.NewValidationError("rating", "must be one of again, hard, good, easy"))
			return
		}
		res, err := s.Reviews.SubmitReview(ctx, tenantID, *req.CardID, rating, now)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	default:
		handleError(w, r, errors.NewValidationError("body", "expected card_id and rating or reviews"))
	}
}

func (s *Server) handleUndoReview(w http.ResponseWriter, r *http.Request) {
	id, err := cardIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	ok, err := s.Reviews.UndoReview(r.Context(), tenantFromContext(r.Context()), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"undone": ok})
}

func (s *Server) handleDueCards(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var q dueQuery
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			handleError(w, r, errors.NewBadRequestError(fmt.Sprintf("invalid limit %q", raw)))
			return
		}
		q.Limit = limit
	}
	if err := s.validateStruct(q); err != nil {
		handleError(w, r, err)
		return
	}

	cards, err := s.Reviews.GetDueCards(r.Context(), tenantFromContext(r.Context()), q.Limit, tagsParam(r), s.Now())
	if err != nil {
		handleError(w, r, err)
		return
	}
	log.Debug("returning %d due cards", len(cards))
	writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
}

func (s *Server) handlePreviewReview(w http.ResponseWriter, r *http.Request) {
	id, err := cardIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	preview, err := s.Reviews.PreviewReview(r.Context(), tenantFromContext(r.Context()), id, s.Now())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleReviewHistory(w http.ResponseWriter, r *http.Request) {
	id, err := cardIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	history, err := s.Reviews.GetHistory(r.Context(), tenantFromContext(r.Context()), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}
