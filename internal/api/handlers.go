package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vytor/recall/internal/errors"
	"github.com/vytor/recall/internal/logger"
	"github.com/vytor/recall/internal/models"
	"github.com/vytor/recall/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server adapts the card, review and stats services to JSON over HTTP.
type Server struct {
	Cards   services.CardService
	Reviews services.ReviewService
	Stats   services.StatsService
	DB      Pinger
	// Now is the review clock. Defaults to time.Now.
	Now func() time.Time

	validate *validator.Validate
}

// NewServer wires the services into a Server.
func NewServer(cards services.CardService, reviews services.ReviewService, stats services.StatsService, db Pinger) *Server {
	return &Server{
		Cards:    cards,
		Reviews:  reviews,
		Stats:    stats,
		DB:       db,
		Now:      time.Now,
		validate: newValidator(),
	}
}

type createCardsRequest struct {
	Instructions *string            `json:"instructions"`
	Tags         []string           `json:"tags"`
	Cards        []models.CardInput `json:"cards"`
}

type editCardsRequest struct {
	Cards []models.CardEditItem `json:"cards" validate:"required"`
}

type deleteCardsRequest struct {
	CardIDs []int64 `json:"card_ids" validate:"required"`
}

type searchCardsRequest struct {
	Queries []models.SearchQuery `json:"queries" validate:"required"`
}

func (s *Server) handleCreateCards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFromContext(ctx)

	var req createCardsRequest
	if err := s.decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	switch {
	case req.Cards != nil:
		res, err := s.Cards.CreateCards(ctx, tenantID, req.Cards)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case req.Instructions != nil:
		id, err := s.Cards.CreateCard(ctx, tenantID, *req.Instructions, req.Tags)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, models.CardRef{CardID: id})
	default:
		handleError(w, r, errors.NewValidationError("body", "expected instructions or cards"))
	}
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.Cards.GetAllCards(r.Context(), tenantFromContext(r.Context()), tagsParam(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	card, err := s.Cards.GetCard(r.Context(), tenantFromContext(r.Context()), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleEditCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	var edit models.CardEdit
	if err := s.decodeJSON(r, &edit); err != nil {
		handleError(w, r, err)
		return
	}

	ok, err := s.Cards.EditCard(r.Context(), tenantFromContext(r.Context()), id, edit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !ok {
		handleError(w, r, errors.NewCardNotFoundError(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEditCards(w http.ResponseWriter, r *http.Request) {
	var req editCardsRequest
	if err := s.decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	res, err := s.Cards.EditCards(r.Context(), tenantFromContext(r.Context()), req.Cards)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardIDParam(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	ok, err := s.Cards.DeleteCard(r.Context(), tenantFromContext(r.Context()), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !ok {
		handleError(w, r, errors.NewCardNotFoundError(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCards(w http.ResponseWriter, r *http.Request) {
	var req deleteCardsRequest
	if err := s.decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	res, err := s.Cards.DeleteCards(r.Context(), tenantFromContext(r.Context()), req.CardIDs)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearchCards(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	query := r.URL.Query().Get("q")
	log.Debug("search: q=%q", query)

	cards, err := s.Cards.SearchCards(r.Context(), tenantFromContext(r.Context()), query, tagsParam(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
}

func (s *Server) handleSearchCardsBatch(w http.ResponseWriter, r *http.Request) {
	var req searchCardsRequest
	if err := s.decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	res, err := s.Cards.SearchCardsBatch(r.Context(), tenantFromContext(r.Context()), req.Queries)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
