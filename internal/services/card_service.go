package services

import (
	"context"
	"strings"

	"github.com/vytor/recall/internal/errors"
	"github.com/vytor/recall/internal/logger"
	"github.com/vytor/recall/internal/models"
	"github.com/vytor/recall/internal/repository"
)

const notFoundMessage = "not found"

// CardService handles tenant-scoped card management
type CardService interface {
	CreateCard(ctx context.Context, tenantID, instructions string, tags []string) (int64, error)
	CreateCards(ctx context.Context, tenantID string, inputs []models.CardInput) (models.BatchResult[models.CreatedCard], error)
	GetCard(ctx context.Context, tenantID string, id int64) (*models.CardView, error)
	EditCard(ctx context.Context, tenantID string, id int64, edit models.CardEdit) (bool, error)
	EditCards(ctx context.Context, tenantID string, items []models.CardEditItem) (models.BatchResult[models.CardRef], error)
	DeleteCard(ctx context.Context, tenantID string, id int64) (bool, error)
	DeleteCards(ctx context.Context, tenantID string, ids []int64) (models.BatchResult[models.CardRef], error)
	GetAllCards(ctx context.Context, tenantID string, tags []string) ([]models.CardView, error)
	SearchCards(ctx context.Context, tenantID, query string, tags []string) ([]models.CardView, error)
	SearchCardsBatch(ctx context.Context, tenantID string, queries []models.SearchQuery) (models.BatchResult[models.SearchResult], error)
}

type cardService struct {
	repo repository.CardRepository
	opts options
}

// NewCardService creates a new CardService
func NewCardService(repo repository.CardRepository, opts ...Option) CardService {
	return &cardService{repo: repo, opts: newOptions(opts)}
}

func (s *cardService) CreateCard(ctx context.Context, tenantID, instructions string, tags []string) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("card_service").WithTenant(tenantID)
	log.Debug("creating card: tags=%v", tags)

	if err := validateTenant(tenantID); err != nil {
		return 0, err
	}
	if strings.TrimSpace(instructions) == "" {
		return 0, errors.NewValidationError("instructions", "must not be empty")
	}
	labels, err := normalizeTags(tags)
	if err != nil {
		return 0, err
	}

	now := s.opts.now()
	id, err := s.repo.Create(ctx, models.Card{
		TenantID:     tenantID,
		Instructions: instructions,
		CreatedAt:    now,
		Tags:         labels,
	}, models.NewScheduleState(now))
	if err != nil {
		log.Error("failed to create card: %v", err)
		return 0, errors.NewInternalError(err)
	}

	log.WithField("card_id", id).Info("card created")
	return id, nil
}

func (s *cardService) CreateCards(ctx context.Context, tenantID string, inputs []models.CardInput) (models.BatchResult[models.CreatedCard], error) {
	log := logger.FromContext(ctx).WithPrefix("card_service").WithTenant(tenantID)
	log.Debug("creating %d cards", len(inputs))

	result := models.NewBatchResult[models.CreatedCard](len(inputs))
	if err := validateTenant(tenantID); err != nil {
		return result, err
	}

	for i, in := range inputs {
		id, err := s.CreateCard(ctx, tenantID, in.Instructions, in.Tags)
		if err != nil {
			result.Fail(models.BatchFailure{Index: i, Error: failureMessage(err)})
			continue
		}
		result.Succeed(models.CreatedCard{Index: i, CardID: id})
	}

	log.Info("batch create finished: successful=%d, failed=%d", len(result.Successful), len(result.Failed))
	return result, nil
}

func (s *cardService) GetCard(ctx context.Context, tenantID string, id int64) (*models.CardView, error) {
	log := logger.FromContext(ctx).WithPrefix("card_service").WithTenant(tenantID)
	log.Debug("getting card: id=%d", id)

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}

	card, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		log.Error("failed to get card: %v", err)
		return nil, errors.NewInternalError(err)
	}
	if card == nil {
		return nil, errors.NewCardNotFoundError(id)
	}

	view := s.view(*card)
	return &view, nil
}

func (s *cardService) EditCard(ctx context.Context, tenantID string, id int64, edit models.CardEdit) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("card_service").WithTenant(tenantID)
	log.Debug("editing card: id=%d", id)

	if err := validateTenant(tenantID); err != nil {
		return false, err
	}
	if edit.Instructions != nil && strings.TrimSpace(*edit.Instructions) == "" {
		return false, errors.NewValidationError("instructions", "must not be empty")
	}
	if edit.Tags != nil {
		labels, err := normalizeTags(*edit.Tags)
		if err != nil {
			return false, err
		}
		edit.Tags = &labels
	}

	ok, err := s.repo.Update(ctx, tenantID, id, edit)
	if err != nil {
		log.Error("failed to edit card: %v", err)
		return false, errors.NewInternalError(err)
	}
	if ok {
		log.WithField("card_id", id).Info("card edited")
	}
	return ok, nil
}

func (s *cardService) EditCards(ctx context.Context, tenantID string, items []models.CardEditItem) (models.BatchResult[models.CardRef], error) {
	log := logger.FromContext(ctx).WithPrefix("card_service").WithTenant(tenantID)
	log.Debug("editing %d cards", len(items))

	result := models.NewBatchResult[models.CardRef](len(items))
	if err := validateTenant(tenantID); err != nil {
		return result, err
	}

	for i, item := range items {
		id := item.CardID
		ok, err := s.EditCard(ctx, tenantID, id, item.CardEdit)
		switch {
		case err != nil:
			result.Fail(models.BatchFailure{Index: i, CardID: &id, Error: failureMessage(err)})
		case !ok:
			result.Fail(models.BatchFailure{Index: i, CardID: &id, Error: notFoundMessage})
		default:
			result.Succeed(models.CardRef{CardID: id})
		}
	}

	log.Info("batch edit finished: successful=%d, failed=%d", len(result.Successful), len(result.Failed))
	return result, nil
}

func (s *cardService) DeleteCard(ctx context.Context, tenantID string, id int64) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("card_service").WithTenant(tenantID)
	log.Debug("deleting card: id=%d", id)

	if err := validateTenant(tenantID); err != nil {
		return false, err
	}

	ok, err := s.repo.Delete(ctx, tenantID, id)
	if err != nil {
		log.Error("failed to delete card: %v", err)
		return false, errors.NewInternalError(err)
	}
	if ok {
		log.WithField("card_id", id).Info("card deleted")
	}
	return ok, nil
}

func (s *cardService) DeleteCards(ctx context.Context, tenantID string, ids []int64) (models.BatchResult[models.CardRef], error) {
	log := logger.FromContext(ctx).WithPrefix("card_service").WithTenant(tenantID)
	log.Debug("deleting %d cards", len(ids))

	result := models.NewBatchResult[models.CardRef](len(ids))
	if err := validateTenant(tenantID); err != nil {
		return result, err
	}

	for i, id := range ids {
		id := id
		ok, err := s.DeleteCard(ctx, tenantID, id)
		switch {
		case err != nil:
			result.Fail(models.BatchFailure{Index: i, CardID: &id, Error: failureMessage(err)})
		case !ok:
			result.Fail(models.BatchFailure{Index: i, CardID: &id, Error: notFoundMessage})
		default:
			result.Succeed(models.CardRef{CardID: id})
		}
	}

	log.Info("batch delete finished: successful=%d, failed=%d", len(result.Successful), len(result.Failed))
	return result, nil
}

func (s *cardService) GetAllCards(ctx context.Context, tenantID string, tags []string) ([]models.CardView, error) {
	log := logger.FromContext(ctx).WithPrefix("card_service").WithTenant(tenantID)
	log.Debug("listing cards: tags=%v", tags)

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	labels, err := normalizeTags(tags)
	if err != nil {
		return nil, err
	}

	cards, err := s.repo.List(ctx, models.CardFilter{TenantID: tenantID, Tags: labels})
	if err != nil {
		log.Error("failed to list cards: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return s.views(cards), nil
}

func (s *cardService) SearchCards(ctx context.Context, tenantID, query string, tags []string) ([]models.CardView, error) {
	log := logger.FromContext(ctx).WithPrefix("card_service").WithTenant(tenantID)
	log.Debug("searching cards: query=%q, tags=%v", query, tags)

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewValidationError("query", "must not be empty")
	}
	labels, err := normalizeTags(tags)
	if err != nil {
		return nil, err
	}

	cards, err := s.repo.Search(ctx, models.CardFilter{TenantID: tenantID, Tags: labels, Query: query})
	if err != nil {
		log.Error("failed to search cards: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return s.views(cards), nil
}

func (s *cardService) SearchCardsBatch(ctx context.Context, tenantID string, queries []models.SearchQuery) (models.BatchResult[models.SearchResult], error) {
	log := logger.FromContext(ctx).WithPrefix("card_service").WithTenant(tenantID)
	log.Debug("running %d searches", len(queries))

	result := models.NewBatchResult[models.SearchResult](len(queries))
	if err := validateTenant(tenantID); err != nil {
		return result, err
	}

	for i, q := range queries {
		cards, err := s.SearchCards(ctx, tenantID, q.Query, q.Tags)
		if err != nil {
			result.Fail(models.BatchFailure{Index: i, Query: q.Query, Error: failureMessage(err)})
			continue
		}
		result.Succeed(models.SearchResult{Query: q.Query, Cards: cards})
	}
	return result, nil
}

func (s *cardService) view(c models.Card) models.CardView {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.CardView{
		ID:           c.ID,
		Instructions: c.Instructions,
		Tags:         tags,
		Due:          dueLabel(c.Due, s.opts.now(), s.opts.loc),
		CreatedAt:    c.CreatedAt,
	}
}

func (s *cardService) views(cards []models.Card) []models.CardView {
	out := make([]models.CardView, len(cards))
	for i, c := range cards {
		out[i] = s.view(c)
	}
	return out
}
