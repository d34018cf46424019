// Package service internal/application/service/offer_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
	"github.com/damon-houk/insurance-offer-system/internal/domain/repository"
	domainservice "github.com/damon-houk/insurance-offer-system/internal/domain/service"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/logger"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/middleware"
	"github.com/shopspring/decimal"
)

// OfferPolicy holds the tunable constants of the offer lifecycle
type OfferPolicy struct {
	ExpiryWindow time.Duration
	PremiumRate  decimal.Decimal
}

// DefaultOfferPolicy returns a 30 day expiry window and a 0.038 premium rate
func DefaultOfferPolicy() OfferPolicy {
	return OfferPolicy{
		ExpiryWindow: entity.DefaultExpiryWindow,
		PremiumRate:  entity.DefaultPremiumRate,
	}
}

// OfferService runs the offer lifecycle: create, update, accept.
// It keeps no state between calls; the repository is the only shared resource.
type OfferService struct {
	repo      repository.OfferRepository
	publisher domainservice.OfferEventPublisher
	policy    OfferPolicy
	logger    logger.Logger
	now       func() time.Time
}

// NewOfferService creates a new offer service. publisher may be nil.
func NewOfferService(repo repository.OfferRepository, publisher domainservice.OfferEventPublisher, policy OfferPolicy, log logger.Logger) *OfferService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &OfferService{
		repo:      repo,
		publisher: publisher,
		policy:    policy,
		logger:    log,
		now:       time.Now,
	}
}

// CreateOffer validates the input and stores a new PENDING offer
func (s *OfferService) CreateOffer(ctx context.Context, personalNumber string, loans []float64, monthlyAmount float64) (*entity.Offer, error) {
	requestID := middleware.GetRequestID(ctx)

	if err := entity.ValidateOfferInput(personalNumber, loans, monthlyAmount); err != nil {
		s.logger.Warn("Offer input rejected", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return nil, err
	}

	offer := &entity.Offer{
		PersonalNumber: personalNumber,
		Loans:          append([]float64(nil), loans...),
		MonthlyAmount:  monthlyAmount,
		Premium:        entity.CalculatePremium(loans, s.policy.PremiumRate),
		Status:         entity.OfferStatusPending,
		CreatedDate:    s.now(),
	}

	created, err := s.repo.Create(ctx, offer)
	if err != nil {
		s.logger.Error("Failed to store offer", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}

	s.logger.Info("Offer created", map[string]interface{}{
		"request_id": requestID,
		"id":         created.ID,
		"loans":      len(created.Loans),
		"premium":    created.Premium,
	})
	s.publish(ctx, entity.OfferCreated, created)

	return created, nil
}

// UpdateOffer overwrites the customer data and loans of an offer and recomputes its premium.
// The update is applied whatever the offer's status; terminal offers only produce a warning.
func (s *OfferService) UpdateOffer(ctx context.Context, id, personalNumber string, loans []float64, monthlyAmount float64) (*entity.Offer, error) {
	requestID := middleware.GetRequestID(ctx)

	if err := entity.ValidateOfferInput(personalNumber, loans, monthlyAmount); err != nil {
		s.logger.Warn("Offer input rejected", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
			"error":      err.Error(),
		})
		return nil, err
	}

	offer, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if offer.IsTerminal() {
		// TODO: decide with product whether terminal offers should reject updates.
		s.logger.Warn("Updating offer in terminal status", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
			"status":     offer.Status,
		})
	}

	now := s.now()
	offer.PersonalNumber = personalNumber
	offer.Loans = append([]float64(nil), loans...)
	offer.MonthlyAmount = monthlyAmount
	offer.Premium = entity.CalculatePremium(loans, s.policy.PremiumRate)
	offer.UpdatedTime = &now

	updated, err := s.repo.Save(ctx, offer)
	if err != nil {
		s.logger.Error("Failed to save offer", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("failed to update offer: %w", err)
	}

	s.logger.Info("Offer updated", map[string]interface{}{
		"request_id": requestID,
		"id":         id,
		"premium":    updated.Premium,
	})

	return updated, nil
}

// AcceptOffer moves a PENDING offer to ACCEPTED. Expiry is derived from the creation
// date here as well, so a stale offer is refused even before the sweeper has run.
func (s *OfferService) AcceptOffer(ctx context.Context, id string) (*entity.Offer, error) {
	requestID := middleware.GetRequestID(ctx)

	offer, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()

	if offer.Status == entity.OfferStatusAccepted {
		s.logger.Warn("Offer already accepted", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
		})
		return nil, &entity.ConflictError{ID: id, Reason: entity.ErrOfferAlreadyAccepted}
	}

	if offer.Status == entity.OfferStatusExpired || offer.IsExpired(now, s.policy.ExpiryWindow) {
		s.logger.Warn("Offer expired", map[string]interface{}{
			"request_id":   requestID,
			"id":           id,
			"status":       offer.Status,
			"created_date": offer.CreatedDate.Format(time.RFC3339),
		})
		return nil, &entity.ConflictError{ID: id, Reason: entity.ErrOfferExpired}
	}

	offer.Accept(now)

	accepted, err := s.repo.Save(ctx, offer)
	if err != nil {
		s.logger.Error("Failed to save offer", map[string]interface{}{
			"request_id": requestID,
			"id":         id,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("failed to accept offer: %w", err)
	}

	s.logger.Info("Offer accepted", map[string]interface{}{
		"request_id": requestID,
		"id":         id,
	})
	s.publish(ctx, entity.OfferAccepted, accepted)

	return accepted, nil
}

// GetOffer retrieves an offer by ID
func (s *OfferService) GetOffer(ctx context.Context, id string) (*entity.Offer, error) {
	return s.find(ctx, id)
}

func (s *OfferService) find(ctx context.Context, id string) (*entity.Offer, error) {
	offer, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrOfferNotFound) {
		s.logger.Warn("Offer not found", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"id":         id,
		})
		return nil, &entity.NotFoundError{ID: id}
	}
	if err != nil {
		s.logger.Error("Failed to retrieve offer", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"id":         id,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("failed to retrieve offer: %w", err)
	}
	return offer, nil
}

func (s *OfferService) publish(ctx context.Context, eventType entity.OfferEventType, offer *entity.Offer) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, entity.NewOfferEvent(eventType, offer, s.now())); err != nil {
		s.logger.Error("Failed to publish offer event", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"id":         offer.ID,
			"type":       eventType,
			"error":      err.Error(),
		})
	}
}
