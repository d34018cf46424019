// internal/application/service/expiry_sweeper.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
	"github.com/damon-houk/insurance-offer-system/internal/domain/repository"
	domainservice "github.com/damon-houk/insurance-offer-system/internal/domain/service"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/logger"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/middleware"
	"github.com/google/uuid"
)

// DefaultSweepInterval is how often Run expires stale offers
const DefaultSweepInterval = 24 * time.Hour

// SweepResult summarises one expiry pass
type SweepResult struct {
	Scanned int
	Expired int
	// Skipped counts offers that left PENDING between the scan and the write
	Skipped int
	Failed  int
}

// ExpirySweeper moves PENDING offers older than the expiry window to EXPIRED
// and clears their personal number.
type ExpirySweeper struct {
	repo      repository.OfferRepository
	publisher domainservice.OfferEventPublisher
	window    time.Duration
	interval  time.Duration
	logger    logger.Logger
	now       func() time.Time
}

// NewExpirySweeper creates a sweeper. A non-positive interval falls back to DefaultSweepInterval.
func NewExpirySweeper(repo repository.OfferRepository, publisher domainservice.OfferEventPublisher, window, interval time.Duration, log logger.Logger) *ExpirySweeper {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	return &ExpirySweeper{
		repo:      repo,
		publisher: publisher,
		window:    window,
		interval:  interval,
		logger:    log,
		now:       time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// Sweep errors are logged and never stop the loop.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	s.logger.Info("Expiry sweeper started", map[string]interface{}{
		"interval": s.interval.String(),
		"window":   s.window.String(),
	})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Expiry sweep failed", map[string]interface{}{
				"error": err.Error(),
			})
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopped", nil)
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep runs a single expiry pass. Offers are saved in one batch; when the batch
// fails each offer is retried alone so one bad record does not block the rest.
func (s *ExpirySweeper) Sweep(ctx context.Context) (SweepResult, error) {
	ctx = middleware.WithRequestID(ctx, "sweep-"+uuid.NewString())
	requestID := middleware.GetRequestID(ctx)
	now := s.now()

	offers, err := s.repo.FindAll(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to list offers: %w", err)
	}

	result := SweepResult{Scanned: len(offers)}

	var stale []*entity.Offer
	for _, offer := range offers {
		if offer.IsExpired(now, s.window) {
			offer.Expire()
			stale = append(stale, offer)
		}
	}

	if len(stale) == 0 {
		s.logger.Debug("No offers to expire", map[string]interface{}{
			"request_id": requestID,
			"scanned":    result.Scanned,
		})
		return result, nil
	}

	saved, err := s.repo.SaveAll(ctx, stale)
	if err != nil {
		s.logger.Warn("Batch expiry failed, saving offers one by one", map[string]interface{}{
			"request_id": requestID,
			"count":      len(stale),
			"error":      err.Error(),
		})

		saved = nil
		for _, offer := range stale {
			one, saveErr := s.repo.SaveAll(ctx, []*entity.Offer{offer})
			if saveErr != nil {
				result.Failed++
				s.logger.Error("Failed to expire offer", map[string]interface{}{
					"request_id": requestID,
					"id":         offer.ID,
					"error":      saveErr.Error(),
				})
				continue
			}
			saved = append(saved, one...)
		}
	}

	result.Skipped = len(stale) - len(saved) - result.Failed
	if result.Skipped > 0 {
		s.logger.Info("Offers changed during sweep were left as is", map[string]interface{}{
			"request_id": requestID,
			"skipped":    result.Skipped,
		})
	}

	for _, offer := range saved {
		result.Expired++
		s.logger.Info("Offer expired", map[string]interface{}{
			"request_id":   requestID,
			"id":           offer.ID,
			"created_date": offer.CreatedDate.Format(time.RFC3339),
		})
		s.publish(ctx, offer, now)
	}

	s.logger.Info("Expiry sweep finished", map[string]interface{}{
		"request_id": requestID,
		"scanned":    result.Scanned,
		"expired":    result.Expired,
		"skipped":    result.Skipped,
		"failed":     result.Failed,
	})

	return result, nil
}

func (s *ExpirySweeper) publish(ctx context.Context, offer *entity.Offer, at time.Time) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, entity.NewOfferEvent(entity.OfferExpired, offer, at)); err != nil {
		s.logger.Error("Failed to publish offer event", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"id":         offer.ID,
			"type":       entity.OfferExpired,
			"error":      err.Error(),
		})
	}
}
