// internal/application/service/stats_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
	"github.com/damon-houk/insurance-offer-system/internal/domain/repository"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/cache"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/logger"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/middleware"
	"github.com/shopspring/decimal"
)

const (
	DefaultStatsDays = 30
	MinStatsDays     = 1
	MaxStatsDays     = 365
)

// StatsService computes offer conversion statistics
type StatsService struct {
	repo   repository.OfferRepository
	cache  *cache.ConversionStatsCache
	logger logger.Logger
	now    func() time.Time
}

// NewStatsService creates a stats service. statsCache may be nil to always recompute.
func NewStatsService(repo repository.OfferRepository, statsCache *cache.ConversionStatsCache, log logger.Logger) *StatsService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &StatsService{
		repo:   repo,
		cache:  statsCache,
		logger: log,
		now:    time.Now,
	}
}

// GetConversionStats counts all offers and those accepted within the last days days.
// The rate is accepted*100/total, or 0 when there are no offers.
func (s *StatsService) GetConversionStats(ctx context.Context, days int) (*entity.ConversionStats, error) {
	requestID := middleware.GetRequestID(ctx)

	if days < MinStatsDays || days > MaxStatsDays {
		return nil, &entity.ValidationError{
			Field:   "days",
			Message: fmt.Sprintf("must be between %d and %d", MinStatsDays, MaxStatsDays),
		}
	}

	if s.cache != nil {
		if stats := s.cache.Get(days); stats != nil {
			s.logger.Debug("Using cached conversion stats", map[string]interface{}{
				"request_id": requestID,
				"days":       days,
			})
			return stats, nil
		}
	}

	offers, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list offers", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("failed to compute conversion stats: %w", err)
	}

	now := s.now()
	stats := ComputeConversionStats(offers, days, now)

	if s.cache != nil {
		if evicted := s.cache.CleanExpired(); evicted > 0 {
			s.logger.Debug("Evicted stale conversion stats", map[string]interface{}{
				"request_id": requestID,
				"evicted":    evicted,
			})
		}
		s.cache.Put(stats)
	}

	s.logger.Info("Conversion stats computed", map[string]interface{}{
		"request_id": requestID,
		"days":       days,
		"total":      stats.TotalOffers,
		"accepted":   stats.AcceptedWithinDays,
		"rate":       stats.ConversionRatePercent,
	})

	return stats, nil
}

// ComputeConversionStats derives stats from a snapshot of offers.
// An offer counts as accepted when its accepted date is strictly after now minus days.
func ComputeConversionStats(offers []*entity.Offer, days int, now time.Time) *entity.ConversionStats {
	cutoff := now.AddDate(0, 0, -days)

	var accepted int64
	for _, offer := range offers {
		if offer.AcceptedDate != nil && offer.AcceptedDate.After(cutoff) {
			accepted++
		}
	}

	total := int64(len(offers))
	stats := &entity.ConversionStats{
		Days:               days,
		TotalOffers:        total,
		AcceptedWithinDays: accepted,
		ComputedAt:         now,
	}
	if total > 0 {
		stats.ConversionRatePercent = decimal.NewFromInt(accepted).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(total)).
			InexactFloat64()
	}

	return stats
}
