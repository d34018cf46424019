package events

import (
	"context"
	"time"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
	domainservice "github.com/damon-houk/insurance-offer-system/internal/domain/service"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/logger"
)

// LogPublisher writes lifecycle events to the application log when no broker is configured
type LogPublisher struct {
	logger logger.Logger
}

var _ domainservice.OfferEventPublisher = (*LogPublisher)(nil)

// NewLogPublisher creates a publisher backed by the logger
func NewLogPublisher(log logger.Logger) *LogPublisher {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &LogPublisher{logger: log}
}

func (p *LogPublisher) Publish(ctx context.Context, event entity.OfferEvent) error {
	p.logger.Info("Offer event", map[string]interface{}{
		"type":        event.Type,
		"offer_id":    event.OfferID,
		"status":      event.Status,
		"premium":     event.Premium,
		"occurred_at": event.OccurredAt.Format(time.RFC3339Nano),
	})
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
