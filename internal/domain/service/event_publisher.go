package service

import (
	"context"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
)

// OfferEventPublisher defines the interface for announcing offer lifecycle transitions
type OfferEventPublisher interface {
	// Publish delivers a single event. Delivery failures never roll back the transition.
	Publish(ctx context.Context, event entity.OfferEvent) error

	// Close flushes and releases the publisher
	Close() error
}
