// Package repository internal/domain/repository/offer_repository.go
package repository

import (
	"context"
	"errors"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
)

// ErrOfferNotFound is returned by FindByID when no offer has the id
var ErrOfferNotFound = errors.New("offer not found")

// OfferRepository defines the interface for offer storage
type OfferRepository interface {
	// Create stores a new offer, assigning an ID when it has none
	Create(ctx context.Context, offer *entity.Offer) (*entity.Offer, error)

	// FindByID retrieves an offer by its unique identifier
	FindByID(ctx context.Context, id string) (*entity.Offer, error)

	// FindAll retrieves every stored offer
	FindAll(ctx context.Context) ([]*entity.Offer, error)

	// Save overwrites a single offer atomically
	Save(ctx context.Context, offer *entity.Offer) (*entity.Offer, error)

	// SaveAll writes a batch of offers in one transaction. An offer whose stored
	// copy is no longer PENDING is left untouched and omitted from the result.
	SaveAll(ctx context.Context, offers []*entity.Offer) ([]*entity.Offer, error)

	// Close releases the underlying storage
	Close() error
}
