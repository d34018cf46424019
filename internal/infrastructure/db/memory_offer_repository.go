package db

import (
	"context"
	"sort"
	"sync"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
	"github.com/damon-houk/insurance-offer-system/internal/domain/repository"
	"github.com/google/uuid"
)

// MemoryOfferRepository provides a thread-safe in-memory offer store
type MemoryOfferRepository struct {
	offers map[string]*entity.Offer
	mutex  sync.RWMutex
}

var _ repository.OfferRepository = (*MemoryOfferRepository)(nil)

// NewMemoryOfferRepository creates an empty in-memory offer store
func NewMemoryOfferRepository() *MemoryOfferRepository {
	return &MemoryOfferRepository{
		offers: make(map[string]*entity.Offer),
	}
}

// Create stores a new offer, assigning an ID when it has none
func (r *MemoryOfferRepository) Create(ctx context.Context, offer *entity.Offer) (*entity.Offer, error) {
	stored := offer.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.offers[stored.ID] = stored
	return stored.Clone(), nil
}

// FindByID retrieves an offer by its unique identifier
func (r *MemoryOfferRepository) FindByID(ctx context.Context, id string) (*entity.Offer, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	offer, exists := r.offers[id]
	if !exists {
		return nil, repository.ErrOfferNotFound
	}
	return offer.Clone(), nil
}

// FindAll returns every offer ordered by creation date
func (r *MemoryOfferRepository) FindAll(ctx context.Context) ([]*entity.Offer, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	offers := make([]*entity.Offer, 0, len(r.offers))
	for _, offer := range r.offers {
		offers = append(offers, offer.Clone())
	}

	sort.Slice(offers, func(i, j int) bool {
		return offers[i].CreatedDate.Before(offers[j].CreatedDate)
	})
	return offers, nil
}

// Save overwrites a single offer
func (r *MemoryOfferRepository) Save(ctx context.Context, offer *entity.Offer) (*entity.Offer, error) {
	if offer.ID == "" {
		return r.Create(ctx, offer)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.offers[offer.ID] = offer.Clone()
	return offer.Clone(), nil
}

// SaveAll writes a batch of offers under one lock, skipping any that left PENDING
func (r *MemoryOfferRepository) SaveAll(ctx context.Context, offers []*entity.Offer) ([]*entity.Offer, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	saved := make([]*entity.Offer, 0, len(offers))
	for _, offer := range offers {
		stored := offer.Clone()
		if stored.ID == "" {
			stored.ID = uuid.New().String()
		}
		if current, ok := r.offers[stored.ID]; ok && current.Status != entity.OfferStatusPending {
			continue
		}
		r.offers[stored.ID] = stored
		saved = append(saved, stored.Clone())
	}
	return saved, nil
}

// Close is a no-op for the in-memory store
func (r *MemoryOfferRepository) Close() error {
	return nil
}
